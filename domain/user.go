package domain

// User represents the authenticated identity carried by a session.
// Profile fields are read-only metadata issued by the auth provider.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}
