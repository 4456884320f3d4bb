package transport

type OAuthSignInRequest struct {
	Provider string `json:"provider"`
}

type EmailSignInRequest struct {
	Email string `json:"email"`
}

type TaskCreateRequest struct {
	Title string `json:"title"`
}

// LinkSentResponse confirms that a one-time sign-in link was emailed.
type LinkSentResponse struct {
	LinkSentTo string `json:"link_sent_to"`
}

// OAuthRedirectResponse carries the authorize URL the page navigates to.
type OAuthRedirectResponse struct {
	RedirectURL string `json:"redirect_url"`
}
