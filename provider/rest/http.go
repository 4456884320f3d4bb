package rest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/taskpane/app/domain"
)

const defaultTimeout = 10 * time.Second

// httpClient carries what both boundary clients share: the project base
// URL, the API key header and a fasthttp client.
type httpClient struct {
	baseURL string
	apiKey  string
	client  *fasthttp.Client
	timeout time.Duration
}

func newHTTPClient(baseURL, apiKey string, timeout time.Duration) httpClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &fasthttp.Client{},
		timeout: timeout,
	}
}

// do executes the request, honoring the context deadline when it is
// tighter than the configured timeout.
func (c *httpClient) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return ctx.Err()
	}
	return c.client.DoTimeout(req, resp, timeout)
}

func (c *httpClient) prepare(req *fasthttp.Request, method, uri, bearer string) {
	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	req.Header.Set("apikey", c.apiKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
}

// apiError is the provider's error body; field names differ between the
// auth and table surfaces, so all candidates are decoded best-effort.
type apiError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Msg         string `json:"msg"`
	Message     string `json:"message"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Description, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// decodeError maps a non-2xx provider response to a domain error.
func decodeError(code domain.ErrorCode, fallback string, resp *fasthttp.Response) error {
	var body apiError
	_ = json.Unmarshal(resp.Body(), &body)
	msg := body.text()
	if msg == "" {
		msg = fallback
	}
	if resp.StatusCode() == fasthttp.StatusUnauthorized {
		return domain.NewError(domain.ErrCodeUnauthorized, msg)
	}
	return domain.NewError(code, msg)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
