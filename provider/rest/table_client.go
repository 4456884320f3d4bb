package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/taskpane/app/domain"
	"github.com/taskpane/app/provider"
)

// TableClient issues row operations against the backend's query API for
// the "tasks" collection. Ownership is enforced by the backend's row-level
// security; the user_id filter only scopes the request.
type TableClient struct {
	httpClient
}

// NewTableClient returns an HTTP-backed implementation of provider.TaskTable.
func NewTableClient(baseURL, apiKey string, timeout time.Duration) *TableClient {
	return &TableClient{httpClient: newHTTPClient(baseURL, apiKey, timeout)}
}

var _ provider.TaskTable = (*TableClient)(nil)

func (c *TableClient) Select(ctx context.Context, session *domain.Session, userID string) ([]domain.Task, error) {
	if session == nil {
		return nil, domain.ErrNoSession
	}

	query := url.Values{}
	query.Set("select", "*")
	query.Set("user_id", "eq."+userID)
	query.Set("order", "created_at.desc")

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	c.prepare(req, fasthttp.MethodGet, c.tasksURI(query), session.AccessToken)

	if err := c.do(ctx, req, resp); err != nil {
		return nil, domain.WrapError(domain.ErrCodeStore, "task fetch failed", err)
	}
	if !isSuccess(resp.StatusCode()) {
		return nil, decodeError(domain.ErrCodeStore, "task fetch rejected", resp)
	}

	var tasks []domain.Task
	if err := json.Unmarshal(resp.Body(), &tasks); err != nil {
		return nil, domain.WrapError(domain.ErrCodeStore, "malformed task list response", err)
	}
	return tasks, nil
}

func (c *TableClient) Insert(ctx context.Context, session *domain.Session, userID, title string) (*domain.Task, error) {
	if session == nil {
		return nil, domain.ErrNoSession
	}

	body, err := json.Marshal(map[string]string{
		"title":   title,
		"user_id": userID,
	})
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	c.prepare(req, fasthttp.MethodPost, c.tasksURI(nil), session.AccessToken)
	req.Header.Set("Prefer", "return=representation")
	req.SetBody(body)

	if err := c.do(ctx, req, resp); err != nil {
		return nil, domain.WrapError(domain.ErrCodeStore, "task insert failed", err)
	}
	if !isSuccess(resp.StatusCode()) {
		return nil, decodeError(domain.ErrCodeStore, "task insert rejected", resp)
	}

	// The query API returns the created rows as an array.
	var rows []domain.Task
	if err := json.Unmarshal(resp.Body(), &rows); err != nil || len(rows) == 0 {
		return nil, domain.NewError(domain.ErrCodeStore, "insert returned no row")
	}
	return &rows[0], nil
}

func (c *TableClient) UpdateCompletion(ctx context.Context, session *domain.Session, id string, completed bool) error {
	if session == nil {
		return domain.ErrNoSession
	}

	body, err := json.Marshal(map[string]bool{"is_completed": completed})
	if err != nil {
		return err
	}

	query := url.Values{}
	query.Set("id", "eq."+id)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	c.prepare(req, fasthttp.MethodPatch, c.tasksURI(query), session.AccessToken)
	req.SetBody(body)

	if err := c.do(ctx, req, resp); err != nil {
		return domain.WrapError(domain.ErrCodeStore, "task update failed", err)
	}
	if !isSuccess(resp.StatusCode()) {
		return decodeError(domain.ErrCodeStore, "task update rejected", resp)
	}
	return nil
}

func (c *TableClient) Delete(ctx context.Context, session *domain.Session, id string) error {
	if session == nil {
		return domain.ErrNoSession
	}

	query := url.Values{}
	query.Set("id", "eq."+id)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	c.prepare(req, fasthttp.MethodDelete, c.tasksURI(query), session.AccessToken)

	if err := c.do(ctx, req, resp); err != nil {
		return domain.WrapError(domain.ErrCodeStore, "task delete failed", err)
	}
	if !isSuccess(resp.StatusCode()) {
		return decodeError(domain.ErrCodeStore, "task delete rejected", resp)
	}
	return nil
}

// Ping probes the query API root.
func (c *TableClient) Ping(ctx context.Context) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	c.prepare(req, fasthttp.MethodGet, c.baseURL+"/rest/v1/", "")
	if err := c.do(ctx, req, resp); err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode()) {
		return domain.NewError(domain.ErrCodeStore, "table endpoint unhealthy")
	}
	return nil
}

func (c *TableClient) tasksURI(query url.Values) string {
	uri := c.baseURL + "/rest/v1/tasks"
	if len(query) > 0 {
		uri = fmt.Sprintf("%s?%s", uri, query.Encode())
	}
	return uri
}
