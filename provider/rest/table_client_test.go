package rest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/taskpane/app/domain"
	"github.com/taskpane/app/internal/testutil"
)

func TestSelectScopesAndOrders(t *testing.T) {
	client := NewTableClient("http://backend", "anon-key", time.Second)
	session := testutil.NewSession("alice", "a@x.com")

	var gotUserFilter, gotOrder, gotBearer string
	serve(t, &client.httpClient, func(ctx *fasthttp.RequestCtx) {
		gotUserFilter = string(ctx.QueryArgs().Peek("user_id"))
		gotOrder = string(ctx.QueryArgs().Peek("order"))
		gotBearer = string(ctx.Request.Header.Peek("Authorization"))
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString(`[
			{"id":"t2","user_id":"alice","title":"buy milk","is_completed":false,"created_at":"2026-08-20T10:00:00Z"},
			{"id":"t1","user_id":"alice","title":"water plants","is_completed":true,"created_at":"2026-08-19T10:00:00Z"}
		]`)
	})

	tasks, err := client.Select(context.Background(), session, "alice")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if gotUserFilter != "eq.alice" {
		t.Errorf("user filter = %q", gotUserFilter)
	}
	if gotOrder != "created_at.desc" {
		t.Errorf("order = %q", gotOrder)
	}
	if gotBearer != "Bearer "+session.AccessToken {
		t.Errorf("bearer = %q", gotBearer)
	}
	if len(tasks) != 2 || tasks[0].ID != "t2" || !tasks[1].IsCompleted {
		t.Fatalf("rows not decoded: %+v", tasks)
	}
}

func TestSelectWithoutSession(t *testing.T) {
	client := NewTableClient("http://backend", "anon-key", time.Second)
	if _, err := client.Select(context.Background(), nil, "alice"); err != domain.ErrNoSession {
		t.Fatalf("got %v, want ErrNoSession", err)
	}
}

func TestInsertReturnsRepresentation(t *testing.T) {
	client := NewTableClient("http://backend", "anon-key", time.Second)
	session := testutil.NewSession("alice", "")

	var gotPrefer string
	var gotBody map[string]string
	serve(t, &client.httpClient, func(ctx *fasthttp.RequestCtx) {
		gotPrefer = string(ctx.Request.Header.Peek("Prefer"))
		_ = json.Unmarshal(ctx.PostBody(), &gotBody)
		ctx.SetStatusCode(fasthttp.StatusCreated)
		ctx.SetBodyString(`[{"id":"t9","user_id":"alice","title":"buy milk","is_completed":false,"created_at":"2026-08-22T08:00:00Z"}]`)
	})

	created, err := client.Insert(context.Background(), session, "alice", "buy milk")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if gotPrefer != "return=representation" {
		t.Errorf("Prefer = %q", gotPrefer)
	}
	if gotBody["title"] != "buy milk" || gotBody["user_id"] != "alice" {
		t.Errorf("body = %v", gotBody)
	}
	if created.ID != "t9" || created.CreatedAt.IsZero() {
		t.Fatalf("server row not adopted: %+v", created)
	}
}

func TestInsertWithoutRow(t *testing.T) {
	client := NewTableClient("http://backend", "anon-key", time.Second)
	serve(t, &client.httpClient, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusCreated)
		ctx.SetBodyString(`[]`)
	})

	if _, err := client.Insert(context.Background(), testutil.NewSession("alice", ""), "alice", "x"); !domain.IsDomainError(err, domain.ErrCodeStore) {
		t.Fatalf("got %v, want STORE error", err)
	}
}

func TestUpdateCompletion(t *testing.T) {
	client := NewTableClient("http://backend", "anon-key", time.Second)

	var gotMethod, gotFilter string
	var gotBody map[string]bool
	serve(t, &client.httpClient, func(ctx *fasthttp.RequestCtx) {
		gotMethod = string(ctx.Method())
		gotFilter = string(ctx.QueryArgs().Peek("id"))
		_ = json.Unmarshal(ctx.PostBody(), &gotBody)
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	})

	if err := client.UpdateCompletion(context.Background(), testutil.NewSession("alice", ""), "t1", true); err != nil {
		t.Fatalf("UpdateCompletion: %v", err)
	}
	if gotMethod != fasthttp.MethodPatch {
		t.Errorf("method = %q", gotMethod)
	}
	if gotFilter != "eq.t1" {
		t.Errorf("id filter = %q", gotFilter)
	}
	if !gotBody["is_completed"] {
		t.Errorf("body = %v", gotBody)
	}
}

func TestDeleteMapsErrors(t *testing.T) {
	client := NewTableClient("http://backend", "anon-key", time.Second)
	serve(t, &client.httpClient, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"message":"row level security violation"}`)
	})

	err := client.Delete(context.Background(), testutil.NewSession("alice", ""), "t1")
	if !domain.IsDomainError(err, domain.ErrCodeStore) {
		t.Fatalf("got %v, want STORE error", err)
	}
	if err.Error() != "row level security violation" {
		t.Fatalf("provider message lost: %q", err.Error())
	}
}

func TestUnauthorizedResponse(t *testing.T) {
	client := NewTableClient("http://backend", "anon-key", time.Second)
	serve(t, &client.httpClient, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetBodyString(`{"message":"JWT expired"}`)
	})

	err := client.Delete(context.Background(), testutil.NewSession("alice", ""), "t1")
	if !domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
		t.Fatalf("got %v, want UNAUTHORIZED error", err)
	}
}
