package waitlist_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/waitlist-go/internal/components/api"
	"github.com/MahdiBaghbani/waitlist-go/internal/components/waitlist"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/appctx"
	storemem "github.com/MahdiBaghbani/waitlist-go/internal/platform/store/memory"
)

func newTestRouter(t *testing.T) (http.Handler, *storemem.Driver) {
	t.Helper()
	d := storemem.New()
	h := waitlist.NewHandler(newService(d, waitlist.Options{}))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(appctx.WithClientIP(r.Context(), "192.0.2.10")))
		})
	})
	r.Get("/health", h.Health)
	r.Post("/waitlist", h.Register)
	r.Get("/waitlist", h.List)
	r.Get("/waitlist/stats", h.Stats)
	r.Patch("/waitlist/{id}", h.Update)
	return r, d
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "handler-test/1.0")
	req.Header.Set("Referer", "https://landing.example/")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorDetail {
	t.Helper()
	var env api.ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("response is not an error envelope: %v", err)
	}
	return env.Error
}

func TestHandler_Register(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/waitlist", `{"email":" New@Example.com ","source":"beta_signup","utm":{"source":"x","campaign":"launch"},"metadata":{"browser":"firefox"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var e waitlist.Entry
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatal(err)
	}
	if e.Email != "new@example.com" || e.Position != 1 || e.Source != waitlist.SourceBetaSignup {
		t.Errorf("unexpected entry: %+v", e)
	}
	md := e.Metadata
	if md.IPAddress != "192.0.2.10" || md.UserAgent != "handler-test/1.0" || md.Referrer != "https://landing.example/" {
		t.Errorf("client context not captured: %+v", md)
	}
	if md.UTM == nil || md.UTM.Campaign != "launch" || md.Extra["browser"] != "firefox" {
		t.Errorf("client metadata not stored: %+v", md)
	}
}

func TestHandler_RegisterErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		reason string
	}{
		{"invalid email", `{"email":"not-an-email"}`, http.StatusBadRequest, api.ReasonInvalidField},
		{"missing email", `{}`, http.StatusBadRequest, api.ReasonInvalidField},
		{"unknown source", `{"email":"a@b.co","source":"tv"}`, http.StatusBadRequest, api.ReasonInvalidField},
		{"malformed json", `{"email":`, http.StatusBadRequest, api.ReasonBadRequest},
		{"duplicate", `{"email":"TAKEN@example.com"}`, http.StatusConflict, api.ReasonAlreadyRegistered},
	}

	h, _ := newTestRouter(t)
	if rec := do(t, h, http.MethodPost, "/waitlist", `{"email":"taken@example.com"}`); rec.Code != http.StatusCreated {
		t.Fatalf("seed registration failed: %d", rec.Code)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/waitlist", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if got := decodeError(t, rec); got.ReasonCode != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, got.ReasonCode)
			}
		})
	}
}

func TestHandler_RegisterBodyTooLarge(t *testing.T) {
	h, _ := newTestRouter(t)

	padding := bytes.Repeat([]byte("a"), waitlist.MaxBodyBytes)
	body := `{"email":"big@example.com","metadata":{"pad":"` + string(padding) + `"}}`

	rec := do(t, h, http.MethodPost, "/waitlist", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if reason := decodeError(t, rec).ReasonCode; reason != api.ReasonBodyTooLarge {
		t.Errorf("expected reason %q, got %q", api.ReasonBodyTooLarge, reason)
	}
}

func TestHandler_ListRedactsAndPaginates(t *testing.T) {
	h, _ := newTestRouter(t)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if rec := do(t, h, http.MethodPost, "/waitlist", `{"email":"`+email+`"}`); rec.Code != http.StatusCreated {
			t.Fatalf("registration failed: %d", rec.Code)
		}
	}

	rec := do(t, h, http.MethodGet, "/waitlist?page=1&limit=2&search=EXAMPLE", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var res waitlist.ListResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Pagination != (waitlist.Pagination{Current: 1, Pages: 2, Total: 3, Limit: 2}) {
		t.Errorf("unexpected pagination: %+v", res.Pagination)
	}
	for _, e := range res.Entries {
		if e.Metadata.IPAddress != "" || e.Metadata.UserAgent != "" {
			t.Errorf("listing leaked client context: %+v", e.Metadata)
		}
	}
}

func TestHandler_ListHugePage(t *testing.T) {
	h, _ := newTestRouter(t)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if rec := do(t, h, http.MethodPost, "/waitlist", `{"email":"`+email+`"}`); rec.Code != http.StatusCreated {
			t.Fatalf("registration failed: %d", rec.Code)
		}
	}

	rec := do(t, h, http.MethodGet, "/waitlist?page=184467440737095518", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res waitlist.ListResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 0 || res.Pagination.Total != 3 {
		t.Errorf("expected an empty page over 3 entries, got %d entries, %+v", len(res.Entries), res.Pagination)
	}
}

func TestHandler_ListBadQuery(t *testing.T) {
	h, _ := newTestRouter(t)

	for _, target := range []string{
		"/waitlist?page=abc",
		"/waitlist?page=0",
		"/waitlist?limit=0",
		"/waitlist?status=archived",
	} {
		t.Run(target, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, target, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if got := decodeError(t, rec); got.ReasonCode != api.ReasonInvalidField {
				t.Errorf("expected invalid_field, got %q", got.ReasonCode)
			}
		})
	}
}

func TestHandler_Stats(t *testing.T) {
	h, _ := newTestRouter(t)
	do(t, h, http.MethodPost, "/waitlist", `{"email":"stats@example.com"}`)

	rec := do(t, h, http.MethodGet, "/waitlist/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats waitlist.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 || stats.Pending != 1 || stats.Today != 1 || stats.ThisWeek != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestHandler_Update(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/waitlist", `{"email":"upd@example.com"}`)
	var created waitlist.Entry
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}

	rec = do(t, h, http.MethodPatch, "/waitlist/"+created.ID, `{"status":"invited","notes":"batch 1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated waitlist.Entry
	if err := json.NewDecoder(rec.Body).Decode(&updated); err != nil {
		t.Fatal(err)
	}
	if updated.Status != waitlist.StatusInvited || updated.InvitedAt == nil || updated.Notes != "batch 1" {
		t.Errorf("unexpected entry: %+v", updated)
	}

	tests := []struct {
		name   string
		target string
		body   string
		status int
		reason string
	}{
		{"unknown id", "/waitlist/nope", `{"status":"active"}`, http.StatusNotFound, api.ReasonNotFound},
		{"bad status", "/waitlist/" + created.ID, `{"status":"archived"}`, http.StatusBadRequest, api.ReasonInvalidField},
		{"malformed json", "/waitlist/" + created.ID, `not json`, http.StatusBadRequest, api.ReasonBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPatch, tt.target, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if got := decodeError(t, rec); got.ReasonCode != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, got.ReasonCode)
			}
		})
	}
}

func TestHandler_Health(t *testing.T) {
	h, d := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"database":"connected"`) {
		t.Fatalf("expected healthy response, got %d: %s", rec.Code, rec.Body.String())
	}

	_ = d.Close()
	rec = do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), `"database":"disconnected"`) {
		t.Fatalf("expected 503 when storage is down, got %d: %s", rec.Code, rec.Body.String())
	}
}
