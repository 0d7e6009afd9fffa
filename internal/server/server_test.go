package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"blogcms/internal/app"
	"blogcms/pkg/domain"
	"blogcms/pkg/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	appCore, err := app.New(app.Config{
		AdminUsername: "admin",
		AdminPassword: "hunter2",
		JWTSecret:     "test-secret",
		Store:         store.NewMemoryStore(),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	ts := httptest.NewServer(New(Config{App: appCore}).Router())
	t.Cleanup(ts.Close)
	return ts
}

func login(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp := doJSON(t, ts, http.MethodPost, "/login", "", map[string]string{
		"username": "admin",
		"password": "hunter2",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if body.Token == "" {
		t.Fatalf("expected token in login response")
	}
	return body.Token
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Message == "" {
		t.Fatalf("expected error message in body")
	}
	return body.Error.Message
}

func TestLoginRejectsBadCredentialsUniformly(t *testing.T) {
	ts := newTestServer(t)

	var messages []string
	for _, creds := range []map[string]string{
		{"username": "admin", "password": "wrong"},
		{"username": "nobody", "password": "hunter2"},
	} {
		resp := doJSON(t, ts, http.MethodPost, "/login", "", creds)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("login status = %d, want 401", resp.StatusCode)
		}
		messages = append(messages, decodeError(t, resp))
		resp.Body.Close()
	}
	if messages[0] != messages[1] {
		t.Fatalf("error messages differ: %q vs %q", messages[0], messages[1])
	}
}

func TestCreateRequiresToken(t *testing.T) {
	ts := newTestServer(t)
	article := map[string]any{
		"title": "X", "content": "body", "createdAt": "2024-01-01",
	}

	resp := doJSON(t, ts, http.MethodPost, "/api/articles", "", article)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, ts, http.MethodPost, "/api/articles", "forged-token", article)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("bad token status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	// Neither attempt may have created a record.
	resp = doJSON(t, ts, http.MethodGet, "/api/articles/1", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestArticleCRUDFlow(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts)

	resp := doJSON(t, ts, http.MethodPost, "/api/articles", token, map[string]any{
		"title":     "X",
		"category":  "Basics",
		"tags":      []string{"intro", "sem1"},
		"content":   "...",
		"readTime":  "3 min read",
		"createdAt": "2024-01-01",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var created domain.Article
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	resp.Body.Close()
	if created.ID != 1 {
		t.Fatalf("assigned id = %d, want 1", created.ID)
	}

	resp = doJSON(t, ts, http.MethodGet, "/api/articles/1", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var fetched domain.Article
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode fetched: %v", err)
	}
	resp.Body.Close()
	if !reflect.DeepEqual(fetched.Tags, []string{"intro", "sem1"}) {
		t.Fatalf("tags = %v, want [intro sem1]", fetched.Tags)
	}
	if fetched.Title != "X" || fetched.ReadTime != "3 min read" {
		t.Fatalf("unexpected article: %+v", fetched)
	}

	// Update may not alter id or createdAt, even when the payload tries to.
	resp = doJSON(t, ts, http.MethodPut, "/api/articles/1", token, map[string]any{
		"id":        99,
		"title":     "Y",
		"tags":      []string{"intro"},
		"content":   "updated",
		"createdAt": "1999-12-31",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	var updated domain.Article
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	resp.Body.Close()
	if updated.ID != 1 || updated.CreatedAt != "2024-01-01" {
		t.Fatalf("immutable fields changed: %+v", updated)
	}
	if updated.Title != "Y" {
		t.Fatalf("title not replaced: %+v", updated)
	}

	resp = doJSON(t, ts, http.MethodDelete, "/api/articles/1", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, ts, http.MethodDelete, "/api/articles/1", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, ts, http.MethodGet, "/api/articles/1", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUpdateMissingArticle(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts)

	resp := doJSON(t, ts, http.MethodPut, "/api/articles/42", token, map[string]any{
		"title": "x", "content": "y",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("update missing status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestListPaginationAndCacheHeader(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts)
	for i := 0; i < 8; i++ {
		resp := doJSON(t, ts, http.MethodPost, "/api/articles", token, map[string]any{
			"title":     fmt.Sprintf("a%d", i),
			"content":   "body",
			"createdAt": fmt.Sprintf("2024-01-%02d", i+1),
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create status = %d", resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := doJSON(t, ts, http.MethodGet, "/api/articles?page=1&limit=6", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Cache-Control"); got != "no-store" {
		t.Fatalf("Cache-Control = %q, want no-store", got)
	}
	var page domain.ArticlePage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	resp.Body.Close()
	if len(page.Results) != 6 {
		t.Fatalf("page 1 has %d results, want 6", len(page.Results))
	}
	if page.Results[0].Title != "a7" {
		t.Fatalf("newest first violated: %q", page.Results[0].Title)
	}
	if page.Next == nil || page.Next.Page != 2 || page.Previous != nil {
		t.Fatalf("page 1 cursors: next=%+v previous=%+v", page.Next, page.Previous)
	}

	resp = doJSON(t, ts, http.MethodGet, "/api/articles?page=2&limit=6", "", nil)
	page = domain.ArticlePage{}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode page 2: %v", err)
	}
	resp.Body.Close()
	if len(page.Results) != 2 {
		t.Fatalf("page 2 has %d results, want 2", len(page.Results))
	}
	if page.Next != nil || page.Previous == nil || page.Previous.Page != 1 {
		t.Fatalf("page 2 cursors: next=%+v previous=%+v", page.Next, page.Previous)
	}

	// Defaults apply when query params are absent or junk.
	resp = doJSON(t, ts, http.MethodGet, "/api/articles?page=zero&limit=-3", "", nil)
	page = domain.ArticlePage{}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode default page: %v", err)
	}
	resp.Body.Close()
	if len(page.Results) != 6 {
		t.Fatalf("default page has %d results, want 6", len(page.Results))
	}
}

func TestListSearchAndTagFilter(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts)
	seed := []map[string]any{
		{"title": "Pointers in Go", "tags": []string{"go", "memory"}, "content": "stack and heap", "createdAt": "2024-01-01"},
		{"title": "SQL basics", "tags": []string{"db"}, "content": "joins explained", "createdAt": "2024-01-02"},
	}
	for _, a := range seed {
		resp := doJSON(t, ts, http.MethodPost, "/api/articles", token, a)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create status = %d", resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := doJSON(t, ts, http.MethodGet, "/api/articles?q=joins", "", nil)
	var page domain.ArticlePage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode search page: %v", err)
	}
	resp.Body.Close()
	if len(page.Results) != 1 || page.Results[0].Title != "SQL basics" {
		t.Fatalf("search results: %+v", page.Results)
	}

	resp = doJSON(t, ts, http.MethodGet, "/api/articles?tag=memory", "", nil)
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode tag page: %v", err)
	}
	resp.Body.Close()
	if len(page.Results) != 1 || page.Results[0].Title != "Pointers in Go" {
		t.Fatalf("tag results: %+v", page.Results)
	}
}

func TestExportAndImport(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts)

	resp := doJSON(t, ts, http.MethodGet, "/api/articles/export", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("export without token status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	imported := []map[string]any{
		{"title": "one", "tags": []string{"a"}, "content": "body", "createdAt": "2024-01-01"},
		{"title": "two", "tags": []string{}, "content": "body", "createdAt": "2024-01-02"},
	}
	resp = doJSON(t, ts, http.MethodPost, "/api/articles/import", token, imported)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import status = %d", resp.StatusCode)
	}
	var importBody struct {
		Imported int `json:"imported"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&importBody); err != nil {
		t.Fatalf("decode import response: %v", err)
	}
	resp.Body.Close()
	if importBody.Imported != 2 {
		t.Fatalf("imported = %d, want 2", importBody.Imported)
	}

	resp = doJSON(t, ts, http.MethodGet, "/api/articles/export", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Disposition"); got == "" {
		t.Fatalf("expected attachment disposition header")
	}
	var exported []domain.Article
	if err := json.NewDecoder(resp.Body).Decode(&exported); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	resp.Body.Close()
	if len(exported) != 2 {
		t.Fatalf("exported %d articles, want 2", len(exported))
	}
	if exported[0].Title != "two" {
		t.Fatalf("export order: %+v", exported)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp := doJSON(t, ts, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	resp := doJSON(t, ts, http.MethodGet, "/login", "", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET /login status = %d, want 405", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, ts, http.MethodPatch, "/api/articles", "", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("PATCH /api/articles status = %d, want 405", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestNonNumericIDIsNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp := doJSON(t, ts, http.MethodGet, "/api/articles/abc", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}
