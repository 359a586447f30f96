package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"taskboard/domain"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Header: r.Header.Clone()}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	status, body := f.status, f.body
	f.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeBackend) Requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func newTestGateway(t *testing.T, backend *fakeBackend, mutate func(*Config)) *Gateway {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	logger, _ := test.NewNullLogger()
	cfg := Config{BaseURL: srv.URL + "/api", Token: "tok", Logger: logger}
	if mutate != nil {
		mutate(&cfg)
	}
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return g
}

const flatCategories = `{"data":[
 {"id":1,"documentId":"cat-doc-1","name":"Inbox","color":"#f00","tasks":[
   {"id":1,"documentId":"task-doc-1","title":"Buy milk","description":"2 litres","completed":false},
   {"id":2,"documentId":"task-doc-2","title":"Walk dog","description":"","completed":null}
 ]},
 {"id":2,"documentId":"cat-doc-2","name":"Empty","tasks":[]}
]}`

func TestFetchCollectionFlatShape(t *testing.T) {
	backend := &fakeBackend{body: flatCategories}
	g := newTestGateway(t, backend, nil)

	snap, err := g.FetchCollection(context.Background())
	if err != nil {
		t.Fatalf("fetch collection: %v", err)
	}
	if len(snap.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(snap.Categories))
	}
	inbox := snap.Categories[0]
	if inbox.ID != "1" || inbox.Name != "Inbox" || inbox.Color != "#f00" {
		t.Fatalf("unexpected category: %#v", inbox)
	}
	if len(inbox.Tasks) != 2 || inbox.Tasks[0].ID != "1" || inbox.Tasks[0].Title != "Buy milk" {
		t.Fatalf("unexpected tasks: %#v", inbox.Tasks)
	}
	if inbox.Tasks[1].Completed {
		t.Fatal("null completed should normalize to false")
	}
	if inbox.Tasks[0].Category == nil || inbox.Tasks[0].Category.ID != "1" {
		t.Fatalf("expected category back-reference, got %#v", inbox.Tasks[0].Category)
	}

	reqs := backend.Requests()
	if len(reqs) != 1 || reqs[0].Method != http.MethodGet || reqs[0].Path != "/api/categories" || reqs[0].Query != "populate=tasks" {
		t.Fatalf("unexpected request: %#v", reqs)
	}
	if got := reqs[0].Header.Get("Authorization"); got != "Bearer tok" {
		t.Fatalf("unexpected auth header %q", got)
	}
	if reqs[0].Header.Get(headerRequestID) == "" {
		t.Fatal("expected request id header")
	}
}

func TestFetchCollectionDocumentIDs(t *testing.T) {
	backend := &fakeBackend{body: flatCategories}
	g := newTestGateway(t, backend, func(c *Config) { c.IDField = IDFieldDocumentID })

	snap, err := g.FetchCollection(context.Background())
	if err != nil {
		t.Fatalf("fetch collection: %v", err)
	}
	if snap.Categories[0].ID != "cat-doc-1" || snap.Categories[0].Tasks[1].ID != "task-doc-2" {
		t.Fatalf("expected document ids, got %#v", snap.Categories[0])
	}
}

func TestFetchCollectionAttributesShape(t *testing.T) {
	backend := &fakeBackend{body: `{"data":[{"id":7,"attributes":{"nombre":"Para la semana","tareas":{"data":[
		{"id":3,"attributes":{"titulo":"Estudiar","descripcion":"Go","completada":true}},
		{"id":4,"attributes":{"titulo":"Leer","completada":null}}
	]}}}],"meta":{}}`}
	g := newTestGateway(t, backend, nil)

	snap, err := g.FetchCollection(context.Background())
	if err != nil {
		t.Fatalf("fetch collection: %v", err)
	}
	want := domain.Snapshot{Categories: []domain.Category{{
		ID:   "7",
		Name: "Para la semana",
		Tasks: []domain.Task{
			{ID: "3", Title: "Estudiar", Description: "Go", Completed: true, Category: &domain.CategoryRef{ID: "7", Name: "Para la semana"}},
			{ID: "4", Title: "Leer", Category: &domain.CategoryRef{ID: "7", Name: "Para la semana"}},
		},
	}}}
	if !reflect.DeepEqual(snap, want) {
		t.Fatalf("unexpected snapshot:\n got %#v\nwant %#v", snap, want)
	}
}

func TestFetchCollectionBareArrayAndDuplicates(t *testing.T) {
	backend := &fakeBackend{body: `[{"id":"a","name":"A","tasks":[{"id":1,"title":"x"},{"id":1,"title":"dup"}]},{"id":"a","name":"again"}]`}
	g := newTestGateway(t, backend, nil)

	snap, err := g.FetchCollection(context.Background())
	if err != nil {
		t.Fatalf("fetch collection: %v", err)
	}
	if len(snap.Categories) != 1 || len(snap.Categories[0].Tasks) != 1 || snap.Categories[0].Tasks[0].Title != "x" {
		t.Fatalf("expected duplicates dropped, got %#v", snap)
	}
}

func TestFetchCollectionIsRepeatable(t *testing.T) {
	backend := &fakeBackend{body: flatCategories}
	g := newTestGateway(t, backend, nil)

	first, err := g.FetchCollection(context.Background())
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := g.FetchCollection(context.Background())
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("fetches differ:\n%#v\n%#v", first, second)
	}
}

func TestFetchCollectionFromTaskListing(t *testing.T) {
	backend := &fakeBackend{body: `{"data":[
		{"documentId":"t1","title":"one","completed":true,"category":{"documentId":"c1","name":"Work","color":"blue"}},
		{"documentId":"t2","title":"two","category":null},
		{"documentId":"t3","title":"three","category":{"data":{"id":9,"attributes":{"name":"Home"}}}}
	]}`}
	g := newTestGateway(t, backend, func(c *Config) {
		c.Source = SourceTasks
		c.IDField = IDFieldDocumentID
	})

	snap, err := g.FetchCollection(context.Background())
	if err != nil {
		t.Fatalf("fetch collection: %v", err)
	}
	if len(snap.Categories) != 3 {
		t.Fatalf("expected 3 groups, got %#v", snap.Categories)
	}
	if snap.Categories[0].ID != "c1" || snap.Categories[0].Color != "blue" || !snap.Categories[0].Tasks[0].Completed {
		t.Fatalf("unexpected first group: %#v", snap.Categories[0])
	}
	if snap.Categories[1].ID != "9" || snap.Categories[1].Name != "Home" {
		t.Fatalf("unexpected second group: %#v", snap.Categories[1])
	}
	if snap.Categories[2].Name != domain.UncategorizedName || snap.Categories[2].Tasks[0].ID != "t2" {
		t.Fatalf("unexpected loose group: %#v", snap.Categories[2])
	}
	if reqs := backend.Requests(); reqs[0].Path != "/api/tasks" || reqs[0].Query != "populate=category" {
		t.Fatalf("unexpected request: %#v", reqs[0])
	}
}

func TestFetchCollectionErrorStatus(t *testing.T) {
	backend := &fakeBackend{status: http.StatusInternalServerError, body: `{"error":"boom"}`}
	g := newTestGateway(t, backend, nil)

	_, err := g.FetchCollection(context.Background())
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if ne.StatusCode != http.StatusInternalServerError || ne.Op != "fetch_collection" {
		t.Fatalf("unexpected error fields: %#v", ne)
	}
	if StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("unexpected StatusCode helper result %d", StatusCode(err))
	}
}

func TestFetchCollectionTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	logger, _ := test.NewNullLogger()
	g, err := New(Config{BaseURL: base, Logger: logger})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	_, err = g.FetchCollection(context.Background())
	if !IsNetworkError(err) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if StatusCode(err) != 0 {
		t.Fatalf("transport failures carry no status, got %d", StatusCode(err))
	}
}

func TestFetchCollectionMalformedBody(t *testing.T) {
	backend := &fakeBackend{body: `{"categories":[]}`}
	g := newTestGateway(t, backend, nil)
	if _, err := g.FetchCollection(context.Background()); !errors.Is(err, errUnexpectedShape) {
		t.Fatalf("expected shape error, got %v", err)
	}
}

func TestSetTaskCompletion(t *testing.T) {
	backend := &fakeBackend{body: `{}`}
	g := newTestGateway(t, backend, nil)

	if err := g.SetTaskCompletion(context.Background(), "doc/7", true); err != nil {
		t.Fatalf("set completion: %v", err)
	}
	reqs := backend.Requests()
	if reqs[0].Method != http.MethodPut || reqs[0].Path != "/api/tasks/doc/7" {
		t.Fatalf("unexpected request: %#v", reqs[0])
	}
	if reqs[0].Body["completed"] != true {
		t.Fatalf("unexpected body: %#v", reqs[0].Body)
	}
	if ct := reqs[0].Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestSetTaskCompletionEnvelope(t *testing.T) {
	backend := &fakeBackend{body: `{}`}
	g := newTestGateway(t, backend, func(c *Config) { c.Envelope = true })

	if err := g.SetTaskCompletion(context.Background(), "3", false); err != nil {
		t.Fatalf("set completion: %v", err)
	}
	data, ok := backend.Requests()[0].Body["data"].(map[string]any)
	if !ok || data["completed"] != false {
		t.Fatalf("expected enveloped body, got %#v", backend.Requests()[0].Body)
	}
}

func TestDeleteTaskErrorStatus(t *testing.T) {
	backend := &fakeBackend{status: http.StatusNotFound}
	g := newTestGateway(t, backend, nil)

	err := g.DeleteTask(context.Background(), "3")
	if StatusCode(err) != http.StatusNotFound {
		t.Fatalf("expected 404 NetworkError, got %v", err)
	}
	if reqs := backend.Requests(); reqs[0].Method != http.MethodDelete || reqs[0].Path != "/api/tasks/3" {
		t.Fatalf("unexpected request: %#v", reqs[0])
	}
}

func TestCreateTaskValidatesBeforeRequest(t *testing.T) {
	backend := &fakeBackend{}
	g := newTestGateway(t, backend, nil)

	err := g.CreateTask(context.Background(), domain.TaskInput{Description: "no title"})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n := len(backend.Requests()); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestCreateTaskBody(t *testing.T) {
	tests := []struct {
		name     string
		link     string
		category domain.ID
		want     any
	}{
		{name: "numericID", link: CategoryLinkID, category: "4", want: float64(4)},
		{name: "documentID", link: CategoryLinkID, category: "cat-doc", want: "cat-doc"},
		{name: "connect", link: CategoryLinkConnect, category: "4", want: map[string]any{"connect": []any{float64(4)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{status: http.StatusCreated, body: `{}`}
			g := newTestGateway(t, backend, func(c *Config) { c.CategoryLink = tt.link })

			in := domain.TaskInput{Title: " Buy milk ", Description: "2 litres", CategoryID: tt.category, Deadline: "2025-01-31"}
			if err := g.CreateTask(context.Background(), in); err != nil {
				t.Fatalf("create task: %v", err)
			}
			req := backend.Requests()[0]
			if req.Method != http.MethodPost || req.Path != "/api/tasks" {
				t.Fatalf("unexpected request: %#v", req)
			}
			if req.Body["title"] != "Buy milk" || req.Body["completed"] != false || req.Body["deadline"] != "2025-01-31" {
				t.Fatalf("unexpected body: %#v", req.Body)
			}
			if !reflect.DeepEqual(req.Body["category"], tt.want) {
				t.Fatalf("unexpected category link: %#v", req.Body["category"])
			}
		})
	}
}

func TestStrapiV4WritesSpanishFields(t *testing.T) {
	backend := &fakeBackend{body: `{"data":[{"id":1,"attributes":{"nombre":"Inbox","tareas":{"data":[
		{"id":10,"attributes":{"titulo":"Buy milk","descripcion":"2 litres","completada":null}}]}}}]}`}
	g := newTestGateway(t, backend, func(c *Config) {
		preset, err := Preset(PresetStrapiV4, c.BaseURL)
		if err != nil {
			t.Fatalf("preset: %v", err)
		}
		preset.Token, preset.Logger = c.Token, c.Logger
		*c = preset
	})

	snap, err := g.FetchCollection(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	task, ok := snap.FindTask("1", "10")
	if !ok || task.Completed {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
	if err := g.SetTaskCompletion(context.Background(), task.ID, !task.Completed); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	in := domain.TaskInput{Title: "Walk dog", Description: "park", CategoryID: "1", Deadline: "2025-01-31"}
	if err := g.CreateTask(context.Background(), in); err != nil {
		t.Fatalf("create: %v", err)
	}

	reqs := backend.Requests()
	put := reqs[1]
	if put.Method != http.MethodPut || put.Path != "/api/tasks/10" {
		t.Fatalf("unexpected toggle request: %#v", put)
	}
	if !reflect.DeepEqual(put.Body, map[string]any{"data": map[string]any{"completada": true}}) {
		t.Fatalf("unexpected toggle body: %#v", put.Body)
	}
	want := map[string]any{"data": map[string]any{
		"titulo":      "Walk dog",
		"descripcion": "park",
		"completada":  false,
		"deadline":    "2025-01-31",
		"categoria":   map[string]any{"connect": []any{float64(1)}},
	}}
	if !reflect.DeepEqual(reqs[2].Body, want) {
		t.Fatalf("unexpected create body: %#v", reqs[2].Body)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []Config{
		{BaseURL: ""},
		{BaseURL: "localhost:1337"},
		{BaseURL: "http://x", Source: "posts"},
		{BaseURL: "http://x", IDField: "uuid"},
		{BaseURL: "http://x", CategoryLink: "set"},
		{BaseURL: "http://x", FieldNames: "fr"},
	}
	for _, cfg := range tests {
		if _, err := New(cfg); err == nil {
			t.Fatalf("expected error for %#v", cfg)
		}
	}
}

func TestPreset(t *testing.T) {
	cfg, err := Preset(PresetStrapi, "http://localhost:1337/api")
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	if cfg.Endpoints.Login != "/auth/local" || !cfg.Envelope || cfg.IDField != IDFieldDocumentID {
		t.Fatalf("unexpected strapi preset: %#v", cfg)
	}
	if _, err := Preset("graphql", "http://x"); err == nil {
		t.Fatal("expected unknown preset error")
	}
}

func TestWithTokenLeavesOriginalUntouched(t *testing.T) {
	backend := &fakeBackend{body: `[]`}
	g := newTestGateway(t, backend, func(c *Config) { c.Token = "" })

	authed := g.WithToken("fresh")
	if _, err := authed.FetchCollection(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := g.FetchCollection(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	reqs := backend.Requests()
	if reqs[0].Header.Get("Authorization") != "Bearer fresh" || reqs[1].Header.Get("Authorization") != "" {
		t.Fatalf("unexpected auth headers: %q %q", reqs[0].Header.Get("Authorization"), reqs[1].Header.Get("Authorization"))
	}
	if g.Config().Token != "" {
		t.Fatal("original config changed")
	}
}
