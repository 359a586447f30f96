package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"taskboard/domain"
)

// Gateway performs the outbound HTTP calls for the task board. It does not
// retry; a failed call is reported once and left to the caller.
type Gateway struct {
	cfg    Config
	client *client
	dec    decoder
	enc    encoder
}

// New validates cfg, fills in defaults and returns a ready Gateway.
func New(cfg Config) (*Gateway, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Gateway{
		cfg: cfg,
		client: &client{
			baseURL: cfg.BaseURL,
			bearer:  cfg.Token,
			http:    cfg.HTTPClient,
			log:     cfg.Logger,
		},
		dec: decoder{idField: cfg.IDField},
		enc: encoder{envelope: cfg.Envelope, categoryLink: cfg.CategoryLink, names: fieldNamesFor(cfg.FieldNames)},
	}, nil
}

// Config returns the effective configuration.
func (g *Gateway) Config() Config { return g.cfg }

// WithToken returns a copy of the gateway that authenticates with token.
func (g *Gateway) WithToken(token string) *Gateway {
	cfg := g.cfg
	cfg.Token = token
	c := *g.client
	c.bearer = token
	return &Gateway{cfg: cfg, client: &c, dec: g.dec, enc: g.enc}
}

// FetchCollection reads every category together with its tasks. When the
// gateway is configured for the flat task listing, tasks are grouped by
// their category back-reference instead.
func (g *Gateway) FetchCollection(ctx context.Context) (domain.Snapshot, error) {
	if g.cfg.Source == SourceTasks {
		tasks, err := g.FetchTasks(ctx)
		if err != nil {
			return domain.Snapshot{}, err
		}
		return domain.GroupTasks(tasks), nil
	}
	ep := g.cfg.Endpoints.Categories
	payload, err := g.client.send(ctx, "fetch_collection", http.MethodGet, routeOf(ep), ep, nil)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return g.dec.categories(payload)
}

// FetchTasks reads the flat task listing with category back-references.
func (g *Gateway) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	ep := g.cfg.Endpoints.Tasks
	payload, err := g.client.send(ctx, "fetch_tasks", http.MethodGet, routeOf(ep), ep, nil)
	if err != nil {
		return nil, err
	}
	return g.dec.tasks(payload)
}

// SetTaskCompletion updates the completion flag of a single task.
func (g *Gateway) SetTaskCompletion(ctx context.Context, id domain.ID, completed bool) error {
	if id == "" {
		return &domain.ValidationError{Field: "id", Reason: "required"}
	}
	_, err := g.client.send(ctx, "set_task_completion", http.MethodPut, g.cfg.Endpoints.Task, g.taskPath(id), g.enc.completion(completed))
	return err
}

// DeleteTask removes a single task.
func (g *Gateway) DeleteTask(ctx context.Context, id domain.ID) error {
	if id == "" {
		return &domain.ValidationError{Field: "id", Reason: "required"}
	}
	_, err := g.client.send(ctx, "delete_task", http.MethodDelete, g.cfg.Endpoints.Task, g.taskPath(id), nil)
	return err
}

// CreateTask creates a task. Input is validated before any request is made.
func (g *Gateway) CreateTask(ctx context.Context, in domain.TaskInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	ep := g.cfg.Endpoints.CreateTask
	_, err := g.client.send(ctx, "create_task", http.MethodPost, routeOf(ep), ep, g.enc.create(in))
	return err
}

func (g *Gateway) taskPath(id domain.ID) string {
	return strings.ReplaceAll(g.cfg.Endpoints.Task, "{id}", url.PathEscape(string(id)))
}

// routeOf strips the query so spans group by path.
func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
