package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
	"taskboard/mutator"
)

const (
	postTaskMaxSize   = 64 << 10
	idempotencyHeader = "Idempotency-Key"
)

// Board is the mutator as the server sees it.
type Board interface {
	View() mutator.View
	Reload(ctx context.Context) error
	Toggle(ctx context.Context, categoryID, taskID domain.ID) *mutator.Mutation
	Delete(ctx context.Context, categoryID, taskID domain.ID) *mutator.Mutation
	Create(ctx context.Context, in domain.TaskInput) error
	Subscribe() (<-chan struct{}, func())
}

type Options struct {
	Logger *log.Logger
	// Token, when set, is required as a bearer token on every /api route.
	Token   string
	Deduper Deduper
	// Scope namespaces idempotency keys, usually the profile name.
	Scope string
}

type viewResponse struct {
	Categories []domain.Category `json:"categories"`
	TaskCount  int               `json:"taskCount"`
	Loaded     bool              `json:"loaded"`
	Loading    bool              `json:"loading"`
	Error      string            `json:"error,omitempty"`
	InFlight   int               `json:"inFlight"`
	Optimistic bool              `json:"optimistic"`
	Seq        uint64            `json:"seq"`
}

type mutationResponse struct {
	MutationID string       `json:"mutationId"`
	Kind       mutator.Kind `json:"kind"`
	TaskID     domain.ID    `json:"taskId"`
	Completed  *bool        `json:"completed,omitempty"`
}

func newViewResponse(v mutator.View) viewResponse {
	resp := viewResponse{
		Categories: v.Snapshot.Categories,
		TaskCount:  v.Snapshot.TaskCount(),
		Loaded:     v.Loaded,
		Loading:    v.Loading,
		InFlight:   v.InFlight,
		Optimistic: v.Optimistic,
		Seq:        v.Seq,
	}
	if resp.Categories == nil {
		resp.Categories = []domain.Category{}
	}
	if v.Err != nil {
		resp.Error = v.Err.Error()
	}
	return resp
}

// NewServer builds the Echo instance serving board.
func NewServer(board Board, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, idempotencyHeader},
	}))
	e.Use(GzipRequestMiddleware())
	metrics := newServerMetrics(board)
	e.Use(metrics.middleware())
	e.GET("/metrics", metrics.handler())
	Register(e, board, opts)
	return e
}

// Register wires up all routes on the provided Echo instance.
func Register(e *echo.Echo, board Board, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	// http.Server.Shutdown does not cancel request contexts, so open event
	// streams are told to end explicitly.
	stop := make(chan struct{})
	var stopOnce sync.Once
	e.Server.RegisterOnShutdown(func() { stopOnce.Do(func() { close(stop) }) })

	e.GET("/healthz", healthz(board))

	g := e.Group("/api", BearerTokenMiddleware(opts.Token))
	g.GET("/collection", getCollection(board))
	g.GET("/stream", streamCollection(board, logger, stop))
	g.POST("/reload", postReload(board, logger))
	g.POST("/categories/:category/tasks/:task/toggle", postToggle(board, logger))
	g.DELETE("/categories/:category/tasks/:task", deleteTask(board, logger))
	g.POST("/tasks", postTask(board, opts.Deduper, opts.Scope, logger))
}

func healthz(board Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"status": "ok", "loaded": board.View().Loaded})
	}
}

func getCollection(board Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, newViewResponse(board.View()))
	}
}

func postReload(board Board, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := board.Reload(c.Request().Context()); err != nil {
			logger.WithError(err).Warn("reload failed")
			return c.String(http.StatusBadGateway, err.Error())
		}
		return c.JSON(http.StatusOK, newViewResponse(board.View()))
	}
}

func postToggle(board Board, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		mut := board.Toggle(c.Request().Context(), domain.ID(c.Param("category")), domain.ID(c.Param("task")))
		return mutationAccepted(c, mut, logger)
	}
}

func deleteTask(board Board, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		mut := board.Delete(c.Request().Context(), domain.ID(c.Param("category")), domain.ID(c.Param("task")))
		return mutationAccepted(c, mut, logger)
	}
}

func mutationAccepted(c echo.Context, mut *mutator.Mutation, logger *log.Logger) error {
	if mut.Noop() {
		logger.WithFields(log.Fields{
			"kind":     mut.Kind,
			"category": mut.CategoryID,
			"task":     mut.TaskID,
		}).Debug("mutation target not found")
		return c.String(http.StatusNotFound, domain.ErrNotFoundLocal.Error())
	}
	resp := mutationResponse{MutationID: mut.ID, Kind: mut.Kind, TaskID: mut.TaskID}
	if mut.Kind == mutator.KindToggle {
		completed := mut.Completed
		resp.Completed = &completed
	}
	return c.JSON(http.StatusAccepted, resp)
}

func postTask(board Board, deduper Deduper, scope string, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		lr := io.LimitReader(c.Request().Body, postTaskMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		var in domain.TaskInput
		if err := dec.Decode(&in); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		key := c.Request().Header.Get(idempotencyHeader)
		if key != "" && deduper != nil {
			added, err := deduper.Add(ctx, scope, key)
			if err != nil {
				logger.WithError(err).Error("idempotency check failed")
				return c.String(http.StatusInternalServerError, "idempotency check failed")
			}
			if !added {
				return c.String(http.StatusConflict, "duplicate request")
			}
		}

		if err := board.Create(ctx, in); err != nil {
			if key != "" && deduper != nil {
				if rerr := deduper.Remove(context.WithoutCancel(ctx), scope, key); rerr != nil {
					logger.WithError(rerr).Warn("failed to release idempotency key")
				}
			}
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				return c.String(http.StatusBadRequest, verr.Error())
			}
			logger.WithError(err).Warn("create task failed")
			return c.String(http.StatusBadGateway, err.Error())
		}
		return c.JSON(http.StatusCreated, newViewResponse(board.View()))
	}
}
