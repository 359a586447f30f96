package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// streamCollection sends the current view as a server-sent event, then one
// more after every change until the client goes away or stop is closed.
func streamCollection(board Board, logger *log.Logger, stop <-chan struct{}) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		ctx := c.Request().Context()
		changes, unsubscribe := board.Subscribe()
		defer unsubscribe()

		c.Response().WriteHeader(http.StatusOK)
		for {
			data, err := sonic.Marshal(newViewResponse(board.View()))
			if err != nil {
				logger.WithError(err).Error("encode view")
				return err
			}
			if _, err := c.Response().Write([]byte("data: ")); err != nil {
				return err
			}
			if _, err := c.Response().Write(data); err != nil {
				return err
			}
			if _, err := c.Response().Write([]byte("\n\n")); err != nil {
				return err
			}
			flusher.Flush()
			select {
			case <-ctx.Done():
				return nil
			case <-stop:
				return nil
			case <-changes:
			}
		}
	}
}
