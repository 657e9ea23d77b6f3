package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"checkin-system/internal/services"
	"checkin-system/internal/status"
	"checkin-system/security"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OpsServer is the side listener for Prometheus scrapes and the public
// display boards, kept off the authenticated API port.
type OpsServer struct {
	addr   string
	router *echo.Echo
}

func NewOpsServer(addr string, dispatcher *services.Dispatcher, limiter *security.RateLimiter, health func(ctx context.Context) error) *OpsServer {
	e := echo.New()
	e.Use(middleware.Recover())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", func(c echo.Context) error {
		if health != nil {
			if err := health(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	display := e.Group("/display")
	if limiter != nil {
		display.Use(limiter.DisplayRateLimit())
	}
	display.GET("/:activityId", func(c echo.Context) error {
		board, err := dispatcher.Board(c.Request().Context(), c.PathParam("activityId"))
		if err != nil {
			if errors.Is(err, status.ErrNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": UserMessage(err)})
			}
			slog.Error("Failed to build display board", "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": UserMessage(err)})
		}
		return c.JSON(http.StatusOK, board)
	})

	return &OpsServer{addr: addr, router: e}
}

func (s *OpsServer) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *OpsServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Ops server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
