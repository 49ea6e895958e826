package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"
)

// ReadinessResponse is the body of the readiness probe.
type ReadinessResponse struct {
	Status map[string]string `json:"status"`
}

// liveness answers 200 while the process serves HTTP.
func (s *Server) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness runs every checker in parallel under the configured timeout and
// answers 503 if any of them fails.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	resp := ReadinessResponse{Status: make(map[string]string, len(s.checkers))}
	var mu sync.Mutex
	healthy := true

	var g errgroup.Group
	for _, checker := range s.checkers {
		g.Go(func() error {
			err := checker.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("health probe failed",
					slog.String("component", checker.Name()),
					slog.String("error", err.Error()),
				)
				resp.Status[checker.Name()] = fmt.Sprintf("down: %v", err)
				healthy = false
				return nil
			}
			resp.Status[checker.Name()] = "up"
			return nil
		})
	}
	_ = g.Wait()

	if healthy {
		render.Status(r, http.StatusOK)
	} else {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}
