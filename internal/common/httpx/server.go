package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"restaurant-assistant/internal/config"
)

type Server struct {
	*http.Server
	lg *zap.Logger
}

func New(cfg config.HTTPConfig, h http.Handler, lg *zap.Logger) *Server {
	return &Server{
		Server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      h,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		lg: lg,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests for up to 5s.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe() }()
	s.lg.Info("http_listening", zap.String("addr", s.Addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.lg.Warn("http_shutdown_failed", zap.Error(err))
		}
		s.lg.Info("http_stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Limit caps concurrent requests at n; excess requests wait for a slot or
// give up when the client goes away. n <= 0 disables the limit.
func Limit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}

// Recover turns a handler panic into a 500 and logs it.
func Recover(lg *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				lg.Error("http_panic", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
