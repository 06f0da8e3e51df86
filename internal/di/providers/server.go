package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/annotateapp/annotate-server/internal/api"
	"github.com/annotateapp/annotate-server/internal/config"
	"github.com/annotateapp/annotate-server/internal/logger"
	"github.com/annotateapp/annotate-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	annotations := do.MustInvoke[*service.AnnotationService](i)
	moderation := do.MustInvoke[*service.ModerationService](i)

	handler := api.NewServer(annotations, moderation, api.Options{
		AdminKey:       cfg.API.ConsumerKey,
		AllowedOrigins: cfg.API.AllowedOrigins,
		PageSize:       cfg.API.DefaultPageSize,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
