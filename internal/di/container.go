// Package di provides dependency injection configuration for the annotation server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/annotateapp/annotate-server/internal/auth"
	"github.com/annotateapp/annotate-server/internal/config"
	"github.com/annotateapp/annotate-server/internal/di/providers"
	"github.com/annotateapp/annotate-server/internal/events"
	"github.com/annotateapp/annotate-server/internal/logger"
	"github.com/annotateapp/annotate-server/internal/nipsa"
	"github.com/annotateapp/annotate-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Domain services
	do.Provide(injector, providers.ProvideEventBus)
	do.Provide(injector, providers.ProvideVisibilityPolicy)
	do.Provide(injector, providers.ProvideAuthorizer)
	do.Provide(injector, providers.ProvideAnnotationService)
	do.Provide(injector, providers.ProvideModerationService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*events.Bus](injector)
	_ = do.MustInvoke[*nipsa.Service](injector)
	_ = do.MustInvoke[auth.Authorizer](injector)
	_ = do.MustInvoke[*service.AnnotationService](injector)
	_ = do.MustInvoke[*service.ModerationService](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Rebuild the index from the store when a mapping bump wiped it.
	providers.TriggerReindexIfNeeded(injector)

	return nil
}
