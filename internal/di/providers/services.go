package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/annotateapp/annotate-server/internal/auth"
	"github.com/annotateapp/annotate-server/internal/events"
	"github.com/annotateapp/annotate-server/internal/logger"
	"github.com/annotateapp/annotate-server/internal/nipsa"
	"github.com/annotateapp/annotate-server/internal/service"
)

// ProvideEventBus provides the annotation event bus with a logging
// subscriber attached. Further subscribers register during startup.
func ProvideEventBus(i do.Injector) (*events.Bus, error) {
	log := do.MustInvoke[*logger.Logger](i)

	bus := events.NewBus()
	bus.Subscribe(func(_ context.Context, event events.Event) error {
		attrs := []any{"action", event.Action, "principal", event.Principal}
		if event.Annotation != nil {
			attrs = append(attrs, "annotation", event.Annotation.ID)
		}
		log.Debug("annotation event", attrs...)
		return nil
	})

	return bus, nil
}

// ProvideVisibilityPolicy provides the suppression policy.
func ProvideVisibilityPolicy(i do.Injector) (*nipsa.Service, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	return nipsa.NewService(storeHandle.Store), nil
}

// ProvideAuthorizer provides the permission oracle.
func ProvideAuthorizer(i do.Injector) (auth.Authorizer, error) {
	return auth.NewAuthorizer(), nil
}

// ProvideAnnotationService provides the annotation lifecycle service.
func ProvideAnnotationService(i do.Injector) (*service.AnnotationService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	policy := do.MustInvoke[*nipsa.Service](i)
	authorizer := do.MustInvoke[auth.Authorizer](i)
	bus := do.MustInvoke[*events.Bus](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAnnotationService(storeHandle.Store, indexHandle.Index, policy, authorizer, bus, log.Logger), nil
}

// ProvideModerationService provides the suppression-flag service.
func ProvideModerationService(i do.Injector) (*service.ModerationService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewModerationService(storeHandle.Store, indexHandle.Index, log.Logger), nil
}
