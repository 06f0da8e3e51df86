package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/annotateapp/annotate-server/internal/config"
	"github.com/annotateapp/annotate-server/internal/logger"
	"github.com/annotateapp/annotate-server/internal/search"
	"github.com/annotateapp/annotate-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewIndex(search.Options{
		DataPath: cfg.Data.BasePath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{Index: index}, nil
}

// TriggerReindexIfNeeded rebuilds an empty index from a non-empty store.
// Happens after a mapping-version bump wiped the index on startup.
// Should be called after all services are wired.
func TriggerReindexIfNeeded(i do.Injector) {
	moderation := do.MustInvoke[*service.ModerationService](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, _ := indexHandle.DocumentCount()
	if docCount > 0 {
		return
	}

	ctx := context.Background()
	annotations, err := storeHandle.ListAnnotations(ctx)
	if err != nil || len(annotations) == 0 {
		return
	}

	log.Info("Search index is empty but annotations exist, triggering initial reindex",
		"annotation_count", len(annotations),
	)

	go func() {
		if err := moderation.ReindexAll(context.Background()); err != nil {
			log.Error("Initial reindex failed", "error", err)
		}
	}()
}
