package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/blockwire/news-curator/internal/domain"
	"github.com/blockwire/news-curator/internal/ingest"
)

// UpdateTriggerer runs an ingestion cycle immediately.
type UpdateTriggerer interface {
	TriggerUpdate(ctx context.Context) error
}

type IngestTrigger struct {
	Scheduler UpdateTriggerer
}

func (c IngestTrigger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := c.Scheduler.TriggerUpdate(ctx); err != nil {
		logger := domain.LoggerFromContext(ctx)
		logger.ErrorContext(ctx, "unable to trigger ingestion cycle", "error", err)

		if errors.Is(err, ingest.ErrNotRunning) {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
