package controller

import (
	"encoding/json"
	"net/http"

	"github.com/blockwire/news-curator/internal/domain"
	"github.com/blockwire/news-curator/internal/ingest"
)

// SchedulerStatusReporter is the read surface the status and health
// controllers need from the scheduler.
type SchedulerStatusReporter interface {
	Status() ingest.Status
	Healthy() bool
}

type StatusGet struct {
	Scheduler SchedulerStatusReporter
}

func (c StatusGet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(c.Scheduler.Status()); err != nil {
		ctx := r.Context()
		logger := domain.LoggerFromContext(ctx)
		logger.ErrorContext(ctx, "unable to write status to response", "error", err)
	}
}
