package controller

import (
	"encoding/json"
	"net/http"

	"github.com/blockwire/news-curator/internal/domain"
)

type HealthzGet struct {
	Scheduler SchedulerStatusReporter
}

type healthzResponse struct {
	Healthy bool `json:"healthy"`
}

func (c HealthzGet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	healthy := c.Scheduler.Healthy()

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(healthzResponse{Healthy: healthy}); err != nil {
		ctx := r.Context()
		logger := domain.LoggerFromContext(ctx)
		logger.ErrorContext(ctx, "unable to write health to response", "error", err)
	}
}
