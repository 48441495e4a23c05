package router

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/blockwire/news-curator/internal/datasources"
	"github.com/blockwire/news-curator/internal/ingest"
	"github.com/blockwire/news-curator/internal/transport/web/controller"
)

func MakeRouter(
	repository datasources.Repository,
	scheduler *ingest.Scheduler,
	rssFeedBaseURL, rssFeedAuthorName, rssFeedAuthorEmail string,
	latestCacheMaxAge time.Duration,
) (http.Handler, error) {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.Handle("/v1/status", controller.StatusGet{
		Scheduler: scheduler,
	}).Methods(http.MethodGet, http.MethodOptions)

	r.Handle("/v1/healthz", controller.HealthzGet{
		Scheduler: scheduler,
	}).Methods(http.MethodGet, http.MethodOptions)

	r.Handle("/v1/ingest/trigger", controller.IngestTrigger{
		Scheduler: scheduler,
	}).Methods(http.MethodPost, http.MethodOptions)

	r.Handle("/v1/articles", controller.ArticlesList{
		Lister:      repository,
		CacheMaxAge: latestCacheMaxAge,
	}).Methods(http.MethodGet, http.MethodOptions)

	r.Handle("/rss", controller.RSS{
		FeedHostname:    rssFeedBaseURL,
		FeedPath:        "/rss",
		FeedAuthorName:  rssFeedAuthorName,
		FeedAuthorEmail: rssFeedAuthorEmail,
		Lister:          repository,
		CacheMaxAge:     latestCacheMaxAge,
	}).Methods(http.MethodGet, http.MethodOptions)

	return r, nil
}
