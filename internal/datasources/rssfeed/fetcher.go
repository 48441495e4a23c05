// Package rssfeed implements the candidate Fetcher over RSS/Atom sources.
package rssfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/blockwire/news-curator/internal/config"
	"github.com/blockwire/news-curator/internal/datasources"
	"github.com/blockwire/news-curator/internal/domain"
)

var _ datasources.Fetcher = (*Fetcher)(nil)

// itemPayload is the opaque payload stored alongside an article for
// downstream consumers (cover generation, client apps).
type itemPayload struct {
	Source     string   `json:"source"`
	Categories []string `json:"categories,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
}

type Fetcher struct {
	sources []config.Source
	parser  *gofeed.Parser
	now     func() time.Time
}

func New(sources []config.Source) *Fetcher {
	return &Fetcher{
		sources: sources,
		parser:  gofeed.NewParser(),
		now:     time.Now,
	}
}

// FetchLatest polls every configured source and returns the combined
// candidate batch. Individual source failures are logged and skipped; an
// error is returned only when every source fails, so the scheduler treats
// a single flaky feed as a partial success rather than a cycle failure.
func (f *Fetcher) FetchLatest(ctx context.Context) ([]domain.Article, error) {
	logger := domain.LoggerFromContext(ctx)

	var articles []domain.Article
	var failed int
	var lastErr error

	for _, source := range f.sources {
		feed, err := f.parser.ParseURLWithContext(source.URL, ctx)
		if err != nil {
			logger.WarnContext(ctx, "unable to fetch source, skipping",
				"source", source.URL, "error", err)
			failed++
			lastErr = err
			continue
		}

		for _, item := range feed.Items {
			article, err := f.articleFromItem(source, item)
			if err != nil {
				logger.WarnContext(ctx, "unable to convert feed item, skipping",
					"source", source.URL, "error", err)
				continue
			}
			articles = append(articles, article)
		}
	}

	if len(f.sources) > 0 && failed == len(f.sources) {
		return nil, fmt.Errorf("all %d sources failed, last error: %w", failed, lastErr)
	}

	return articles, nil
}

func (f *Fetcher) articleFromItem(source config.Source, item *gofeed.Item) (domain.Article, error) {
	url := item.Link
	if url == "" {
		url = item.GUID
	}
	if url == "" {
		return domain.Article{}, fmt.Errorf("feed item %q has no link or GUID", item.Title)
	}

	published := f.now()
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	payload := itemPayload{
		Source:     source.Name,
		Categories: item.Categories,
	}
	if item.Image != nil {
		payload.ImageURL = item.Image.URL
	}
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return domain.Article{}, fmt.Errorf("encoding item payload: %w", err)
	}

	return domain.Article{
		URL:         url,
		Title:       item.Title,
		Summary:     item.Description,
		Network:     source.Network,
		Breaking:    isBreaking(source, item),
		PublishedAt: published,
		Payload:     rawPayload,
	}, nil
}

func isBreaking(source config.Source, item *gofeed.Item) bool {
	for _, marker := range source.BreakingCategories {
		for _, category := range item.Categories {
			if strings.EqualFold(category, marker) {
				return true
			}
		}
	}
	return false
}
