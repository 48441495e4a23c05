package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blockwire/news-curator/internal/datasources"
	"github.com/blockwire/news-curator/internal/domain"
)

// Store admits candidate articles into the bounded collection, keeping
// every configured quota at or under its ceiling through oldest-first
// eviction.
type Store struct {
	repo   datasources.Repository
	cache  datasources.CacheInvalidator
	quotas domain.QuotaConfig

	// mu serializes the whole lookup, eviction and insert sequence for a
	// candidate so two concurrent batches cannot both observe headroom and
	// jointly overshoot a ceiling.
	mu sync.Mutex
}

func NewStore(
	repo datasources.Repository,
	cache datasources.CacheInvalidator,
	quotas domain.QuotaConfig,
) (*Store, error) {
	if err := quotas.Validate(); err != nil {
		return nil, fmt.Errorf("validating quota config: %w", err)
	}

	return &Store{
		repo:   repo,
		cache:  cache,
		quotas: quotas.Normalize(),
	}, nil
}

// InsertWithLimits commits a batch of candidates in order. Candidates whose
// URL is already stored are updated in place; new candidates get a quota
// check and eviction pass before insertion. Repository errors are logged
// and skip only the affected candidate. The returned slice holds every
// committed article, updates and inserts alike.
func (s *Store) InsertWithLimits(ctx context.Context, batch []domain.Article) ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := domain.LoggerFromContext(ctx)

	committed := make([]domain.Article, 0, len(batch))
	var inserted, evicted int

	for _, candidate := range batch {
		if err := ctx.Err(); err != nil {
			return committed, fmt.Errorf("admission interrupted: %w", err)
		}

		existing, err := s.repo.FindArticleByURL(ctx, candidate.URL)
		switch {
		case err == nil:
			updated, err := s.repo.UpdateArticle(ctx, existing.ID, domain.ArticleUpdate{
				Title:       candidate.Title,
				Summary:     candidate.Summary,
				Breaking:    candidate.Breaking,
				PublishedAt: candidate.PublishedAt,
				Payload:     candidate.Payload,
			})
			if err != nil {
				logger.ErrorContext(ctx, "unable to update existing article, skipping",
					"url", candidate.URL, "error", err)
				continue
			}
			committed = append(committed, updated)

		case errors.Is(err, domain.ErrArticleNotFound):
			evicted += s.makeRoom(ctx, candidate)

			stored, err := s.repo.InsertArticle(ctx, candidate)
			if err != nil {
				logger.ErrorContext(ctx, "unable to insert article, skipping",
					"url", candidate.URL, "error", err)
				continue
			}
			committed = append(committed, stored)
			inserted++

		default:
			logger.ErrorContext(ctx, "unable to look up article by URL, skipping",
				"url", candidate.URL, "error", err)
		}
	}

	if inserted > 0 || evicted > 0 {
		s.invalidate(ctx, "article batch committed", inserted+evicted)
	}

	return committed, nil
}

// makeRoom runs the quota steps for a candidate in fixed order. Each step
// checks its own filtered count and evicts independently; a failed step is
// logged and skipped so housekeeping never blocks admission. Returns the
// number of articles evicted.
func (s *Store) makeRoom(ctx context.Context, candidate domain.Article) int {
	evicted := s.checkAndEvict(ctx, "total quota",
		domain.FilterAll(), s.quotas.MaxTotal, s.quotas.EvictBatchAll)

	if s.quotas.IsClientNetwork(candidate.Network) {
		evicted += s.checkAndEvict(ctx, "client quota",
			domain.FilterNetworks(s.quotas.ClientNetworks), s.quotas.MaxClient, s.quotas.EvictBatchClient)
	}

	if ceiling, ok := s.quotas.MaxPerNetwork[candidate.Network]; ok {
		evicted += s.checkAndEvict(ctx, "network quota: "+candidate.Network,
			domain.FilterNetwork(candidate.Network), ceiling, s.quotas.EvictBatchNetwork)
	}

	if candidate.Breaking {
		evicted += s.checkAndEvict(ctx, "breaking quota",
			domain.FilterBreaking(), s.quotas.MaxBreaking, 1)
	}

	return evicted
}

// checkAndEvict removes the evictCount oldest articles matching the filter
// when the filtered count has reached the ceiling. Best effort: any
// repository error leaves the quota temporarily over ceiling for the next
// cycle to correct.
func (s *Store) checkAndEvict(
	ctx context.Context,
	reason string,
	filter domain.ArticleFilter,
	ceiling int,
	evictCount int,
) int {
	logger := domain.LoggerFromContext(ctx)

	count, err := s.repo.CountArticles(ctx, filter)
	if err != nil {
		logger.ErrorContext(ctx, "unable to count articles for quota check, skipping eviction",
			"quota", reason, "error", err)
		return 0
	}
	if count < int64(ceiling) {
		return 0
	}

	oldest, err := s.repo.SelectOldestArticles(ctx, filter, evictCount)
	if err != nil {
		logger.ErrorContext(ctx, "unable to select eviction candidates, skipping eviction",
			"quota", reason, "error", err)
		return 0
	}
	if len(oldest) == 0 {
		return 0
	}

	ids := make([]int64, 0, len(oldest))
	for _, a := range oldest {
		ids = append(ids, a.ID)
	}

	removed, err := s.repo.DeleteArticlesByIDs(ctx, ids)
	if err != nil {
		logger.ErrorContext(ctx, "unable to delete evicted articles, skipping eviction",
			"quota", reason, "error", err)
		return 0
	}

	logger.InfoContext(ctx, "evicted oldest articles to restore quota headroom",
		"quota", reason, "count", removed, "ceiling", ceiling)

	s.invalidate(ctx, "eviction: "+reason, int(removed))

	return int(removed)
}

func (s *Store) invalidate(ctx context.Context, reason string, affected int) {
	if err := s.cache.Invalidate(ctx, reason, affected); err != nil {
		domain.LoggerFromContext(ctx).WarnContext(ctx, "cache invalidation failed",
			"reason", reason, "error", err)
	}
}
