package datasources

import (
	"context"

	"github.com/blockwire/news-curator/internal/domain"
)

// Fetcher produces the latest candidate articles from an upstream source.
// It may be called several times per ingestion cycle under retry.
type Fetcher interface {
	FetchLatest(ctx context.Context) ([]domain.Article, error)
}

// Repository is the durable keyed store for articles. Implementations must
// order SelectOldestArticles ascending by publication time, breaking ties
// by ascending ID.
type Repository interface {
	ArticleCounter
	ArticleFinder
	ArticleWriter
	OldestArticleSelector
	ArticleDeleter
	LatestArticleLister
}

type ArticleCounter interface {
	CountArticles(ctx context.Context, filter domain.ArticleFilter) (int64, error)
}

type ArticleFinder interface {
	// FindArticleByURL returns domain.ErrArticleNotFound when the URL is
	// not stored.
	FindArticleByURL(ctx context.Context, url string) (domain.Article, error)
}

type ArticleWriter interface {
	InsertArticle(ctx context.Context, article domain.Article) (domain.Article, error)
	UpdateArticle(ctx context.Context, id int64, update domain.ArticleUpdate) (domain.Article, error)
}

type OldestArticleSelector interface {
	SelectOldestArticles(ctx context.Context, filter domain.ArticleFilter, limit int) ([]domain.Article, error)
}

type ArticleDeleter interface {
	DeleteArticlesByIDs(ctx context.Context, ids []int64) (int64, error)
}

type LatestArticleLister interface {
	ListLatestArticles(ctx context.Context, filter domain.ArticleFilter, options domain.ArticleListOptions) ([]domain.Article, error)
}

// CacheInvalidator is told after any committed insert or delete batch so
// downstream caches can drop stale renditions. Calls are best effort;
// callers swallow and log errors.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, reason string, affected int) error
}

// NullCacheInvalidator discards every notification.
type NullCacheInvalidator struct{}

func (NullCacheInvalidator) Invalidate(ctx context.Context, reason string, affected int) error {
	return nil
}
