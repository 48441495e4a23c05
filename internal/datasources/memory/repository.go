// Package memory provides an in-process Repository used by the memory
// driver and throughout the ingest tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/blockwire/news-curator/internal/datasources"
	"github.com/blockwire/news-curator/internal/domain"
)

var _ datasources.Repository = (*Repository)(nil)

type Repository struct {
	mu       sync.Mutex
	nextID   int64
	articles map[int64]domain.Article
	byURL    map[string]int64
}

func New() *Repository {
	return &Repository{
		nextID:   1,
		articles: make(map[int64]domain.Article),
		byURL:    make(map[string]int64),
	}
}

func (r *Repository) CountArticles(ctx context.Context, filter domain.ArticleFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, a := range r.articles {
		if filter.Matches(a) {
			count++
		}
	}
	return count, nil
}

func (r *Repository) FindArticleByURL(ctx context.Context, url string) (domain.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byURL[url]
	if !ok {
		return domain.Article{}, domain.ErrArticleNotFound
	}
	return r.articles[id], nil
}

func (r *Repository) InsertArticle(ctx context.Context, article domain.Article) (domain.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	article.ID = r.nextID
	r.nextID++
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now()
	}
	r.articles[article.ID] = article
	r.byURL[article.URL] = article.ID
	return article, nil
}

func (r *Repository) UpdateArticle(ctx context.Context, id int64, update domain.ArticleUpdate) (domain.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.articles[id]
	if !ok {
		return domain.Article{}, domain.ErrArticleNotFound
	}
	a.Title = update.Title
	a.Summary = update.Summary
	a.Breaking = update.Breaking
	a.PublishedAt = update.PublishedAt
	a.Payload = update.Payload
	r.articles[id] = a
	return a, nil
}

func (r *Repository) SelectOldestArticles(ctx context.Context, filter domain.ArticleFilter, limit int) ([]domain.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := r.sortedMatches(filter)
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *Repository) DeleteArticlesByIDs(ctx context.Context, ids []int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for _, id := range ids {
		a, ok := r.articles[id]
		if !ok {
			continue
		}
		delete(r.articles, id)
		delete(r.byURL, a.URL)
		removed++
	}
	return removed, nil
}

func (r *Repository) ListLatestArticles(ctx context.Context, filter domain.ArticleFilter, options domain.ArticleListOptions) ([]domain.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := r.sortedMatches(filter)

	// Newest first for listing.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	start := (options.Page - 1) * options.PageSize
	if start >= len(matched) {
		return []domain.Article{}, nil
	}
	end := start + options.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

// sortedMatches returns filter matches ordered oldest first, ties broken by
// insertion order. Callers hold the mutex.
func (r *Repository) sortedMatches(filter domain.ArticleFilter) []domain.Article {
	matched := make([]domain.Article, 0, len(r.articles))
	for _, a := range r.articles {
		if filter.Matches(a) {
			matched = append(matched, a)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].PublishedAt.Equal(matched[j].PublishedAt) {
			return matched[i].PublishedAt.Before(matched[j].PublishedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return matched
}
