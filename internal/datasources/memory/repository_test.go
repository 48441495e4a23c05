package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockwire/news-curator/internal/domain"
)

func insertArticles(t *testing.T, repo *Repository, articles []domain.Article) []domain.Article {
	t.Helper()
	stored := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		s, err := repo.InsertArticle(context.Background(), a)
		require.NoError(t, err)
		stored = append(stored, s)
	}
	return stored
}

func TestRepository_FindArticleByURL(t *testing.T) {
	repo := New()
	published := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	insertArticles(t, repo, []domain.Article{
		{URL: "https://example.com/a", Title: "A", Network: "solana", PublishedAt: published},
	})

	found, err := repo.FindArticleByURL(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "A", found.Title)
	assert.NotZero(t, found.ID)

	_, err = repo.FindArticleByURL(context.Background(), "https://example.com/missing")
	assert.ErrorIs(t, err, domain.ErrArticleNotFound)
}

func TestRepository_CountArticles(t *testing.T) {
	repo := New()
	published := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	insertArticles(t, repo, []domain.Article{
		{URL: "u1", Network: "solana", Breaking: true, PublishedAt: published},
		{URL: "u2", Network: "solana", PublishedAt: published},
		{URL: "u3", Network: "base", PublishedAt: published},
		{URL: "u4", Network: domain.NetworkGeneric, Breaking: true, PublishedAt: published},
	})

	cases := []struct {
		name   string
		filter domain.ArticleFilter
		want   int64
	}{
		{name: "all", filter: domain.FilterAll(), want: 4},
		{name: "one_network", filter: domain.FilterNetwork("solana"), want: 2},
		{name: "network_set", filter: domain.FilterNetworks([]string{"solana", "base"}), want: 3},
		{name: "breaking", filter: domain.FilterBreaking(), want: 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			count, err := repo.CountArticles(context.Background(), tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, count)
		})
	}
}

func TestRepository_SelectOldestArticles_OrderAndTieBreak(t *testing.T) {
	repo := New()
	early := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	insertArticles(t, repo, []domain.Article{
		{URL: "u1", Network: "solana", PublishedAt: late},
		{URL: "u2", Network: "solana", PublishedAt: early},
		{URL: "u3", Network: "solana", PublishedAt: early},
	})

	oldest, err := repo.SelectOldestArticles(context.Background(), domain.FilterAll(), 2)
	require.NoError(t, err)
	require.Len(t, oldest, 2)

	// Both early articles first, in insertion order.
	assert.Equal(t, "u2", oldest[0].URL)
	assert.Equal(t, "u3", oldest[1].URL)
}

func TestRepository_DeleteArticlesByIDs(t *testing.T) {
	repo := New()
	published := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	stored := insertArticles(t, repo, []domain.Article{
		{URL: "u1", Network: "solana", PublishedAt: published},
		{URL: "u2", Network: "solana", PublishedAt: published},
	})

	removed, err := repo.DeleteArticlesByIDs(context.Background(), []int64{stored[0].ID, 9999})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed, "unknown IDs are ignored")

	_, err = repo.FindArticleByURL(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrArticleNotFound)

	_, err = repo.FindArticleByURL(context.Background(), "u2")
	assert.NoError(t, err)
}

func TestRepository_UpdateArticle(t *testing.T) {
	repo := New()
	published := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	stored := insertArticles(t, repo, []domain.Article{
		{URL: "u1", Title: "Before", Network: "solana", PublishedAt: published},
	})

	updated, err := repo.UpdateArticle(context.Background(), stored[0].ID, domain.ArticleUpdate{
		Title:       "After",
		Summary:     "new summary",
		Breaking:    true,
		PublishedAt: published.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Title)
	assert.True(t, updated.Breaking)
	assert.Equal(t, stored[0].ID, updated.ID)

	_, err = repo.UpdateArticle(context.Background(), 9999, domain.ArticleUpdate{})
	assert.ErrorIs(t, err, domain.ErrArticleNotFound)
}

func TestRepository_ListLatestArticles(t *testing.T) {
	repo := New()
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	articles := make([]domain.Article, 0, 5)
	for i := 0; i < 5; i++ {
		articles = append(articles, domain.Article{
			URL:         fmt.Sprintf("u%d", i),
			Network:     "solana",
			PublishedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	insertArticles(t, repo, articles)

	page1, err := repo.ListLatestArticles(context.Background(), domain.FilterAll(),
		domain.ArticleListOptions{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "u4", page1[0].URL, "newest first")
	assert.Equal(t, "u3", page1[1].URL)

	page3, err := repo.ListLatestArticles(context.Background(), domain.FilterAll(),
		domain.ArticleListOptions{Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "u0", page3[0].URL)

	empty, err := repo.ListLatestArticles(context.Background(), domain.FilterAll(),
		domain.ArticleListOptions{Page: 4, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
