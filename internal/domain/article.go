package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrArticleNotFound is returned by repositories when no article matches
// the given URL or ID.
var ErrArticleNotFound = errors.New("article not found")

// NetworkGeneric is the network tag for articles that do not belong to any
// client network.
const NetworkGeneric = "generic"

type Article struct {
	ID          int64           `json:"id"`
	URL         string          `json:"url"`
	Title       string          `json:"title"`
	Summary     string          `json:"summary"`
	Network     string          `json:"network"`
	Breaking    bool            `json:"breaking"`
	PublishedAt time.Time       `json:"published_at"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ArticleUpdate carries the fields refreshed when an already-stored URL is
// reported again by the fetcher.
type ArticleUpdate struct {
	Title       string
	Summary     string
	Breaking    bool
	PublishedAt time.Time
	Payload     json.RawMessage
}

// ArticleFilter selects a subset of the stored collection. A nil Networks
// slice matches every network; a nil Breaking matches both flag values.
type ArticleFilter struct {
	Networks []string
	Breaking *bool
}

// FilterAll matches every stored article.
func FilterAll() ArticleFilter {
	return ArticleFilter{}
}

// FilterNetworks matches articles whose network is in the given set.
func FilterNetworks(networks []string) ArticleFilter {
	return ArticleFilter{Networks: networks}
}

// FilterNetwork matches articles of a single network.
func FilterNetwork(network string) ArticleFilter {
	return ArticleFilter{Networks: []string{network}}
}

// FilterBreaking matches articles with the breaking flag set.
func FilterBreaking() ArticleFilter {
	breaking := true
	return ArticleFilter{Breaking: &breaking}
}

// Matches reports whether the article falls inside the filter.
func (f ArticleFilter) Matches(a Article) bool {
	if f.Breaking != nil && a.Breaking != *f.Breaking {
		return false
	}
	if f.Networks == nil {
		return true
	}
	for _, n := range f.Networks {
		if a.Network == n {
			return true
		}
	}
	return false
}

type ArticleListOptions struct {
	Page, PageSize int
}
