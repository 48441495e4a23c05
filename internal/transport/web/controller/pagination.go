package controller

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/blockwire/news-curator/internal/domain"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 200
)

func listOptionsFromQuery(q url.Values) (domain.ArticleListOptions, error) {
	options := domain.ArticleListOptions{
		Page:     defaultPage,
		PageSize: defaultPageSize,
	}

	if q.Has("page") {
		p, err := strconv.ParseInt(q.Get("page"), 10, 32)
		if err != nil {
			return domain.ArticleListOptions{}, fmt.Errorf("unable to parse page from query: %w", err)
		}
		if p < 1 {
			return domain.ArticleListOptions{}, fmt.Errorf("invalid page value [%d]", p)
		}
		options.Page = int(p)
	}

	if q.Has("page_size") {
		ps, err := strconv.ParseInt(q.Get("page_size"), 10, 32)
		if err != nil {
			return domain.ArticleListOptions{}, fmt.Errorf("unable to parse page size from query: %w", err)
		}
		if ps > maxPageSize {
			return domain.ArticleListOptions{}, fmt.Errorf("page size [%d] exceeds limit [%d]", ps, maxPageSize)
		}
		if ps < 1 {
			return domain.ArticleListOptions{}, fmt.Errorf("invalid page size value [%d]", ps)
		}
		options.PageSize = int(ps)
	}

	return options, nil
}

func articleFilterFromQuery(q url.Values) (domain.ArticleFilter, error) {
	var filter domain.ArticleFilter

	if q.Has("network") {
		filter.Networks = []string{q.Get("network")}
	}

	if q.Has("breaking") {
		breaking, err := strconv.ParseBool(q.Get("breaking"))
		if err != nil {
			return domain.ArticleFilter{}, fmt.Errorf("unable to parse breaking from query: %w", err)
		}
		filter.Breaking = &breaking
	}

	return filter, nil
}
