// Package sqldb implements the article Repository over database/sql,
// serving both the mysql and postgres drivers through sqlbuilder flavors.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"

	"github.com/blockwire/news-curator/internal/datasources"
	"github.com/blockwire/news-curator/internal/domain"
)

var _ datasources.Repository = (*Repository)(nil)

const articleColumns = "id, url, title, summary, network, breaking, published_at, payload, created_at"

type Repository struct {
	db     *sql.DB
	flavor sqlbuilder.Flavor
}

// New builds a Repository for the given driver name, "mysql" or "postgres".
func New(db *sql.DB, driver string) (*Repository, error) {
	var flavor sqlbuilder.Flavor
	switch driver {
	case "mysql":
		flavor = sqlbuilder.MySQL
	case "postgres":
		flavor = sqlbuilder.PostgreSQL
	default:
		return nil, fmt.Errorf("unknown SQL driver [%s]", driver)
	}

	return &Repository{db: db, flavor: flavor}, nil
}

func (r *Repository) CountArticles(ctx context.Context, filter domain.ArticleFilter) (int64, error) {
	sb := r.flavor.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("articles")

	applyFilter(sb, filter)

	query, args := sb.Build()

	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting articles: %w", err)
	}
	return count, nil
}

func (r *Repository) FindArticleByURL(ctx context.Context, url string) (domain.Article, error) {
	sb := r.flavor.NewSelectBuilder()
	sb.Select(articleColumns)
	sb.From("articles")
	sb.Where(sb.Equal("url", url))

	query, args := sb.Build()

	article, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, domain.ErrArticleNotFound
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("finding article by URL: %w", err)
	}
	return article, nil
}

func (r *Repository) InsertArticle(ctx context.Context, article domain.Article) (domain.Article, error) {
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now()
	}

	ib := r.flavor.NewInsertBuilder()
	ib.InsertInto("articles")
	ib.Cols("url", "title", "summary", "network", "breaking", "published_at", "payload", "created_at")
	ib.Values(
		article.URL,
		article.Title,
		article.Summary,
		article.Network,
		article.Breaking,
		article.PublishedAt,
		[]byte(article.Payload),
		article.CreatedAt,
	)

	if r.flavor == sqlbuilder.PostgreSQL {
		ib.SQL("RETURNING id")
		query, args := ib.Build()
		if err := r.db.QueryRowContext(ctx, query, args...).Scan(&article.ID); err != nil {
			return domain.Article{}, fmt.Errorf("inserting article: %w", err)
		}
		return article, nil
	}

	query, args := ib.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Article{}, fmt.Errorf("inserting article: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Article{}, fmt.Errorf("reading inserted article ID: %w", err)
	}
	article.ID = id
	return article, nil
}

func (r *Repository) UpdateArticle(ctx context.Context, id int64, update domain.ArticleUpdate) (domain.Article, error) {
	ub := r.flavor.NewUpdateBuilder()
	ub.Update("articles")
	ub.Set(
		ub.Assign("title", update.Title),
		ub.Assign("summary", update.Summary),
		ub.Assign("breaking", update.Breaking),
		ub.Assign("published_at", update.PublishedAt),
		ub.Assign("payload", []byte(update.Payload)),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Article{}, fmt.Errorf("updating article: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Article{}, fmt.Errorf("reading update result: %w", err)
	}
	if affected == 0 {
		return domain.Article{}, domain.ErrArticleNotFound
	}

	return r.findArticleByID(ctx, id)
}

func (r *Repository) SelectOldestArticles(ctx context.Context, filter domain.ArticleFilter, limit int) ([]domain.Article, error) {
	sb := r.flavor.NewSelectBuilder()
	sb.Select(articleColumns)
	sb.From("articles")

	applyFilter(sb, filter)

	sb.OrderBy("published_at ASC", "id ASC")
	sb.Limit(limit)

	query, args := sb.Build()

	return r.queryArticles(ctx, query, args)
}

func (r *Repository) DeleteArticlesByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	idArgs := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		idArgs = append(idArgs, id)
	}

	db := r.flavor.NewDeleteBuilder()
	db.DeleteFrom("articles")
	db.Where(db.In("id", idArgs...))

	query, args := db.Build()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting articles: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading delete result: %w", err)
	}
	return removed, nil
}

func (r *Repository) ListLatestArticles(ctx context.Context, filter domain.ArticleFilter, options domain.ArticleListOptions) ([]domain.Article, error) {
	sb := r.flavor.NewSelectBuilder()
	sb.Select(articleColumns)
	sb.From("articles")

	applyFilter(sb, filter)

	sb.OrderBy("published_at DESC", "id DESC")
	sb.Offset((options.Page - 1) * options.PageSize)
	sb.Limit(options.PageSize)

	query, args := sb.Build()

	return r.queryArticles(ctx, query, args)
}

func (r *Repository) findArticleByID(ctx context.Context, id int64) (domain.Article, error) {
	sb := r.flavor.NewSelectBuilder()
	sb.Select(articleColumns)
	sb.From("articles")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	article, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, domain.ErrArticleNotFound
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("finding article by ID: %w", err)
	}
	return article, nil
}

func (r *Repository) queryArticles(ctx context.Context, query string, args []interface{}) ([]domain.Article, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("running articles query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	articles := []domain.Article{}
	for rows.Next() {
		var a domain.Article
		var payload []byte
		if err := rows.Scan(
			&a.ID,
			&a.URL,
			&a.Title,
			&a.Summary,
			&a.Network,
			&a.Breaking,
			&a.PublishedAt,
			&payload,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning articles: %w", err)
		}
		a.Payload = payload
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return articles, nil
}

func scanArticle(row *sql.Row) (domain.Article, error) {
	var a domain.Article
	var payload []byte
	if err := row.Scan(
		&a.ID,
		&a.URL,
		&a.Title,
		&a.Summary,
		&a.Network,
		&a.Breaking,
		&a.PublishedAt,
		&payload,
		&a.CreatedAt,
	); err != nil {
		return domain.Article{}, err
	}
	a.Payload = payload
	return a, nil
}

func applyFilter(sb *sqlbuilder.SelectBuilder, filter domain.ArticleFilter) {
	var conds []string

	if filter.Networks != nil {
		networks := make([]interface{}, 0, len(filter.Networks))
		for _, n := range filter.Networks {
			networks = append(networks, n)
		}
		conds = append(conds, sb.In("network", networks...))
	}

	if filter.Breaking != nil {
		conds = append(conds, sb.Equal("breaking", *filter.Breaking))
	}

	if len(conds) > 0 {
		sb.Where(conds...)
	}
}
