package repository

import (
	"context"
	"fmt"

	"library-services/internal/domain/book"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/jmoiron/sqlx"
)

const booksTable = "books"

// CatalogStatsRepository answers aggregate queries over the books table with
// goqu-built SQL run through sqlx.
type CatalogStatsRepository struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

var _ book.StatsRepository = (*CatalogStatsRepository)(nil)

// NewCatalogStatsRepository wraps an open connection. dialect is a goqu
// dialect name: postgres or sqlite3.
func NewCatalogStatsRepository(db *sqlx.DB, dialect string) *CatalogStatsRepository {
	return &CatalogStatsRepository{
		db:      db,
		dialect: goqu.Dialect(dialect),
	}
}

func (r *CatalogStatsRepository) statsQuery() (string, error) {
	available := goqu.C("available_copies")

	query, _, err := r.dialect.
		From(booksTable).
		Select(
			goqu.COUNT(goqu.Star()).As("total_titles"),
			goqu.COALESCE(goqu.SUM(goqu.Case().When(available.Gt(0), 1).Else(0)), 0).As("available_titles"),
			goqu.COALESCE(goqu.SUM("total_copies"), 0).As("total_copies"),
			goqu.COALESCE(goqu.SUM(available), 0).As("available_copies"),
		).
		ToSQL()
	if err != nil {
		return "", fmt.Errorf("failed to build stats query: %w", err)
	}
	return query, nil
}

func (r *CatalogStatsRepository) Stats(ctx context.Context) (*book.Stats, error) {
	query, err := r.statsQuery()
	if err != nil {
		return nil, err
	}

	var stats book.Stats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to load catalog stats: %w", err)
	}
	return &stats, nil
}
