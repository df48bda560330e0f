package areaunit

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"screening/internal/targeting/models"
	txcontext "screening/pkg/platform/tx"
)

// PostgresStore pages area_units by code using keyset pagination.
type PostgresStore struct {
	db       *sqlx.DB
	pageSize int
}

func NewPostgresStore(db *sqlx.DB, pageSize int) *PostgresStore {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &PostgresStore{db: db, pageSize: pageSize}
}

type areaUnitRow struct {
	Code      string          `db:"code"`
	Name      string          `db:"name"`
	Easting   int             `db:"easting"`
	Northing  int             `db:"northing"`
	Decile    int             `db:"decile"`
	Moderator decimal.Decimal `db:"moderator"`
}

func (r areaUnitRow) toModel() models.AreaUnit {
	return models.AreaUnit{
		Code:      r.Code,
		Name:      r.Name,
		Easting:   r.Easting,
		Northing:  r.Northing,
		Decile:    r.Decile,
		Moderator: r.Moderator.Round(3).InexactFloat64(),
	}
}

func (s *PostgresStore) Page(ctx context.Context, token string) ([]models.AreaUnit, string, error) {
	const query = `
		SELECT code, name, easting, northing, decile, moderator
		FROM area_units
		WHERE code > $1
		ORDER BY code
		LIMIT $2
	`
	var rows []areaUnitRow
	if err := s.db.SelectContext(ctx, &rows, query, token, s.pageSize); err != nil {
		return nil, "", fmt.Errorf("select area units after %q: %w", token, err)
	}
	page := make([]models.AreaUnit, len(rows))
	for i, r := range rows {
		page[i] = r.toModel()
	}
	if len(page) < s.pageSize {
		return page, "", nil
	}
	return page, page[len(page)-1].Code, nil
}

// Put upserts units by code.
func (s *PostgresStore) Put(ctx context.Context, units ...models.AreaUnit) error {
	const query = `
		INSERT INTO area_units (code, name, easting, northing, decile, moderator)
		VALUES (:code, :name, :easting, :northing, :decile, :moderator)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			easting = EXCLUDED.easting,
			northing = EXCLUDED.northing,
			decile = EXCLUDED.decile,
			moderator = EXCLUDED.moderator
	`
	ex := txcontext.Pick(ctx, s.db)
	for _, u := range units {
		row := areaUnitRow{
			Code:      u.Code,
			Name:      u.Name,
			Easting:   u.Easting,
			Northing:  u.Northing,
			Decile:    u.Decile,
			Moderator: decimal.NewFromFloat(u.Moderator).Round(3),
		}
		if _, err := sqlx.NamedExecContext(ctx, ex, query, row); err != nil {
			return fmt.Errorf("upsert area unit %s: %w", u.Code, err)
		}
	}
	return nil
}
