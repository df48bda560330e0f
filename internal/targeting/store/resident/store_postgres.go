package resident

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"screening/internal/targeting/models"
	"screening/pkg/platform/sentinel"
	txcontext "screening/pkg/platform/tx"
)

// countChunkSize bounds the area codes sent in one ANY($1) query.
const countChunkSize = 500

// PostgresStore reads and reserves residents in the residents table.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListByAreaCode(ctx context.Context, areaCode string) ([]models.ResidentRecord, error) {
	const query = `
		SELECT person_id, area_code, invited, identified_to_be_invited,
			date_of_death, removal_date, removal_reason, superseded_by, batch_id
		FROM residents
		WHERE area_code = $1
		ORDER BY person_id
	`
	var out []models.ResidentRecord
	if err := s.db.SelectContext(ctx, &out, query, areaCode); err != nil {
		return nil, fmt.Errorf("select residents in area %s: %w", areaCode, err)
	}
	return out, nil
}

// MarkIdentified reserves a resident for batchID. A resident already
// reserved keeps its original batch id; the update still matches so the
// call is idempotent.
func (s *PostgresStore) MarkIdentified(ctx context.Context, personID, areaCode, batchID string) error {
	const query = `
		UPDATE residents SET
			batch_id = CASE WHEN identified_to_be_invited THEN batch_id ELSE $3 END,
			identified_to_be_invited = true
		WHERE person_id = $1 AND area_code = $2
	`
	res, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, query, personID, areaCode, batchID)
	if err != nil {
		return fmt.Errorf("mark resident %s identified: %w", personID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark resident %s identified: %w", personID, err)
	}
	if n == 0 {
		return fmt.Errorf("resident %s in area %s: %w", personID, areaCode, sentinel.ErrNotFound)
	}
	return nil
}

// CountByAreaCodes returns eligible and invited counts per area code.
// Codes with no residents are absent from the map.
func (s *PostgresStore) CountByAreaCodes(ctx context.Context, areaCodes []string) (map[string]models.PopulationCounts, error) {
	const query = `
		SELECT area_code,
			COUNT(*) AS eligible_count,
			COUNT(*) FILTER (WHERE invited) AS invited_count
		FROM residents
		WHERE area_code = ANY($1)
			AND date_of_death IS NULL
			AND removal_date IS NULL
			AND COALESCE(btrim(removal_reason), '') = ''
		GROUP BY area_code
	`
	type countRow struct {
		AreaCode      string `db:"area_code"`
		EligibleCount int    `db:"eligible_count"`
		InvitedCount  int    `db:"invited_count"`
	}
	out := make(map[string]models.PopulationCounts, len(areaCodes))
	for start := 0; start < len(areaCodes); start += countChunkSize {
		end := min(start+countChunkSize, len(areaCodes))
		var rows []countRow
		if err := s.db.SelectContext(ctx, &rows, query, pq.Array(areaCodes[start:end])); err != nil {
			return nil, fmt.Errorf("count residents: %w", err)
		}
		for _, r := range rows {
			out[r.AreaCode] = models.PopulationCounts{EligibleCount: r.EligibleCount, InvitedCount: r.InvitedCount}
		}
	}
	return out, nil
}

// Put upserts residents. Moving a resident between areas is a conflict.
func (s *PostgresStore) Put(ctx context.Context, records ...models.ResidentRecord) error {
	const query = `
		INSERT INTO residents (person_id, area_code, invited, identified_to_be_invited,
			date_of_death, removal_date, removal_reason, superseded_by, batch_id)
		VALUES (:person_id, :area_code, :invited, :identified_to_be_invited,
			:date_of_death, :removal_date, :removal_reason, :superseded_by, :batch_id)
		ON CONFLICT (person_id) DO UPDATE SET
			invited = EXCLUDED.invited,
			identified_to_be_invited = EXCLUDED.identified_to_be_invited,
			date_of_death = EXCLUDED.date_of_death,
			removal_date = EXCLUDED.removal_date,
			removal_reason = EXCLUDED.removal_reason,
			superseded_by = EXCLUDED.superseded_by,
			batch_id = EXCLUDED.batch_id
		WHERE residents.area_code = EXCLUDED.area_code
	`
	ex := txcontext.Pick(ctx, s.db)
	for _, r := range records {
		res, err := sqlx.NamedExecContext(ctx, ex, query, r)
		if err != nil {
			return fmt.Errorf("upsert resident %s: %w", r.PersonID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("resident %s belongs to another area: %w", r.PersonID, sentinel.ErrConflict)
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, personID string) (models.ResidentRecord, error) {
	const query = `
		SELECT person_id, area_code, invited, identified_to_be_invited,
			date_of_death, removal_date, removal_reason, superseded_by, batch_id
		FROM residents
		WHERE person_id = $1
	`
	var r models.ResidentRecord
	if err := s.db.GetContext(ctx, &r, query, personID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ResidentRecord{}, sentinel.ErrNotFound
		}
		return models.ResidentRecord{}, fmt.Errorf("get resident %s: %w", personID, err)
	}
	return r, nil
}
