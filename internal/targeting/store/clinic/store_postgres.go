package clinic

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"screening/internal/targeting/models"
	"screening/pkg/platform/sentinel"
	txcontext "screening/pkg/platform/tx"
	"screening/pkg/requestcontext"
)

// PostgresStore reads clinics and records committed batches. The clinic
// update and its invitation_batches row are written in one transaction.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const clinicColumns = `id, name, icb_code, postcode, last_selected_range,
	target_fill_percentage, invites_sent, prev_invite_date, availability`

func (s *PostgresStore) Get(ctx context.Context, clinicID, clinicName string) (*models.Clinic, error) {
	query := `SELECT ` + clinicColumns + `
		FROM clinics
		WHERE id = $1 AND ($2 = '' OR lower(name) = lower($2))
	`
	var c models.Clinic
	if err := txcontext.Pick(ctx, s.db).GetContext(ctx, &c, query, clinicID, clinicName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("clinic %s: %w", clinicID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get clinic %s: %w", clinicID, err)
	}
	return &c, nil
}

// UpdateAfterInvite adds the batch's invites to the clinic and records the
// batch. A batch id already recorded is not counted twice.
func (s *PostgresStore) UpdateAfterInvite(ctx context.Context, clinicID, clinicName string, fields models.ClinicInviteFields) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		ex := txcontext.Pick(ctx, s.db)

		if fields.BatchID != "" {
			const insertBatch = `
				INSERT INTO invitation_batches (batch_id, clinic_id, clinic_name, invites_sent, committed_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (batch_id) DO NOTHING
			`
			res, err := ex.ExecContext(ctx, insertBatch, fields.BatchID, clinicID, clinicName, fields.InvitesSent, requestcontext.Now(ctx))
			if err != nil {
				return fmt.Errorf("record invitation batch %s: %w", fields.BatchID, err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				fields.InvitesSent = 0
			}
		}

		const update = `
			UPDATE clinics SET
				target_fill_percentage = $3,
				last_selected_range = $4,
				invites_sent = invites_sent + $5,
				prev_invite_date = $6,
				availability = $7
			WHERE id = $1 AND ($2 = '' OR lower(name) = lower($2))
		`
		res, err := ex.ExecContext(ctx, update,
			clinicID,
			clinicName,
			fields.TargetFillPercentage,
			fields.LastSelectedRange,
			fields.InvitesSent,
			fields.PrevInviteDate,
			fields.Availability,
		)
		if err != nil {
			return fmt.Errorf("update clinic %s: %w", clinicID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update clinic %s: %w", clinicID, err)
		}
		if n == 0 {
			return fmt.Errorf("clinic %s: %w", clinicID, sentinel.ErrNotFound)
		}
		return nil
	})
}

// Put upserts clinics.
func (s *PostgresStore) Put(ctx context.Context, clinics ...models.Clinic) error {
	const query = `
		INSERT INTO clinics (` + clinicColumns + `)
		VALUES (:id, :name, :icb_code, :postcode, :last_selected_range,
			:target_fill_percentage, :invites_sent, :prev_invite_date, :availability)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			icb_code = EXCLUDED.icb_code,
			postcode = EXCLUDED.postcode,
			last_selected_range = EXCLUDED.last_selected_range,
			target_fill_percentage = EXCLUDED.target_fill_percentage,
			invites_sent = EXCLUDED.invites_sent,
			prev_invite_date = EXCLUDED.prev_invite_date,
			availability = EXCLUDED.availability
	`
	ex := txcontext.Pick(ctx, s.db)
	for _, c := range clinics {
		if _, err := sqlx.NamedExecContext(ctx, ex, query, c); err != nil {
			return fmt.Errorf("upsert clinic %s: %w", c.ID, err)
		}
	}
	return nil
}
