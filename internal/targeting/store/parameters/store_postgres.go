package parameters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"screening/internal/targeting/models"
	txcontext "screening/pkg/platform/tx"
)

// PostgresStore keeps the single invitation_parameters row (config_id 1).
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type parametersRow struct {
	Quintile1        int             `db:"quintile_1"`
	Quintile2        int             `db:"quintile_2"`
	Quintile3        int             `db:"quintile_3"`
	Quintile4        int             `db:"quintile_4"`
	Quintile5        int             `db:"quintile_5"`
	ForecastUptake   decimal.Decimal `db:"forecast_uptake"`
	TargetPercentage int             `db:"target_percentage"`
}

// Seed inserts p unless a row already exists.
func (s *PostgresStore) Seed(ctx context.Context, p models.InvitationParameters) error {
	const query = `
		INSERT INTO invitation_parameters (config_id, quintile_1, quintile_2, quintile_3,
			quintile_4, quintile_5, forecast_uptake, target_percentage)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (config_id) DO NOTHING
	`
	w := p.QuintileWeights
	_, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, query,
		w[0], w[1], w[2], w[3], w[4],
		decimal.NewFromFloat(p.ForecastUptake).Round(3),
		p.TargetPercentage,
	)
	if err != nil {
		return fmt.Errorf("seed invitation parameters: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context) (models.InvitationParameters, error) {
	const query = `
		SELECT quintile_1, quintile_2, quintile_3, quintile_4, quintile_5,
			forecast_uptake, target_percentage
		FROM invitation_parameters
		WHERE config_id = 1
	`
	var row parametersRow
	if err := txcontext.Pick(ctx, s.db).GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Defaults, nil
		}
		return models.InvitationParameters{}, fmt.Errorf("get invitation parameters: %w", err)
	}
	return models.InvitationParameters{
		QuintileWeights:  [models.NumQuintiles]int{row.Quintile1, row.Quintile2, row.Quintile3, row.Quintile4, row.Quintile5},
		ForecastUptake:   row.ForecastUptake.Round(3).InexactFloat64(),
		TargetPercentage: row.TargetPercentage,
	}, nil
}

func (s *PostgresStore) UpdateQuintiles(ctx context.Context, weights [models.NumQuintiles]int) error {
	return s.update(ctx, func(p *models.InvitationParameters) { p.QuintileWeights = weights })
}

func (s *PostgresStore) UpdateForecastUptake(ctx context.Context, uptake float64) error {
	return s.update(ctx, func(p *models.InvitationParameters) { p.ForecastUptake = uptake })
}

func (s *PostgresStore) UpdateTargetPercentage(ctx context.Context, pct int) error {
	return s.update(ctx, func(p *models.InvitationParameters) { p.TargetPercentage = pct })
}

// update reads the current row under lock, applies fn and upserts.
func (s *PostgresStore) update(ctx context.Context, fn func(*models.InvitationParameters)) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		ex := txcontext.Pick(ctx, s.db)
		if _, err := ex.ExecContext(ctx, `SELECT 1 FROM invitation_parameters WHERE config_id = 1 FOR UPDATE`); err != nil {
			return fmt.Errorf("lock invitation parameters: %w", err)
		}
		current, err := s.Get(ctx)
		if err != nil {
			return err
		}
		fn(&current)

		const upsert = `
			INSERT INTO invitation_parameters (config_id, quintile_1, quintile_2, quintile_3,
				quintile_4, quintile_5, forecast_uptake, target_percentage)
			VALUES (1, $1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (config_id) DO UPDATE SET
				quintile_1 = EXCLUDED.quintile_1,
				quintile_2 = EXCLUDED.quintile_2,
				quintile_3 = EXCLUDED.quintile_3,
				quintile_4 = EXCLUDED.quintile_4,
				quintile_5 = EXCLUDED.quintile_5,
				forecast_uptake = EXCLUDED.forecast_uptake,
				target_percentage = EXCLUDED.target_percentage
		`
		w := current.QuintileWeights
		if _, err := ex.ExecContext(ctx, upsert,
			w[0], w[1], w[2], w[3], w[4],
			decimal.NewFromFloat(current.ForecastUptake).Round(3),
			current.TargetPercentage,
		); err != nil {
			return fmt.Errorf("update invitation parameters: %w", err)
		}
		return nil
	})
}
