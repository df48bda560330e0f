package service

import (
	"context"

	"screening/internal/targeting/models"
	"screening/internal/targeting/quota"
	dErrors "screening/pkg/domain-errors"
)

func (s *Service) Parameters(ctx context.Context) (models.InvitationParameters, error) {
	return s.loadParameters(ctx)
}

// UpdateQuintiles replaces the quintile weights. They must sum to 100.
func (s *Service) UpdateQuintiles(ctx context.Context, weights [models.NumQuintiles]int) (models.InvitationParameters, error) {
	if err := quota.ValidateWeights(weights); err != nil {
		return models.InvitationParameters{}, dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
	}
	if err := s.params.UpdateQuintiles(ctx, weights); err != nil {
		return models.InvitationParameters{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to update quintile weights")
	}
	s.logger.InfoContext(ctx, "quintile weights updated", "weights", weights)
	return s.Parameters(ctx)
}

// UpdateForecastUptake sets the global forecast uptake percentage, in (0, 100].
func (s *Service) UpdateForecastUptake(ctx context.Context, uptake float64) (models.InvitationParameters, error) {
	current, err := s.Parameters(ctx)
	if err != nil {
		return models.InvitationParameters{}, err
	}
	if err := quota.ValidateForecastUptake(current.QuintileWeights, uptake); err != nil {
		return models.InvitationParameters{}, dErrors.Wrap(err, dErrors.CodeValidation, "forecast uptake must be greater than 0 and at most 100")
	}
	if err := s.params.UpdateForecastUptake(ctx, uptake); err != nil {
		return models.InvitationParameters{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to update forecast uptake")
	}
	s.logger.InfoContext(ctx, "forecast uptake updated", "forecast_uptake", uptake)
	return s.Parameters(ctx)
}

// UpdateTargetPercentage sets the default target fill percentage, in [0, 100].
func (s *Service) UpdateTargetPercentage(ctx context.Context, pct int) (models.InvitationParameters, error) {
	if pct < 0 || pct > 100 {
		return models.InvitationParameters{}, dErrors.New(dErrors.CodeValidation, "target percentage must be between 0 and 100")
	}
	if err := s.params.UpdateTargetPercentage(ctx, pct); err != nil {
		return models.InvitationParameters{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to update target percentage")
	}
	s.logger.InfoContext(ctx, "target percentage updated", "target_percentage", pct)
	return s.Parameters(ctx)
}
