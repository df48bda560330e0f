package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"screening/internal/targeting"
	"screening/internal/targeting/models"
	dErrors "screening/pkg/domain-errors"
	"screening/pkg/platform/httputil"
	"screening/pkg/requestcontext"
)

// Service is the targeting surface exposed over HTTP.
type Service interface {
	Run(ctx context.Context, req models.RunRequest) (*models.RunResult, error)
	Catchment(ctx context.Context, postcode string, radiusMiles float64) (*models.CatchmentReport, error)
	Clinic(ctx context.Context, clinicID, clinicName string) (*models.Clinic, error)
	Parameters(ctx context.Context) (models.InvitationParameters, error)
	UpdateQuintiles(ctx context.Context, weights [models.NumQuintiles]int) (models.InvitationParameters, error)
	UpdateForecastUptake(ctx context.Context, uptake float64) (models.InvitationParameters, error)
	UpdateTargetPercentage(ctx context.Context, pct int) (models.InvitationParameters, error)
}

// Handler wires targeting endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the targeting endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/targeting/runs", h.HandleRun)
	r.Get("/targeting/catchment", h.HandleCatchment)
	r.Get("/clinics/{clinicID}", h.HandleClinic)
	r.Get("/invitation-parameters", h.HandleGetParameters)
	r.Put("/invitation-parameters/quintiles", h.HandleUpdateQuintiles)
	r.Put("/invitation-parameters/forecast-uptake", h.HandleUpdateForecastUptake)
	r.Put("/invitation-parameters/target-percentage", h.HandleUpdateTargetPercentage)
}

// HandleRun handles POST /targeting/runs. A run whose clinic write failed
// after residents were marked answers 207 with the full result.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[RunRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Run(ctx, req.toModel())
	if err != nil {
		var partial *targeting.PartialCommitError
		if errors.As(err, &partial) && result != nil {
			h.logger.ErrorContext(ctx, "targeting run partially committed",
				"request_id", requestID,
				"clinic_id", req.ClinicID,
				"batch_id", result.BatchID,
				"error", err,
			)
			httputil.WriteJSON(w, http.StatusMultiStatus, result)
			return
		}
		h.logger.ErrorContext(ctx, "targeting run failed",
			"request_id", requestID,
			"clinic_id", req.ClinicID,
			"operator", requestcontext.Operator(ctx),
			"error", err,
		)
		writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "targeting run completed",
		"request_id", requestID,
		"clinic_id", req.ClinicID,
		"operator", requestcontext.Operator(ctx),
		"batch_id", result.BatchID,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleCatchment handles GET /targeting/catchment?postcode=&miles=.
func (h *Handler) HandleCatchment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	postcode := strings.TrimSpace(r.URL.Query().Get("postcode"))
	if postcode == "" {
		writeError(w, dErrors.New(dErrors.CodeValidation, "postcode is required"))
		return
	}
	miles, err := strconv.ParseFloat(r.URL.Query().Get("miles"), 64)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "miles must be a number"))
		return
	}

	report, err := h.service.Catchment(ctx, postcode, miles)
	if err != nil {
		h.logger.ErrorContext(ctx, "catchment report failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleClinic handles GET /clinics/{clinicID}?name=.
func (h *Handler) HandleClinic(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.service.Clinic(ctx, chi.URLParam(r, "clinicID"), strings.TrimSpace(r.URL.Query().Get("name")))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) HandleGetParameters(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Parameters(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) HandleUpdateQuintiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[QuintilesRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.writeParameters(w, r, "quintiles")(h.service.UpdateQuintiles(ctx, req.weights()))
}

func (h *Handler) HandleUpdateForecastUptake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ForecastUptakeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.writeParameters(w, r, "forecast_uptake")(h.service.UpdateForecastUptake(ctx, *req.ForecastUptake))
}

func (h *Handler) HandleUpdateTargetPercentage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[TargetPercentageRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.writeParameters(w, r, "target_percentage")(h.service.UpdateTargetPercentage(ctx, *req.TargetPercentage))
}

func (h *Handler) writeParameters(w http.ResponseWriter, r *http.Request, field string) func(models.InvitationParameters, error) {
	return func(p models.InvitationParameters, err error) {
		ctx := r.Context()
		if err != nil {
			h.logger.WarnContext(ctx, "invitation parameter update rejected",
				"request_id", requestcontext.RequestID(ctx),
				"field", field,
				"error", err,
			)
			writeError(w, err)
			return
		}
		h.logger.InfoContext(ctx, "invitation parameters updated",
			"request_id", requestcontext.RequestID(ctx),
			"operator", requestcontext.Operator(ctx),
			"field", field,
		)
		httputil.WriteJSON(w, http.StatusOK, p)
	}
}

// writeError gives the targeting error types their domain codes before
// handing off to httputil.WriteError.
func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, translate(err))
}

func translate(err error) error {
	if _, coded := dErrors.CodeOf(err); coded {
		return err
	}
	var (
		ge  *targeting.GeocodeError
		iwe *targeting.InvalidWeightsError
		qfe *targeting.QueryFailureThresholdError
	)
	switch {
	case errors.As(err, &ge):
		if ge.UnknownPostcode() {
			return dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("postcode %s was not recognised", ge.Postcode))
		}
		return dErrors.Wrap(err, dErrors.CodeBadGateway, "postcode lookup failed")
	case errors.As(err, &iwe):
		return dErrors.Wrap(err, dErrors.CodeConflict, "stored invitation parameters are invalid: "+iwe.Reason)
	case errors.As(err, &qfe):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, qfe.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "request timed out")
	}
	return err
}
