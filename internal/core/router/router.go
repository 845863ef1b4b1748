// Package router holds the JSON handlers for the risk and driver endpoints.
package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
	"github.com/mohammed-shakir/mosquito-risk/internal/drivers"
	"github.com/mohammed-shakir/mosquito-risk/internal/risk"
)

const maxBodyBytes = 64 << 10

type RiskService interface {
	Default(ctx context.Context, window string) (risk.Result, error)
	Query(ctx context.Context, text string, r *model.DateRange) (risk.Result, error)
}

type DriversService interface {
	Query(ctx context.Context, text string, r *model.DateRange) (drivers.Result, error)
}

type DateRangeRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// QueryRequest is the body of POST /api/risk/query and POST /api/drivers.
type QueryRequest struct {
	LocationText string            `json:"location_text" validate:"required,max=512"`
	DateRange    *DateRangeRequest `json:"date_range"`
}

type Handlers struct {
	risk     RiskService
	drivers  DriversService
	validate *validator.Validate
	logger   *slog.Logger
}

func New(riskSvc RiskService, driversSvc DriversService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		risk:     riskSvc,
		drivers:  driversSvc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// RiskDefault serves GET /api/risk/default?window=...
func (h *Handlers) RiskDefault(w http.ResponseWriter, r *http.Request) {
	window := strings.TrimSpace(r.URL.Query().Get("window"))
	res, err := h.risk.Default(r.Context(), window)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RiskQuery serves POST /api/risk/query.
func (h *Handlers) RiskQuery(w http.ResponseWriter, r *http.Request) {
	text, dr, err := h.decodeQuery(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.risk.Query(r.Context(), text, dr)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Drivers serves POST /api/drivers.
func (h *Handlers) Drivers(w http.ResponseWriter, r *http.Request) {
	text, dr, err := h.decodeQuery(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.drivers.Query(r.Context(), text, dr)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// errBadBody marks request bodies that could not be decoded.
var errBadBody = errors.New("bad request body")

func (h *Handlers) decodeQuery(w http.ResponseWriter, r *http.Request) (string, *model.DateRange, error) {
	var req QueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil, errors.Join(errBadBody, errors.New("request body is empty"))
		}
		return "", nil, errors.Join(errBadBody, err)
	}

	if err := h.validate.Struct(&req); err != nil {
		return "", nil, validationError(err)
	}

	if req.DateRange == nil {
		return req.LocationText, nil, nil
	}
	dr, err := model.ParseDateRange(req.DateRange.StartDate, req.DateRange.EndDate)
	if err != nil {
		return "", nil, err
	}
	return req.LocationText, &dr, nil
}

// validationError maps the first failed field to a domain error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.Join(errBadBody, err)
	}
	fe := verrs[0]
	switch fe.Field() {
	case "LocationText":
		if fe.Tag() == "required" {
			return model.InvalidLocation("Location text is required", err)
		}
		return model.InvalidLocation("Location text is too long", err)
	case "StartDate", "EndDate":
		if fe.Tag() == "required" {
			return model.InvalidDateRange("start_date and end_date are required", err)
		}
		return model.InvalidDateRange("Invalid date format; expected YYYY-MM-DD", err)
	default:
		return errors.Join(errBadBody, err)
	}
}

type errorBody struct {
	Detail string `json:"detail"`
}

// writeError is the single place where error kinds become status codes.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	detail := "Internal server error"

	switch model.KindOf(err) {
	case model.KindInvalidLocation, model.KindInvalidDateRange:
		status = http.StatusBadRequest
		detail = model.Detail(err)
	case model.KindDataUnavailable:
		status = http.StatusServiceUnavailable
		detail = model.Detail(err)
	default:
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			status = http.StatusRequestEntityTooLarge
			detail = "Request body too large"
		case errors.Is(err, errBadBody):
			status = http.StatusBadRequest
			detail = "Invalid request body"
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "status", status, "err", err)
	} else {
		h.logger.InfoContext(r.Context(), "request rejected", "status", status, "err", err)
	}
	writeJSON(w, status, errorBody{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
