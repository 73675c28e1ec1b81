// Package handlers provides HTTP request handlers for the glycemia API
// endpoints. This file implements the HTTPHandler interface with dependency
// injection.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/glycemia-api/dosage"
	"github.com/giygas/glycemia-api/interfaces"
	"github.com/giygas/glycemia-api/knowledgebase"
	"github.com/giygas/glycemia-api/logging"
	"github.com/giygas/glycemia-api/metrics"
	"github.com/giygas/glycemia-api/risk"
	"github.com/giygas/glycemia-api/validation"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// maxPriorDoses bounds the dose history accepted by ActiveInsulin
const maxPriorDoses = 200

// Error codes returned in the "error" field
const (
	ErrCodeInvalidJSON        = "invalid_json"
	ErrCodeInvalidParameter   = "invalid_parameter"
	ErrCodeImplausible        = "physiologically_implausible"
	ErrCodeBodyTooLarge       = "body_too_large"
	ErrCodeKnowledgeBaseEmpty = "knowledge_base_unavailable"
)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	store      interfaces.KnowledgeStore
	calculator interfaces.DosageCalculator
	classifier interfaces.RiskClassifier
	health     interfaces.HealthChecker
	maxBody    int64
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies.
// maxBody limits request bodies in bytes.
func NewHTTPHandler(store interfaces.KnowledgeStore, calculator interfaces.DosageCalculator,
	classifier interfaces.RiskClassifier, health interfaces.HealthChecker, maxBody int64) interfaces.HTTPHandler {
	return &HTTPHandlerImpl{
		store:      store,
		calculator: calculator,
		classifier: classifier,
		health:     health,
		maxBody:    maxBody,
	}
}

// ServeHTTP implements the http.Handler interface
func (h *HTTPHandlerImpl) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// This is a placeholder - the actual routing is handled by chi
	http.Error(w, "Not implemented", http.StatusNotImplemented)
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Code    int      `json:"code"`
	Field   string   `json:"field,omitempty"`
	Value   *float64 `json:"value,omitempty"`
}

// DoseResponse is a dosage.Result with an audit id
type DoseResponse struct {
	CalculationID string `json:"calculation_id"`
	dosage.Result
}

// ActiveInsulinRequest is the body of POST /v1/dose/active-insulin
type ActiveInsulinRequest struct {
	Doses []dosage.PriorDose   `json:"doses"`
	Now   *time.Time           `json:"now,omitempty"`
	Curve *dosage.InsulinCurve `json:"curve,omitempty"`
}

// ActiveInsulinResponse is the insulin on board at At
type ActiveInsulinResponse struct {
	CalculationID      string              `json:"calculation_id"`
	ActiveInsulinUnits float64             `json:"active_insulin_units"`
	At                 time.Time           `json:"at"`
	Curve              dosage.InsulinCurve `json:"curve"`
}

// RiskResponse is a risk.Assessment with an audit id
type RiskResponse struct {
	CalculationID string `json:"calculation_id"`
	risk.Assessment
}

// QuickCheckResponse is a risk.QuickResult with an audit id
type QuickCheckResponse struct {
	CalculationID string `json:"calculation_id"`
	risk.QuickResult
}

// GuidelinesResponse describes the published knowledge base
type GuidelinesResponse struct {
	Version       string                       `json:"version"`
	Source        string                       `json:"source"`
	Checksum      string                       `json:"checksum,omitempty"`
	LoadedAt      string                       `json:"loaded_at"`
	KnowledgeBase *knowledgebase.KnowledgeBase `json:"knowledge_base"`
}

// HealthResponseImpl defines the structure for consistent JSON ordering
type HealthResponseImpl struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, errCode, message string) {
	h.RespondWithJSON(w, code, ErrorResponse{
		Error:   errCode,
		Message: message,
		Code:    code,
	})
}

// respondWithDomainError maps validation errors to 400 and 422. It returns
// the metrics outcome label.
func (h *HTTPHandlerImpl) respondWithDomainError(w http.ResponseWriter, r *http.Request, err error) string {
	var invalid *validation.InvalidParameterError
	var implausible *validation.PhysiologicallyImplausibleError

	switch {
	case errors.As(err, &implausible):
		logging.Warn("Physiologically implausible input",
			"request_id", middleware.GetReqID(r.Context()),
			"field", implausible.Field,
			"value", implausible.Value,
		)
		resp := ErrorResponse{
			Error:   ErrCodeImplausible,
			Message: implausible.Error(),
			Code:    http.StatusUnprocessableEntity,
			Field:   implausible.Field,
		}
		// JSON has no encoding for NaN or Inf
		if v := implausible.Value; !math.IsNaN(v) && !math.IsInf(v, 0) {
			resp.Value = &v
		}
		h.RespondWithJSON(w, http.StatusUnprocessableEntity, resp)
		return metrics.OutcomeImplausible

	case errors.As(err, &invalid):
		logging.Warn("Invalid parameter",
			"request_id", middleware.GetReqID(r.Context()),
			"field", invalid.Field,
			"reason", invalid.Reason,
		)
		h.RespondWithJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   ErrCodeInvalidParameter,
			Message: invalid.Error(),
			Code:    http.StatusBadRequest,
			Field:   invalid.Field,
		})
		return metrics.OutcomeInvalid

	default:
		logging.Error("Unexpected engine error", "request_id", middleware.GetReqID(r.Context()), "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "internal_error", "Unexpected error")
		return "internal_error"
	}
}

// decodeBody reads a single JSON document into dst. Domain errors raised by
// custom unmarshalers are returned unchanged; other failures have already
// been answered and ok is false.
func (h *HTTPHandlerImpl) decodeBody(w http.ResponseWriter, r *http.Request, dst any) (domainErr error, ok bool) {
	if r.Body == nil {
		h.RespondWithError(w, http.StatusBadRequest, ErrCodeInvalidJSON, "Request body is required")
		return nil, false
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	err := dec.Decode(dst)
	if err == nil {
		if dec.More() {
			h.RespondWithError(w, http.StatusBadRequest, ErrCodeInvalidJSON, "Request body must contain a single JSON object")
			return nil, false
		}
		return nil, true
	}

	var maxBytesErr *http.MaxBytesError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case validation.IsInvalidParameter(err) || validation.IsImplausible(err):
		return err, true
	case errors.As(err, &maxBytesErr):
		h.RespondWithError(w, http.StatusRequestEntityTooLarge, ErrCodeBodyTooLarge,
			fmt.Sprintf("Request body too large. Maximum allowed size is %d bytes", maxBytesErr.Limit))
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return validation.NewInvalidParameter(field, "has the wrong JSON type (%s)", typeErr.Value), true
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		h.RespondWithError(w, http.StatusBadRequest, ErrCodeInvalidJSON, "Malformed JSON body")
	case errors.Is(err, io.EOF):
		h.RespondWithError(w, http.StatusBadRequest, ErrCodeInvalidJSON, "Request body is required")
	default:
		h.RespondWithError(w, http.StatusBadRequest, ErrCodeInvalidJSON, err.Error())
	}
	return nil, false
}

// CalculateDose handles POST /v1/dose
func (h *HTTPHandlerImpl) CalculateDose(w http.ResponseWriter, r *http.Request) {
	var req dosage.Request
	domainErr, ok := h.decodeBody(w, r, &req)
	if !ok {
		return
	}
	if domainErr != nil {
		metrics.DoseCalculationsTotal.WithLabelValues(h.respondWithDomainError(w, r, domainErr)).Inc()
		return
	}

	result, err := h.calculator.Calculate(req)
	if err != nil {
		metrics.DoseCalculationsTotal.WithLabelValues(h.respondWithDomainError(w, r, err)).Inc()
		return
	}

	id := uuid.NewString()
	clamped := result.HasWarning(dosage.WarningCapExceeded)
	metrics.ObserveDose(result.TotalUnits, clamped)

	logging.Info("Dose calculated",
		"calculation_id", id,
		"request_id", middleware.GetReqID(r.Context()),
		"total_units", result.TotalUnits,
		"clamped", clamped,
		"warnings", result.Warnings,
	)

	h.RespondWithJSON(w, http.StatusOK, DoseResponse{CalculationID: id, Result: result})
}

// ActiveInsulin handles POST /v1/dose/active-insulin
func (h *HTTPHandlerImpl) ActiveInsulin(w http.ResponseWriter, r *http.Request) {
	var req ActiveInsulinRequest
	domainErr, ok := h.decodeBody(w, r, &req)
	if !ok {
		return
	}
	if domainErr == nil {
		domainErr = validateActiveInsulin(req)
	}
	if domainErr != nil {
		h.respondWithDomainError(w, r, domainErr)
		return
	}

	now := time.Now()
	if req.Now != nil {
		now = *req.Now
	}
	curve := dosage.DefaultCurve()
	if req.Curve != nil {
		curve = *req.Curve
	}

	iob := dosage.ActiveInsulin(req.Doses, now, curve)
	id := uuid.NewString()

	logging.Info("Active insulin calculated",
		"calculation_id", id,
		"request_id", middleware.GetReqID(r.Context()),
		"doses", len(req.Doses),
		"active_insulin_units", iob,
	)

	h.RespondWithJSON(w, http.StatusOK, ActiveInsulinResponse{
		CalculationID:      id,
		ActiveInsulinUnits: iob,
		At:                 now,
		Curve:              curve,
	})
}

func validateActiveInsulin(req ActiveInsulinRequest) error {
	if len(req.Doses) > maxPriorDoses {
		return validation.NewInvalidParameter("doses", "at most %d doses are accepted, got %d", maxPriorDoses, len(req.Doses))
	}
	for i, d := range req.Doses {
		field := fmt.Sprintf("doses[%d]", i)
		if err := validation.Finite(field+".units", d.Units); err != nil {
			return err
		}
		if err := validation.NonNegative(field+".units", d.Units); err != nil {
			return err
		}
		if d.TakenAt.IsZero() {
			return validation.NewInvalidParameter(field+".taken_at", "is required")
		}
	}
	if c := req.Curve; c != nil {
		if math.IsNaN(c.PeakMinutes) || math.IsNaN(c.DurationHours) || c.PeakMinutes < 0 || c.DurationHours < 0 {
			return validation.NewInvalidParameter("curve", "peak_minutes and duration_hours must be non-negative numbers")
		}
	}
	return nil
}

// AnalyzeRisk handles POST /v1/risk/analyze
func (h *HTTPHandlerImpl) AnalyzeRisk(w http.ResponseWriter, r *http.Request) {
	var in risk.Input
	domainErr, ok := h.decodeBody(w, r, &in)
	if !ok {
		return
	}
	if domainErr != nil {
		metrics.ObserveRiskRejected(metrics.SourceAnalyze, h.respondWithDomainError(w, r, domainErr))
		return
	}

	assessment, err := h.classifier.Analyze(in)
	if err != nil {
		metrics.ObserveRiskRejected(metrics.SourceAnalyze, h.respondWithDomainError(w, r, err))
		return
	}

	id := uuid.NewString()
	metrics.ObserveRisk(metrics.SourceAnalyze, assessment.Tier.String())

	attrs := []any{
		"calculation_id", id,
		"request_id", middleware.GetReqID(r.Context()),
		"input", in.String(),
		"tier", assessment.Tier.String(),
		"triggered_rules", assessment.TriggeredRules,
	}
	if assessment.NeedsMedicalAttention {
		logging.Warn("Risk assessed: medical attention needed", attrs...)
	} else {
		logging.Info("Risk assessed", attrs...)
	}

	h.RespondWithJSON(w, http.StatusOK, RiskResponse{CalculationID: id, Assessment: assessment})
}

// QuickCheck handles GET /v1/risk/quick-check?glucose=..&symptoms=..
func (h *HTTPHandlerImpl) QuickCheck(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	raw := strings.TrimSpace(query.Get("glucose"))
	if raw == "" {
		metrics.ObserveRiskRejected(metrics.SourceQuickCheck, h.respondWithDomainError(w, r, validation.NewInvalidParameter("glucose", "is required")))
		return
	}
	glucose, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		logging.Warn("Unusual user input", "glucose", raw)
		metrics.ObserveRiskRejected(metrics.SourceQuickCheck, h.respondWithDomainError(w, r, validation.NewInvalidParameter("glucose", "must be a number")))
		return
	}

	hasSymptoms := false
	if s := strings.TrimSpace(query.Get("symptoms")); s != "" {
		hasSymptoms, err = strconv.ParseBool(s)
		if err != nil {
			metrics.ObserveRiskRejected(metrics.SourceQuickCheck, h.respondWithDomainError(w, r, validation.NewInvalidParameter("symptoms", "must be true or false")))
			return
		}
	}

	result := h.classifier.QuickCheck(glucose, hasSymptoms)
	id := uuid.NewString()
	metrics.ObserveRisk(metrics.SourceQuickCheck, result.Tier.String())

	logging.Info("Quick check",
		"calculation_id", id,
		"request_id", middleware.GetReqID(r.Context()),
		"glucose", glucose,
		"symptoms", hasSymptoms,
		"tier", result.Tier.String(),
	)

	h.RespondWithJSON(w, http.StatusOK, QuickCheckResponse{CalculationID: id, QuickResult: result})
}

// Guidelines handles GET /v1/guidelines
func (h *HTTPHandlerImpl) Guidelines(w http.ResponseWriter, r *http.Request) {
	if !h.store.IsLoaded() {
		h.RespondWithError(w, http.StatusServiceUnavailable, ErrCodeKnowledgeBaseEmpty, "Knowledge base not loaded")
		return
	}

	kb := h.store.KnowledgeBase()
	source := h.store.Source()
	if source == "" {
		source = "built-in"
	}

	h.RespondWithJSON(w, http.StatusOK, GuidelinesResponse{
		Version:       kb.Version,
		Source:        source,
		Checksum:      h.store.Checksum(),
		LoadedAt:      h.store.LoadedAt().Format(time.RFC3339),
		KnowledgeBase: kb,
	})
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, data, httpStatus := h.health.HealthCheck()
	h.RespondWithJSON(w, httpStatus, HealthResponseImpl{Status: status, Data: data})
}
