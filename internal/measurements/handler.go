package measurements

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=measurements_mocks_test.go -package=measurements_test

const statsCacheKind = "measurement-stats"

type measurementsRepo interface {
	Add(ctx context.Context, measurement Measurement) (*Measurement, error)
	Get(ctx context.Context, id int) (*Measurement, error)
	ListAll(ctx context.Context, params ListParams) ([]Measurement, error)
	Update(ctx context.Context, measurement *Measurement) error
	Delete(ctx context.Context, id int) error
}

type statsAnalyzer interface {
	Stats(ctx context.Context, userID int, period Period) ([]BucketStats, error)
}

type statsCache interface {
	Get(ctx context.Context, userID int, kind, params string) ([]byte, bool)
	Set(ctx context.Context, userID int, kind, params string, respBytes []byte)
	InvalidateUser(ctx context.Context, userID int)
}

type DeleteMeasurementResponse struct {
	DeletedID int `json:"deletedId"`
}

type Handler struct {
	repo     measurementsRepo
	analyzer statsAnalyzer
	cache    statsCache
	metrics  *metrics.Manager
}

func NewHandler(
	repo measurementsRepo,
	analyzer statsAnalyzer,
	cache statsCache,
	metrics *metrics.Manager,
) *Handler {
	return &Handler{
		repo:     repo,
		analyzer: analyzer,
		cache:    cache,
		metrics:  metrics,
	}
}

func (handler *Handler) HandleListForUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.measurements.listForUser")
	defer span.End()

	userID, err := strconv.Atoi(mux.Vars(r)["userId"])
	if err != nil {
		http.Error(w, "error, user id NaN", http.StatusBadRequest)
		return
	}

	params := ListParams{
		UserID: userID,
	}
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit < 0 {
			http.Error(w, "error, limit invalid", http.StatusBadRequest)
			return
		}
		params.Limit = limit
	}

	if startDateParam := r.URL.Query().Get("startDate"); startDateParam != "" {
		startDate, err := time.Parse(dayKeyLayout, startDateParam)
		if err != nil {
			http.Error(w, "error, invalid start date", http.StatusBadRequest)
			return
		}
		params.From = &startDate
	}
	if endDateParam := r.URL.Query().Get("endDate"); endDateParam != "" {
		endDate, err := time.Parse(dayKeyLayout, endDateParam)
		if err != nil {
			http.Error(w, "error, invalid end date", http.StatusBadRequest)
			return
		}
		params.To = &endDate
	}

	measurements, err := handler.repo.ListAll(ctx, params)
	if err != nil {
		log.Errorf("list measurements for user %d: %s", userID, err)
		http.Error(w, "failed to get measurements", http.StatusInternalServerError)
		return
	}

	measurementsJson, err := json.Marshal(measurements)
	if err != nil {
		log.Errorf("marshal measurements: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, measurementsJson, http.StatusOK)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.measurements.get")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	measurement, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrMeasurementNotFound) {
			http.Error(w, "measurement not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get measurement %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	measurementJson, err := json.Marshal(measurement)
	if err != nil {
		log.Errorf("marshal measurement: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, measurementJson, http.StatusOK)
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.measurements.add")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var measurement Measurement
	if err := json.NewDecoder(r.Body).Decode(&measurement); err != nil {
		log.Tracef("add measurement, unmarshal json params: %s", err)
		http.Error(w, "add measurement failed", http.StatusBadRequest)
		return
	}

	if measurement.UserID <= 0 {
		http.Error(w, "error, user id invalid", http.StatusBadRequest)
		return
	}
	if measurement.Weight <= 0 {
		http.Error(w, "error, weight invalid", http.StatusBadRequest)
		return
	}

	addedMeasurement, err := handler.repo.Add(ctx, measurement)
	if err != nil {
		log.Errorf("add measurement for user %d: %s", measurement.UserID, err)
		if pkg.IsForeignKeyViolationError(err) {
			http.Error(w, "error, user not found", http.StatusBadRequest)
			return
		}
		http.Error(w, "error, failed to add measurement", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterMeasurements.Inc()
	handler.cache.InvalidateUser(ctx, addedMeasurement.UserID)

	measurementJson, err := json.Marshal(addedMeasurement)
	if err != nil {
		log.Errorf("marshal added measurement: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Debugf("measurement added for user %d: %d", addedMeasurement.UserID, addedMeasurement.ID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, measurementJson, http.StatusCreated)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.measurements.update")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	currentMeasurement, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrMeasurementNotFound) {
			http.Error(w, "measurement not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get measurement %d for update: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var measurement Measurement
	if err := json.NewDecoder(r.Body).Decode(&measurement); err != nil {
		log.Tracef("update measurement, unmarshal json params: %s", err)
		http.Error(w, "update measurement failed", http.StatusBadRequest)
		return
	}

	if measurement.Weight <= 0 {
		http.Error(w, "error, weight invalid", http.StatusBadRequest)
		return
	}

	measurement.ID = id
	measurement.UserID = currentMeasurement.UserID
	if measurement.Date.IsZero() {
		measurement.Date = currentMeasurement.Date
	}

	if err := handler.repo.Update(ctx, &measurement); err != nil {
		if errors.Is(err, ErrMeasurementNotFound) {
			http.Error(w, "measurement not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to update measurement %d: %s", id, err)
		http.Error(w, "error, failed to update measurement", http.StatusInternalServerError)
		return
	}

	handler.cache.InvalidateUser(ctx, measurement.UserID)

	measurementJson, err := json.Marshal(measurement)
	if err != nil {
		log.Errorf("marshal updated measurement: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Debugf("measurement updated for user %d: %d", measurement.UserID, measurement.ID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, measurementJson, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.measurements.delete")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	measurement, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrMeasurementNotFound) {
			http.Error(w, "measurement not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get measurement %d for delete: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrMeasurementNotFound) {
			http.Error(w, "measurement not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete measurement %d: %s", id, err)
		http.Error(w, "error, failed to delete measurement", http.StatusInternalServerError)
		return
	}

	handler.cache.InvalidateUser(ctx, measurement.UserID)

	deleteRespJson, err := json.Marshal(DeleteMeasurementResponse{
		DeletedID: id,
	})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}

	log.Debugf("measurement deleted for user %d: %d", measurement.UserID, id)
	pkg.WriteJSONResponseOK(w, string(deleteRespJson))
}

func (handler *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.measurements.stats")
	defer span.End()

	userID, err := strconv.Atoi(mux.Vars(r)["userId"])
	if err != nil {
		http.Error(w, "error, user id NaN", http.StatusBadRequest)
		return
	}

	period := Period(r.URL.Query().Get("period"))
	if !period.IsValid() {
		http.Error(w, "error, invalid period", http.StatusBadRequest)
		return
	}

	cacheParams := string(period)
	if cachedBytes, ok := handler.cache.Get(ctx, userID, statsCacheKind, cacheParams); ok {
		pkg.WriteResponseBytes(w, pkg.ContentType.JSON, cachedBytes, http.StatusOK)
		return
	}

	stats, err := handler.analyzer.Stats(ctx, userID, period)
	if err != nil {
		if errors.Is(err, ErrInvalidPeriod) {
			http.Error(w, "error, invalid period", http.StatusBadRequest)
			return
		}
		log.Errorf("measurement stats for user %d: %s", userID, err)
		http.Error(w, "failed to get measurement stats", http.StatusInternalServerError)
		return
	}

	statsJson, err := json.Marshal(stats)
	if err != nil {
		log.Errorf("marshal measurement stats: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	handler.cache.Set(ctx, userID, statsCacheKind, cacheParams, statsJson)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, statsJson, http.StatusOK)
}
