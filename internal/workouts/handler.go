package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/gymtracker/internal/exercises"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=workouts_mocks_test.go -package=workouts_test

const maxWeightsCacheKind = "max-weights"

type workoutsRepo interface {
	Add(ctx context.Context, workout Workout) (*Workout, error)
	Get(ctx context.Context, id int) (*Workout, error)
	ListAll(ctx context.Context, params ListParams) ([]Workout, error)
	Update(ctx context.Context, workout *Workout) error
	Delete(ctx context.Context, id int) error
}

type exercisesLister interface {
	ListAll(ctx context.Context, params exercises.ListParams) ([]exercises.Exercise, error)
}

type maxWeightsAnalyzer interface {
	MaxWeights(ctx context.Context, params MaxWeightsParams) ([]ExerciseMaxWeights, error)
}

type statsCache interface {
	Get(ctx context.Context, userID int, kind, params string) ([]byte, bool)
	Set(ctx context.Context, userID int, kind, params string, respBytes []byte)
	InvalidateUser(ctx context.Context, userID int)
}

type DeleteWorkoutResponse struct {
	DeletedID int `json:"deletedId"`
}

type Handler struct {
	repo     workoutsRepo
	analyzer maxWeightsAnalyzer
	cache    statsCache
	metrics  *metrics.Manager
}

func NewHandler(
	repo workoutsRepo,
	analyzer maxWeightsAnalyzer,
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
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.listForUser")
	defer span.End()

	userID, err := strconv.Atoi(mux.Vars(r)["userId"])
	if err != nil {
		http.Error(w, "error, user id NaN", http.StatusBadRequest)
		return
	}

	params := ListParams{
		UserID:   userID,
		Category: exercises.Category(r.URL.Query().Get("category")),
	}
	if params.Category != "" && !params.Category.IsValid() {
		http.Error(w, "error, invalid category", http.StatusBadRequest)
		return
	}

	params.From, params.To, err = dateRangeFromQuery(r)
	if err != nil {
		http.Error(w, "error, invalid date range", http.StatusBadRequest)
		return
	}

	workouts, err := handler.repo.ListAll(ctx, params)
	if err != nil {
		log.Errorf("list workouts for user %d: %s", userID, err)
		http.Error(w, "failed to get workouts", http.StatusInternalServerError)
		return
	}

	workoutsJson, err := json.Marshal(workouts)
	if err != nil {
		log.Errorf("marshal workouts: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, workoutsJson, http.StatusOK)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.get")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	workout, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get workout %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	workoutJson, err := json.Marshal(workout)
	if err != nil {
		log.Errorf("marshal workout: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, workoutJson, http.StatusOK)
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.add")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var workout Workout
	if err := json.NewDecoder(r.Body).Decode(&workout); err != nil {
		log.Tracef("add workout, unmarshal json params: %s", err)
		http.Error(w, "add workout failed", http.StatusBadRequest)
		return
	}

	if workout.UserID <= 0 {
		http.Error(w, "error, user id invalid", http.StatusBadRequest)
		return
	}
	if workout.Category != "" && !workout.Category.IsValid() {
		http.Error(w, "error, invalid category", http.StatusBadRequest)
		return
	}
	if !validSets(workout.Exercises) {
		http.Error(w, "error, invalid sets", http.StatusBadRequest)
		return
	}

	addedWorkout, err := handler.repo.Add(ctx, workout)
	if err != nil {
		log.Errorf("add workout for user %d: %s", workout.UserID, err)
		if pkg.IsForeignKeyViolationError(err) {
			http.Error(w, "error, user not found", http.StatusBadRequest)
			return
		}
		http.Error(w, "error, failed to add workout", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterWorkouts.Inc()
	handler.cache.InvalidateUser(ctx, addedWorkout.UserID)

	workoutJson, err := json.Marshal(addedWorkout)
	if err != nil {
		log.Errorf("marshal added workout: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Debugf("workout added for user %d: %d", addedWorkout.UserID, addedWorkout.ID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, workoutJson, http.StatusCreated)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.update")
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

	currentWorkout, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get workout %d for update: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var workout Workout
	if err := json.NewDecoder(r.Body).Decode(&workout); err != nil {
		log.Tracef("update workout, unmarshal json params: %s", err)
		http.Error(w, "update workout failed", http.StatusBadRequest)
		return
	}

	if workout.Category != "" && !workout.Category.IsValid() {
		http.Error(w, "error, invalid category", http.StatusBadRequest)
		return
	}
	if !validSets(workout.Exercises) {
		http.Error(w, "error, invalid sets", http.StatusBadRequest)
		return
	}

	workout.ID = id
	workout.UserID = currentWorkout.UserID
	if workout.Date.IsZero() {
		workout.Date = currentWorkout.Date
	}

	if err := handler.repo.Update(ctx, &workout); err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to update workout %d: %s", id, err)
		http.Error(w, "error, failed to update workout", http.StatusInternalServerError)
		return
	}

	handler.cache.InvalidateUser(ctx, workout.UserID)

	workoutJson, err := json.Marshal(workout)
	if err != nil {
		log.Errorf("marshal updated workout: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Debugf("workout updated for user %d: %d", workout.UserID, workout.ID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, workoutJson, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.delete")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	workout, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get workout %d for delete: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete workout %d: %s", id, err)
		http.Error(w, "error, failed to delete workout", http.StatusInternalServerError)
		return
	}

	handler.cache.InvalidateUser(ctx, workout.UserID)

	deleteRespJson, err := json.Marshal(DeleteWorkoutResponse{
		DeletedID: id,
	})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}

	log.Debugf("workout deleted for user %d: %d", workout.UserID, id)
	pkg.WriteJSONResponseOK(w, string(deleteRespJson))
}

func (handler *Handler) HandleMaxWeights(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.maxWeights")
	defer span.End()

	userID, err := strconv.Atoi(mux.Vars(r)["userId"])
	if err != nil {
		http.Error(w, "error, user id NaN", http.StatusBadRequest)
		return
	}

	params := MaxWeightsParams{
		UserID: userID,
	}
	if exerciseIDParam := r.URL.Query().Get("exerciseId"); exerciseIDParam != "" {
		exerciseID, err := strconv.Atoi(exerciseIDParam)
		if err != nil {
			http.Error(w, "error, exercise id NaN", http.StatusBadRequest)
			return
		}
		params.ExerciseID = &exerciseID
	}
	params.From, params.To, err = dateRangeFromQuery(r)
	if err != nil {
		http.Error(w, "error, invalid date range", http.StatusBadRequest)
		return
	}

	cacheParams := fmt.Sprintf(
		"%s|%s|%s",
		r.URL.Query().Get("exerciseId"),
		r.URL.Query().Get("startDate"),
		r.URL.Query().Get("endDate"),
	)
	if cachedBytes, ok := handler.cache.Get(ctx, userID, maxWeightsCacheKind, cacheParams); ok {
		pkg.WriteResponseBytes(w, pkg.ContentType.JSON, cachedBytes, http.StatusOK)
		return
	}

	maxWeights, err := handler.analyzer.MaxWeights(ctx, params)
	if err != nil {
		if errors.Is(err, ErrInvalidDateRange) {
			http.Error(w, "error, invalid date range", http.StatusBadRequest)
			return
		}
		log.Errorf("max weights for user %d: %s", userID, err)
		http.Error(w, "failed to get max weights", http.StatusInternalServerError)
		return
	}

	maxWeightsJson, err := json.Marshal(maxWeights)
	if err != nil {
		log.Errorf("marshal max weights: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	handler.cache.Set(ctx, userID, maxWeightsCacheKind, cacheParams, maxWeightsJson)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, maxWeightsJson, http.StatusOK)
}

func validSets(entries []ExerciseEntry) bool {
	for _, entry := range entries {
		if entry.ExerciseID <= 0 {
			return false
		}
		for _, set := range entry.Sets {
			if set.SetNumber <= 0 || set.Weight < 0 || set.Reps < 0 {
				return false
			}
		}
	}
	return true
}

func dateRangeFromQuery(r *http.Request) (from, to *time.Time, err error) {
	if startDateParam := r.URL.Query().Get("startDate"); startDateParam != "" {
		startDate, err := time.Parse(dayKeyLayout, startDateParam)
		if err != nil {
			return nil, nil, fmt.Errorf("parse start date: %w", err)
		}
		from = &startDate
	}
	if endDateParam := r.URL.Query().Get("endDate"); endDateParam != "" {
		endDate, err := time.Parse(dayKeyLayout, endDateParam)
		if err != nil {
			return nil, nil, fmt.Errorf("parse end date: %w", err)
		}
		to = &endDate
	}
	return from, to, nil
}
