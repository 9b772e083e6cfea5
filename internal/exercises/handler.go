package exercises

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strconv"

	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/videostore"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=exercises_mocks_test.go -package=exercises_test

// VideoURLPrefix is where stored exercise videos are served from.
const VideoURLPrefix = "/uploads/videos/"

type exercisesRepo interface {
	Add(ctx context.Context, exercise Exercise) (*Exercise, error)
	Get(ctx context.Context, id int) (*Exercise, error)
	Update(ctx context.Context, exercise *Exercise) error
	Delete(ctx context.Context, id int) error
}

type exercisesCatalog interface {
	ListAll(ctx context.Context, params ListParams) ([]Exercise, error)
	Invalidate()
}

type videoStore interface {
	Save(ctx context.Context, params videostore.SaveVideoParams) (string, error)
	Delete(ctx context.Context, storedName string) error
}

type DeleteExerciseResponse struct {
	DeletedID int `json:"deletedId"`
}

type Handler struct {
	repo    exercisesRepo
	catalog exercisesCatalog
	videos  videoStore
	metrics *metrics.Manager
}

func NewHandler(
	repo exercisesRepo,
	catalog exercisesCatalog,
	videos videoStore,
	metrics *metrics.Manager,
) *Handler {
	return &Handler{
		repo:    repo,
		catalog: catalog,
		videos:  videos,
		metrics: metrics,
	}
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.list")
	defer span.End()

	params := ListParams{
		Category:    Category(r.URL.Query().Get("category")),
		Subcategory: r.URL.Query().Get("subcategory"),
	}
	if params.Category != "" && !params.Category.IsValid() {
		http.Error(w, "error, invalid category", http.StatusBadRequest)
		return
	}

	exercises, err := handler.catalog.ListAll(ctx, params)
	if err != nil {
		log.Errorf("list exercises: %s", err)
		http.Error(w, "failed to get exercises", http.StatusInternalServerError)
		return
	}

	exercisesJson, err := json.Marshal(exercises)
	if err != nil {
		log.Errorf("marshal exercises: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, exercisesJson, http.StatusOK)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.get")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	exercise, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrExerciseNotFound) {
			http.Error(w, "exercise not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get exercise %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	exerciseJson, err := json.Marshal(exercise)
	if err != nil {
		log.Errorf("marshal exercise: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, exerciseJson, http.StatusOK)
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.add")
	defer span.End()

	exercise, ok := handler.exerciseFromForm(w, r)
	if !ok {
		return
	}

	videoPath, ok := handler.saveVideoFromForm(ctx, w, r)
	if !ok {
		return
	}
	exercise.VideoPath = videoPath

	addedExercise, err := handler.repo.Add(ctx, *exercise)
	if err != nil {
		log.Errorf("add exercise: %s", err)
		handler.removeVideo(ctx, exercise.VideoPath)
		if pkg.IsUniqueViolationError(err) {
			http.Error(w, "error, exercise already exists", http.StatusConflict)
			return
		}
		http.Error(w, "error, failed to add exercise", http.StatusInternalServerError)
		return
	}

	handler.catalog.Invalidate()

	exerciseJson, err := json.Marshal(addedExercise)
	if err != nil {
		log.Errorf("marshal added exercise: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Debugf("exercise added: [%s] %s", addedExercise.Category, addedExercise.Name)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, exerciseJson, http.StatusCreated)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.update")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	currentExercise, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrExerciseNotFound) {
			http.Error(w, "exercise not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get exercise %d for update: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	exercise, ok := handler.exerciseFromForm(w, r)
	if !ok {
		return
	}
	exercise.ID = id
	exercise.VideoPath = currentExercise.VideoPath
	exercise.CreatedAt = currentExercise.CreatedAt

	newVideoPath, ok := handler.saveVideoFromForm(ctx, w, r)
	if !ok {
		return
	}
	if newVideoPath != "" {
		exercise.VideoPath = newVideoPath
	}

	if err := handler.repo.Update(ctx, exercise); err != nil {
		if newVideoPath != "" {
			handler.removeVideo(ctx, newVideoPath)
		}
		if errors.Is(err, ErrExerciseNotFound) {
			http.Error(w, "exercise not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to update exercise %d: %s", id, err)
		http.Error(w, "error, failed to update exercise", http.StatusInternalServerError)
		return
	}

	// new video saved, replace the old one
	if newVideoPath != "" && currentExercise.VideoPath != "" {
		handler.removeVideo(ctx, currentExercise.VideoPath)
	}

	handler.catalog.Invalidate()

	exerciseJson, err := json.Marshal(exercise)
	if err != nil {
		log.Errorf("marshal updated exercise: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Debugf("exercise updated: [%s]: %d", exercise.Name, exercise.ID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, exerciseJson, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.delete")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	exercise, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrExerciseNotFound) {
			http.Error(w, "exercise not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get exercise %d for delete: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrExerciseNotFound) {
			http.Error(w, "exercise not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete exercise %d: %s", id, err)
		http.Error(w, "error, failed to delete exercise", http.StatusInternalServerError)
		return
	}

	handler.removeVideo(ctx, exercise.VideoPath)
	handler.catalog.Invalidate()

	deleteRespJson, err := json.Marshal(DeleteExerciseResponse{
		DeletedID: id,
	})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}

	log.Debugf("exercise deleted: [%s]: %d", exercise.Name, exercise.ID)
	pkg.WriteJSONResponseOK(w, string(deleteRespJson))
}

// exerciseFromForm reads exercise fields from the multipart form. Writes
// the error response and returns ok=false when the input is invalid.
func (handler *Handler) exerciseFromForm(w http.ResponseWriter, r *http.Request) (*Exercise, bool) {
	if err := r.ParseMultipartForm(videostore.MaxVideoSize); err != nil {
		log.Errorf("exercise from form, parse multipart form: %s", err)
		http.Error(w, "parse form error or video too big", http.StatusBadRequest)
		return nil, false
	}

	exercise := &Exercise{
		Name:        r.FormValue("name"),
		Category:    Category(r.FormValue("category")),
		Subcategory: r.FormValue("subcategory"),
		Difficulty:  Difficulty(r.FormValue("difficulty")),
	}

	if exercise.Name == "" {
		http.Error(w, "error, exercise name empty", http.StatusBadRequest)
		return nil, false
	}
	if !exercise.Category.IsValid() {
		http.Error(w, "error, invalid category", http.StatusBadRequest)
		return nil, false
	}
	if exercise.Difficulty == "" {
		exercise.Difficulty = DifficultyIntermediate
	}
	if !exercise.Difficulty.IsValid() {
		http.Error(w, "error, invalid difficulty", http.StatusBadRequest)
		return nil, false
	}

	if targetMusclesParam := r.FormValue("targetMuscles"); targetMusclesParam != "" {
		if err := json.Unmarshal([]byte(targetMusclesParam), &exercise.TargetMuscles); err != nil {
			http.Error(w, "error, invalid target muscles", http.StatusBadRequest)
			return nil, false
		}
	}
	if equipmentParam := r.FormValue("equipment"); equipmentParam != "" {
		if err := json.Unmarshal([]byte(equipmentParam), &exercise.Equipment); err != nil {
			http.Error(w, "error, invalid equipment", http.StatusBadRequest)
			return nil, false
		}
	}

	return exercise, true
}

// saveVideoFromForm stores the optional "video" form file and returns its
// public path. Writes the error response and returns ok=false on failure.
func (handler *Handler) saveVideoFromForm(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	video, videoHeader, err := r.FormFile("video")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", true
		}
		log.Errorf("save video, form file: %s", err)
		http.Error(w, "error, failed to read video", http.StatusBadRequest)
		return "", false
	}
	defer video.Close()

	storedName, err := handler.videos.Save(ctx, videostore.SaveVideoParams{
		Filename: videoHeader.Filename,
		Size:     videoHeader.Size,
		Video:    video,
	})
	if err != nil {
		log.Errorf("save video [%s]: %s", videoHeader.Filename, err)
		switch {
		case errors.Is(err, videostore.ErrInvalidVideoType):
			http.Error(w, "error, invalid video type", http.StatusBadRequest)
		case errors.Is(err, videostore.ErrVideoTooLarge):
			http.Error(w, "error, video too large", http.StatusRequestEntityTooLarge)
		default:
			http.Error(w, "error, failed to save video", http.StatusInternalServerError)
		}
		return "", false
	}

	handler.metrics.CounterVideoUploads.Inc()
	return VideoURLPrefix + storedName, true
}

func (handler *Handler) removeVideo(ctx context.Context, videoPath string) {
	if videoPath == "" {
		return
	}
	storedName := path.Base(videoPath)
	if err := handler.videos.Delete(ctx, storedName); err != nil {
		log.Errorf("failed to remove video %s: %s", storedName, err)
	}
}
