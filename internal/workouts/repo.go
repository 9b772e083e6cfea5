package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/exercises"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrWorkoutNotFound = errors.New("workout not found")

type ListParams struct {
	UserID   int
	Category exercises.Category
	From     *time.Time
	To       *time.Time
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, workout Workout) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	exercisesJson, err := json.Marshal(workout.Exercises)
	if err != nil {
		return nil, fmt.Errorf("marshal exercises: %w", err)
	}

	now := time.Now()
	if workout.Date.IsZero() {
		workout.Date = now
	}
	workout.CreatedAt = now
	workout.UpdatedAt = now

	var id int
	err = r.db.QueryRow(
		ctx,
		`INSERT INTO workout (user_id, date, category, exercises, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id;`,
		workout.UserID, workout.Date, workout.Category, exercisesJson,
		workout.CreatedAt, workout.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert workout: %w", err)
	}

	span.SetAttributes(attribute.Int("workout.id", id))

	workout.ID = id
	return &workout, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, date, category, exercises, created_at, updated_at
			FROM workout WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	workouts, err := r.rows2workouts(rows)
	if err != nil {
		return nil, err
	}

	if len(workouts) != 1 {
		return nil, ErrWorkoutNotFound
	}

	return &workouts[0], nil
}

// ListAll returns all workouts of a user, optionally narrowed by
// category and date range, newest first.
func (r *Repo) ListAll(ctx context.Context, params ListParams) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.listall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", params.UserID))
	span.SetAttributes(attribute.String("category", string(params.Category)))
	if params.From != nil {
		span.SetAttributes(attribute.String("from", params.From.String()))
	}
	if params.To != nil {
		span.SetAttributes(attribute.String("to", params.To.String()))
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, date, category, exercises, created_at, updated_at
			FROM workout
				WHERE user_id = $1
				AND ($2::text = '' OR category = $2)
				AND ($3::timestamp IS NULL OR date >= $3)
				AND ($4::timestamp IS NULL OR date <= $4)
			ORDER BY date DESC;`,
		params.UserID, string(params.Category), params.From, params.To,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	workouts, err := r.rows2workouts(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2workouts: %w", err)
	}
	return workouts, nil
}

func (r *Repo) Update(ctx context.Context, workout *Workout) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", workout.ID))

	exercisesJson, err := json.Marshal(workout.Exercises)
	if err != nil {
		return fmt.Errorf("marshal exercises: %w", err)
	}

	workout.UpdatedAt = time.Now()

	tag, err := r.db.Exec(
		ctx,
		`UPDATE workout SET date = $1, category = $2, exercises = $3, updated_at = $4 WHERE id = $5;`,
		workout.Date, workout.Category, exercisesJson, workout.UpdatedAt, workout.ID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM workout WHERE id = $1;`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}
	return nil
}

func (r *Repo) rows2workouts(rows pgx.Rows) ([]Workout, error) {
	var workouts []Workout
	for rows.Next() {
		var w Workout
		var exercisesBytes []byte
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.Date, &w.Category,
			&exercisesBytes, &w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, err
		}

		if len(exercisesBytes) > 0 {
			if err := json.Unmarshal(exercisesBytes, &w.Exercises); err != nil {
				return nil, fmt.Errorf("unmarshal exercises for workout %d: %w", w.ID, err)
			}
		}
		if w.Exercises == nil {
			w.Exercises = make([]ExerciseEntry, 0)
		}

		workouts = append(workouts, w)
	}

	if workouts == nil {
		workouts = make([]Workout, 0)
	}

	return workouts, nil
}
