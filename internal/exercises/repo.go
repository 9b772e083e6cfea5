package exercises

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrExerciseNotFound = errors.New("exercise not found")

type ListParams struct {
	Category    Category
	Subcategory string
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, exercise Exercise) (_ *Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.exercises.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	targetMusclesJson, err := json.Marshal(exercise.TargetMuscles)
	if err != nil {
		return nil, fmt.Errorf("marshal target muscles: %w", err)
	}
	equipmentJson, err := json.Marshal(exercise.Equipment)
	if err != nil {
		return nil, fmt.Errorf("marshal equipment: %w", err)
	}

	if exercise.CreatedAt.IsZero() {
		exercise.CreatedAt = time.Now()
	}

	var id int
	err = r.db.QueryRow(
		ctx,
		`INSERT INTO exercise
				(name, category, subcategory, target_muscles, equipment, difficulty, video_path, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id;`,
		exercise.Name, exercise.Category, exercise.Subcategory,
		targetMusclesJson, equipmentJson,
		exercise.Difficulty, exercise.VideoPath, exercise.CreatedAt,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert exercise: %w", err)
	}

	span.SetAttributes(attribute.Int("exercise.id", id))

	exercise.ID = id
	return &exercise, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.exercises.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, category, subcategory, target_muscles, equipment, difficulty, video_path, created_at
			FROM exercise WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	exercises, err := r.rows2exercises(rows)
	if err != nil {
		return nil, err
	}

	if len(exercises) != 1 {
		return nil, ErrExerciseNotFound
	}

	return &exercises[0], nil
}

// ListAll returns catalog exercises, optionally narrowed by category and subcategory.
func (r *Repo) ListAll(ctx context.Context, params ListParams) (_ []Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.exercises.listall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("category", string(params.Category)))
	span.SetAttributes(attribute.String("subcategory", params.Subcategory))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, category, subcategory, target_muscles, equipment, difficulty, video_path, created_at
			FROM exercise
				WHERE ($1::text = '' OR category = $1)
				AND ($2::text = '' OR subcategory = $2)
			ORDER BY category, subcategory, name;`,
		string(params.Category), params.Subcategory,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	exercises, err := r.rows2exercises(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2exercises: %w", err)
	}
	return exercises, nil
}

func (r *Repo) Update(ctx context.Context, exercise *Exercise) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.exercises.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", exercise.ID))

	targetMusclesJson, err := json.Marshal(exercise.TargetMuscles)
	if err != nil {
		return fmt.Errorf("marshal target muscles: %w", err)
	}
	equipmentJson, err := json.Marshal(exercise.Equipment)
	if err != nil {
		return fmt.Errorf("marshal equipment: %w", err)
	}

	tag, err := r.db.Exec(
		ctx,
		`UPDATE exercise SET
				name = $1, category = $2, subcategory = $3,
				target_muscles = $4, equipment = $5,
				difficulty = $6, video_path = $7
			WHERE id = $8;`,
		exercise.Name, exercise.Category, exercise.Subcategory,
		targetMusclesJson, equipmentJson,
		exercise.Difficulty, exercise.VideoPath, exercise.ID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrExerciseNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.exercises.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM exercise WHERE id = $1;`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExerciseNotFound
	}
	return nil
}

func (r *Repo) rows2exercises(rows pgx.Rows) ([]Exercise, error) {
	var exercises []Exercise
	for rows.Next() {
		var e Exercise
		var targetMusclesBytes []byte
		var equipmentBytes []byte
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Category, &e.Subcategory,
			&targetMusclesBytes, &equipmentBytes,
			&e.Difficulty, &e.VideoPath, &e.CreatedAt,
		); err != nil {
			return nil, err
		}

		if len(targetMusclesBytes) > 0 {
			if err := json.Unmarshal(targetMusclesBytes, &e.TargetMuscles); err != nil {
				return nil, fmt.Errorf("unmarshal target muscles for exercise %d: %w", e.ID, err)
			}
		}
		if len(equipmentBytes) > 0 {
			if err := json.Unmarshal(equipmentBytes, &e.Equipment); err != nil {
				return nil, fmt.Errorf("unmarshal equipment for exercise %d: %w", e.ID, err)
			}
		}
		if e.TargetMuscles == nil {
			e.TargetMuscles = make([]string, 0)
		}
		if e.Equipment == nil {
			e.Equipment = make([]string, 0)
		}

		exercises = append(exercises, e)
	}

	if exercises == nil {
		exercises = make([]Exercise, 0)
	}

	return exercises, nil
}
