package measurements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrMeasurementNotFound = errors.New("measurement not found")

type ListParams struct {
	UserID int
	From   *time.Time
	To     *time.Time
	Limit  int
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, measurement Measurement) (_ *Measurement, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.measurements.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	now := time.Now()
	if measurement.Date.IsZero() {
		measurement.Date = now
	}
	measurement.CreatedAt = now

	var id int
	err = r.db.QueryRow(
		ctx,
		`INSERT INTO measurement (user_id, date, weight, body_fat, created_at)
				VALUES ($1, $2, $3, $4, $5)
			RETURNING id;`,
		measurement.UserID, measurement.Date, measurement.Weight,
		measurement.BodyFat, measurement.CreatedAt,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert measurement: %w", err)
	}

	span.SetAttributes(attribute.Int("measurement.id", id))

	measurement.ID = id
	return &measurement, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Measurement, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.measurements.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	measurement := &Measurement{}
	err = r.db.QueryRow(
		ctx,
		`SELECT id, user_id, date, weight, body_fat, created_at FROM measurement WHERE id = $1;`,
		id,
	).Scan(
		&measurement.ID, &measurement.UserID, &measurement.Date,
		&measurement.Weight, &measurement.BodyFat, &measurement.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMeasurementNotFound
		}
		return nil, err
	}
	return measurement, nil
}

// ListAll returns measurements of a user, optionally narrowed by date
// range and capped by limit, newest first.
func (r *Repo) ListAll(ctx context.Context, params ListParams) (_ []Measurement, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.measurements.listall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", params.UserID))
	span.SetAttributes(attribute.Int("limit", params.Limit))
	if params.From != nil {
		span.SetAttributes(attribute.String("from", params.From.String()))
	}
	if params.To != nil {
		span.SetAttributes(attribute.String("to", params.To.String()))
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, date, weight, body_fat, created_at
			FROM measurement
				WHERE user_id = $1
				AND ($2::timestamp IS NULL OR date >= $2)
				AND ($3::timestamp IS NULL OR date <= $3)
			ORDER BY date DESC
			LIMIT NULLIF($4::int, 0);`,
		params.UserID, params.From, params.To, params.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	measurements := make([]Measurement, 0)
	for rows.Next() {
		var m Measurement
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.Date, &m.Weight, &m.BodyFat, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		measurements = append(measurements, m)
	}

	return measurements, nil
}

func (r *Repo) Update(ctx context.Context, measurement *Measurement) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.measurements.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", measurement.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE measurement SET date = $1, weight = $2, body_fat = $3 WHERE id = $4;`,
		measurement.Date, measurement.Weight, measurement.BodyFat, measurement.ID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrMeasurementNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.measurements.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM measurement WHERE id = $1;`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMeasurementNotFound
	}
	return nil
}
