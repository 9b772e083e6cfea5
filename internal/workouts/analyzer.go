package workouts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/2beens/gymtracker/internal/exercises"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

const dayKeyLayout = "2006-01-02"

var (
	ErrInvalidDateRange = errors.New("invalid date range")
	// ErrUnknownExercise means a workout references an exercise that is
	// missing from the catalog. Should not happen, but when it does the
	// series must not silently lose the group.
	ErrUnknownExercise = errors.New("unknown exercise referenced by workout")
)

// ExerciseSummary is the catalog metadata attached to a max weights group.
type ExerciseSummary struct {
	ID          int                `json:"id"`
	Name        string             `json:"name"`
	Category    exercises.Category `json:"category"`
	Subcategory string             `json:"subcategory"`
}

type WeightPoint struct {
	Date   string  `json:"date"`
	Weight float64 `json:"weight"`
}

// ExerciseMaxWeights is one charting series: for a single exercise, the
// max logged weight per day, ascending by day.
type ExerciseMaxWeights struct {
	Exercise   ExerciseSummary `json:"exercise"`
	WeightData []WeightPoint   `json:"weightData"`
}

type MaxWeightsParams struct {
	UserID     int
	ExerciseID *int
	From       *time.Time
	To         *time.Time
}

type Analyzer struct {
	repo            workoutsRepo
	exerciseCatalog exercisesLister
}

func NewAnalyzer(repo workoutsRepo, exerciseCatalog exercisesLister) *Analyzer {
	return &Analyzer{
		repo:            repo,
		exerciseCatalog: exerciseCatalog,
	}
}

// MaxWeights computes the per-exercise max weight per day series for a user.
// Days without sets produce no point. Ties on the same day collapse into one
// point carrying the max.
func (a *Analyzer) MaxWeights(ctx context.Context, params MaxWeightsParams) (_ []ExerciseMaxWeights, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.workouts.maxWeights")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", params.UserID))

	if params.From != nil && params.To != nil && params.To.Before(*params.From) {
		return nil, ErrInvalidDateRange
	}

	workouts, err := a.repo.ListAll(ctx, ListParams{
		UserID: params.UserID,
		From:   params.From,
		To:     params.To,
	})
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}

	// group to (exercise, day) -> max weight
	exercise2dayMax := make(map[int]map[string]float64)
	for _, workout := range workouts {
		day := workout.Date.Format(dayKeyLayout)
		for _, entry := range workout.Exercises {
			if params.ExerciseID != nil && entry.ExerciseID != *params.ExerciseID {
				continue
			}
			for _, set := range entry.Sets {
				dayMax, ok := exercise2dayMax[entry.ExerciseID]
				if !ok {
					dayMax = make(map[string]float64)
					exercise2dayMax[entry.ExerciseID] = dayMax
				}
				if maxWeight, ok := dayMax[day]; !ok || set.Weight > maxWeight {
					dayMax[day] = set.Weight
				}
			}
		}
	}

	if len(exercise2dayMax) == 0 {
		return []ExerciseMaxWeights{}, nil
	}

	exerciseSummaries, err := a.exerciseSummaries(ctx, exercise2dayMax)
	if err != nil {
		return nil, err
	}

	maxWeights := make([]ExerciseMaxWeights, 0, len(exercise2dayMax))
	for exerciseID, dayMax := range exercise2dayMax {
		days := make([]string, 0, len(dayMax))
		for day := range dayMax {
			days = append(days, day)
		}
		sort.Strings(days)

		weightData := make([]WeightPoint, 0, len(days))
		for _, day := range days {
			weightData = append(weightData, WeightPoint{
				Date:   day,
				Weight: dayMax[day],
			})
		}

		maxWeights = append(maxWeights, ExerciseMaxWeights{
			Exercise:   exerciseSummaries[exerciseID],
			WeightData: weightData,
		})
	}

	sort.Slice(maxWeights, func(i, j int) bool {
		return maxWeights[i].Exercise.ID < maxWeights[j].Exercise.ID
	})

	return maxWeights, nil
}

func (a *Analyzer) exerciseSummaries(
	ctx context.Context,
	exercise2dayMax map[int]map[string]float64,
) (map[int]ExerciseSummary, error) {
	catalogExercises, err := a.exerciseCatalog.ListAll(ctx, exercises.ListParams{})
	if err != nil {
		return nil, fmt.Errorf("list catalog exercises: %w", err)
	}

	id2exercise := make(map[int]exercises.Exercise, len(catalogExercises))
	for _, e := range catalogExercises {
		id2exercise[e.ID] = e
	}

	summaries := make(map[int]ExerciseSummary, len(exercise2dayMax))
	for exerciseID := range exercise2dayMax {
		e, ok := id2exercise[exerciseID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownExercise, exerciseID)
		}
		summaries[exerciseID] = ExerciseSummary{
			ID:          e.ID,
			Name:        e.Name,
			Category:    e.Category,
			Subcategory: e.Subcategory,
		}
	}

	return summaries, nil
}
