package workouts

import (
	"time"

	"github.com/2beens/gymtracker/internal/exercises"
)

type Set struct {
	SetNumber int     `json:"setNumber"`
	Weight    float64 `json:"weight"`
	Reps      int     `json:"reps"`
	Completed bool    `json:"completed"`
}

// ExerciseEntry is one exercise logged within a workout session,
// referencing the catalog exercise by ID.
type ExerciseEntry struct {
	ExerciseID int   `json:"exerciseId"`
	Sets       []Set `json:"sets"`
}

type Workout struct {
	ID        int                `json:"id"`
	UserID    int                `json:"userId"`
	Date      time.Time          `json:"date"`
	Category  exercises.Category `json:"category"`
	Exercises []ExerciseEntry    `json:"exercises"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
