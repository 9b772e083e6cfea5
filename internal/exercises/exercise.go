package exercises

import "time"

type Category string

const (
	CategoryPush   Category = "Push"
	CategoryPull   Category = "Pull"
	CategoryLegs   Category = "Legs"
	CategoryCardio Category = "Cardio"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryPush, CategoryPull, CategoryLegs, CategoryCardio:
		return true
	default:
		return false
	}
}

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "Beginner"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"
)

func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	default:
		return false
	}
}

// Exercise is a catalog entry, shared by all users. Workouts reference
// it by ID and keep a denormalized copy of the name and category.
type Exercise struct {
	ID            int        `json:"id"`
	Name          string     `json:"name"`
	Category      Category   `json:"category"`
	Subcategory   string     `json:"subcategory"`
	TargetMuscles []string   `json:"targetMuscles"`
	Equipment     []string   `json:"equipment"`
	Difficulty    Difficulty `json:"difficulty"`
	VideoPath     string     `json:"videoPath,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}
