package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/2beens/gymtracker/internal/config"
	"github.com/2beens/gymtracker/internal/db"
	"github.com/2beens/gymtracker/internal/exercises"
	"github.com/2beens/gymtracker/internal/users"
	"github.com/2beens/gymtracker/pkg"

	log "github.com/sirupsen/logrus"
)

// Fills the database with the two profiles and the exercise library.
// Safe to run repeatedly, already present rows are skipped.
func main() {
	fmt.Println("seeding ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost: cfg.PostgresHost,
		DBPort: cfg.PostgresPort,
		DBName: cfg.PostgresDBName,
	})
	if err != nil {
		log.Fatalf("new db pool: %s", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatalf("ping db: %s", err)
	}

	usersRepo := users.NewRepo(dbPool)
	for _, user := range seedUsers() {
		addedUser, err := usersRepo.Add(ctx, user)
		if err != nil {
			if pkg.IsUniqueViolationError(err) {
				log.Printf("user [%s] already present, skipping", user.Name)
				continue
			}
			log.Fatalf("add user [%s]: %s", user.Name, err)
		}
		log.Printf("user [%s] added: %d", addedUser.Name, addedUser.ID)
	}

	exercisesRepo := exercises.NewRepo(dbPool)
	for _, ex := range seedExercises() {
		addedExercise, err := exercisesRepo.Add(ctx, ex)
		if err != nil {
			if pkg.IsUniqueViolationError(err) {
				log.Printf("exercise [%s] already present, skipping", ex.Name)
				continue
			}
			log.Fatalf("add exercise [%s]: %s", ex.Name, err)
		}
		log.Printf("exercise [%s / %s] added: %d", addedExercise.Category, addedExercise.Name, addedExercise.ID)
	}

	fmt.Println("seeding done")
}

func seedUsers() []users.User {
	return []users.User{
		{Name: "Adithya", ProfileImage: "/images/adithya.jpg"},
		{Name: "Harsha", ProfileImage: "/images/harsha.jpg"},
	}
}

func seedExercises() []exercises.Exercise {
	exercise := func(
		name string,
		category exercises.Category,
		subcategory string,
		difficulty exercises.Difficulty,
		targetMuscles []string,
		equipment []string,
	) exercises.Exercise {
		return exercises.Exercise{
			Name:          name,
			Category:      category,
			Subcategory:   subcategory,
			Difficulty:    difficulty,
			TargetMuscles: targetMuscles,
			Equipment:     equipment,
		}
	}

	push := exercises.CategoryPush
	pull := exercises.CategoryPull
	legs := exercises.CategoryLegs
	cardio := exercises.CategoryCardio
	beginner := exercises.DifficultyBeginner
	intermediate := exercises.DifficultyIntermediate
	advanced := exercises.DifficultyAdvanced

	return []exercises.Exercise{
		// push
		exercise("Incline Dumbell Press", push, "Chest", intermediate,
			[]string{"Upper Chest", "Shoulders", "Triceps"}, []string{"Dumbbells", "Incline Bench"}),
		exercise("Chest Fly Machine", push, "Chest", beginner,
			[]string{"Chest", "Shoulders"}, []string{"Fly Machine"}),
		exercise("Chest Press", push, "Chest", beginner,
			[]string{"Chest", "Shoulders", "Triceps"}, []string{"Chest Press Machine"}),
		exercise("Shoulder Raises Machine", push, "Shoulders", intermediate,
			[]string{"Shoulders", "Trapezius"}, []string{"Shoulder Press Machine"}),
		exercise("Shoulder Lateral Raises Machine", push, "Shoulders", intermediate,
			[]string{"Lateral Deltoids"}, []string{"Lateral Raise Machine"}),
		exercise("Tricep Overhead Extensions", push, "Triceps", intermediate,
			[]string{"Triceps"}, []string{"Dumbbells", "Cable Machine"}),
		exercise("Tricep Pull Downs", push, "Triceps", beginner,
			[]string{"Triceps"}, []string{"Cable Machine"}),

		// pull
		exercise("Pull-ups", pull, "Back", advanced,
			[]string{"Lats", "Biceps", "Upper Back"}, []string{"Pull-up Bar"}),
		exercise("Lat Pulldowns", pull, "Back", beginner,
			[]string{"Lats", "Biceps"}, []string{"Lat Pulldown Machine"}),
		exercise("Dumbell Rows", pull, "Back", intermediate,
			[]string{"Middle Back", "Lats", "Biceps"}, []string{"Dumbbells", "Bench"}),
		exercise("Chest Supported Cable Rows", pull, "Back", intermediate,
			[]string{"Middle Back", "Lats", "Rear Deltoids"}, []string{"Cable Machine", "Bench"}),
		exercise("Bicep Preacher Curls", pull, "Biceps", intermediate,
			[]string{"Biceps"}, []string{"Preacher Curl Bench", "Barbell or EZ Bar"}),
		exercise("Hammer Curls", pull, "Biceps", beginner,
			[]string{"Biceps", "Forearms"}, []string{"Dumbbells"}),
		exercise("Face Pulls", pull, "Rear Delts", intermediate,
			[]string{"Rear Deltoids", "Trapezius", "Rotator Cuff"}, []string{"Cable Machine", "Rope Attachment"}),
		exercise("Reverse Flyes", pull, "Rear Delts", beginner,
			[]string{"Rear Deltoids", "Upper Back"}, []string{"Dumbbells", "Reverse Fly Machine"}),

		// legs
		exercise("Squats", legs, "Quads", intermediate,
			[]string{"Quadriceps", "Glutes", "Hamstrings", "Core"}, []string{"Barbell", "Squat Rack"}),
		exercise("Leg Press", legs, "Quads", beginner,
			[]string{"Quadriceps", "Glutes", "Hamstrings"}, []string{"Leg Press Machine"}),
		exercise("Leg Extensions", legs, "Quads", beginner,
			[]string{"Quadriceps"}, []string{"Leg Extension Machine"}),
		exercise("Lunges", legs, "Quads", intermediate,
			[]string{"Quadriceps", "Glutes", "Hamstrings", "Core"}, []string{"Dumbbells", "Bodyweight"}),
		exercise("Goblet Squats", legs, "Quads", beginner,
			[]string{"Quadriceps", "Glutes", "Core"}, []string{"Kettlebell", "Dumbbell"}),
		exercise("Romanian Deadlift", legs, "Hamstrings", intermediate,
			[]string{"Hamstrings", "Glutes", "Lower Back"}, []string{"Barbell", "Dumbbells"}),
		exercise("Leg Curls", legs, "Hamstrings", beginner,
			[]string{"Hamstrings"}, []string{"Leg Curl Machine"}),
		exercise("Standing Calf Raises", legs, "Calves", beginner,
			[]string{"Calves"}, []string{"Calf Raise Machine", "Smith Machine"}),

		// cardio
		exercise("Treadmill", cardio, "Indoor", beginner,
			[]string{"Heart", "Legs", "Core"}, []string{"Treadmill"}),
		exercise("Elliptical", cardio, "Indoor", beginner,
			[]string{"Heart", "Full Body"}, []string{"Elliptical Machine"}),
		exercise("Stationary Bike", cardio, "Indoor", beginner,
			[]string{"Heart", "Legs"}, []string{"Stationary Bike"}),
		exercise("Burpees", cardio, "HIIT", advanced,
			[]string{"Full Body", "Heart"}, []string{"Bodyweight"}),
		exercise("Jumping Jacks", cardio, "HIIT", beginner,
			[]string{"Heart", "Shoulders", "Legs"}, []string{"Bodyweight"}),
		exercise("Skips", cardio, "HIIT", intermediate,
			[]string{"Heart", "Legs", "Calves"}, []string{"Jump Rope"}),
	}
}
