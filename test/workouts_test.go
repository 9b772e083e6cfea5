package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/2beens/gymtracker/internal/workouts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) addWorkoutRequest(ctx context.Context, workout workouts.Workout) workouts.Workout {
	workoutJson, err := json.Marshal(workout)
	require.NoError(s.T(), err)

	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/api/workouts", serverEndpoint),
		bytes.NewReader(workoutJson),
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusCreated, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)

	var addedWorkout workouts.Workout
	require.NoError(s.T(), json.Unmarshal(respBytes, &addedWorkout))
	return addedWorkout
}

func (s *IntegrationTestSuite) listWorkoutsRequest(ctx context.Context, userID int, query string) []workouts.Workout {
	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/api/workouts/user/%d%s", serverEndpoint, userID, query),
		nil,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)

	var listedWorkouts []workouts.Workout
	require.NoError(s.T(), json.Unmarshal(respBytes, &listedWorkouts))
	return listedWorkouts
}

func (s *IntegrationTestSuite) maxWeightsRequest(ctx context.Context, userID int, query string) []workouts.ExerciseMaxWeights {
	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/api/workouts/user/%d/max-weights%s", serverEndpoint, userID, query),
		nil,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)

	var maxWeights []workouts.ExerciseMaxWeights
	require.NoError(s.T(), json.Unmarshal(respBytes, &maxWeights))
	return maxWeights
}

func (s *IntegrationTestSuite) deleteWorkoutRequest(ctx context.Context, id int) workouts.DeleteWorkoutResponse {
	req, err := http.NewRequestWithContext(
		ctx,
		"DELETE", fmt.Sprintf("%s/api/workouts/%d", serverEndpoint, id),
		nil,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)

	var deleteResp workouts.DeleteWorkoutResponse
	require.NoError(s.T(), json.Unmarshal(respBytes, &deleteResp))
	return deleteResp
}

func (s *IntegrationTestSuite) TestWorkouts_AddAndList() {
	ctx := context.Background()

	addedExercise := s.addExerciseRequest(ctx, map[string]string{
		"name":     "Overhead Press",
		"category": "Push",
	}, "", nil)

	addedWorkout := s.addWorkoutRequest(ctx, workouts.Workout{
		UserID:   1,
		Date:     time.Date(2024, 3, 5, 18, 0, 0, 0, time.UTC),
		Category: "Push",
		Exercises: []workouts.ExerciseEntry{
			{
				ExerciseID: addedExercise.ID,
				Sets: []workouts.Set{
					{SetNumber: 1, Weight: 40, Reps: 10, Completed: true},
					{SetNumber: 2, Weight: 45, Reps: 8, Completed: true},
				},
			},
		},
	})
	require.NotZero(s.T(), addedWorkout.ID)
	assert.Equal(s.T(), 1, addedWorkout.UserID)
	require.Len(s.T(), addedWorkout.Exercises, 1)
	assert.Len(s.T(), addedWorkout.Exercises[0].Sets, 2)

	listedWorkouts := s.listWorkoutsRequest(ctx, 1, "?category=Push")
	require.NotEmpty(s.T(), listedWorkouts)
	found := false
	for _, w := range listedWorkouts {
		if w.ID == addedWorkout.ID {
			found = true
		}
	}
	assert.True(s.T(), found)

	// other user sees nothing of it
	for _, w := range s.listWorkoutsRequest(ctx, 2, "") {
		assert.NotEqual(s.T(), addedWorkout.ID, w.ID)
	}

	deleteResp := s.deleteWorkoutRequest(ctx, addedWorkout.ID)
	assert.Equal(s.T(), addedWorkout.ID, deleteResp.DeletedID)

	deleteExResp := s.deleteExerciseRequest(ctx, addedExercise.ID)
	assert.Equal(s.T(), addedExercise.ID, deleteExResp.DeletedID)
}

func (s *IntegrationTestSuite) TestWorkouts_MaxWeights() {
	ctx := context.Background()

	addedExercise := s.addExerciseRequest(ctx, map[string]string{
		"name":        "Deadlift",
		"category":    "Legs",
		"subcategory": "Hamstrings",
	}, "", nil)

	day1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	workout1 := s.addWorkoutRequest(ctx, workouts.Workout{
		UserID:   2,
		Date:     day1,
		Category: "Legs",
		Exercises: []workouts.ExerciseEntry{
			{
				ExerciseID: addedExercise.ID,
				Sets: []workouts.Set{
					{SetNumber: 1, Weight: 100, Reps: 5, Completed: true},
					{SetNumber: 2, Weight: 110, Reps: 3, Completed: true},
				},
			},
		},
	})
	workout2 := s.addWorkoutRequest(ctx, workouts.Workout{
		UserID:   2,
		Date:     day2,
		Category: "Legs",
		Exercises: []workouts.ExerciseEntry{
			{
				ExerciseID: addedExercise.ID,
				Sets: []workouts.Set{
					{SetNumber: 1, Weight: 105, Reps: 5, Completed: true},
				},
			},
		},
	})

	maxWeights := s.maxWeightsRequest(ctx, 2, fmt.Sprintf("?exerciseId=%d", addedExercise.ID))
	require.Len(s.T(), maxWeights, 1)

	series := maxWeights[0]
	assert.Equal(s.T(), addedExercise.ID, series.Exercise.ID)
	assert.Equal(s.T(), "Deadlift", series.Exercise.Name)
	require.Len(s.T(), series.WeightData, 2)
	assert.Equal(s.T(), workouts.WeightPoint{Date: "2024-01-01", Weight: 110}, series.WeightData[0])
	assert.Equal(s.T(), workouts.WeightPoint{Date: "2024-01-02", Weight: 105}, series.WeightData[1])

	// second call comes from the stats cache, same payload
	cachedMaxWeights := s.maxWeightsRequest(ctx, 2, fmt.Sprintf("?exerciseId=%d", addedExercise.ID))
	assert.Equal(s.T(), maxWeights, cachedMaxWeights)

	// adding a heavier session invalidates the cached series
	workout3 := s.addWorkoutRequest(ctx, workouts.Workout{
		UserID:   2,
		Date:     day2,
		Category: "Legs",
		Exercises: []workouts.ExerciseEntry{
			{
				ExerciseID: addedExercise.ID,
				Sets: []workouts.Set{
					{SetNumber: 1, Weight: 120, Reps: 1, Completed: true},
				},
			},
		},
	})

	maxWeights = s.maxWeightsRequest(ctx, 2, fmt.Sprintf("?exerciseId=%d", addedExercise.ID))
	require.Len(s.T(), maxWeights, 1)
	require.Len(s.T(), maxWeights[0].WeightData, 2)
	assert.Equal(s.T(), workouts.WeightPoint{Date: "2024-01-02", Weight: 120}, maxWeights[0].WeightData[1])

	for _, workoutID := range []int{workout1.ID, workout2.ID, workout3.ID} {
		deleteResp := s.deleteWorkoutRequest(ctx, workoutID)
		assert.Equal(s.T(), workoutID, deleteResp.DeletedID)
	}
	deleteExResp := s.deleteExerciseRequest(ctx, addedExercise.ID)
	assert.Equal(s.T(), addedExercise.ID, deleteExResp.DeletedID)
}

func (s *IntegrationTestSuite) TestWorkouts_UnknownUser() {
	ctx := context.Background()

	workoutJson, err := json.Marshal(workouts.Workout{
		UserID:   777,
		Category: "Push",
	})
	require.NoError(s.T(), err)

	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/api/workouts", serverEndpoint),
		bytes.NewReader(workoutJson),
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()
	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
}
