package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/2beens/gymtracker/internal/exercises"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) exerciseForm(fields map[string]string, videoName string, video []byte) (*bytes.Buffer, string) {
	var body bytes.Buffer
	formWriter := multipart.NewWriter(&body)
	for key, value := range fields {
		require.NoError(s.T(), formWriter.WriteField(key, value))
	}
	if videoName != "" {
		videoWriter, err := formWriter.CreateFormFile("video", videoName)
		require.NoError(s.T(), err)
		_, err = videoWriter.Write(video)
		require.NoError(s.T(), err)
	}
	require.NoError(s.T(), formWriter.Close())
	return &body, formWriter.FormDataContentType()
}

func (s *IntegrationTestSuite) addExerciseRequest(ctx context.Context, fields map[string]string, videoName string, video []byte) exercises.Exercise {
	body, contentType := s.exerciseForm(fields, videoName, video)

	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/api/exercises", serverEndpoint),
		body,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", contentType)

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusCreated, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)

	var addedExercise exercises.Exercise
	require.NoError(s.T(), json.Unmarshal(respBytes, &addedExercise))
	return addedExercise
}

func (s *IntegrationTestSuite) getExerciseRequest(ctx context.Context, id int) exercises.Exercise {
	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/api/exercises/%d", serverEndpoint, id),
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

	var exercise exercises.Exercise
	require.NoError(s.T(), json.Unmarshal(respBytes, &exercise))
	return exercise
}

func (s *IntegrationTestSuite) listExercisesRequest(ctx context.Context, query string) []exercises.Exercise {
	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/api/exercises%s", serverEndpoint, query),
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

	var listedExercises []exercises.Exercise
	require.NoError(s.T(), json.Unmarshal(respBytes, &listedExercises))
	return listedExercises
}

func (s *IntegrationTestSuite) deleteExerciseRequest(ctx context.Context, id int) exercises.DeleteExerciseResponse {
	req, err := http.NewRequestWithContext(
		ctx,
		"DELETE", fmt.Sprintf("%s/api/exercises/%d", serverEndpoint, id),
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

	var deleteResp exercises.DeleteExerciseResponse
	require.NoError(s.T(), json.Unmarshal(respBytes, &deleteResp))
	return deleteResp
}

func (s *IntegrationTestSuite) TestExercises_Lifecycle() {
	ctx := context.Background()

	addedExercise := s.addExerciseRequest(ctx, map[string]string{
		"name":          "Incline Bench Press",
		"category":      "Push",
		"subcategory":   "Chest",
		"difficulty":    "Intermediate",
		"targetMuscles": `["Upper Chest","Triceps"]`,
		"equipment":     `["Barbell","Incline Bench"]`,
	}, "", nil)
	require.NotZero(s.T(), addedExercise.ID)
	assert.Equal(s.T(), "Incline Bench Press", addedExercise.Name)
	assert.Equal(s.T(), exercises.CategoryPush, addedExercise.Category)
	assert.Equal(s.T(), []string{"Upper Chest", "Triceps"}, addedExercise.TargetMuscles)
	assert.Empty(s.T(), addedExercise.VideoPath)

	gotExercise := s.getExerciseRequest(ctx, addedExercise.ID)
	assert.Equal(s.T(), addedExercise.ID, gotExercise.ID)
	assert.Equal(s.T(), "Chest", gotExercise.Subcategory)

	listedExercises := s.listExercisesRequest(ctx, "?category=Push&subcategory=Chest")
	require.NotEmpty(s.T(), listedExercises)
	found := false
	for _, ex := range listedExercises {
		if ex.ID == addedExercise.ID {
			found = true
		}
		assert.Equal(s.T(), exercises.CategoryPush, ex.Category)
	}
	assert.True(s.T(), found)

	deleteResp := s.deleteExerciseRequest(ctx, addedExercise.ID)
	assert.Equal(s.T(), addedExercise.ID, deleteResp.DeletedID)

	// catalog cache was invalidated, the exercise is gone from the list
	listedExercises = s.listExercisesRequest(ctx, "?category=Push&subcategory=Chest")
	for _, ex := range listedExercises {
		assert.NotEqual(s.T(), addedExercise.ID, ex.ID)
	}
}

func (s *IntegrationTestSuite) TestExercises_VideoUpload() {
	ctx := context.Background()

	videoContent := []byte("not really an mp4, but enough for the disk roundtrip")
	addedExercise := s.addExerciseRequest(ctx, map[string]string{
		"name":     "Cable Crossover",
		"category": "Push",
	}, "cable-crossover.mp4", videoContent)
	require.NotEmpty(s.T(), addedExercise.VideoPath)
	assert.Equal(s.T(), exercises.DifficultyIntermediate, addedExercise.Difficulty)

	// the stored video is served back on its public path
	req, err := http.NewRequestWithContext(
		ctx,
		"GET", serverEndpoint+addedExercise.VideoPath,
		nil,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	servedVideo, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), videoContent, servedVideo)

	deleteResp := s.deleteExerciseRequest(ctx, addedExercise.ID)
	assert.Equal(s.T(), addedExercise.ID, deleteResp.DeletedID)

	// video is removed together with the exercise
	req, err = http.NewRequestWithContext(
		ctx,
		"GET", serverEndpoint+addedExercise.VideoPath,
		nil,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")

	resp, err = s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()
	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestExercises_InvalidCategory() {
	ctx := context.Background()

	body, contentType := s.exerciseForm(map[string]string{
		"name":     "Mystery Machine",
		"category": "Mystery",
	}, "", nil)

	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/api/exercises", serverEndpoint),
		body,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", contentType)

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()
	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
}
