package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/2beens/gymtracker/internal/measurements"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) addMeasurementRequest(ctx context.Context, measurement measurements.Measurement) measurements.Measurement {
	measurementJson, err := json.Marshal(measurement)
	require.NoError(s.T(), err)

	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/api/measurements", serverEndpoint),
		bytes.NewReader(measurementJson),
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

	var addedMeasurement measurements.Measurement
	require.NoError(s.T(), json.Unmarshal(respBytes, &addedMeasurement))
	return addedMeasurement
}

func (s *IntegrationTestSuite) listMeasurementsRequest(ctx context.Context, userID int, query string) []measurements.Measurement {
	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/api/measurements/user/%d%s", serverEndpoint, userID, query),
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

	var listedMeasurements []measurements.Measurement
	require.NoError(s.T(), json.Unmarshal(respBytes, &listedMeasurements))
	return listedMeasurements
}

func (s *IntegrationTestSuite) measurementStatsRequest(ctx context.Context, userID int, period string) []measurements.BucketStats {
	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/api/measurements/user/%d/stats?period=%s", serverEndpoint, userID, period),
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

	var stats []measurements.BucketStats
	require.NoError(s.T(), json.Unmarshal(respBytes, &stats))
	return stats
}

func (s *IntegrationTestSuite) deleteMeasurementRequest(ctx context.Context, id int) measurements.DeleteMeasurementResponse {
	req, err := http.NewRequestWithContext(
		ctx,
		"DELETE", fmt.Sprintf("%s/api/measurements/%d", serverEndpoint, id),
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

	var deleteResp measurements.DeleteMeasurementResponse
	require.NoError(s.T(), json.Unmarshal(respBytes, &deleteResp))
	return deleteResp
}

func (s *IntegrationTestSuite) TestMeasurements_AddListStats() {
	ctx := context.Background()

	bodyFat := 18.0
	day1 := time.Now().UTC().AddDate(0, 0, -1).Truncate(time.Second)
	day2 := time.Now().UTC().AddDate(0, 0, -2).Truncate(time.Second)

	measurement1 := s.addMeasurementRequest(ctx, measurements.Measurement{
		UserID:  1,
		Date:    day1,
		Weight:  80,
		BodyFat: &bodyFat,
	})
	require.NotZero(s.T(), measurement1.ID)
	measurement2 := s.addMeasurementRequest(ctx, measurements.Measurement{
		UserID: 1,
		Date:   day2,
		Weight: 82,
	})

	listedMeasurements := s.listMeasurementsRequest(ctx, 1, "?limit=10")
	require.Len(s.T(), listedMeasurements, 2)
	// newest first
	assert.Equal(s.T(), measurement1.ID, listedMeasurements[0].ID)
	assert.Equal(s.T(), measurement2.ID, listedMeasurements[1].ID)

	stats := s.measurementStatsRequest(ctx, 1, "weekly")
	require.Len(s.T(), stats, 2)
	assert.Equal(s.T(), day2.Format("2006-01-02"), stats[0].BucketKey)
	assert.Equal(s.T(), day1.Format("2006-01-02"), stats[1].BucketKey)

	assert.Equal(s.T(), 82.0, stats[0].AvgWeight)
	assert.Nil(s.T(), stats[0].AvgBodyFat)

	assert.Equal(s.T(), 80.0, stats[1].AvgWeight)
	require.NotNil(s.T(), stats[1].AvgBodyFat)
	assert.Equal(s.T(), 18.0, *stats[1].AvgBodyFat)

	// cached response matches
	cachedStats := s.measurementStatsRequest(ctx, 1, "weekly")
	assert.Equal(s.T(), stats, cachedStats)

	// deleting a measurement invalidates the cached stats
	deleteResp := s.deleteMeasurementRequest(ctx, measurement2.ID)
	assert.Equal(s.T(), measurement2.ID, deleteResp.DeletedID)

	stats = s.measurementStatsRequest(ctx, 1, "weekly")
	require.Len(s.T(), stats, 1)
	assert.Equal(s.T(), day1.Format("2006-01-02"), stats[0].BucketKey)

	deleteResp = s.deleteMeasurementRequest(ctx, measurement1.ID)
	assert.Equal(s.T(), measurement1.ID, deleteResp.DeletedID)
}

func (s *IntegrationTestSuite) TestMeasurements_InvalidPeriod() {
	ctx := context.Background()

	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/api/measurements/user/1/stats?period=daily", serverEndpoint),
		nil,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()
	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
}
