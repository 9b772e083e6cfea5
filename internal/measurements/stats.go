package measurements

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

const (
	dayKeyLayout   = "2006-01-02"
	monthKeyLayout = "2006-01"
)

var ErrInvalidPeriod = errors.New("invalid period")

// Period selects the stats window. Weekly and monthly are rolling
// windows from "now", not calendar-aligned.
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
	PeriodAllTime Period = ""
)

func (p Period) IsValid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodYearly, PeriodAllTime:
		return true
	default:
		return false
	}
}

// window returns the start of the rolling window (nil for all-time)
// and the bucket key layout for the period.
func (p Period) window(now time.Time) (*time.Time, string) {
	switch p {
	case PeriodWeekly:
		from := now.AddDate(0, 0, -7)
		return &from, dayKeyLayout
	case PeriodMonthly:
		from := now.AddDate(0, 0, -30)
		return &from, dayKeyLayout
	case PeriodYearly:
		from := now.AddDate(0, 0, -365)
		return &from, monthKeyLayout
	default:
		return nil, monthKeyLayout
	}
}

// BucketStats is the per-bucket summary. AvgBodyFat is nil when no
// measurement in the bucket carries a body fat value.
type BucketStats struct {
	BucketKey  string   `json:"bucketKey"`
	AvgWeight  float64  `json:"avgWeight"`
	MinWeight  float64  `json:"minWeight"`
	MaxWeight  float64  `json:"maxWeight"`
	AvgBodyFat *float64 `json:"avgBodyFat"`
	Count      int      `json:"count"`
}

type Analyzer struct {
	repo measurementsRepo

	// now is swapped out in tests to pin the rolling windows
	now func() time.Time
}

func NewAnalyzer(repo measurementsRepo) *Analyzer {
	return &Analyzer{
		repo: repo,
		now:  time.Now,
	}
}

// Stats buckets a user's measurements for the given period and computes
// per-bucket weight and body fat summaries, ascending by bucket key.
func (a *Analyzer) Stats(ctx context.Context, userID int, period Period) (_ []BucketStats, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.measurements.stats")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))
	span.SetAttributes(attribute.String("period", string(period)))

	if !period.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, period)
	}

	from, keyLayout := period.window(a.now())

	measurements, err := a.repo.ListAll(ctx, ListParams{
		UserID: userID,
		From:   from,
	})
	if err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}

	bucket2measurements := make(map[string][]Measurement)
	for _, m := range measurements {
		if from != nil && m.Date.Before(*from) {
			continue
		}
		bucketKey := m.Date.Format(keyLayout)
		bucket2measurements[bucketKey] = append(bucket2measurements[bucketKey], m)
	}

	bucketKeys := make([]string, 0, len(bucket2measurements))
	for bucketKey := range bucket2measurements {
		bucketKeys = append(bucketKeys, bucketKey)
	}
	sort.Strings(bucketKeys)

	stats := make([]BucketStats, 0, len(bucketKeys))
	for _, bucketKey := range bucketKeys {
		bucketMeasurements := bucket2measurements[bucketKey]

		bucketStats := BucketStats{
			BucketKey: bucketKey,
			MinWeight: bucketMeasurements[0].Weight,
			MaxWeight: bucketMeasurements[0].Weight,
			Count:     len(bucketMeasurements),
		}

		var weightSum, bodyFatSum float64
		var bodyFatCount int
		for _, m := range bucketMeasurements {
			weightSum += m.Weight
			if m.Weight < bucketStats.MinWeight {
				bucketStats.MinWeight = m.Weight
			}
			if m.Weight > bucketStats.MaxWeight {
				bucketStats.MaxWeight = m.Weight
			}
			if m.BodyFat != nil {
				bodyFatSum += *m.BodyFat
				bodyFatCount++
			}
		}

		bucketStats.AvgWeight = weightSum / float64(len(bucketMeasurements))
		if bodyFatCount > 0 {
			avgBodyFat := bodyFatSum / float64(bodyFatCount)
			bucketStats.AvgBodyFat = &avgBodyFat
		}

		stats = append(stats, bucketStats)
	}

	return stats, nil
}
