package performance

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mgiraudeau/vocagym/internal/catalog"
	"github.com/mgiraudeau/vocagym/internal/telemetry/tracing"
	"github.com/mgiraudeau/vocagym/internal/users"
	"github.com/mgiraudeau/vocagym/internal/workouts"
)

// Estimated1RM estimates the one rep max of a set with the Epley
// formula, rounded to one decimal.
func Estimated1RM(weight float64, reps int) float64 {
	return math.Round(weight*(1+float64(reps)/30)*10) / 10
}

// SeriesPoint is one performed set on the timeline of an exercise.
type SeriesPoint struct {
	Date   time.Time `json:"date"`
	Reps   int       `json:"reps"`
	Weight float64   `json:"weight"`
	Volume float64   `json:"volume"`
}

// Series collects every set of one exercise across the user's full
// history, ascending by date.
func Series(records []workouts.SetRecord, exerciseID int) []SeriesPoint {
	var points []SeriesPoint
	for _, rec := range records {
		if rec.ExerciseID != exerciseID {
			continue
		}
		points = append(points, SeriesPoint{
			Date:   rec.Date,
			Reps:   rec.Reps,
			Weight: rec.Weight,
			Volume: rec.Volume(),
		})
	}
	return points
}

// PersonalRecords are the maxima over a series. All fields are 0 for
// an empty series, never an error.
type PersonalRecords struct {
	MaxWeight       float64 `json:"maxWeight"`
	MaxVolume       float64 `json:"maxVolume"`
	MaxReps         int     `json:"maxReps"`
	MaxEstimated1RM float64 `json:"maxEstimated1RM"`
}

// RecordsOf computes the personal records of a series.
func RecordsOf(points []SeriesPoint) PersonalRecords {
	var prs PersonalRecords
	for _, p := range points {
		if p.Weight > prs.MaxWeight {
			prs.MaxWeight = p.Weight
		}
		if p.Volume > prs.MaxVolume {
			prs.MaxVolume = p.Volume
		}
		if p.Reps > prs.MaxReps {
			prs.MaxReps = p.Reps
		}
		if est := Estimated1RM(p.Weight, p.Reps); est > prs.MaxEstimated1RM {
			prs.MaxEstimated1RM = est
		}
	}
	return prs
}

// Estimated1RMPoint is the per-set one rep max estimate over time.
type Estimated1RMPoint struct {
	Date         time.Time `json:"date"`
	Estimated1RM float64   `json:"estimated1RM"`
}

func estimated1RMSeries(points []SeriesPoint) []Estimated1RMPoint {
	series := make([]Estimated1RMPoint, 0, len(points))
	for _, p := range points {
		series = append(series, Estimated1RMPoint{
			Date:         p.Date,
			Estimated1RM: Estimated1RM(p.Weight, p.Reps),
		})
	}
	return series
}

// ExerciseDetail is the single-exercise performance payload.
type ExerciseDetail struct {
	ExerciseID   int                 `json:"exerciseId"`
	Data         []SeriesPoint       `json:"data"`
	PRs          PersonalRecords     `json:"prs"`
	Estimated1RM []Estimated1RMPoint `json:"estimated1RM"`
}

// summaryPRs is the trimmed-down record pair of the all-exercises view.
type summaryPRs struct {
	MaxWeight float64 `json:"maxWeight"`
	MaxVolume float64 `json:"maxVolume"`
}

// ExerciseSummary is one exercise in the all-exercises view. Exercises
// with no recorded sets are filtered out before it is built.
type ExerciseSummary struct {
	ExerciseID   int           `json:"exerciseId"`
	ExerciseName string        `json:"exerciseName"`
	Data         []SeriesPoint `json:"data"`
	PRs          summaryPRs    `json:"prs"`
}

// WeightPoint is one body weight measurement.
type WeightPoint struct {
	Date   time.Time `json:"date"`
	Weight float64   `json:"weight"`
}

// Overview is the all-exercises performance payload.
type Overview struct {
	Exercises     []ExerciseSummary `json:"exercises"`
	WeightEntries []WeightPoint     `json:"weightEntries"`
}

type setsLister interface {
	ListAllSets(ctx context.Context, userID int) ([]workouts.SetRecord, error)
}

type weightLister interface {
	ListWeightEntries(ctx context.Context, userID int) ([]users.WeightEntry, error)
}

type catalogService interface {
	List(ctx context.Context) ([]catalog.Exercise, error)
}

type Analyzer struct {
	workouts setsLister
	weights  weightLister
	catalog  catalogService
}

func NewAnalyzer(workoutsRepo setsLister, weightsRepo weightLister, catalogSvc catalogService) *Analyzer {
	return &Analyzer{
		workouts: workoutsRepo,
		weights:  weightsRepo,
		catalog:  catalogSvc,
	}
}

// ExerciseDetail derives series, personal records and the estimated
// one rep max curve of a single exercise.
func (a *Analyzer) ExerciseDetail(ctx context.Context, userID, exerciseID int) (_ *ExerciseDetail, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "performance.exerciseDetail")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	records, err := a.workouts.ListAllSets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list set records: %w", err)
	}

	points := Series(records, exerciseID)
	if points == nil {
		points = []SeriesPoint{}
	}

	return &ExerciseDetail{
		ExerciseID:   exerciseID,
		Data:         points,
		PRs:          RecordsOf(points),
		Estimated1RM: estimated1RMSeries(points),
	}, nil
}

// Overview derives the series of every catalog exercise the user ever
// performed, plus the body weight history.
func (a *Analyzer) Overview(ctx context.Context, userID int) (_ *Overview, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "performance.overview")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	records, err := a.workouts.ListAllSets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list set records: %w", err)
	}

	exercises, err := a.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}

	summaries := make([]ExerciseSummary, 0, len(exercises))
	for _, ex := range exercises {
		points := Series(records, ex.ID)
		if len(points) == 0 {
			continue
		}
		prs := RecordsOf(points)
		summaries = append(summaries, ExerciseSummary{
			ExerciseID:   ex.ID,
			ExerciseName: ex.Name,
			Data:         points,
			PRs: summaryPRs{
				MaxWeight: prs.MaxWeight,
				MaxVolume: prs.MaxVolume,
			},
		})
	}

	weightEntries, err := a.weights.ListWeightEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list weight entries: %w", err)
	}
	weightPoints := make([]WeightPoint, 0, len(weightEntries))
	for _, entry := range weightEntries {
		weightPoints = append(weightPoints, WeightPoint{
			Date:   entry.MeasuredAt,
			Weight: entry.Weight,
		})
	}

	return &Overview{
		Exercises:     summaries,
		WeightEntries: weightPoints,
	}, nil
}
