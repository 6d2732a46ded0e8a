package performance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgiraudeau/vocagym/internal/auth"
	"github.com/mgiraudeau/vocagym/internal/catalog"
	"github.com/mgiraudeau/vocagym/internal/users"
	"github.com/mgiraudeau/vocagym/internal/workouts"
)

func TestEstimated1RM(t *testing.T) {
	// epley: 100kg x 10 => 100 * (1 + 10/30) = 133.33.. => 133.3
	assert.Equal(t, 133.3, Estimated1RM(100, 10))
	assert.Equal(t, 70.0, Estimated1RM(60, 5))
	assert.Equal(t, 103.3, Estimated1RM(100, 1))
	assert.Equal(t, 0.0, Estimated1RM(0, 5))
}

func day(d int) time.Time {
	return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
}

var testRecords = []workouts.SetRecord{
	{ExerciseID: 1, Reps: 8, Weight: 50, Date: day(1)},
	{ExerciseID: 1, Reps: 6, Weight: 55, Date: day(1)},
	{ExerciseID: 1, Reps: 5, Weight: 60, Date: day(8)},
	{ExerciseID: 2, Reps: 5, Weight: 100, Date: day(8)},
	{ExerciseID: 3, Reps: 12, Weight: 0, Date: day(8)}, // bodyweight
}

func TestSeries(t *testing.T) {
	points := Series(testRecords, 1)
	require.Len(t, points, 3)
	assert.Equal(t, SeriesPoint{Date: day(1), Reps: 8, Weight: 50, Volume: 400}, points[0])
	assert.Equal(t, SeriesPoint{Date: day(8), Reps: 5, Weight: 60, Volume: 300}, points[2])

	assert.Empty(t, Series(testRecords, 99))
}

func TestRecordsOf(t *testing.T) {
	prs := RecordsOf(Series(testRecords, 1))
	assert.Equal(t, 60.0, prs.MaxWeight)
	assert.Equal(t, 400.0, prs.MaxVolume, "50x8 has the most volume")
	assert.Equal(t, 8, prs.MaxReps)
	// 60x5 => 70, beats 50x8 => 63.3 and 55x6 => 66
	assert.Equal(t, 70.0, prs.MaxEstimated1RM)
}

func TestRecordsOf_Empty(t *testing.T) {
	// maxima over nothing are zeros, not errors
	assert.Equal(t, PersonalRecords{}, RecordsOf(nil))
}

type workoutsStub struct {
	records []workouts.SetRecord
}

func (s *workoutsStub) ListAllSets(_ context.Context, _ int) ([]workouts.SetRecord, error) {
	return s.records, nil
}

type weightsStub struct {
	entries []users.WeightEntry
}

func (s *weightsStub) ListWeightEntries(_ context.Context, _ int) ([]users.WeightEntry, error) {
	return s.entries, nil
}

type catalogStub struct{}

func (catalogStub) List(_ context.Context) ([]catalog.Exercise, error) {
	return []catalog.Exercise{
		{ID: 1, Name: "Bench Press"},
		{ID: 2, Name: "Squat"},
		{ID: 3, Name: "Push Up"},
		{ID: 4, Name: "Deadlift"},
	}, nil
}

func newTestAnalyzer(records []workouts.SetRecord, entries []users.WeightEntry) *Analyzer {
	return NewAnalyzer(&workoutsStub{records: records}, &weightsStub{entries: entries}, catalogStub{})
}

func TestAnalyzer_Overview(t *testing.T) {
	analyzer := newTestAnalyzer(testRecords, []users.WeightEntry{
		{ID: 1, Weight: 82, MeasuredAt: day(1)},
	})

	overview, err := analyzer.Overview(context.Background(), 1)
	require.NoError(t, err)

	// deadlift was never performed, it must not show up
	require.Len(t, overview.Exercises, 3)
	bench := overview.Exercises[0]
	assert.Equal(t, "Bench Press", bench.ExerciseName)
	require.Len(t, bench.Data, 3)
	assert.Equal(t, 60.0, bench.PRs.MaxWeight)
	assert.Equal(t, 400.0, bench.PRs.MaxVolume)

	require.Len(t, overview.WeightEntries, 1)
	assert.Equal(t, WeightPoint{Date: day(1), Weight: 82}, overview.WeightEntries[0])
}

func TestAnalyzer_Overview_EmptyUser(t *testing.T) {
	analyzer := newTestAnalyzer(nil, nil)

	overview, err := analyzer.Overview(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, overview.Exercises)
	assert.NotNil(t, overview.WeightEntries)
}

func TestAnalyzer_ExerciseDetail(t *testing.T) {
	analyzer := newTestAnalyzer(testRecords, nil)

	detail, err := analyzer.ExerciseDetail(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.ExerciseID)
	require.Len(t, detail.Data, 3)
	assert.Equal(t, 70.0, detail.PRs.MaxEstimated1RM)
	require.Len(t, detail.Estimated1RM, 3)
	assert.Equal(t, day(1), detail.Estimated1RM[0].Date)
	assert.Equal(t, 63.3, detail.Estimated1RM[0].Estimated1RM)
}

func TestAnalyzer_ExerciseDetail_NoHistory(t *testing.T) {
	analyzer := newTestAnalyzer(testRecords, nil)

	detail, err := analyzer.ExerciseDetail(context.Background(), 1, 4)
	require.NoError(t, err)
	assert.NotNil(t, detail.Data)
	assert.Empty(t, detail.Data)
	assert.Equal(t, PersonalRecords{}, detail.PRs)
	assert.Empty(t, detail.Estimated1RM)
}

func TestHandler_HandleGet(t *testing.T) {
	handler := NewHandler(newTestAnalyzer([]workouts.SetRecord{
		{ExerciseID: 1, Reps: 10, Weight: 100, Date: day(1)},
	}, nil))

	doGet := func(target string, userID int) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if userID > 0 {
			req = req.WithContext(auth.ContextWithUserID(req.Context(), userID))
		}
		rr := httptest.NewRecorder()
		handler.HandleGet(rr, req)
		return rr
	}

	t.Run("overview", func(t *testing.T) {
		rr := doGet("/performance", 1)
		require.Equal(t, http.StatusOK, rr.Code)
		var overview Overview
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &overview))
		require.Len(t, overview.Exercises, 1)
		assert.Equal(t, 100.0, overview.Exercises[0].PRs.MaxWeight)
	})

	t.Run("single exercise", func(t *testing.T) {
		rr := doGet("/performance?exerciseId=1", 1)
		require.Equal(t, http.StatusOK, rr.Code)
		var detail ExerciseDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
		assert.Equal(t, 133.3, detail.PRs.MaxEstimated1RM)
	})

	t.Run("bad exercise id", func(t *testing.T) {
		rr := doGet("/performance?exerciseId=banana", 1)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("not logged in", func(t *testing.T) {
		rr := doGet("/performance", 0)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
