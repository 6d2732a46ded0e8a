package detect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mgiraudeau/vocagym/internal/catalog"
	"github.com/mgiraudeau/vocagym/internal/telemetry/tracing"
)

// ErrNoExerciseDetected: the text did not mention any exercise from
// the catalog, or the model named one we do not know.
var ErrNoExerciseDetected = errors.New("no exercise detected")

const defaultConfidence = 0.5

type completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type catalogService interface {
	List(ctx context.Context) ([]catalog.Exercise, error)
}

// DetectedExercise is the resolved catalog entry of a detection.
type DetectedExercise struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	MuscleGroups []string `json:"muscleGroups"`
}

// Detection is the result of running a voice transcript through the
// model and resolving the named exercise against the catalog. Reps and
// weight stay nil when the text did not mention them.
type Detection struct {
	Exercise   DetectedExercise `json:"exercise"`
	Reps       *int             `json:"reps"`
	Weight     *float64         `json:"weight"`
	Confidence float64          `json:"confidence"`
}

type Detector struct {
	completions completer
	catalog     catalogService
}

func NewDetector(completions completer, catalogSvc catalogService) *Detector {
	return &Detector{
		completions: completions,
		catalog:     catalogSvc,
	}
}

// modelAnswer is what we ask the model to produce. ExerciseName is a
// pointer so that an explicit null can be told apart from a missing
// field, confidence likewise so its absence can default.
type modelAnswer struct {
	ExerciseName *string  `json:"exerciseName"`
	Reps         *int     `json:"reps"`
	Weight       *float64 `json:"weight"`
	Confidence   *float64 `json:"confidence"`
}

// DetectExercise extracts one exercise, and optionally its reps and
// weight, from a free-form voice transcript.
func (d *Detector) DetectExercise(ctx context.Context, text string) (_ *Detection, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "detector.detectExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	exercises, err := d.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	nameIndex := buildNameIndex(exercises)

	answerRaw, err := d.completions.Complete(ctx, systemPrompt(exercises), text)
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	var answer modelAnswer
	if err := json.Unmarshal([]byte(answerRaw), &answer); err != nil {
		return nil, fmt.Errorf("unmarshal model answer: %w", err)
	}

	if answer.ExerciseName == nil || strings.TrimSpace(*answer.ExerciseName) == "" {
		return nil, ErrNoExerciseDetected
	}

	matched, ok := nameIndex[normalizeName(*answer.ExerciseName)]
	if !ok {
		// the model made a name up, treat it the same as no detection
		log.Debugf("detect exercise, unknown exercise name from model: %q", *answer.ExerciseName)
		return nil, ErrNoExerciseDetected
	}

	confidence := defaultConfidence
	if answer.Confidence != nil && *answer.Confidence > 0 {
		confidence = *answer.Confidence
	}

	reps := answer.Reps
	if reps != nil && *reps < 1 {
		reps = nil
	}
	weight := answer.Weight
	if weight != nil && *weight < 0 {
		weight = nil
	}

	span.SetAttributes(attribute.Int("exercise.id", matched.ID))

	return &Detection{
		Exercise: DetectedExercise{
			ID:           matched.ID,
			Name:         matched.Name,
			Description:  matched.Description,
			MuscleGroups: matched.MuscleGroups,
		},
		Reps:       reps,
		Weight:     weight,
		Confidence: confidence,
	}, nil
}

// buildNameIndex maps every known name, in every translation, to its
// exercise. Exercises are walked in canonical name order so collisions
// resolve deterministically (last write wins).
func buildNameIndex(exercises []catalog.Exercise) map[string]catalog.Exercise {
	sorted := make([]catalog.Exercise, len(exercises))
	copy(sorted, exercises)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	index := make(map[string]catalog.Exercise)
	for _, ex := range sorted {
		for _, name := range ex.AllNames() {
			index[normalizeName(name)] = ex
		}
	}
	return index
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func systemPrompt(exercises []catalog.Exercise) string {
	names := make([]string, 0, len(exercises))
	for _, ex := range exercises {
		names = append(names, strings.Join(ex.AllNames(), ", "))
	}

	var sb strings.Builder
	sb.WriteString("You extract workout data from voice transcripts. ")
	sb.WriteString("The transcript may be in English, French, Italian, Spanish or Dutch. ")
	sb.WriteString("Reply with a JSON object only: ")
	sb.WriteString(`{"exerciseName": <name from the list or null>, "reps": <int or null>, "weight": <kg, number or null>, "confidence": <0..1>}. `)
	sb.WriteString("Use null for exerciseName if no known exercise is mentioned. ")
	sb.WriteString("Known exercises: ")
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString(".")
	return sb.String()
}
