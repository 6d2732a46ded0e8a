package wall

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mgiraudeau/vocagym/internal/catalog"
	"github.com/mgiraudeau/vocagym/internal/performance"
	"github.com/mgiraudeau/vocagym/internal/telemetry/tracing"
	"github.com/mgiraudeau/vocagym/internal/users"
	"github.com/mgiraudeau/vocagym/internal/workouts"
)

// ErrWallNotFound covers both unknown usernames and private profiles.
// Visitors cannot probe which of the two it was.
var ErrWallNotFound = errors.New("wall not found")

// Highlight is the heaviest set of one exercise in the last session.
type Highlight struct {
	ExerciseID   int     `json:"exerciseId"`
	ExerciseName string  `json:"exerciseName"`
	Reps         int     `json:"reps"`
	Weight       float64 `json:"weight"`
	Volume       float64 `json:"volume"`
}

// LastSession is the most recent workout shown on the wall.
type LastSession struct {
	ID         int         `json:"id"`
	Name       string      `json:"name"`
	Date       time.Time   `json:"date"`
	Highlights []Highlight `json:"highlights"`
}

// PREntry is one personal record shown on the public wall. All maxima
// are zero when the exercise was never performed.
type PREntry struct {
	ExerciseID   int     `json:"exerciseId"`
	ExerciseName string  `json:"exerciseName"`
	MaxWeight    float64 `json:"maxWeight"`
	MaxReps      int     `json:"maxReps"`
	MaxVolume    float64 `json:"maxVolume"`
	Estimated1RM float64 `json:"estimated1RM"`
}

// Wall is the public profile page of a user.
type Wall struct {
	Username    string       `json:"username"`
	LastSession *LastSession `json:"lastSession"`
	PRs         []PREntry    `json:"prs"`
}

type usersRepo interface {
	GetByUsername(ctx context.Context, username string) (*users.User, error)
}

type workoutsRepo interface {
	ListAllSets(ctx context.Context, userID int) ([]workouts.SetRecord, error)
	Last(ctx context.Context, userID int) (*workouts.Session, error)
}

type catalogService interface {
	List(ctx context.Context) ([]catalog.Exercise, error)
}

type Builder struct {
	users    usersRepo
	workouts workoutsRepo
	catalog  catalogService
}

func NewBuilder(usersRepo usersRepo, workoutsRepo workoutsRepo, catalogSvc catalogService) *Builder {
	return &Builder{
		users:    usersRepo,
		workouts: workoutsRepo,
		catalog:  catalogSvc,
	}
}

// Build assembles the public wall for a username. The lookup is
// case-insensitive.
func (b *Builder) Build(ctx context.Context, username string) (_ *Wall, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "wall.build")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	user, err := b.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, ErrWallNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.ProfilePublic {
		return nil, ErrWallNotFound
	}

	exercises, err := b.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	namesByID := make(map[int]string, len(exercises))
	for _, ex := range exercises {
		namesByID[ex.ID] = ex.Name
	}

	lastSession, err := b.lastSession(ctx, user.ID, namesByID)
	if err != nil {
		return nil, err
	}

	records, err := b.workouts.ListAllSets(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list set records: %w", err)
	}

	prs := make([]PREntry, 0, len(user.PRExerciseIDs))
	seen := make(map[int]struct{})
	for _, exerciseID := range user.PRExerciseIDs {
		if len(prs) == 3 {
			break
		}
		if _, ok := seen[exerciseID]; ok {
			continue
		}
		seen[exerciseID] = struct{}{}

		name, known := namesByID[exerciseID]
		if !known {
			// stale profile entry, catalog no longer has this exercise
			log.Debugf("wall for %s, dropping unknown exercise id %d", user.Username, exerciseID)
			continue
		}

		// never performed yet is fine, the maxima stay zero-valued
		records := performance.RecordsOf(performance.Series(records, exerciseID))
		prs = append(prs, PREntry{
			ExerciseID:   exerciseID,
			ExerciseName: name,
			MaxWeight:    records.MaxWeight,
			MaxReps:      records.MaxReps,
			MaxVolume:    records.MaxVolume,
			Estimated1RM: records.MaxEstimated1RM,
		})
	}

	return &Wall{
		Username:    user.Username,
		LastSession: lastSession,
		PRs:         prs,
	}, nil
}

// lastSession reduces the most recent workout to one highlight per
// exercise: the set with the greatest weight, where only a strictly
// greater weight replaces the current best, so ties keep the earlier
// set. Users without sessions get a nil last session.
func (b *Builder) lastSession(ctx context.Context, userID int, namesByID map[int]string) (*LastSession, error) {
	session, err := b.workouts.Last(ctx, userID)
	if err != nil {
		if errors.Is(err, workouts.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last session: %w", err)
	}

	highlightIdx := make(map[int]int)
	highlights := make([]Highlight, 0, len(session.Sets))
	for _, set := range session.Sets {
		idx, ok := highlightIdx[set.ExerciseID]
		if ok && set.Weight <= highlights[idx].Weight {
			continue
		}
		highlight := Highlight{
			ExerciseID:   set.ExerciseID,
			ExerciseName: namesByID[set.ExerciseID],
			Reps:         set.Reps,
			Weight:       set.Weight,
			Volume:       float64(set.Reps) * set.Weight,
		}
		if ok {
			highlights[idx] = highlight
		} else {
			highlightIdx[set.ExerciseID] = len(highlights)
			highlights = append(highlights, highlight)
		}
	}

	return &LastSession{
		ID:         session.ID,
		Name:       session.Name,
		Date:       session.Date,
		Highlights: highlights,
	}, nil
}
