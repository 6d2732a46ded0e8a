package workouts

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned both for sessions that do not exist
// and for sessions owned by somebody else, callers cannot tell the
// two apart on purpose.
var ErrSessionNotFound = errors.New("workout session not found")

// DefaultSessionName is used when a session is created without a name.
const DefaultSessionName = "Workout"

// Set is one performed set within a workout session.
type Set struct {
	ID         int     `json:"id"`
	SessionID  int     `json:"-"`
	ExerciseID int     `json:"exerciseId"`
	Reps       int     `json:"reps"`
	Weight     float64 `json:"weight"`
	Order      int     `json:"order"`
}

// Session is one workout, a list of sets performed on a date.
type Session struct {
	ID        int       `json:"id"`
	UserID    int       `json:"-"`
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
	Sets      []Set     `json:"sets"`
}

// SetRecord is a set joined with the date of its session, the raw
// material for performance metrics and wall highlights.
type SetRecord struct {
	ExerciseID int       `json:"exerciseId"`
	Reps       int       `json:"reps"`
	Weight     float64   `json:"weight"`
	Date       time.Time `json:"date"`
}

// Volume is the load of one set record, reps times weight.
func (r SetRecord) Volume() float64 {
	return float64(r.Reps) * r.Weight
}
