package users

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

type User struct {
	ID            int       `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	DisplayName   string    `json:"displayName"`
	Gender        string    `json:"gender"`
	Height        float64   `json:"height"`
	BirthDate     time.Time `json:"birthDate"`
	ProfilePublic bool      `json:"profilePublic"`
	PRExerciseIDs []int     `json:"prExerciseIds"`
	CreatedAt     time.Time `json:"createdAt"`
}

// WeightEntry is one body weight measurement of a user.
type WeightEntry struct {
	ID         int       `json:"id"`
	UserID     int       `json:"-"`
	Weight     float64   `json:"weight"`
	MeasuredAt time.Time `json:"measuredAt"`
}
