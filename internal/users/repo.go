package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mgiraudeau/vocagym/internal/telemetry/tracing"
	"github.com/mgiraudeau/vocagym/pkg"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

type CreateUserParams struct {
	Username      string
	Email         string
	PasswordHash  string
	DisplayName   string
	Gender        string
	Height        float64
	BirthDate     time.Time
	InitialWeight float64
}

// Create inserts a new user, together with an initial weight entry
// when a starting weight was given. Both go in one transaction.
func (r *Repo) Create(ctx context.Context, params CreateUserParams) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var user User
	err = tx.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, display_name, gender, height, birth_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+selectUserColumns,
		params.Username, params.Email, params.PasswordHash, params.DisplayName,
		params.Gender, params.Height, params.BirthDate,
	).Scan(scanUserDest(&user)...)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if params.InitialWeight > 0 {
		if _, err = tx.Exec(ctx, `
			INSERT INTO weight_entry (user_id, weight, measured_at)
			VALUES ($1, $2, $3)`,
			user.ID, params.InitialWeight, user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("insert initial weight entry: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &user, nil
}

const selectUserColumns = `
	id, username, email, password_hash, display_name, gender, height,
	birth_date, profile_public, pr_exercise_ids, created_at`

func scanUserDest(user *User) []any {
	return []any{
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.DisplayName, &user.Gender, &user.Height, &user.BirthDate,
		&user.ProfilePublic, &user.PRExerciseIDs, &user.CreatedAt,
	}
}

func (r *Repo) GetByID(ctx context.Context, id int) (*User, error) {
	return r.getBy(ctx, "usersRepo.getByID", "id = $1", id)
}

// GetByEmail is case-insensitive, login should not depend on how the
// email was capitalized at registration.
func (r *Repo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getBy(ctx, "usersRepo.getByEmail", "LOWER(email) = LOWER($1)", email)
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getBy(ctx, "usersRepo.getByUsername", "LOWER(username) = LOWER($1)", username)
}

func (r *Repo) getBy(ctx context.Context, spanName, where string, arg any) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, spanName)
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var user User
	err = r.db.QueryRow(
		ctx,
		"SELECT "+selectUserColumns+" FROM users WHERE "+where,
		arg,
	).Scan(scanUserDest(&user)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *Repo) UsernameExists(ctx context.Context, username string) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.usernameExists")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var exists bool
	err = r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))`,
		username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}

	return exists, nil
}

type UpdateProfileParams struct {
	DisplayName   *string
	ProfilePublic *bool
	PRExerciseIDs *[]int
}

// UpdateProfile applies the set fields of params and returns the
// updated user.
func (r *Repo) UpdateProfile(ctx context.Context, userID int, params UpdateProfileParams) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.updateProfile")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var user User
	err = r.db.QueryRow(ctx, `
		UPDATE users SET
			display_name    = COALESCE($2, display_name),
			profile_public  = COALESCE($3, profile_public),
			pr_exercise_ids = COALESCE($4, pr_exercise_ids)
		WHERE id = $1
		RETURNING `+selectUserColumns,
		userID, params.DisplayName, params.ProfilePublic, params.PRExerciseIDs,
	).Scan(scanUserDest(&user)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return &user, nil
}

func (r *Repo) AddWeightEntry(ctx context.Context, userID int, weight float64, measuredAt time.Time) (_ *WeightEntry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.addWeightEntry")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var entry WeightEntry
	err = r.db.QueryRow(ctx, `
		INSERT INTO weight_entry (user_id, weight, measured_at)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, weight, measured_at`,
		userID, weight, measuredAt,
	).Scan(&entry.ID, &entry.UserID, &entry.Weight, &entry.MeasuredAt)
	if err != nil {
		return nil, fmt.Errorf("insert weight entry: %w", err)
	}

	return &entry, nil
}

// ListWeightEntries returns all weight entries of a user, oldest first.
func (r *Repo) ListWeightEntries(ctx context.Context, userID int) (_ []WeightEntry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.listWeightEntries")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, weight, measured_at
		FROM weight_entry
		WHERE user_id = $1
		ORDER BY measured_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query weight entries: %w", err)
	}
	defer rows.Close()

	var entries []WeightEntry
	for rows.Next() {
		var entry WeightEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Weight, &entry.MeasuredAt); err != nil {
			return nil, fmt.Errorf("scan weight entry row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("weight entry rows: %w", err)
	}

	return entries, nil
}
