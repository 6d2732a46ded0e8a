package workouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mgiraudeau/vocagym/internal/telemetry/tracing"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

// Every query below filters on user_id. A session belonging to another
// user is indistinguishable from a missing one.

func (r *Repo) Create(ctx context.Context, userID int, name string, date time.Time, sets []Set) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workoutsRepo.create")
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

	session := &Session{
		UserID: userID,
		Name:   name,
		Date:   date,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO workout_session (user_id, name, date)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		userID, name, date,
	).Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	session.Sets, err = insertSets(ctx, tx, session.ID, sets)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	span.SetAttributes(attribute.Int("session.id", session.ID))
	return session, nil
}

func (r *Repo) Get(ctx context.Context, userID, sessionID int) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workoutsRepo.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var session Session
	err = r.db.QueryRow(ctx, `
		SELECT id, user_id, name, date, created_at
		FROM workout_session
		WHERE id = $1 AND user_id = $2`,
		sessionID, userID,
	).Scan(&session.ID, &session.UserID, &session.Name, &session.Date, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	setsBySession, err := r.setsForSessions(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	session.Sets = setsBySession[session.ID]
	if session.Sets == nil {
		session.Sets = []Set{}
	}

	return &session, nil
}

// List returns one page of the user's sessions, newest first, along
// with the total number of sessions.
func (r *Repo) List(ctx context.Context, userID, limit, offset int) (_ []Session, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workoutsRepo.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM workout_session WHERE user_id = $1`,
		userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, name, date, created_at
		FROM workout_session
		WHERE user_id = $1
		ORDER BY date DESC, id DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	var sessionIDs []int
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &s.Date, &s.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan session row: %w", err)
		}
		s.Sets = []Set{}
		sessions = append(sessions, s)
		sessionIDs = append(sessionIDs, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("session rows: %w", err)
	}

	if len(sessionIDs) > 0 {
		setsBySession, err := r.setsForSessions(ctx, sessionIDs...)
		if err != nil {
			return nil, 0, err
		}
		for i := range sessions {
			if sets, ok := setsBySession[sessions[i].ID]; ok {
				sessions[i].Sets = sets
			}
		}
	}

	return sessions, total, nil
}

type UpdateMetaParams struct {
	Name *string
	Date *time.Time
}

// UpdateMeta changes the session name and/or date, leaving sets alone.
func (r *Repo) UpdateMeta(ctx context.Context, userID, sessionID int, params UpdateMetaParams) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workoutsRepo.updateMeta")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx, `
		UPDATE workout_session SET
			name = COALESCE($3, name),
			date = COALESCE($4, date)
		WHERE id = $1 AND user_id = $2`,
		sessionID, userID, params.Name, params.Date,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// ReplaceSets swaps the full set list of a session in one transaction.
// An empty sets slice is valid and leaves the session without sets.
func (r *Repo) ReplaceSets(ctx context.Context, userID, sessionID int, sets []Set) (_ []Set, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workoutsRepo.replaceSets")
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

	// ownership check, and lock the session row for the swap
	var ownedID int
	err = tx.QueryRow(ctx, `
		SELECT id FROM workout_session
		WHERE id = $1 AND user_id = $2
		FOR UPDATE`,
		sessionID, userID,
	).Scan(&ownedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("check session: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`DELETE FROM workout_set WHERE session_id = $1`,
		sessionID,
	); err != nil {
		return nil, fmt.Errorf("delete old sets: %w", err)
	}

	newSets, err := insertSets(ctx, tx, sessionID, sets)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return newSets, nil
}

func (r *Repo) Delete(ctx context.Context, userID, sessionID int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workoutsRepo.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx,
		`DELETE FROM workout_session WHERE id = $1 AND user_id = $2`,
		sessionID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// ListAllSets returns every set the user ever logged, joined with the
// session date, oldest session first.
func (r *Repo) ListAllSets(ctx context.Context, userID int) (_ []SetRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workoutsRepo.listAllSets")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `
		SELECT ws.exercise_id, ws.reps, ws.weight, s.date
		FROM workout_set ws
		JOIN workout_session s ON s.id = ws.session_id
		WHERE s.user_id = $1
		ORDER BY s.date, s.id, ws.ord`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query set records: %w", err)
	}
	defer rows.Close()

	var records []SetRecord
	for rows.Next() {
		var rec SetRecord
		if err := rows.Scan(&rec.ExerciseID, &rec.Reps, &rec.Weight, &rec.Date); err != nil {
			return nil, fmt.Errorf("scan set record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("set record rows: %w", err)
	}

	return records, nil
}

// Last returns the most recent session of the user, with its sets.
func (r *Repo) Last(ctx context.Context, userID int) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workoutsRepo.last")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var sessionID int
	err = r.db.QueryRow(ctx, `
		SELECT id FROM workout_session
		WHERE user_id = $1
		ORDER BY date DESC, id DESC
		LIMIT 1`,
		userID,
	).Scan(&sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get last session id: %w", err)
	}

	return r.Get(ctx, userID, sessionID)
}

func insertSets(ctx context.Context, tx pgx.Tx, sessionID int, sets []Set) ([]Set, error) {
	inserted := make([]Set, 0, len(sets))
	for _, set := range sets {
		var id int
		err := tx.QueryRow(ctx, `
			INSERT INTO workout_set (session_id, exercise_id, reps, weight, ord)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			sessionID, set.ExerciseID, set.Reps, set.Weight, set.Order,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert set: %w", err)
		}
		set.ID = id
		set.SessionID = sessionID
		inserted = append(inserted, set)
	}
	return inserted, nil
}

func (r *Repo) setsForSessions(ctx context.Context, sessionIDs ...int) (map[int][]Set, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, exercise_id, reps, weight, ord
		FROM workout_set
		WHERE session_id = ANY($1)
		ORDER BY session_id, ord, id`,
		sessionIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query sets: %w", err)
	}
	defer rows.Close()

	setsBySession := make(map[int][]Set)
	for rows.Next() {
		var set Set
		if err := rows.Scan(&set.ID, &set.SessionID, &set.ExerciseID, &set.Reps, &set.Weight, &set.Order); err != nil {
			return nil, fmt.Errorf("scan set row: %w", err)
		}
		setsBySession[set.SessionID] = append(setsBySession[set.SessionID], set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("set rows: %w", err)
	}

	return setsBySession, nil
}
