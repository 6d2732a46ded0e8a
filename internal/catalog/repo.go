package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mgiraudeau/vocagym/internal/telemetry/tracing"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

// List returns the whole exercise catalog, sorted by canonical name.
func (r *Repo) List(ctx context.Context) (_ []Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "catalogRepo.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `
		SELECT
			id, name,
			COALESCE(name_en, ''), COALESCE(name_fr, ''), COALESCE(name_it, ''),
			COALESCE(name_es, ''), COALESCE(name_nl, ''),
			COALESCE(description, ''), muscle_groups
		FROM exercise
		ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer rows.Close()

	return rows2exercises(rows)
}

func rows2exercises(rows pgx.Rows) ([]Exercise, error) {
	var exercises []Exercise
	for rows.Next() {
		var ex Exercise
		if err := rows.Scan(
			&ex.ID, &ex.Name,
			&ex.NameEn, &ex.NameFr, &ex.NameIt, &ex.NameEs, &ex.NameNl,
			&ex.Description, &ex.MuscleGroups,
		); err != nil {
			return nil, fmt.Errorf("scan exercise row: %w", err)
		}
		exercises = append(exercises, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("exercise rows: %w", err)
	}
	return exercises, nil
}
