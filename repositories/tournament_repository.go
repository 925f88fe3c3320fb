package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/Dosada05/tournaments/models"
)

var (
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTournamentInUse    = errors.New("tournament is in use")
)

type ListTournamentsFilter struct {
	Published *bool
	CreatorID *int
	Limit     int
	Offset    int
}

// TournamentProgress tells how far a tournament went without loading its aggregate.
type TournamentProgress struct {
	HasFixtures bool
	HasPodium   bool
}

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	// GetForUpdate locks the tournament row until the transaction ends.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error)
	Update(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	// ListActiveIDs returns published tournaments with fixtures and no podium yet.
	ListActiveIDs(ctx context.Context) ([]int, error)
	ListProgress(ctx context.Context, ids []int) (map[int]TournamentProgress, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `id, name, definition, podium, published, creator_id, created_at`

func scanTournament(row interface{ Scan(...interface{}) error }) (*models.Tournament, error) {
	t := &models.Tournament{}
	var creatorID sql.NullInt64
	err := row.Scan(&t.ID, &t.Name, &t.Definition, pq.Array(&t.Podium), &t.Published, &creatorID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.CreatorID = intFromNull(creatorID)
	return t, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	executor := getExecutor(exec, r.db)
	query := `
		INSERT INTO tournaments (name, definition, podium, published, creator_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		t.Name, t.Definition, pq.Array(t.Podium), t.Published, nullableInt(t.CreatorID),
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	return r.get(ctx, exec, id, "")
}

func (r *postgresTournamentRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	return r.get(ctx, exec, id, " FOR UPDATE")
}

func (r *postgresTournamentRepository) get(ctx context.Context, exec SQLExecutor, id int, lock string) (*models.Tournament, error) {
	executor := getExecutor(exec, r.db)
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1` + lock

	t, err := scanTournament(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + tournamentColumns + ` FROM tournaments WHERE 1=1`)

	args := []interface{}{}
	placeholderIndex := 1

	if filter.Published != nil {
		queryBuilder.WriteString(" AND published = $" + strconv.Itoa(placeholderIndex))
		args = append(args, *filter.Published)
		placeholderIndex++
	}
	if filter.CreatorID != nil {
		queryBuilder.WriteString(" AND creator_id = $" + strconv.Itoa(placeholderIndex))
		args = append(args, *filter.CreatorID)
		placeholderIndex++
	}

	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")

	if filter.Limit > 0 {
		queryBuilder.WriteString(" LIMIT $" + strconv.Itoa(placeholderIndex))
		args = append(args, filter.Limit)
		placeholderIndex++
	}
	if filter.Offset > 0 {
		queryBuilder.WriteString(" OFFSET $" + strconv.Itoa(placeholderIndex))
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	executor := getExecutor(exec, r.db)
	query := `
		UPDATE tournaments
		SET name = $1, definition = $2, podium = $3, published = $4
		WHERE id = $5`

	result, err := executor.ExecContext(ctx, query, t.Name, t.Definition, pq.Array(t.Podium), t.Published, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update tournament %d: %w", t.ID, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := getExecutor(exec, r.db)
	result, err := executor.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		if code, _, ok := pqConstraint(err); ok && code == "23503" {
			return ErrTournamentInUse
		}
		return fmt.Errorf("failed to delete tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) ListActiveIDs(ctx context.Context) ([]int, error) {
	query := `
		SELECT t.id
		FROM tournaments t
		WHERE t.published
		  AND EXISTS (SELECT 1 FROM stages s JOIN fixtures f ON f.stage_id = s.id WHERE s.tournament_id = t.id)
		  AND NOT EXISTS (SELECT 1 FROM participations p WHERE p.tournament_id = t.id AND p.podium_position IS NOT NULL)
		ORDER BY t.id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tournaments: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan active tournament id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during active tournament rows iteration: %w", err)
	}
	return ids, nil
}

func (r *postgresTournamentRepository) ListProgress(ctx context.Context, ids []int) (map[int]TournamentProgress, error) {
	query := `
		SELECT t.id,
		       EXISTS (SELECT 1 FROM stages s JOIN fixtures f ON f.stage_id = s.id WHERE s.tournament_id = t.id),
		       EXISTS (SELECT 1 FROM participations p WHERE p.tournament_id = t.id AND p.podium_position IS NOT NULL)
		FROM tournaments t
		WHERE t.id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query tournament progress: %w", err)
	}
	defer rows.Close()

	progress := make(map[int]TournamentProgress, len(ids))
	for rows.Next() {
		var id int
		var p TournamentProgress
		if err := rows.Scan(&id, &p.HasFixtures, &p.HasPodium); err != nil {
			return nil, fmt.Errorf("failed to scan tournament progress row: %w", err)
		}
		progress[id] = p
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament progress rows iteration: %w", err)
	}
	return progress, nil
}
