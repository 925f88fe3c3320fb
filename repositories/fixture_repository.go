package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Dosada05/tournaments/models"
)

var (
	ErrFixtureNotFound        = errors.New("fixture not found")
	ErrFixtureScoreIncomplete = errors.New("fixture scores must be both set or both empty")
)

type FixtureRepository interface {
	Create(ctx context.Context, exec SQLExecutor, fixture *models.Fixture) error
	ListByStages(ctx context.Context, exec SQLExecutor, stageIDs []int) ([]*models.Fixture, error)
	// Update stores the players and the score of a fixture.
	Update(ctx context.Context, exec SQLExecutor, fixture *models.Fixture) error

	// AddConfirmation reports false when the participant had already confirmed.
	AddConfirmation(ctx context.Context, exec SQLExecutor, fixtureID, participantID int) (bool, error)
	ClearConfirmations(ctx context.Context, exec SQLExecutor, fixtureID int) error
	ListConfirmations(ctx context.Context, exec SQLExecutor, fixtureIDs []int) (map[int][]int, error)
}

type postgresFixtureRepository struct {
	db *sql.DB
}

func NewPostgresFixtureRepository(db *sql.DB) FixtureRepository {
	return &postgresFixtureRepository{db: db}
}

func edgeColumns(e *models.Edge) (sql.NullInt64, sql.NullInt64) {
	if e == nil {
		return sql.NullInt64{}, sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(e.Index), Valid: true}, sql.NullInt64{Int64: int64(e.Slot), Valid: true}
}

func edgeFromColumns(index, slot sql.NullInt64) *models.Edge {
	if !index.Valid || !slot.Valid {
		return nil
	}
	return &models.Edge{Index: int(index.Int64), Slot: int(slot.Int64)}
}

func (r *postgresFixtureRepository) Create(ctx context.Context, exec SQLExecutor, f *models.Fixture) error {
	executor := getExecutor(exec, r.db)
	query := `
		INSERT INTO fixtures
			(stage_id, idx, level, tree, tree_position, player1_id, player2_id, score1, score2,
			 winner_to_idx, winner_to_slot, loser_to_idx, loser_to_slot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	winnerIdx, winnerSlot := edgeColumns(f.WinnerTo)
	loserIdx, loserSlot := edgeColumns(f.LoserTo)
	err := executor.QueryRowContext(ctx, query,
		f.StageID, f.Index, f.Level, f.Tree, f.TreePosition,
		nullableInt(f.Player1ID), nullableInt(f.Player2ID), nullableInt(f.Score1), nullableInt(f.Score2),
		winnerIdx, winnerSlot, loserIdx, loserSlot,
	).Scan(&f.ID)
	return r.handleFixtureError(err)
}

func (r *postgresFixtureRepository) ListByStages(ctx context.Context, exec SQLExecutor, stageIDs []int) ([]*models.Fixture, error) {
	executor := getExecutor(exec, r.db)
	query := `
		SELECT id, stage_id, idx, level, tree, tree_position, player1_id, player2_id, score1, score2,
		       winner_to_idx, winner_to_slot, loser_to_idx, loser_to_slot
		FROM fixtures
		WHERE stage_id = ANY($1)
		ORDER BY stage_id ASC, idx ASC`

	rows, err := executor.QueryContext(ctx, query, pq.Array(stageIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query fixtures: %w", err)
	}
	defer rows.Close()

	fixtures := make([]*models.Fixture, 0)
	for rows.Next() {
		f := &models.Fixture{}
		var player1, player2, score1, score2 sql.NullInt64
		var winnerIdx, winnerSlot, loserIdx, loserSlot sql.NullInt64
		if err := rows.Scan(
			&f.ID, &f.StageID, &f.Index, &f.Level, &f.Tree, &f.TreePosition,
			&player1, &player2, &score1, &score2,
			&winnerIdx, &winnerSlot, &loserIdx, &loserSlot,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fixture row: %w", err)
		}
		f.Player1ID, f.Player2ID = intFromNull(player1), intFromNull(player2)
		f.Score1, f.Score2 = intFromNull(score1), intFromNull(score2)
		f.WinnerTo = edgeFromColumns(winnerIdx, winnerSlot)
		f.LoserTo = edgeFromColumns(loserIdx, loserSlot)
		fixtures = append(fixtures, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during fixture rows iteration: %w", err)
	}
	return fixtures, nil
}

func (r *postgresFixtureRepository) Update(ctx context.Context, exec SQLExecutor, f *models.Fixture) error {
	executor := getExecutor(exec, r.db)
	query := `
		UPDATE fixtures
		SET player1_id = $1, player2_id = $2, score1 = $3, score2 = $4
		WHERE id = $5`

	result, err := executor.ExecContext(ctx, query,
		nullableInt(f.Player1ID), nullableInt(f.Player2ID), nullableInt(f.Score1), nullableInt(f.Score2), f.ID)
	if err != nil {
		return r.handleFixtureError(err)
	}
	return checkAffectedRows(result, ErrFixtureNotFound)
}

func (r *postgresFixtureRepository) AddConfirmation(ctx context.Context, exec SQLExecutor, fixtureID, participantID int) (bool, error) {
	executor := getExecutor(exec, r.db)
	query := `
		INSERT INTO fixture_confirmations (fixture_id, participant_id)
		VALUES ($1, $2)
		ON CONFLICT (fixture_id, participant_id) DO NOTHING`

	result, err := executor.ExecContext(ctx, query, fixtureID, participantID)
	if err != nil {
		return false, r.handleFixtureError(err)
	}
	if err := checkAffectedRows(result, errAlreadyConfirmed); err != nil {
		if errors.Is(err, errAlreadyConfirmed) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var errAlreadyConfirmed = errors.New("already confirmed")

func (r *postgresFixtureRepository) ClearConfirmations(ctx context.Context, exec SQLExecutor, fixtureID int) error {
	executor := getExecutor(exec, r.db)
	if _, err := executor.ExecContext(ctx, `DELETE FROM fixture_confirmations WHERE fixture_id = $1`, fixtureID); err != nil {
		return fmt.Errorf("failed to clear confirmations of fixture %d: %w", fixtureID, err)
	}
	return nil
}

func (r *postgresFixtureRepository) ListConfirmations(ctx context.Context, exec SQLExecutor, fixtureIDs []int) (map[int][]int, error) {
	executor := getExecutor(exec, r.db)
	query := `
		SELECT fixture_id, participant_id
		FROM fixture_confirmations
		WHERE fixture_id = ANY($1)
		ORDER BY fixture_id, participant_id`

	rows, err := executor.QueryContext(ctx, query, pq.Array(fixtureIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query confirmations: %w", err)
	}
	defer rows.Close()

	confirmations := make(map[int][]int)
	for rows.Next() {
		var fixtureID, participantID int
		if err := rows.Scan(&fixtureID, &participantID); err != nil {
			return nil, fmt.Errorf("failed to scan confirmation row: %w", err)
		}
		confirmations[fixtureID] = append(confirmations[fixtureID], participantID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during confirmation rows iteration: %w", err)
	}
	return confirmations, nil
}

func (r *postgresFixtureRepository) handleFixtureError(err error) error {
	if err == nil {
		return nil
	}
	if code, constraint, ok := pqConstraint(err); ok {
		switch code {
		case "23514":
			if constraint == "chk_fixture_score" {
				return ErrFixtureScoreIncomplete
			}
		case "23503":
			if constraint == "fixture_confirmations_fixture_id_fkey" || constraint == "fixtures_stage_id_fkey" {
				return ErrFixtureNotFound
			}
			return ErrParticipantNotFound
		}
	}
	return err
}
