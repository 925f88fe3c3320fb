package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Dosada05/tournaments/models"
)

var (
	ErrStageNotFound           = errors.New("stage not found")
	ErrStageIdentifierConflict = errors.New("stage identifier already used in this tournament")
)

type StageRepository interface {
	Create(ctx context.Context, exec SQLExecutor, stage *models.Stage) error
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Stage, error)
	UpdateGroupsInfo(ctx context.Context, exec SQLExecutor, stage *models.Stage) error
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresStageRepository struct {
	db *sql.DB
}

func NewPostgresStageRepository(db *sql.DB) StageRepository {
	return &postgresStageRepository{db: db}
}

func (r *postgresStageRepository) Create(ctx context.Context, exec SQLExecutor, s *models.Stage) error {
	executor := getExecutor(exec, r.db)
	query := `
		INSERT INTO stages
			(tournament_id, position, identifier, name, mode, played_by,
			 min_group_size, max_group_size, with_returns, double_elimination, groups_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	var minSize, maxSize sql.NullInt64
	withReturns, double := false, false
	// division sizes are implied by the mode
	if s.Groups != nil {
		withReturns = s.Groups.WithReturns
		if s.Mode == models.StageModeGroups {
			minSize = sql.NullInt64{Int64: int64(s.Groups.MinGroupSize), Valid: true}
			maxSize = sql.NullInt64{Int64: int64(s.Groups.MaxGroupSize), Valid: true}
		}
	}
	if s.Knockout != nil {
		double = s.Knockout.DoubleElimination
	}
	groupsInfo, err := marshalGroupsInfo(s.GroupsInfo)
	if err != nil {
		return err
	}

	err = executor.QueryRowContext(ctx, query,
		s.TournamentID, s.Position, s.Identifier, s.Name, s.Mode, pq.Array(s.PlayedBy),
		minSize, maxSize, withReturns, double, groupsInfo,
	).Scan(&s.ID)
	if err != nil {
		if code, constraint, ok := pqConstraint(err); ok && code == "23505" && constraint == "stages_tournament_identifier_key" {
			return ErrStageIdentifierConflict
		}
		return fmt.Errorf("failed to create stage %q: %w", s.Identifier, err)
	}
	return nil
}

func (r *postgresStageRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Stage, error) {
	executor := getExecutor(exec, r.db)
	query := `
		SELECT id, tournament_id, position, identifier, name, mode, played_by,
		       min_group_size, max_group_size, with_returns, double_elimination, groups_info
		FROM stages
		WHERE tournament_id = $1
		ORDER BY position ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stages for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	result := make([]*models.Stage, 0)
	for rows.Next() {
		s := &models.Stage{}
		var minSize, maxSize sql.NullInt64
		var withReturns, double bool
		var groupsInfo []byte
		if err := rows.Scan(
			&s.ID, &s.TournamentID, &s.Position, &s.Identifier, &s.Name, &s.Mode, pq.Array(&s.PlayedBy),
			&minSize, &maxSize, &withReturns, &double, &groupsInfo,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stage row: %w", err)
		}

		switch s.Mode {
		case models.StageModeGroups, models.StageModeDivision:
			s.Groups = &models.GroupsSettings{WithReturns: withReturns}
			if minSize.Valid && maxSize.Valid {
				s.Groups.MinGroupSize = int(minSize.Int64)
				s.Groups.MaxGroupSize = int(maxSize.Int64)
			}
		case models.StageModeKnockout:
			s.Knockout = &models.KnockoutSettings{DoubleElimination: double}
		}
		if len(groupsInfo) > 0 {
			if err := json.Unmarshal(groupsInfo, &s.GroupsInfo); err != nil {
				return nil, fmt.Errorf("failed to decode groups of stage %d: %w", s.ID, err)
			}
		}
		result = append(result, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during stage rows iteration: %w", err)
	}
	return result, nil
}

func (r *postgresStageRepository) UpdateGroupsInfo(ctx context.Context, exec SQLExecutor, s *models.Stage) error {
	executor := getExecutor(exec, r.db)
	groupsInfo, err := marshalGroupsInfo(s.GroupsInfo)
	if err != nil {
		return err
	}
	result, err := executor.ExecContext(ctx, `UPDATE stages SET groups_info = $1 WHERE id = $2`, groupsInfo, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update groups of stage %d: %w", s.ID, err)
	}
	return checkAffectedRows(result, ErrStageNotFound)
}

func (r *postgresStageRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := getExecutor(exec, r.db)
	if _, err := executor.ExecContext(ctx, `DELETE FROM stages WHERE tournament_id = $1`, tournamentID); err != nil {
		return fmt.Errorf("failed to delete stages of tournament %d: %w", tournamentID, err)
	}
	return nil
}

func marshalGroupsInfo(groups [][]int) (interface{}, error) {
	if groups == nil {
		return nil, nil
	}
	raw, err := json.Marshal(groups)
	if err != nil {
		return nil, fmt.Errorf("failed to encode groups: %w", err)
	}
	return string(raw), nil
}
