package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournaments/models"
)

var (
	ErrParticipantNotFound      = errors.New("participant not found")
	ErrParticipantNameConflict  = errors.New("participant name already taken")
	ErrParticipationNotFound    = errors.New("participation not found")
	ErrParticipationConflict    = errors.New("participant already takes part in this tournament")
	ErrParticipationSlotTaken   = errors.New("participation slot already taken")
	ErrParticipationPodiumTaken = errors.New("podium position already taken")
)

// PodiumCount is the number of times a participant finished at a podium position.
type PodiumCount struct {
	Position      int    `json:"position"`
	ParticipantID int    `json:"participant_id"`
	Name          string `json:"name"`
	Count         int    `json:"count"`
}

type ParticipantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error
	FindByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error)
	FindByUserID(ctx context.Context, exec SQLExecutor, userID int) (*models.Participant, error)
	FindByName(ctx context.Context, exec SQLExecutor, name string) (*models.Participant, error)

	CreateParticipation(ctx context.Context, exec SQLExecutor, p *models.Participation) error
	DeleteParticipation(ctx context.Context, exec SQLExecutor, tournamentID, participantID int) error
	DeleteParticipations(ctx context.Context, exec SQLExecutor, tournamentID int) error
	// ListParticipations returns the participations in slot order, with their participants.
	ListParticipations(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Participation, error)
	NextSlotID(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	// UpdateSlots writes new slot ids (participation id -> slot id).
	UpdateSlots(ctx context.Context, exec SQLExecutor, tournamentID int, slots map[int]int) error
	// UpdatePodium replaces the podium positions of a tournament (participation id -> position).
	UpdatePodium(ctx context.Context, exec SQLExecutor, tournamentID int, positions map[int]int) error
	PodiumCounts(ctx context.Context, positions int) ([]PodiumCount, error)
	// DeleteOrphanPlaceholders removes placeholder participants without any participation.
	DeleteOrphanPlaceholders(ctx context.Context, exec SQLExecutor) (int64, error)
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error {
	executor := getExecutor(exec, r.db)
	query := `
		INSERT INTO participants (name, user_id)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, p.Name, nullableInt(p.UserID)).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if code, constraint, ok := pqConstraint(err); ok && code == "23505" {
			if constraint == "participants_name_key" || constraint == "participants_user_id_key" {
				return ErrParticipantNameConflict
			}
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

func (r *postgresParticipantRepository) FindByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error) {
	return r.findOne(ctx, exec, `WHERE id = $1`, id)
}

func (r *postgresParticipantRepository) FindByUserID(ctx context.Context, exec SQLExecutor, userID int) (*models.Participant, error) {
	return r.findOne(ctx, exec, `WHERE user_id = $1`, userID)
}

func (r *postgresParticipantRepository) FindByName(ctx context.Context, exec SQLExecutor, name string) (*models.Participant, error) {
	return r.findOne(ctx, exec, `WHERE name = $1`, name)
}

func (r *postgresParticipantRepository) findOne(ctx context.Context, exec SQLExecutor, where string, arg interface{}) (*models.Participant, error) {
	executor := getExecutor(exec, r.db)
	query := `SELECT id, name, user_id, created_at FROM participants ` + where

	p := &models.Participant{}
	var userID sql.NullInt64
	err := executor.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.Name, &userID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	p.UserID = intFromNull(userID)
	return p, nil
}

func (r *postgresParticipantRepository) CreateParticipation(ctx context.Context, exec SQLExecutor, p *models.Participation) error {
	executor := getExecutor(exec, r.db)
	query := `
		INSERT INTO participations (tournament_id, participant_id, slot_id)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := executor.QueryRowContext(ctx, query, p.TournamentID, p.ParticipantID, p.SlotID).Scan(&p.ID)
	return r.handleParticipationError(err)
}

func (r *postgresParticipantRepository) DeleteParticipation(ctx context.Context, exec SQLExecutor, tournamentID, participantID int) error {
	executor := getExecutor(exec, r.db)
	result, err := executor.ExecContext(ctx,
		`DELETE FROM participations WHERE tournament_id = $1 AND participant_id = $2`, tournamentID, participantID)
	if err != nil {
		return fmt.Errorf("failed to delete participation: %w", err)
	}
	return checkAffectedRows(result, ErrParticipationNotFound)
}

func (r *postgresParticipantRepository) DeleteParticipations(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := getExecutor(exec, r.db)
	if _, err := executor.ExecContext(ctx, `DELETE FROM participations WHERE tournament_id = $1`, tournamentID); err != nil {
		return fmt.Errorf("failed to delete participations of tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresParticipantRepository) ListParticipations(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Participation, error) {
	executor := getExecutor(exec, r.db)
	query := `
		SELECT pn.id, pn.tournament_id, pn.participant_id, pn.slot_id, pn.podium_position,
		       p.name, p.user_id, p.created_at
		FROM participations pn
		JOIN participants p ON p.id = pn.participant_id
		WHERE pn.tournament_id = $1
		ORDER BY pn.slot_id ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participations for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	participations := make([]*models.Participation, 0)
	for rows.Next() {
		pn := &models.Participation{Participant: &models.Participant{}}
		var podium, userID sql.NullInt64
		if err := rows.Scan(
			&pn.ID, &pn.TournamentID, &pn.ParticipantID, &pn.SlotID, &podium,
			&pn.Participant.Name, &userID, &pn.Participant.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan participation row: %w", err)
		}
		pn.PodiumPosition = intFromNull(podium)
		pn.Participant.ID = pn.ParticipantID
		pn.Participant.UserID = intFromNull(userID)
		participations = append(participations, pn)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during participation rows iteration: %w", err)
	}
	return participations, nil
}

func (r *postgresParticipantRepository) NextSlotID(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := getExecutor(exec, r.db)
	var next int
	err := executor.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(slot_id) + 1, 0) FROM participations WHERE tournament_id = $1`, tournamentID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next slot for tournament %d: %w", tournamentID, err)
	}
	return next, nil
}

// UpdateSlots moves every participation above the current maximum first, so
// the immediate unique constraint on (tournament_id, slot_id) never sees two
// participations on one slot while the permutation is written.
func (r *postgresParticipantRepository) UpdateSlots(ctx context.Context, exec SQLExecutor, tournamentID int, slots map[int]int) error {
	executor := getExecutor(exec, r.db)
	offset, err := r.NextSlotID(ctx, executor, tournamentID)
	if err != nil {
		return err
	}

	query := `UPDATE participations SET slot_id = $1 WHERE id = $2 AND tournament_id = $3`
	ids := sortedKeys(slots)
	for _, phase := range []int{offset, 0} {
		for _, participationID := range ids {
			result, err := executor.ExecContext(ctx, query, phase+slots[participationID], participationID, tournamentID)
			if err != nil {
				return r.handleParticipationError(err)
			}
			if err := checkAffectedRows(result, ErrParticipationNotFound); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *postgresParticipantRepository) UpdatePodium(ctx context.Context, exec SQLExecutor, tournamentID int, positions map[int]int) error {
	executor := getExecutor(exec, r.db)
	if _, err := executor.ExecContext(ctx,
		`UPDATE participations SET podium_position = NULL WHERE tournament_id = $1 AND podium_position IS NOT NULL`, tournamentID); err != nil {
		return fmt.Errorf("failed to reset podium of tournament %d: %w", tournamentID, err)
	}

	query := `UPDATE participations SET podium_position = $1 WHERE id = $2 AND tournament_id = $3`
	for _, participationID := range sortedKeys(positions) {
		result, err := executor.ExecContext(ctx, query, positions[participationID], participationID, tournamentID)
		if err != nil {
			return r.handleParticipationError(err)
		}
		if err := checkAffectedRows(result, ErrParticipationNotFound); err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresParticipantRepository) PodiumCounts(ctx context.Context, positions int) ([]PodiumCount, error) {
	query := `
		SELECT pn.podium_position, p.id, p.name, COUNT(*)
		FROM participations pn
		JOIN participants p ON p.id = pn.participant_id
		WHERE pn.podium_position IS NOT NULL AND pn.podium_position < $1
		GROUP BY pn.podium_position, p.id, p.name
		ORDER BY pn.podium_position ASC, COUNT(*) DESC, p.name ASC`

	rows, err := r.db.QueryContext(ctx, query, positions)
	if err != nil {
		return nil, fmt.Errorf("failed to query podium counts: %w", err)
	}
	defer rows.Close()

	counts := make([]PodiumCount, 0)
	for rows.Next() {
		var c PodiumCount
		if err := rows.Scan(&c.Position, &c.ParticipantID, &c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan podium count row: %w", err)
		}
		counts = append(counts, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during podium count rows iteration: %w", err)
	}
	return counts, nil
}

func (r *postgresParticipantRepository) DeleteOrphanPlaceholders(ctx context.Context, exec SQLExecutor) (int64, error) {
	executor := getExecutor(exec, r.db)
	query := `
		DELETE FROM participants p
		WHERE p.user_id IS NULL
		  AND NOT EXISTS (SELECT 1 FROM participations pn WHERE pn.participant_id = p.id)`

	result, err := executor.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan placeholders: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return deleted, nil
}

func (r *postgresParticipantRepository) handleParticipationError(err error) error {
	if err == nil {
		return nil
	}
	if code, constraint, ok := pqConstraint(err); ok {
		switch code {
		case "23505":
			switch constraint {
			case "participations_tournament_participant_key":
				return ErrParticipationConflict
			case "participations_tournament_slot_key":
				return ErrParticipationSlotTaken
			case "participations_tournament_podium_key":
				return ErrParticipationPodiumTaken
			}
		case "23503":
			switch constraint {
			case "participations_tournament_id_fkey":
				return ErrTournamentNotFound
			case "participations_participant_id_fkey":
				return ErrParticipantNotFound
			}
		}
	}
	return fmt.Errorf("participation query failed: %w", err)
}
