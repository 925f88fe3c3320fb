package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	database "github.com/Dosada05/tournaments/db"
	"github.com/Dosada05/tournaments/definition"
	"github.com/Dosada05/tournaments/engine"
	"github.com/Dosada05/tournaments/metrics"
	"github.com/Dosada05/tournaments/models"
	"github.com/Dosada05/tournaments/repositories"
	"github.com/Dosada05/tournaments/storage"
)

const (
	// MinParticipants is the smallest field a tournament can be started with.
	MinParticipants = 3
	// PodiumPositions is the number of podium positions counted in the hall of fame.
	PodiumPositions = 3

	defaultDryRunParticipants = 16
)

var serializable = &sql.TxOptions{Isolation: sql.LevelSerializable}

type CreateTournamentInput struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

type UpdateTournamentInput struct {
	Name       *string `json:"name,omitempty"`
	Definition *string `json:"definition,omitempty"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, creatorID int, input CreateTournamentInput) (*models.Tournament, error)
	CloneTournament(ctx context.Context, userID, tournamentID int) (*models.Tournament, error)
	UpdateTournament(ctx context.Context, userID, tournamentID int, input UpdateTournamentInput) (*models.Tournament, error)
	DeleteTournament(ctx context.Context, userID, tournamentID int) error
	ValidateDefinition(ctx context.Context, raw string) error

	GetTournament(ctx context.Context, tournamentID int) (*TournamentView, error)
	ListTournaments(ctx context.Context, viewerID *int) (*TournamentIndex, error)
	PodiumCounts(ctx context.Context) ([]repositories.PodiumCount, error)

	PublishTournament(ctx context.Context, userID, tournamentID int) (*models.Tournament, error)
	UnpublishTournament(ctx context.Context, userID, tournamentID int) (*models.Tournament, error)
	Join(ctx context.Context, userID int, name string, tournamentID int) error
	Withdraw(ctx context.Context, userID, tournamentID int) error
	SetParticipants(ctx context.Context, userID, tournamentID int, names []string) ([]*models.Participation, error)

	StartTournament(ctx context.Context, userID, tournamentID int) (*TournamentView, error)
	ProgressTournament(ctx context.Context, tournamentID int) error
	ProgressActive(ctx context.Context) (int, error)
}

type TournamentServiceOptions struct {
	// DryRunParticipants is the field size a definition is tested with before it is saved.
	DryRunParticipants int
	// Seed fixes the shuffle of the participants; zero seeds from the clock.
	Seed int64
}

type tournamentService struct {
	db      database.TxBeginner
	store   *store
	archive storage.DefinitionArchive
	metrics *metrics.Metrics
	logger  *slog.Logger

	dryRunParticipants int
	seed               int64
}

func NewTournamentService(
	db database.TxBeginner,
	tournamentRepo repositories.TournamentRepository,
	stageRepo repositories.StageRepository,
	fixtureRepo repositories.FixtureRepository,
	participantRepo repositories.ParticipantRepository,
	archive storage.DefinitionArchive,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts TournamentServiceOptions,
) TournamentService {
	if logger == nil {
		logger = slog.Default()
	}
	if archive == nil {
		archive = storage.NewDefinitionArchive(nil, logger)
	}
	if opts.DryRunParticipants < 2 {
		opts.DryRunParticipants = defaultDryRunParticipants
	}
	return &tournamentService{
		db: db,
		store: &store{
			tournaments:  tournamentRepo,
			stages:       stageRepo,
			fixtures:     fixtureRepo,
			participants: participantRepo,
		},
		archive:            archive,
		metrics:            m,
		logger:             logger,
		dryRunParticipants: opts.DryRunParticipants,
		seed:               opts.Seed,
	}
}

func (s *tournamentService) withTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	return database.WithTx(ctx, s.db, opts, s.logger, fn)
}

// checkDefinition parses a definition and plays it through with placeholder participants.
func (s *tournamentService) checkDefinition(ctx context.Context, raw string, participants int) (*models.Definition, error) {
	def, err := definition.Parse([]byte(raw))
	if err != nil {
		return nil, &DefinitionError{Errors: []error{err}}
	}
	errs := engine.Test(ctx, def, participants, s.logger)
	s.metrics.DryRun(len(errs) == 0)
	if len(errs) > 0 {
		return nil, &DefinitionError{Errors: errs}
	}
	return def, nil
}

func (s *tournamentService) ValidateDefinition(ctx context.Context, raw string) error {
	_, err := s.checkDefinition(ctx, raw, s.dryRunParticipants)
	return err
}

func (s *tournamentService) CreateTournament(ctx context.Context, creatorID int, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameNeeded
	}
	def, err := s.checkDefinition(ctx, input.Definition, s.dryRunParticipants)
	if err != nil {
		return nil, err
	}
	t, err := engine.Load(def, name, &creatorID)
	if err != nil {
		return nil, &DefinitionError{Errors: []error{err}}
	}
	t.Definition = input.Definition

	err = s.withTx(ctx, nil, func(tx *sql.Tx) error {
		if err := s.store.tournaments.Create(ctx, tx, t); err != nil {
			return err
		}
		return s.store.createStages(ctx, tx, t)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	s.logger.InfoContext(ctx, "Tournament created",
		slog.Int("tournament_id", t.ID),
		slog.Int("creator_id", creatorID),
		slog.Int("stages", len(t.Stages)))
	return t, nil
}

func (s *tournamentService) CloneTournament(ctx context.Context, userID, tournamentID int) (*models.Tournament, error) {
	source, err := s.store.tournaments.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return s.CreateTournament(ctx, userID, CreateTournamentInput{
		Name:       source.Name + " (Copy)",
		Definition: source.Definition,
	})
}

func (s *tournamentService) UpdateTournament(ctx context.Context, userID, tournamentID int, input UpdateTournamentInput) (*models.Tournament, error) {
	var loaded *models.Tournament
	if input.Definition != nil {
		def, err := s.checkDefinition(ctx, *input.Definition, s.dryRunParticipants)
		if err != nil {
			return nil, err
		}
		if loaded, err = engine.Load(def, "", nil); err != nil {
			return nil, &DefinitionError{Errors: []error{err}}
		}
	}
	var name string
	if input.Name != nil {
		if name = strings.TrimSpace(*input.Name); name == "" {
			return nil, ErrTournamentNameNeeded
		}
	}

	var t *models.Tournament
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		var err error
		if t, err = s.store.tournaments.GetForUpdate(ctx, tx, tournamentID); err != nil {
			return mapRepositoryError(err)
		}
		if err := requireCreator(t, userID); err != nil {
			return err
		}
		if t.Published {
			return fmt.Errorf("%w: only drafts can be edited", ErrInvalidTournamentState)
		}

		if name != "" {
			t.Name = name
		}
		if loaded != nil {
			if err := s.store.stages.DeleteByTournament(ctx, tx, t.ID); err != nil {
				return err
			}
			t.Definition = *input.Definition
			t.Podium = loaded.Podium
			t.Stages = loaded.Stages
			if err := s.store.createStages(ctx, tx, t); err != nil {
				return err
			}
		}
		return mapRepositoryError(s.store.tournaments.Update(ctx, tx, t))
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *tournamentService) DeleteTournament(ctx context.Context, userID, tournamentID int) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		t, err := s.store.tournaments.GetForUpdate(ctx, tx, tournamentID)
		if err != nil {
			return mapRepositoryError(err)
		}
		if err := requireCreator(t, userID); err != nil {
			return err
		}
		if t.Published {
			return fmt.Errorf("%w: only drafts can be deleted", ErrInvalidTournamentState)
		}
		return mapRepositoryError(s.store.tournaments.Delete(ctx, tx, t.ID))
	})
}

func (s *tournamentService) GetTournament(ctx context.Context, tournamentID int) (*TournamentView, error) {
	t, err := s.store.load(ctx, nil, tournamentID, false)
	if err != nil {
		return nil, err
	}
	return buildTournamentView(engine.New(t, s.logger))
}

func (s *tournamentService) ListTournaments(ctx context.Context, viewerID *int) (*TournamentIndex, error) {
	index := &TournamentIndex{
		Drafts:   []TournamentSummary{},
		Open:     []TournamentSummary{},
		Active:   []TournamentSummary{},
		Finished: []TournamentSummary{},
	}

	published := true
	list, err := s.store.tournaments.List(ctx, repositories.ListTournamentsFilter{Published: &published})
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(list))
	for i, t := range list {
		ids[i] = t.ID
	}
	progress := map[int]repositories.TournamentProgress{}
	if len(ids) > 0 {
		if progress, err = s.store.tournaments.ListProgress(ctx, ids); err != nil {
			return nil, err
		}
	}
	for _, t := range list {
		summary := summarize(t, stateOf(true, progress[t.ID]))
		switch summary.State {
		case models.StateOpen:
			index.Open = append(index.Open, summary)
		case models.StateActive:
			index.Active = append(index.Active, summary)
		case models.StateFinished:
			index.Finished = append(index.Finished, summary)
		}
	}

	if viewerID != nil {
		draft := false
		drafts, err := s.store.tournaments.List(ctx, repositories.ListTournamentsFilter{Published: &draft, CreatorID: viewerID})
		if err != nil {
			return nil, err
		}
		for _, t := range drafts {
			index.Drafts = append(index.Drafts, summarize(t, models.StateDraft))
		}
	}
	return index, nil
}

func summarize(t *models.Tournament, state models.TournamentState) TournamentSummary {
	return TournamentSummary{ID: t.ID, Name: t.Name, State: state, CreatorID: t.CreatorID, CreatedAt: t.CreatedAt}
}

func (s *tournamentService) PodiumCounts(ctx context.Context) ([]repositories.PodiumCount, error) {
	return s.store.participants.PodiumCounts(ctx, PodiumPositions)
}

func (s *tournamentService) PublishTournament(ctx context.Context, userID, tournamentID int) (*models.Tournament, error) {
	var t *models.Tournament
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		var err error
		if t, err = s.store.tournaments.GetForUpdate(ctx, tx, tournamentID); err != nil {
			return mapRepositoryError(err)
		}
		if err := requireCreator(t, userID); err != nil {
			return err
		}
		if t.Published {
			return fmt.Errorf("%w: tournament is already published", ErrInvalidTournamentState)
		}
		t.Published = true
		return mapRepositoryError(s.store.tournaments.Update(ctx, tx, t))
	})
	if err != nil {
		return nil, err
	}

	// the archive is a copy; publishing does not depend on it
	if _, err := s.archive.Archive(ctx, t); err != nil {
		s.logger.WarnContext(ctx, "Failed to archive definition", slog.Int("tournament_id", t.ID), slog.Any("error", err))
	}
	s.logger.InfoContext(ctx, "Tournament published", slog.Int("tournament_id", t.ID))
	return t, nil
}

func (s *tournamentService) UnpublishTournament(ctx context.Context, userID, tournamentID int) (*models.Tournament, error) {
	var t *models.Tournament
	err := s.withTx(ctx, serializable, func(tx *sql.Tx) error {
		var err error
		if t, err = s.store.load(ctx, tx, tournamentID, true); err != nil {
			return err
		}
		if err := requireCreator(t, userID); err != nil {
			return err
		}
		if state := engine.New(t, s.logger).State(); state != models.StateOpen {
			return fmt.Errorf("%w: tournament is %s", ErrInvalidTournamentState, state)
		}
		if err := s.store.participants.DeleteParticipations(ctx, tx, t.ID); err != nil {
			return err
		}
		t.Participations = nil
		t.Published = false
		return mapRepositoryError(s.store.tournaments.Update(ctx, tx, t))
	})
	if err != nil {
		return nil, err
	}

	if err := s.archive.Remove(ctx, t); err != nil {
		s.logger.WarnContext(ctx, "Failed to remove archived definition", slog.Int("tournament_id", t.ID), slog.Any("error", err))
	}
	return t, nil
}

// openTournament loads and locks a tournament that must be open for registration.
func (s *tournamentService) openTournament(ctx context.Context, tx *sql.Tx, tournamentID int) (*models.Tournament, error) {
	t, err := s.store.load(ctx, tx, tournamentID, true)
	if err != nil {
		return nil, err
	}
	if state := engine.New(t, s.logger).State(); state != models.StateOpen {
		return nil, fmt.Errorf("%w: tournament is %s", ErrInvalidTournamentState, state)
	}
	return t, nil
}

func (s *tournamentService) Join(ctx context.Context, userID int, name string, tournamentID int) error {
	return s.withTx(ctx, serializable, func(tx *sql.Tx) error {
		t, err := s.openTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if t.ParticipationForUser(userID) != nil {
			return nil
		}

		participant, err := s.store.participants.FindByUserID(ctx, tx, userID)
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			name = strings.TrimSpace(name)
			if name == "" {
				name = fmt.Sprintf("user-%d", userID)
			}
			participant = &models.Participant{Name: name, UserID: &userID}
			err = s.store.participants.Create(ctx, tx, participant)
		}
		if err != nil {
			return mapRepositoryError(err)
		}

		slot, err := s.store.participants.NextSlotID(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		participation := &models.Participation{TournamentID: t.ID, ParticipantID: participant.ID, SlotID: slot}
		if err := s.store.participants.CreateParticipation(ctx, tx, participation); err != nil {
			return mapRepositoryError(err)
		}
		s.logger.InfoContext(ctx, "Participant joined",
			slog.Int("tournament_id", t.ID),
			slog.Int("participant_id", participant.ID),
			slog.Int("slot_id", slot))
		return nil
	})
}

func (s *tournamentService) Withdraw(ctx context.Context, userID, tournamentID int) error {
	return s.withTx(ctx, serializable, func(tx *sql.Tx) error {
		t, err := s.openTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		participation := t.ParticipationForUser(userID)
		if participation == nil {
			return nil
		}
		return mapRepositoryError(s.store.participants.DeleteParticipation(ctx, tx, t.ID, participation.ParticipantID))
	})
}

// SetParticipants replaces the participant list of an open tournament. Names of
// unknown participants create placeholders; the order of names becomes the slot order.
func (s *tournamentService) SetParticipants(ctx context.Context, userID, tournamentID int, names []string) ([]*models.Participation, error) {
	cleaned := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		cleaned = append(cleaned, name)
	}

	var ordered []*models.Participation
	err := s.withTx(ctx, serializable, func(tx *sql.Tx) error {
		t, err := s.openTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if err := requireCreator(t, userID); err != nil {
			return err
		}

		byParticipant := make(map[int]*models.Participation, len(t.Participations))
		for _, p := range t.Participations {
			if p.Participant != nil && !seen[p.Participant.Name] {
				if err := s.store.participants.DeleteParticipation(ctx, tx, t.ID, p.ParticipantID); err != nil {
					return mapRepositoryError(err)
				}
				continue
			}
			byParticipant[p.ParticipantID] = p
		}
		if _, err := s.store.participants.DeleteOrphanPlaceholders(ctx, tx); err != nil {
			return err
		}

		ordered = make([]*models.Participation, 0, len(cleaned))
		for _, name := range cleaned {
			participant, err := s.store.participants.FindByName(ctx, tx, name)
			if errors.Is(err, repositories.ErrParticipantNotFound) {
				participant = &models.Participant{Name: name}
				err = s.store.participants.Create(ctx, tx, participant)
			}
			if err != nil {
				return mapRepositoryError(err)
			}

			participation, ok := byParticipant[participant.ID]
			if !ok {
				slot, err := s.store.participants.NextSlotID(ctx, tx, t.ID)
				if err != nil {
					return err
				}
				participation = &models.Participation{TournamentID: t.ID, ParticipantID: participant.ID, SlotID: slot}
				if err := s.store.participants.CreateParticipation(ctx, tx, participation); err != nil {
					return mapRepositoryError(err)
				}
			}
			participation.Participant = participant
			ordered = append(ordered, participation)
		}

		slots := make(map[int]int, len(ordered))
		for i, p := range ordered {
			slots[p.ID] = i
			p.SlotID = i
		}
		return s.store.participants.UpdateSlots(ctx, tx, t.ID, slots)
	})
	if err != nil {
		return nil, err
	}
	return ordered, nil
}

func (s *tournamentService) StartTournament(ctx context.Context, userID, tournamentID int) (*TournamentView, error) {
	var e *engine.Engine
	err := s.withTx(ctx, serializable, func(tx *sql.Tx) error {
		t, err := s.openTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if t.CreatorID != nil && *t.CreatorID != userID {
			return ErrForbiddenOperation
		}
		if len(t.Participations) < MinParticipants {
			return fmt.Errorf("%w: %d joined, %d required", ErrNotEnoughParticipants, len(t.Participations), MinParticipants)
		}
		if _, err := s.checkDefinition(ctx, t.Definition, len(t.Participations)); err != nil {
			return err
		}

		snap := takeSnapshot(t)
		e = engine.New(t, s.logger)
		e.ShuffleParticipants(s.newRand())
		slots := make(map[int]int, len(t.Participations))
		for _, p := range t.Participations {
			slots[p.ID] = p.SlotID
		}
		if err := s.store.participants.UpdateSlots(ctx, tx, t.ID, slots); err != nil {
			return err
		}

		if err := e.UpdateState(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrValidationFailed, err)
		}
		return s.store.save(ctx, tx, t, snap, s.metrics)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Tournament started",
		slog.Int("tournament_id", tournamentID),
		slog.Int("participants", len(e.Tournament().Participations)))
	return buildTournamentView(e)
}

func (s *tournamentService) newRand() *rand.Rand {
	seed := s.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// ProgressTournament runs the state update of an active tournament and stores the outcome.
func (s *tournamentService) ProgressTournament(ctx context.Context, tournamentID int) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		t, err := s.store.load(ctx, tx, tournamentID, true)
		if err != nil {
			return err
		}
		e := engine.New(t, s.logger)
		if e.State() != models.StateActive {
			return nil
		}
		snap := takeSnapshot(t)
		if err := e.UpdateState(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrValidationFailed, err)
		}
		return s.store.save(ctx, tx, t, snap, s.metrics)
	})
}

// ProgressActive progresses every active tournament and returns how many were visited.
// A failing tournament does not stop the others.
func (s *tournamentService) ProgressActive(ctx context.Context) (int, error) {
	started := time.Now()
	ids, err := s.store.tournaments.ListActiveIDs(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.ProgressTournament(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "Failed to progress tournament", slog.Int("tournament_id", id), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("tournament %d: %w", id, err))
		}
	}
	s.metrics.Sweep(len(ids), time.Since(started))
	return len(ids), errors.Join(errs...)
}
