package services

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/tournaments/metrics"
	"github.com/Dosada05/tournaments/models"
	"github.com/Dosada05/tournaments/repositories"
)

// store groups the repositories that make up a tournament aggregate.
type store struct {
	tournaments  repositories.TournamentRepository
	stages       repositories.StageRepository
	fixtures     repositories.FixtureRepository
	participants repositories.ParticipantRepository
}

// load reads a whole tournament aggregate. Without exec the parts are read in
// parallel from the pool; inside a transaction they are read one after another
// and the tournament row is locked when forUpdate is set.
func (s *store) load(ctx context.Context, exec repositories.SQLExecutor, id int, forUpdate bool) (*models.Tournament, error) {
	var (
		t   *models.Tournament
		err error
	)
	if forUpdate {
		t, err = s.tournaments.GetForUpdate(ctx, exec, id)
	} else {
		t, err = s.tournaments.GetByID(ctx, exec, id)
	}
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	if exec == nil {
		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return s.loadStages(gCtx, nil, t)
		})
		g.Go(func() error {
			return s.loadParticipations(gCtx, nil, t)
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return t, nil
	}

	if err := s.loadStages(ctx, exec, t); err != nil {
		return nil, err
	}
	if err := s.loadParticipations(ctx, exec, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *store) loadStages(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	list, err := s.stages.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return fmt.Errorf("failed to load stages of tournament %d: %w", t.ID, err)
	}
	t.Stages = list
	if len(list) == 0 {
		return nil
	}

	byID := make(map[int]*models.Stage, len(list))
	stageIDs := make([]int, len(list))
	for i, stage := range list {
		byID[stage.ID] = stage
		stageIDs[i] = stage.ID
	}

	fixtures, err := s.fixtures.ListByStages(ctx, exec, stageIDs)
	if err != nil {
		return fmt.Errorf("failed to load fixtures of tournament %d: %w", t.ID, err)
	}
	if len(fixtures) == 0 {
		return nil
	}

	fixtureIDs := make([]int, len(fixtures))
	for i, f := range fixtures {
		fixtureIDs[i] = f.ID
	}
	confirmations, err := s.fixtures.ListConfirmations(ctx, exec, fixtureIDs)
	if err != nil {
		return fmt.Errorf("failed to load confirmations of tournament %d: %w", t.ID, err)
	}

	for _, f := range fixtures {
		stage, ok := byID[f.StageID]
		if !ok {
			continue
		}
		f.Confirmations = confirmations[f.ID]
		stage.Fixtures = append(stage.Fixtures, f)
	}
	return nil
}

func (s *store) loadParticipations(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	participations, err := s.participants.ListParticipations(ctx, exec, t.ID)
	if err != nil {
		return fmt.Errorf("failed to load participations of tournament %d: %w", t.ID, err)
	}
	t.Participations = participations
	return nil
}

// createStages stores the stages of a freshly loaded definition.
func (s *store) createStages(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	for _, stage := range t.Stages {
		stage.TournamentID = t.ID
		if err := s.stages.Create(ctx, exec, stage); err != nil {
			return fmt.Errorf("failed to store stage %q: %w", stage.Identifier, err)
		}
	}
	return nil
}

// snapshot remembers the persisted state of an aggregate so that save only
// writes what the engine changed.
type snapshot struct {
	fixtures map[int]*models.Fixture
	grouped  map[int]bool
	podium   map[int]int
}

func takeSnapshot(t *models.Tournament) *snapshot {
	snap := &snapshot{
		fixtures: make(map[int]*models.Fixture),
		grouped:  make(map[int]bool),
		podium:   podiumPositions(t),
	}
	for _, stage := range t.Stages {
		snap.grouped[stage.ID] = stage.GroupsInfo != nil
		for _, f := range stage.Fixtures {
			snap.fixtures[f.ID] = f.Clone()
		}
	}
	return snap
}

func podiumPositions(t *models.Tournament) map[int]int {
	positions := make(map[int]int)
	for _, p := range t.Participations {
		if p.PodiumPosition != nil {
			positions[p.ID] = *p.PodiumPosition
		}
	}
	return positions
}

// save writes new fixtures, changed players and scores, frozen groups and the podium.
func (s *store) save(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, snap *snapshot, m *metrics.Metrics) error {
	for _, stage := range t.Stages {
		created := false
		for _, f := range stage.Fixtures {
			if f.ID == 0 {
				f.StageID = stage.ID
				if err := s.fixtures.Create(ctx, exec, f); err != nil {
					return fmt.Errorf("failed to store fixture %d of stage %q: %w", f.Index, stage.Identifier, err)
				}
				created = true
				continue
			}
			if previous, ok := snap.fixtures[f.ID]; ok && !fixtureChanged(previous, f) {
				continue
			}
			if err := s.fixtures.Update(ctx, exec, f); err != nil {
				return fmt.Errorf("failed to update fixture %d: %w", f.ID, mapRepositoryError(err))
			}
		}
		if created {
			m.StageCreated(string(stage.Mode))
		}
		if stage.GroupsInfo != nil && !snap.grouped[stage.ID] {
			if err := s.stages.UpdateGroupsInfo(ctx, exec, stage); err != nil {
				return fmt.Errorf("failed to store groups of stage %q: %w", stage.Identifier, err)
			}
		}
	}

	podium := podiumPositions(t)
	if !maps.Equal(podium, snap.podium) {
		if err := s.participants.UpdatePodium(ctx, exec, t.ID, podium); err != nil {
			return fmt.Errorf("failed to store podium of tournament %d: %w", t.ID, err)
		}
		if len(podium) > 0 && len(snap.podium) == 0 {
			m.TournamentFinished()
		}
	}
	return nil
}

func fixtureChanged(a, b *models.Fixture) bool {
	return !intPtrEqual(a.Player1ID, b.Player1ID) ||
		!intPtrEqual(a.Player2ID, b.Player2ID) ||
		!intPtrEqual(a.Score1, b.Score1) ||
		!intPtrEqual(a.Score2, b.Score2)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// stateOf derives the lifecycle state from stored flags, without an engine.
func stateOf(published bool, progress repositories.TournamentProgress) models.TournamentState {
	switch {
	case !published:
		return models.StateDraft
	case !progress.HasFixtures:
		return models.StateOpen
	case progress.HasPodium:
		return models.StateFinished
	default:
		return models.StateActive
	}
}

func requireCreator(t *models.Tournament, userID int) error {
	if t.CreatorID == nil || *t.CreatorID != userID {
		return ErrForbiddenOperation
	}
	return nil
}

func mapRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrFixtureNotFound):
		return ErrFixtureNotFound
	case errors.Is(err, repositories.ErrParticipantNotFound),
		errors.Is(err, repositories.ErrParticipationNotFound):
		return ErrParticipantNotFound
	case errors.Is(err, repositories.ErrParticipantNameConflict):
		return ErrParticipantNameConflict
	case errors.Is(err, repositories.ErrFixtureScoreIncomplete):
		return fmt.Errorf("%w: %v", ErrInvalidScore, err)
	}
	return err
}
