package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/Dosada05/tournaments/brackets"
	"github.com/Dosada05/tournaments/models"
	"github.com/Dosada05/tournaments/stages"
)

// Engine drives the progression of one tournament aggregate held in memory.
// Callers persist the aggregate afterwards.
type Engine struct {
	tournament *models.Tournament
	logger     *slog.Logger
}

func New(tournament *models.Tournament, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{tournament: tournament, logger: logger}
}

func (e *Engine) Tournament() *models.Tournament { return e.tournament }

// Stage wraps a stage model with its mode behaviour and the current quorum.
func (e *Engine) Stage(model *models.Stage) (stages.Stage, error) {
	return stages.New(model, e.tournament.RequiredConfirmations())
}

// Stages wraps every stage in definition order.
func (e *Engine) Stages() ([]stages.Stage, error) {
	result := make([]stages.Stage, 0, len(e.tournament.Stages))
	for _, model := range e.tournament.Stages {
		s, err := e.Stage(model)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}

// CurrentStage returns the first unfinished stage and its position, or nil
// once every stage is finished.
func (e *Engine) CurrentStage() (stages.Stage, int, error) {
	all, err := e.Stages()
	if err != nil {
		return nil, -1, err
	}
	for i, s := range all {
		if !s.IsFinished() {
			return s, i, nil
		}
	}
	return nil, -1, nil
}

// StageParticipants resolves who plays a stage: the tournament participants in
// slot order, or the placements its played-by expressions point at.
func (e *Engine) StageParticipants(position int) ([]int, error) {
	model := e.tournament.Stages[position]
	if len(model.PlayedBy) == 0 {
		return e.tournament.ParticipantIDs(), nil
	}

	refs, err := brackets.ResolveReferences(model.PlayedBy)
	if err != nil {
		return nil, err
	}
	var participants []int
	for _, ref := range refs {
		entry, err := e.resolve(ref, position)
		if err != nil {
			return nil, err
		}
		participants = append(participants, entry...)
	}
	return participants, nil
}

func (e *Engine) resolve(ref brackets.Reference, before int) ([]int, error) {
	source, position := e.tournament.StageByIdentifier(ref.StageID)
	if source == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStageID, ref.StageID)
	}
	if position >= before {
		return nil, fmt.Errorf("%w: %q", ErrCyclicReference, ref.StageID)
	}
	s, err := e.Stage(source)
	if err != nil {
		return nil, err
	}
	placements, _ := s.Placements()
	return brackets.Resolve(ref.StageID, placements, ref.Position)
}

// UpdateState progresses the current stage until it stops changing, moving on
// to later stages as they become current. Once every stage is finished the
// podium is written onto the participations.
func (e *Engine) UpdateState(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		current, position, err := e.CurrentStage()
		if err != nil {
			return wrap("initializing", err)
		}
		if current == nil {
			return e.assignPodium()
		}

		progressed, err := e.updateStage(ctx, current, position)
		if err != nil {
			return err
		}
		if !progressed {
			return nil
		}
	}
}

func (e *Engine) updateStage(ctx context.Context, s stages.Stage, position int) (bool, error) {
	model := s.Model()
	if len(model.Fixtures) == 0 {
		participants, err := e.StageParticipants(position)
		if err != nil {
			return false, wrap("initializing stage "+model.Identifier, err)
		}
		if err := s.CreateFixtures(ctx, participants); err != nil {
			return false, wrap("initializing stage "+model.Identifier, err)
		}
		e.logger.Info("Stage fixtures created",
			slog.Int("tournament_id", e.tournament.ID),
			slog.String("stage", model.Identifier),
			slog.Int("participants", len(participants)),
			slog.Int("fixtures", len(model.Fixtures)))
		return true, nil
	}

	changed, err := s.UpdateFixtures()
	if err != nil {
		return false, wrap("updating stage "+model.Identifier, err)
	}
	return changed, nil
}

// Podium resolves the podium expressions against the final placements.
// Every podium entry must name a single participant.
func (e *Engine) Podium() ([]int, error) {
	current, _, err := e.CurrentStage()
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, ErrNotFinished
	}

	refs, err := brackets.ResolveReferences(e.tournament.Podium)
	if err != nil {
		return nil, wrap("validating podium", err)
	}
	podium := make([]int, 0, len(refs))
	for _, ref := range refs {
		entry, err := e.resolve(ref, len(e.tournament.Stages))
		if err != nil {
			return nil, wrap("validating podium", err)
		}
		id, ok := brackets.Unwrap(entry)
		if !ok {
			return nil, wrap("validating podium", fmt.Errorf("%w: %s.placements[%d]", ErrAmbiguousPlacement, ref.StageID, ref.Position))
		}
		podium = append(podium, id)
	}
	return podium, nil
}

func (e *Engine) assignPodium() error {
	podium, err := e.Podium()
	if err != nil {
		return err
	}
	for _, p := range e.tournament.Participations {
		p.PodiumPosition = nil
	}
	for position, participantID := range podium {
		participation := e.tournament.ParticipationFor(participantID)
		if participation == nil {
			return wrap("validating podium", fmt.Errorf("participant %d does not take part", participantID))
		}
		pos := position
		participation.PodiumPosition = &pos
	}
	e.logger.Info("Tournament finished",
		slog.Int("tournament_id", e.tournament.ID),
		slog.Any("podium", podium))
	return nil
}

// State derives the lifecycle state from the published flag and progress.
func (e *Engine) State() models.TournamentState {
	if !e.tournament.Published {
		return models.StateDraft
	}
	if !e.tournament.HasFixtures() {
		return models.StateOpen
	}
	current, _, err := e.CurrentStage()
	if err != nil || current != nil {
		return models.StateActive
	}
	return models.StateFinished
}

// ShuffleParticipants assigns the participations a random permutation of slots 0..n-1.
func (e *Engine) ShuffleParticipants(rng *rand.Rand) {
	perm := rng.Perm(len(e.tournament.Participations))
	for i, p := range e.tournament.Participations {
		p.SlotID = perm[i]
	}
}

// CheckFixture runs the stage rules for a scored fixture.
func (e *Engine) CheckFixture(stage *models.Stage, f *models.Fixture) error {
	s, err := e.Stage(stage)
	if err != nil {
		return err
	}
	return s.CheckFixture(f)
}
