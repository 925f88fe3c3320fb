package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	database "github.com/Dosada05/tournaments/db"
	"github.com/Dosada05/tournaments/engine"
	"github.com/Dosada05/tournaments/metrics"
	"github.com/Dosada05/tournaments/models"
	"github.com/Dosada05/tournaments/repositories"
)

var ErrFixtureNotScored = errors.New("fixture has no score to confirm")

// FixtureResult is the state of a fixture after a report.
type FixtureResult struct {
	Fixture   *models.Fixture        `json:"fixture"`
	Confirmed bool                   `json:"confirmed"`
	State     models.TournamentState `json:"state"`
	// ProgressError describes why the tournament could not advance after the fixture was confirmed.
	ProgressError string `json:"progress_error,omitempty"`
}

type FixtureService interface {
	// SubmitScore stores a score and confirms it on behalf of the reporting user.
	SubmitScore(ctx context.Context, userID, tournamentID, fixtureID, score1, score2 int) (*FixtureResult, error)
	Confirm(ctx context.Context, userID, tournamentID, fixtureID int) (*FixtureResult, error)
}

type fixtureService struct {
	db      database.TxBeginner
	store   *store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewFixtureService(
	db database.TxBeginner,
	tournamentRepo repositories.TournamentRepository,
	stageRepo repositories.StageRepository,
	fixtureRepo repositories.FixtureRepository,
	participantRepo repositories.ParticipantRepository,
	m *metrics.Metrics,
	logger *slog.Logger,
) FixtureService {
	if logger == nil {
		logger = slog.Default()
	}
	return &fixtureService{
		db: db,
		store: &store{
			tournaments:  tournamentRepo,
			stages:       stageRepo,
			fixtures:     fixtureRepo,
			participants: participantRepo,
		},
		metrics: m,
		logger:  logger,
	}
}

// report carries what a fixture command works on.
type report struct {
	tx            *sql.Tx
	tournament    *models.Tournament
	engine        *engine.Engine
	stage         *models.Stage
	fixture       *models.Fixture
	participantID int
	required      int
}

func (s *fixtureService) SubmitScore(ctx context.Context, userID, tournamentID, fixtureID, score1, score2 int) (*FixtureResult, error) {
	return s.withReport(ctx, userID, tournamentID, fixtureID, func(r *report) error {
		f := r.fixture
		if f.HasScore() && *f.Score1 == score1 && *f.Score2 == score2 {
			return nil
		}
		if err := f.SetScore(score1, score2, r.required); err != nil {
			return err
		}
		if err := r.engine.CheckFixture(r.stage, f); err != nil {
			return err
		}
		if err := s.store.fixtures.Update(ctx, r.tx, f); err != nil {
			return mapRepositoryError(err)
		}
		if err := s.store.fixtures.ClearConfirmations(ctx, r.tx, f.ID); err != nil {
			return err
		}
		s.metrics.FixtureScored()
		s.logger.InfoContext(ctx, "Fixture scored",
			slog.Int("tournament_id", r.tournament.ID),
			slog.Int("fixture_id", f.ID),
			slog.String("score", f.ScoreString()),
			slog.Int("participant_id", r.participantID))
		return nil
	})
}

func (s *fixtureService) Confirm(ctx context.Context, userID, tournamentID, fixtureID int) (*FixtureResult, error) {
	return s.withReport(ctx, userID, tournamentID, fixtureID, func(r *report) error {
		if !r.fixture.HasScore() {
			return ErrFixtureNotScored
		}
		return nil
	})
}

// withReport locks the tournament, checks that the user may report on the
// fixture, runs fn and then confirms the score for the user. A fixture that
// reaches its quorum advances the tournament in the same transaction.
func (s *fixtureService) withReport(ctx context.Context, userID, tournamentID, fixtureID int, fn func(r *report) error) (*FixtureResult, error) {
	result := &FixtureResult{}
	err := database.WithTx(ctx, s.db, nil, s.logger, func(tx *sql.Tx) error {
		r, err := s.prepare(ctx, tx, userID, tournamentID, fixtureID)
		if err != nil {
			return err
		}
		// the fixture is cloned into the snapshot before anything changes
		snap := takeSnapshot(r.tournament)
		if err := fn(r); err != nil {
			return err
		}

		f := r.fixture
		if f.Confirm(r.participantID) {
			if _, err := s.store.fixtures.AddConfirmation(ctx, tx, f.ID, r.participantID); err != nil {
				return mapRepositoryError(err)
			}
			s.metrics.FixtureConfirmed()
		}

		if f.IsConfirmed(r.required) {
			if err := r.engine.UpdateState(ctx); err != nil {
				var ve *engine.ValidationError
				if !errors.As(err, &ve) {
					return err
				}
				s.logger.WarnContext(ctx, "Tournament could not advance",
					slog.Int("tournament_id", r.tournament.ID),
					slog.Any("error", err))
				result.ProgressError = err.Error()
			}
		}
		// the fixture row itself was written above
		snap.fixtures[f.ID] = f.Clone()
		if err := s.store.save(ctx, tx, r.tournament, snap, s.metrics); err != nil {
			return err
		}

		result.Fixture = f
		result.Confirmed = f.IsConfirmed(r.required)
		result.State = r.engine.State()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *fixtureService) prepare(ctx context.Context, tx *sql.Tx, userID, tournamentID, fixtureID int) (*report, error) {
	t, err := s.store.load(ctx, tx, tournamentID, true)
	if err != nil {
		return nil, err
	}
	e := engine.New(t, s.logger)
	if state := e.State(); state != models.StateActive {
		return nil, fmt.Errorf("%w: tournament is %s", ErrInvalidTournamentState, state)
	}

	participation := t.ParticipationForUser(userID)
	if participation == nil {
		return nil, ErrNotAParticipant
	}

	stage, f := t.FindFixture(fixtureID)
	if f == nil {
		return nil, ErrFixtureNotFound
	}
	current, _, err := e.CurrentStage()
	if err != nil {
		return nil, err
	}
	if current == nil || current.Model() != stage || f.Level != current.CurrentLevel() {
		return nil, ErrFixtureNotCurrent
	}
	if !f.HasPlayers() {
		return nil, ErrFixtureNotReady
	}

	return &report{
		tx:            tx,
		tournament:    t,
		engine:        e,
		stage:         stage,
		fixture:       f,
		participantID: participation.ParticipantID,
		required:      t.RequiredConfirmations(),
	}, nil
}
