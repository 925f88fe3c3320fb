package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournaments/metrics"
	"github.com/Dosada05/tournaments/models"
)

const leagueAndPlayoffs = `
podium:
  - playoffs.placements[0]
  - playoffs.placements[1]
  - playoffs.placements[2]
stages:
  - id: league
    name: League
    mode: division
  - id: playoffs
    name: Playoffs
    mode: knockout
    played-by:
      - league.placements[:4]
`

const singleLeague = `
podium:
  - league.placements[0]
stages:
  - id: league
    mode: division
`

const cup = `
podium:
  - cup.placements[0]
stages:
  - id: cup
    mode: knockout
`

type recordingArchive struct {
	archived []int
	removed  []int
	fail     bool
}

func (a *recordingArchive) Archive(_ context.Context, t *models.Tournament) (string, error) {
	if a.fail {
		return "", errors.New("bucket unavailable")
	}
	a.archived = append(a.archived, t.ID)
	return "https://cdn.example.com/definitions/" + t.Name, nil
}

func (a *recordingArchive) Remove(_ context.Context, t *models.Tournament) error {
	if a.fail {
		return errors.New("bucket unavailable")
	}
	a.removed = append(a.removed, t.ID)
	return nil
}

type harness struct {
	mem         *memoryDB
	mock        sqlmock.Sqlmock
	registry    *prometheus.Registry
	archive     *recordingArchive
	tournaments TournamentService
	fixtures    FixtureService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		sqlDB.Close()
	})

	mem := newMemoryDB()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	archive := &recordingArchive{}

	h := &harness{mem: mem, mock: mock, registry: registry, archive: archive}
	h.tournaments = NewTournamentService(sqlDB,
		memoryTournaments{mem}, memoryStages{mem}, memoryFixtures{mem}, memoryParticipants{mem},
		archive, m, logger, TournamentServiceOptions{DryRunParticipants: 8, Seed: 7})
	h.fixtures = NewFixtureService(sqlDB,
		memoryTournaments{mem}, memoryStages{mem}, memoryFixtures{mem}, memoryParticipants{mem},
		m, logger)
	return h
}

func (h *harness) commit() {
	h.mock.ExpectBegin()
	h.mock.ExpectCommit()
}

func (h *harness) rollback() {
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()
}

func (h *harness) create(t *testing.T, creatorID int, name, definition string) *models.Tournament {
	t.Helper()
	h.commit()
	tournament, err := h.tournaments.CreateTournament(context.Background(), creatorID, CreateTournamentInput{Name: name, Definition: definition})
	require.NoError(t, err)
	return tournament
}

// open creates and publishes a tournament, joins the creator under the first
// name and fills the field with placeholders for the other names.
func (h *harness) open(t *testing.T, creatorID int, definition string, names ...string) *models.Tournament {
	t.Helper()
	ctx := context.Background()
	tournament := h.create(t, creatorID, "Spring Cup", definition)

	h.commit()
	_, err := h.tournaments.PublishTournament(ctx, creatorID, tournament.ID)
	require.NoError(t, err)

	h.commit()
	require.NoError(t, h.tournaments.Join(ctx, creatorID, names[0], tournament.ID))

	h.commit()
	_, err = h.tournaments.SetParticipants(ctx, creatorID, tournament.ID, names)
	require.NoError(t, err)
	return tournament
}

func (h *harness) start(t *testing.T, creatorID, tournamentID int) *TournamentView {
	t.Helper()
	h.commit()
	view, err := h.tournaments.StartTournament(context.Background(), creatorID, tournamentID)
	require.NoError(t, err)
	return view
}

func (h *harness) view(t *testing.T, tournamentID int) *TournamentView {
	t.Helper()
	view, err := h.tournaments.GetTournament(context.Background(), tournamentID)
	require.NoError(t, err)
	return view
}

func currentLevel(t *testing.T, view *TournamentView) []*models.Fixture {
	t.Helper()
	require.NotNil(t, view.CurrentStage)
	for _, stage := range view.Stages {
		if stage.Identifier != *view.CurrentStage {
			continue
		}
		require.NotNil(t, stage.CurrentLevel)
		return stage.Levels[*stage.CurrentLevel].Fixtures
	}
	t.Fatalf("current stage %q not in view", *view.CurrentStage)
	return nil
}

// playLevel lets the higher participant id win every open fixture of the current level.
func (h *harness) playLevel(t *testing.T, userID, tournamentID int) {
	t.Helper()
	view := h.view(t, tournamentID)
	for _, f := range currentLevel(t, view) {
		if f.IsConfirmed(view.RequiredConfirmations) {
			continue
		}
		require.True(t, f.HasPlayers())
		score1, score2 := 2, 0
		if *f.Player2ID > *f.Player1ID {
			score1, score2 = 0, 2
		}
		h.commit()
		_, err := h.fixtures.SubmitScore(context.Background(), userID, tournamentID, f.ID, score1, score2)
		require.NoError(t, err)
	}
}

func TestCreateTournament(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tournament := h.create(t, 1, "  Spring Cup ", singleLeague)
	assert.NotZero(t, tournament.ID)
	assert.Equal(t, "Spring Cup", tournament.Name)
	assert.Equal(t, []string{"league.placements[0]"}, tournament.Podium)
	require.Len(t, tournament.Stages, 1)
	assert.NotZero(t, tournament.Stages[0].ID)

	view := h.view(t, tournament.ID)
	assert.Equal(t, models.StateDraft, view.State)
	assert.Equal(t, "league", view.Stages[0].Identifier)

	_, err := h.tournaments.CreateTournament(ctx, 1, CreateTournamentInput{Name: " ", Definition: singleLeague})
	assert.ErrorIs(t, err, ErrTournamentNameNeeded)
}

func TestCreateTournamentInvalidDefinition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		definition string
	}{
		{"malformed yaml", "stages: ["},
		{"unknown key", "podium: [\"a.placements[0]\"]\nstages:\n  - id: a\n    mode: division\n    rounds: 3\n"},
		{"no stages", "podium: [\"a.placements[0]\"]\nstages: []\n"},
		{"unknown reference", "podium: [\"b.placements[0]\"]\nstages:\n  - id: a\n    mode: division\n"},
		{"ambiguous podium", "podium: [\"a.placements[:2]\"]\nstages:\n  - id: a\n    mode: division\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.tournaments.CreateTournament(ctx, 1, CreateTournamentInput{Name: "Broken", Definition: tt.definition})
			require.ErrorIs(t, err, ErrInvalidDefinition)

			var defErr *DefinitionError
			require.True(t, errors.As(err, &defErr))
			assert.NotEmpty(t, defErr.Messages())

			assert.ErrorIs(t, h.tournaments.ValidateDefinition(ctx, tt.definition), ErrInvalidDefinition)
		})
	}
	assert.NoError(t, h.tournaments.ValidateDefinition(ctx, leagueAndPlayoffs))
}

func TestUpdateTournament(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tournament := h.create(t, 1, "Spring Cup", singleLeague)

	name := "Summer Cup"
	h.commit()
	updated, err := h.tournaments.UpdateTournament(ctx, 1, tournament.ID, UpdateTournamentInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Summer Cup", updated.Name)

	definition := leagueAndPlayoffs
	h.commit()
	_, err = h.tournaments.UpdateTournament(ctx, 1, tournament.ID, UpdateTournamentInput{Definition: &definition})
	require.NoError(t, err)
	view := h.view(t, tournament.ID)
	require.Len(t, view.Stages, 2)
	assert.Equal(t, "playoffs", view.Stages[1].Identifier)
	assert.Equal(t, leagueAndPlayoffs, view.Definition)

	h.rollback()
	_, err = h.tournaments.UpdateTournament(ctx, 2, tournament.ID, UpdateTournamentInput{Name: &name})
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	h.commit()
	_, err = h.tournaments.PublishTournament(ctx, 1, tournament.ID)
	require.NoError(t, err)

	h.rollback()
	_, err = h.tournaments.UpdateTournament(ctx, 1, tournament.ID, UpdateTournamentInput{Name: &name})
	assert.ErrorIs(t, err, ErrInvalidTournamentState)
}

func TestPublishAndUnpublish(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tournament := h.create(t, 1, "Spring Cup", singleLeague)

	h.rollback()
	_, err := h.tournaments.PublishTournament(ctx, 2, tournament.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	h.commit()
	published, err := h.tournaments.PublishTournament(ctx, 1, tournament.ID)
	require.NoError(t, err)
	assert.True(t, published.Published)
	assert.Equal(t, []int{tournament.ID}, h.archive.archived)

	h.rollback()
	_, err = h.tournaments.PublishTournament(ctx, 1, tournament.ID)
	assert.ErrorIs(t, err, ErrInvalidTournamentState)

	h.commit()
	require.NoError(t, h.tournaments.Join(ctx, 5, "eve", tournament.ID))

	h.commit()
	unpublished, err := h.tournaments.UnpublishTournament(ctx, 1, tournament.ID)
	require.NoError(t, err)
	assert.False(t, unpublished.Published)
	assert.Equal(t, []int{tournament.ID}, h.archive.removed)

	view := h.view(t, tournament.ID)
	assert.Equal(t, models.StateDraft, view.State)
	assert.Empty(t, view.Participants)
}

func TestPublishArchiveFailureIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.archive.fail = true
	tournament := h.create(t, 1, "Spring Cup", singleLeague)

	h.commit()
	published, err := h.tournaments.PublishTournament(context.Background(), 1, tournament.ID)
	require.NoError(t, err)
	assert.True(t, published.Published)
}

func TestDeleteTournament(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tournament := h.create(t, 1, "Spring Cup", singleLeague)

	h.rollback()
	assert.ErrorIs(t, h.tournaments.DeleteTournament(ctx, 2, tournament.ID), ErrForbiddenOperation)

	h.commit()
	require.NoError(t, h.tournaments.DeleteTournament(ctx, 1, tournament.ID))

	_, err := h.tournaments.GetTournament(ctx, tournament.ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
	assert.Empty(t, h.mem.stages)

	h.rollback()
	assert.ErrorIs(t, h.tournaments.DeleteTournament(ctx, 1, tournament.ID), ErrTournamentNotFound)
}

func TestCloneTournament(t *testing.T) {
	h := newHarness(t)
	source := h.create(t, 1, "Spring Cup", leagueAndPlayoffs)

	h.commit()
	clone, err := h.tournaments.CloneTournament(context.Background(), 2, source.ID)
	require.NoError(t, err)
	assert.NotEqual(t, source.ID, clone.ID)
	assert.Equal(t, "Spring Cup (Copy)", clone.Name)
	assert.Equal(t, leagueAndPlayoffs, clone.Definition)
	require.NotNil(t, clone.CreatorID)
	assert.Equal(t, 2, *clone.CreatorID)
	assert.False(t, clone.Published)
}

func TestJoinAndWithdraw(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tournament := h.create(t, 1, "Spring Cup", singleLeague)

	h.rollback()
	assert.ErrorIs(t, h.tournaments.Join(ctx, 5, "eve", tournament.ID), ErrInvalidTournamentState)

	h.commit()
	_, err := h.tournaments.PublishTournament(ctx, 1, tournament.ID)
	require.NoError(t, err)

	h.commit()
	require.NoError(t, h.tournaments.Join(ctx, 5, "eve", tournament.ID))
	h.commit()
	require.NoError(t, h.tournaments.Join(ctx, 5, "eve", tournament.ID))
	h.commit()
	require.NoError(t, h.tournaments.Join(ctx, 6, "", tournament.ID))

	view := h.view(t, tournament.ID)
	require.Len(t, view.Participants, 2)
	assert.Equal(t, "eve", view.Participants[0].Name)
	assert.True(t, view.Participants[0].UserBacked)
	assert.Equal(t, "user-6", view.Participants[1].Name)
	assert.Equal(t, 2, view.RequiredConfirmations)

	h.commit()
	require.NoError(t, h.tournaments.Withdraw(ctx, 5, tournament.ID))
	h.commit()
	require.NoError(t, h.tournaments.Withdraw(ctx, 5, tournament.ID))

	view = h.view(t, tournament.ID)
	require.Len(t, view.Participants, 1)
	assert.Equal(t, "user-6", view.Participants[0].Name)

	h.rollback()
	assert.ErrorIs(t, h.tournaments.Join(ctx, 7, "user-6", tournament.ID), ErrParticipantNameConflict)
}

func TestSetParticipants(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tournament := h.open(t, 1, singleLeague, "alice", "bob", "carol")

	h.commit()
	ordered, err := h.tournaments.SetParticipants(ctx, 1, tournament.ID, []string{" dave ", "alice", "", "dave", "erin"})
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	for i, name := range []string{"dave", "alice", "erin"} {
		assert.Equal(t, name, ordered[i].Participant.Name)
		assert.Equal(t, i, ordered[i].SlotID)
	}

	view := h.view(t, tournament.ID)
	names := make([]string, len(view.Participants))
	for i, p := range view.Participants {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"dave", "alice", "erin"}, names)

	// bob and carol were placeholders without other tournaments
	_, err = memoryParticipants{h.mem}.FindByName(ctx, nil, "bob")
	assert.Error(t, err)

	h.rollback()
	_, err = h.tournaments.SetParticipants(ctx, 2, tournament.ID, []string{"mallory"})
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestStartTournamentRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tournament := h.open(t, 1, singleLeague, "alice", "bob")

	h.rollback()
	_, err := h.tournaments.StartTournament(ctx, 1, tournament.ID)
	assert.ErrorIs(t, err, ErrNotEnoughParticipants)

	h.commit()
	_, err = h.tournaments.SetParticipants(ctx, 1, tournament.ID, []string{"alice", "bob", "carol"})
	require.NoError(t, err)

	h.rollback()
	_, err = h.tournaments.StartTournament(ctx, 2, tournament.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	view := h.start(t, 1, tournament.ID)
	assert.Equal(t, models.StateActive, view.State)
	require.NotNil(t, view.CurrentStage)
	assert.Equal(t, "league", *view.CurrentStage)

	slots := map[int]bool{}
	for _, p := range view.Participants {
		slots[p.SlotID] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true}, slots)

	h.rollback()
	_, err = h.tournaments.StartTournament(ctx, 1, tournament.ID)
	assert.ErrorIs(t, err, ErrInvalidTournamentState)
}

func TestTournamentLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tournament := h.open(t, 1, leagueAndPlayoffs, "alice", "bob", "carol", "dave")
	h.start(t, 1, tournament.ID)

	index, err := h.tournaments.ListTournaments(ctx, nil)
	require.NoError(t, err)
	require.Len(t, index.Active, 1)
	assert.Equal(t, tournament.ID, index.Active[0].ID)

	view := h.view(t, tournament.ID)
	assert.Equal(t, 1, view.RequiredConfirmations)
	for i := 0; i < 10 && view.State == models.StateActive; i++ {
		h.playLevel(t, 1, tournament.ID)
		view = h.view(t, tournament.ID)
	}

	require.Equal(t, models.StateFinished, view.State)
	assert.Nil(t, view.CurrentStage)
	require.Len(t, view.Podium, 3)
	assert.Equal(t, "dave", view.Podium[0].Name)
	assert.Equal(t, "carol", view.Podium[1].Name)
	assert.Contains(t, []string{"alice", "bob"}, view.Podium[2].Name)

	league := view.Stages[0]
	assert.True(t, league.Finished)
	require.Len(t, league.Standings, 1)
	assert.Equal(t, "dave", league.Standings[0][0].Participant.Name)
	assert.Equal(t, []string{"1st, 2nd, 3rd, 4th of League"}, view.Stages[1].PlayedBy)

	counts, err := h.tournaments.PodiumCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 3)
	assert.Equal(t, "dave", counts[0].Name)
	assert.Equal(t, 1, counts[0].Count)

	index, err = h.tournaments.ListTournaments(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, index.Active)
	require.Len(t, index.Finished, 1)

	visited, err := h.tournaments.ProgressActive(ctx)
	require.NoError(t, err)
	assert.Zero(t, visited)

	expected := `
# HELP tournaments_tournaments_finished_total Tournaments whose podium was resolved.
# TYPE tournaments_tournaments_finished_total counter
tournaments_tournaments_finished_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(h.registry, strings.NewReader(expected), "tournaments_tournaments_finished_total"))
}

func TestListTournaments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	draft := h.create(t, 1, "Draft", singleLeague)
	open := h.create(t, 1, "Open", singleLeague)
	h.commit()
	_, err := h.tournaments.PublishTournament(ctx, 1, open.ID)
	require.NoError(t, err)
	active := h.open(t, 2, singleLeague, "alice", "bob", "carol")
	h.start(t, 2, active.ID)

	index, err := h.tournaments.ListTournaments(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, index.Drafts)
	require.Len(t, index.Open, 1)
	assert.Equal(t, open.ID, index.Open[0].ID)
	require.Len(t, index.Active, 1)
	assert.Equal(t, active.ID, index.Active[0].ID)
	assert.Empty(t, index.Finished)

	viewer := 1
	index, err = h.tournaments.ListTournaments(ctx, &viewer)
	require.NoError(t, err)
	require.Len(t, index.Drafts, 1)
	assert.Equal(t, draft.ID, index.Drafts[0].ID)
	assert.Equal(t, models.StateDraft, index.Drafts[0].State)

	other := 2
	index, err = h.tournaments.ListTournaments(ctx, &other)
	require.NoError(t, err)
	assert.Empty(t, index.Drafts)
}

func TestProgressActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.open(t, 1, singleLeague, "alice", "bob", "carol")
	h.start(t, 1, first.ID)
	second := h.open(t, 2, cup, "erin", "frank", "grace", "heidi")
	h.start(t, 2, second.ID)

	h.commit()
	h.commit()
	visited, err := h.tournaments.ProgressActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, visited)

	assert.Equal(t, models.StateActive, h.view(t, first.ID).State)
	assert.Equal(t, models.StateActive, h.view(t, second.ID).State)
}
