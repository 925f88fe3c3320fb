package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournaments/brackets"
	"github.com/Dosada05/tournaments/models"
)

func TestLoad(t *testing.T) {
	creator := 5
	tournament, err := Load(threeStageDefinition(), "Cup", &creator)
	require.NoError(t, err)

	assert.Equal(t, "Cup", tournament.Name)
	assert.Equal(t, &creator, tournament.CreatorID)
	require.Len(t, tournament.Stages, 3)

	groups, knockout, division := tournament.Stages[0], tournament.Stages[1], tournament.Stages[2]
	assert.Equal(t, &models.GroupsSettings{MinGroupSize: 3, MaxGroupSize: 4}, groups.Groups)
	assert.Equal(t, []string{"groups.placements[0]", "groups.placements[1]"}, knockout.PlayedBy)
	assert.False(t, knockout.Knockout.DoubleElimination)
	assert.Equal(t, 2, division.Groups.MinGroupSize)
	assert.Equal(t, math.MaxInt, division.Groups.MaxGroupSize)
	assert.Equal(t, 2, division.Position)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		def  *models.Definition
		err  error
	}{
		{"nil", nil, ErrLoad},
		{"empty podium", &models.Definition{Stages: []models.StageDefinition{{ID: "a", Mode: models.StageModeKnockout}}}, ErrLoad},
		{"no stages", &models.Definition{Podium: []string{"a.placements[0]"}}, ErrLoad},
		{"unknown mode", &models.Definition{
			Podium: []string{"a.placements[0]"},
			Stages: []models.StageDefinition{{ID: "a", Mode: "swiss"}},
		}, ErrUnknownStageMode},
		{"missing id", &models.Definition{
			Podium: []string{"a.placements[0]"},
			Stages: []models.StageDefinition{{Mode: models.StageModeKnockout}},
		}, ErrLoad},
		{"missing group sizes", &models.Definition{
			Podium: []string{"a.placements[0]"},
			Stages: []models.StageDefinition{{ID: "a", Mode: models.StageModeGroups}},
		}, ErrLoad},
		{"inverted group sizes", &models.Definition{
			Podium: []string{"a.placements[0]"},
			Stages: []models.StageDefinition{{ID: "a", Mode: models.StageModeGroups, MinGroupSize: intPtr(4), MaxGroupSize: intPtr(3)}},
		}, ErrLoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.def, "x", nil)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestValidate(t *testing.T) {
	loadDef := func(t *testing.T, def *models.Definition) *models.Tournament {
		tournament, err := Load(def, "x", nil)
		require.NoError(t, err)
		return tournament
	}

	t.Run("unknown stage", func(t *testing.T) {
		def := threeStageDefinition()
		def.Stages[0].ID = "preliminaries"
		errs := Validate(loadDef(t, def))
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], ErrUnknownStageID)

		var ve *ValidationError
		require.ErrorAs(t, errs[0], &ve)
		assert.Equal(t, "validating stage main_round", ve.Context)
	})

	t.Run("forward reference", func(t *testing.T) {
		def := threeStageDefinition()
		def.Stages[1].PlayedBy = []string{"playoffs.placements[0]"}
		errs := Validate(loadDef(t, def))
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], ErrCyclicReference)
	})

	t.Run("self reference", func(t *testing.T) {
		def := threeStageDefinition()
		def.Stages[1].PlayedBy = []string{"main_round.placements[:2]"}
		errs := Validate(loadDef(t, def))
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], ErrCyclicReference)
	})

	t.Run("duplicate stage id", func(t *testing.T) {
		def := threeStageDefinition()
		def.Stages[2].ID = "groups"
		def.Podium = []string{"main_round.placements[0]"}
		errs := Validate(loadDef(t, def))
		require.NotEmpty(t, errs)
		assert.ErrorIs(t, errs[0], ErrDuplicateStageID)
	})

	t.Run("podium", func(t *testing.T) {
		def := threeStageDefinition()
		def.Podium = []string{"main_round.placements[0]", "main_round.placements[:2]", "finals.placements[0]"}
		errs := Validate(loadDef(t, def))
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], brackets.ErrDuplicateReference)

		var ve *ValidationError
		require.ErrorAs(t, errs[0], &ve)
		assert.Equal(t, "validating podium", ve.Context)
	})

	t.Run("malformed", func(t *testing.T) {
		def := threeStageDefinition()
		def.Stages[2].PlayedBy = []string{"main_round.placements[two]"}
		errs := Validate(loadDef(t, def))
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], brackets.ErrMalformedExpression)
	})

	t.Run("valid", func(t *testing.T) {
		assert.Empty(t, Validate(loadDef(t, threeStageDefinition())))
		assert.Empty(t, Validate(loadDef(t, doubleEliminationDefinition())))
	})
}
