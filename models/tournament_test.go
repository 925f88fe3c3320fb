package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiredConfirmations(t *testing.T) {
	tournament := &Tournament{}
	assert.Equal(t, 1, tournament.RequiredConfirmations())

	for i := 0; i < 5; i++ {
		tournament.Participations = append(tournament.Participations, &Participation{
			ParticipantID: i + 1,
			SlotID:        i,
			Participant:   &Participant{ID: i + 1, UserID: intPtr(100 + i)},
		})
	}
	tournament.Participations = append(tournament.Participations, &Participation{
		ParticipantID: 6,
		SlotID:        5,
		Participant:   &Participant{ID: 6, Name: "placeholder"},
	})

	assert.Equal(t, 5, tournament.ActiveParticipantCount())
	assert.Equal(t, 3, tournament.RequiredConfirmations())
}

func TestParticipantIDsInSlotOrder(t *testing.T) {
	tournament := &Tournament{Participations: []*Participation{
		{ParticipantID: 10, SlotID: 2},
		{ParticipantID: 11, SlotID: 0},
		{ParticipantID: 12, SlotID: 1},
	}}
	assert.Equal(t, []int{11, 12, 10}, tournament.ParticipantIDs())
}

func TestStageLevels(t *testing.T) {
	stage := &Stage{}
	assert.Equal(t, 0, stage.Levels())
	assert.Equal(t, 0, stage.CurrentLevel(1))

	scored := &Fixture{Index: 0, Level: 0, Score1: intPtr(1), Score2: intPtr(0), Confirmations: []int{1}}
	open := &Fixture{Index: 1, Level: 1}
	stage.Fixtures = []*Fixture{scored, open}

	assert.Equal(t, 2, stage.Levels())
	assert.Equal(t, 1, stage.CurrentLevel(1))
	assert.Equal(t, 0, stage.CurrentLevel(2))
	assert.Equal(t, []*Fixture{open}, stage.FixturesAt(1))
	assert.Same(t, open, stage.FixtureByIndex(1))
	assert.Nil(t, stage.FixtureByIndex(5))
}
