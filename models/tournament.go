package models

import (
	"sort"
	"time"
)

// TournamentState is derived from the published flag, fixture existence and progression.
type TournamentState string

const (
	StateDraft    TournamentState = "draft"
	StateOpen     TournamentState = "open"
	StateActive   TournamentState = "active"
	StateFinished TournamentState = "finished"
)

// Tournament is the aggregate root: it owns its stages (in definition order) and participations.
type Tournament struct {
	ID         int       `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Definition string    `json:"definition" db:"definition"`
	Podium     []string  `json:"podium" db:"podium"`
	Published  bool      `json:"published" db:"published"`
	CreatorID  *int      `json:"creator_id,omitempty" db:"creator_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	Stages         []*Stage         `json:"stages,omitempty" db:"-"`
	Participations []*Participation `json:"participations,omitempty" db:"-"`
}

// ActiveParticipantCount counts participations backed by a real user.
// Placeholder participants do not vote.
func (t *Tournament) ActiveParticipantCount() int {
	count := 0
	for _, p := range t.Participations {
		if p.Participant.IsUserBacked() {
			count++
		}
	}
	return count
}

// RequiredConfirmations is the quorum a fixture score needs to become final.
func (t *Tournament) RequiredConfirmations() int {
	return 1 + t.ActiveParticipantCount()/2
}

// ParticipantIDs returns the participant ids in slot order.
func (t *Tournament) ParticipantIDs() []int {
	participations := make([]*Participation, len(t.Participations))
	copy(participations, t.Participations)
	sort.SliceStable(participations, func(i, j int) bool {
		return participations[i].SlotID < participations[j].SlotID
	})
	ids := make([]int, len(participations))
	for i, p := range participations {
		ids[i] = p.ParticipantID
	}
	return ids
}

// StageByIdentifier looks up a stage by its identifier. The second value is
// the position of the stage in the definition order, or -1.
func (t *Tournament) StageByIdentifier(identifier string) (*Stage, int) {
	for i, s := range t.Stages {
		if s.Identifier == identifier {
			return s, i
		}
	}
	return nil, -1
}

// ParticipationFor returns the participation of a participant, if any.
func (t *Tournament) ParticipationFor(participantID int) *Participation {
	for _, p := range t.Participations {
		if p.ParticipantID == participantID {
			return p
		}
	}
	return nil
}

// ParticipationForUser returns the participation backed by the given user account.
func (t *Tournament) ParticipationForUser(userID int) *Participation {
	for _, p := range t.Participations {
		if p.Participant != nil && p.Participant.UserID != nil && *p.Participant.UserID == userID {
			return p
		}
	}
	return nil
}

// HasFixtures reports whether any stage has created its fixtures.
func (t *Tournament) HasFixtures() bool {
	for _, s := range t.Stages {
		if len(s.Fixtures) > 0 {
			return true
		}
	}
	return false
}

// FindFixture searches all stages for a fixture by its database id.
func (t *Tournament) FindFixture(fixtureID int) (*Stage, *Fixture) {
	for _, s := range t.Stages {
		for _, f := range s.Fixtures {
			if f.ID == fixtureID {
				return s, f
			}
		}
	}
	return nil, nil
}
