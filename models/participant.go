package models

import "time"

// Participant is an identity taking part in tournaments. It is backed by a user
// account or is a placeholder known only by name.
type Participant struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	UserID    *int      `json:"user_id,omitempty" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsUserBacked reports whether the participant can vote on fixture results.
func (p *Participant) IsUserBacked() bool {
	return p != nil && p.UserID != nil
}

// Participation joins a participant to a tournament.
type Participation struct {
	ID             int  `json:"id" db:"id"`
	TournamentID   int  `json:"tournament_id" db:"tournament_id"`
	ParticipantID  int  `json:"participant_id" db:"participant_id"`
	SlotID         int  `json:"slot_id" db:"slot_id"`
	PodiumPosition *int `json:"podium_position,omitempty" db:"podium_position"`

	Participant *Participant `json:"participant,omitempty" db:"-"`
}
