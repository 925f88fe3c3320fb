package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrFixtureAlreadyConfirmed = errors.New("fixture result is already confirmed")
	ErrInvalidScore            = errors.New("invalid score")
)

// MaxScore keeps scores within a 16-bit column.
const MaxScore = 32767

// Tree identifiers of knockout fixtures.
const (
	TreeMain   = 1
	TreeLosers = 2
)

// Edge routes a fixture outcome into a slot (1 or 2) of another fixture of the same stage.
type Edge struct {
	Index int `json:"index"`
	Slot  int `json:"slot"`
}

type Fixture struct {
	ID           int   `json:"id" db:"id"`
	StageID      int   `json:"stage_id" db:"stage_id"`
	Index        int   `json:"index" db:"idx"`
	Level        int   `json:"level" db:"level"`
	Tree         int   `json:"tree,omitempty" db:"tree"`
	TreePosition int   `json:"tree_position,omitempty" db:"tree_position"`
	Player1ID    *int  `json:"player1_id,omitempty" db:"player1_id"`
	Player2ID    *int  `json:"player2_id,omitempty" db:"player2_id"`
	Score1       *int  `json:"score1,omitempty" db:"score1"`
	Score2       *int  `json:"score2,omitempty" db:"score2"`
	WinnerTo     *Edge `json:"winner_to,omitempty" db:"-"`
	LoserTo      *Edge `json:"loser_to,omitempty" db:"-"`

	// Confirmations holds the ids of the participants who attested the current score.
	Confirmations []int `json:"confirmations" db:"-"`
}

// HasScore reports whether both scores are set.
func (f *Fixture) HasScore() bool {
	return f.Score1 != nil && f.Score2 != nil
}

// HasPlayers reports whether both slots are occupied.
func (f *Fixture) HasPlayers() bool {
	return f.Player1ID != nil && f.Player2ID != nil
}

// Player returns the participant in slot 1 or 2.
func (f *Fixture) Player(slot int) *int {
	if slot == 1 {
		return f.Player1ID
	}
	return f.Player2ID
}

// SetPlayer fills slot 1 or 2.
func (f *Fixture) SetPlayer(slot int, participantID int) {
	id := participantID
	if slot == 1 {
		f.Player1ID = &id
	} else {
		f.Player2ID = &id
	}
}

// Involves reports whether the participant plays in the fixture.
func (f *Fixture) Involves(participantID int) bool {
	return (f.Player1ID != nil && *f.Player1ID == participantID) ||
		(f.Player2ID != nil && *f.Player2ID == participantID)
}

// SetScore changes the score of a fixture that is not yet confirmed.
// A different score drops every confirmation collected so far.
func (f *Fixture) SetScore(score1, score2 int, required int) error {
	if f.IsConfirmed(required) {
		return ErrFixtureAlreadyConfirmed
	}
	if score1 < 0 || score2 < 0 || score1 > MaxScore || score2 > MaxScore {
		return fmt.Errorf("%w: %d:%d", ErrInvalidScore, score1, score2)
	}
	if f.HasScore() && *f.Score1 == score1 && *f.Score2 == score2 {
		return nil
	}
	s1, s2 := score1, score2
	f.Score1, f.Score2 = &s1, &s2
	f.Confirmations = nil
	return nil
}

// ClearScore unsets the score of a fixture that is not yet confirmed.
func (f *Fixture) ClearScore(required int) error {
	if f.IsConfirmed(required) {
		return ErrFixtureAlreadyConfirmed
	}
	f.Score1, f.Score2 = nil, nil
	f.Confirmations = nil
	return nil
}

// Confirm adds a confirmation. Confirming twice is a no-op; the return value
// tells whether the confirmation is new.
func (f *Fixture) Confirm(participantID int) bool {
	if f.HasConfirmation(participantID) {
		return false
	}
	f.Confirmations = append(f.Confirmations, participantID)
	return true
}

func (f *Fixture) HasConfirmation(participantID int) bool {
	for _, id := range f.Confirmations {
		if id == participantID {
			return true
		}
	}
	return false
}

func (f *Fixture) ConfirmationCount() int {
	return len(f.Confirmations)
}

// IsConfirmed reports whether the score is set and attested by the quorum.
func (f *Fixture) IsConfirmed(required int) bool {
	return f.HasScore() && f.ConfirmationCount() >= required
}

// Winner is the participant with the higher score, nil when unscored or tied.
func (f *Fixture) Winner() *int {
	if !f.HasScore() {
		return nil
	}
	switch {
	case *f.Score1 > *f.Score2:
		return f.Player1ID
	case *f.Score2 > *f.Score1:
		return f.Player2ID
	}
	return nil
}

// Loser mirrors Winner.
func (f *Fixture) Loser() *int {
	if !f.HasScore() {
		return nil
	}
	switch {
	case *f.Score1 > *f.Score2:
		return f.Player2ID
	case *f.Score2 > *f.Score1:
		return f.Player1ID
	}
	return nil
}

// IsDraw reports a set, tied score.
func (f *Fixture) IsDraw() bool {
	return f.HasScore() && *f.Score1 == *f.Score2
}

// ScoreString renders the score as "a:b", or an empty string when unset.
func (f *Fixture) ScoreString() string {
	if !f.HasScore() {
		return ""
	}
	return fmt.Sprintf("%d:%d", *f.Score1, *f.Score2)
}

// ParseScore parses "a:b" into two scores.
func ParseScore(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidScore, s)
	}
	score1, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidScore, s)
	}
	score2, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidScore, s)
	}
	if score1 < 0 || score2 < 0 || score1 > MaxScore || score2 > MaxScore {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidScore, s)
	}
	return score1, score2, nil
}

// Clone copies the fixture including its pointers.
func (f *Fixture) Clone() *Fixture {
	c := *f
	c.Player1ID = clonePtr(f.Player1ID)
	c.Player2ID = clonePtr(f.Player2ID)
	c.Score1 = clonePtr(f.Score1)
	c.Score2 = clonePtr(f.Score2)
	if f.WinnerTo != nil {
		e := *f.WinnerTo
		c.WinnerTo = &e
	}
	if f.LoserTo != nil {
		e := *f.LoserTo
		c.LoserTo = &e
	}
	c.Confirmations = append([]int(nil), f.Confirmations...)
	return &c
}

func clonePtr(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
