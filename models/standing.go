package models

// Standing is the record of one participant inside a group, computed from confirmed fixtures.
type Standing struct {
	ParticipantID   int `json:"participant_id"`
	Points          int `json:"points"`
	GamesPlayed     int `json:"games_played"`
	Wins            int `json:"wins"`
	Draws           int `json:"draws"`
	Losses          int `json:"losses"`
	ScoreFor        int `json:"score_for"`
	ScoreAgainst    int `json:"score_against"`
	ScoreDifference int `json:"score_difference"`
	Rank            int `json:"rank"`

	Participant *Participant `json:"participant,omitempty"`
}
