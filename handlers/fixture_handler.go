package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Dosada05/tournaments/models"
	"github.com/Dosada05/tournaments/services"
)

type FixtureHandler struct {
	fixtureService services.FixtureService
}

func NewFixtureHandler(fs services.FixtureService) *FixtureHandler {
	return &FixtureHandler{fixtureService: fs}
}

// ScoreInput accepts either "score": "3:1" or the two numbers.
type ScoreInput struct {
	Score  string `json:"score,omitempty"`
	Score1 *int   `json:"score1,omitempty"`
	Score2 *int   `json:"score2,omitempty"`
}

func (in ScoreInput) values() (int, int, error) {
	if in.Score != "" {
		if in.Score1 != nil || in.Score2 != nil {
			return 0, 0, errors.New("give either score or score1 and score2")
		}
		return models.ParseScore(in.Score)
	}
	if in.Score1 == nil || in.Score2 == nil {
		return 0, 0, errors.New("score is required")
	}
	return *in.Score1, *in.Score2, nil
}

func fixtureIDs(r *http.Request) (int, int, error) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		return 0, 0, err
	}
	fixtureID, err := getIDFromURL(r, "fixtureID")
	if err != nil {
		return 0, 0, err
	}
	return tournamentID, fixtureID, nil
}

// SubmitScoreHandler handles POST /tournaments/{tournamentID}/fixtures/{fixtureID}/score
func (h *FixtureHandler) SubmitScoreHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	tournamentID, fixtureID, err := fixtureIDs(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input ScoreInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	score1, score2, err := input.values()
	if err != nil {
		badRequestResponse(w, r, fmt.Errorf("invalid score: %w", err))
		return
	}

	result, err := h.fixtureService.SubmitScore(r.Context(), userID, tournamentID, fixtureID, score1, score2)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ConfirmHandler handles POST /tournaments/{tournamentID}/fixtures/{fixtureID}/confirm
func (h *FixtureHandler) ConfirmHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	tournamentID, fixtureID, err := fixtureIDs(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.fixtureService.Confirm(r.Context(), userID, tournamentID, fixtureID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
