package services

import (
	"time"

	"github.com/Dosada05/tournaments/brackets"
	"github.com/Dosada05/tournaments/engine"
	"github.com/Dosada05/tournaments/models"
	"github.com/Dosada05/tournaments/stages"
)

type ParticipantView struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	UserBacked bool   `json:"user_backed"`
	SlotID     int    `json:"slot_id"`
}

type LevelView struct {
	Level    int               `json:"level"`
	Name     string            `json:"name"`
	Fixtures []*models.Fixture `json:"fixtures"`
}

type StageView struct {
	ID           int                  `json:"id"`
	Identifier   string               `json:"identifier"`
	Name         string               `json:"name"`
	Mode         models.StageMode     `json:"mode"`
	PlayedBy     []string             `json:"played_by,omitempty"`
	Finished     bool                 `json:"finished"`
	CurrentLevel *int                 `json:"current_level,omitempty"`
	Levels       []LevelView          `json:"levels"`
	Groups       [][]int              `json:"groups,omitempty"`
	Standings    [][]*models.Standing `json:"standings,omitempty"`
	Placements   [][]int              `json:"placements,omitempty"`
}

type TournamentView struct {
	ID                    int                    `json:"id"`
	Name                  string                 `json:"name"`
	Definition            string                 `json:"definition"`
	Published             bool                   `json:"published"`
	CreatorID             *int                   `json:"creator_id,omitempty"`
	CreatedAt             time.Time              `json:"created_at"`
	State                 models.TournamentState `json:"state"`
	RequiredConfirmations int                    `json:"required_confirmations"`
	CurrentStage          *string                `json:"current_stage,omitempty"`
	Participants          []ParticipantView      `json:"participants"`
	Stages                []StageView            `json:"stages"`
	Podium                []ParticipantView      `json:"podium,omitempty"`
}

type TournamentSummary struct {
	ID        int                    `json:"id"`
	Name      string                 `json:"name"`
	State     models.TournamentState `json:"state"`
	CreatorID *int                   `json:"creator_id,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// TournamentIndex lists tournaments by state. Drafts are only listed for their creator.
type TournamentIndex struct {
	Drafts   []TournamentSummary `json:"drafts"`
	Open     []TournamentSummary `json:"open"`
	Active   []TournamentSummary `json:"active"`
	Finished []TournamentSummary `json:"finished"`
}

func participantView(p *models.Participation) ParticipantView {
	view := ParticipantView{ID: p.ParticipantID, SlotID: p.SlotID}
	if p.Participant != nil {
		view.Name = p.Participant.Name
		view.UserBacked = p.Participant.IsUserBacked()
	}
	return view
}

func buildTournamentView(e *engine.Engine) (*TournamentView, error) {
	t := e.Tournament()
	view := &TournamentView{
		ID:                    t.ID,
		Name:                  t.Name,
		Definition:            t.Definition,
		Published:             t.Published,
		CreatorID:             t.CreatorID,
		CreatedAt:             t.CreatedAt,
		State:                 e.State(),
		RequiredConfirmations: t.RequiredConfirmations(),
		Participants:          make([]ParticipantView, 0, len(t.Participations)),
		Stages:                make([]StageView, 0, len(t.Stages)),
	}

	byParticipant := make(map[int]*models.Participation, len(t.Participations))
	for _, p := range t.Participations {
		view.Participants = append(view.Participants, participantView(p))
		byParticipant[p.ParticipantID] = p
	}

	stageNames := make(map[string]string, len(t.Stages))
	for _, stage := range t.Stages {
		stageNames[stage.Identifier] = stage.DisplayName()
	}

	current, _, err := e.CurrentStage()
	if err != nil {
		return nil, err
	}
	if current != nil {
		identifier := current.Model().Identifier
		view.CurrentStage = &identifier
	}

	all, err := e.Stages()
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		view.Stages = append(view.Stages, buildStageView(s, stageNames, sameStage(s, current)))
	}

	if view.State == models.StateFinished {
		podium := make([]*models.Participation, 0)
		for _, p := range t.Participations {
			if p.PodiumPosition != nil {
				podium = append(podium, p)
			}
		}
		view.Podium = make([]ParticipantView, len(podium))
		for _, p := range podium {
			if *p.PodiumPosition < len(view.Podium) {
				view.Podium[*p.PodiumPosition] = participantView(p)
			}
		}
	}
	for _, stage := range view.Stages {
		for _, st := range stage.Standings {
			for _, row := range st {
				if p, ok := byParticipant[row.ParticipantID]; ok {
					row.Participant = p.Participant
				}
			}
		}
	}
	return view, nil
}

func sameStage(a, b stages.Stage) bool {
	return a != nil && b != nil && a.Model() == b.Model()
}

func buildStageView(s stages.Stage, stageNames map[string]string, isCurrent bool) StageView {
	model := s.Model()
	view := StageView{
		ID:         model.ID,
		Identifier: model.Identifier,
		Name:       model.DisplayName(),
		Mode:       model.Mode,
		Finished:   s.IsFinished(),
		Levels:     make([]LevelView, 0, s.Levels()),
		Groups:     model.GroupsInfo,
	}
	for _, literal := range model.PlayedBy {
		description, err := brackets.DescribeExpression(literal, stageNames)
		if err != nil {
			description = literal
		}
		view.PlayedBy = append(view.PlayedBy, description)
	}
	if isCurrent && len(model.Fixtures) > 0 {
		level := s.CurrentLevel()
		view.CurrentLevel = &level
	}
	for level := 0; level < s.Levels(); level++ {
		view.Levels = append(view.Levels, LevelView{
			Level:    level,
			Name:     s.LevelName(level),
			Fixtures: model.FixturesAt(level),
		})
	}
	if groups, ok := s.(*stages.GroupsStage); ok {
		view.Standings = groups.Standings()
	}
	if placements, ok := s.Placements(); ok {
		view.Placements = placements
	}
	return view
}
