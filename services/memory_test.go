package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tournaments/models"
	"github.com/Dosada05/tournaments/repositories"
)

// memoryDB backs in-memory versions of the repositories. It ignores the
// executor, so a rolled back transaction still leaves its writes behind.
type memoryDB struct {
	mu             sync.Mutex
	nextID         int
	tournaments    map[int]*models.Tournament
	stages         map[int]*models.Stage
	fixtures       map[int]*models.Fixture
	confirmations  map[int]map[int]bool
	participants   map[int]*models.Participant
	participations map[int]*models.Participation
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		tournaments:    map[int]*models.Tournament{},
		stages:         map[int]*models.Stage{},
		fixtures:       map[int]*models.Fixture{},
		confirmations:  map[int]map[int]bool{},
		participants:   map[int]*models.Participant{},
		participations: map[int]*models.Participation{},
	}
}

func (m *memoryDB) id() int {
	m.nextID++
	return m.nextID
}

func copyTournament(t *models.Tournament) *models.Tournament {
	c := *t
	c.Podium = append([]string(nil), t.Podium...)
	c.Stages = nil
	c.Participations = nil
	return &c
}

func copyStage(s *models.Stage) *models.Stage {
	c := *s
	c.PlayedBy = append([]string(nil), s.PlayedBy...)
	if s.Groups != nil {
		g := *s.Groups
		c.Groups = &g
	}
	if s.Knockout != nil {
		k := *s.Knockout
		c.Knockout = &k
	}
	if s.GroupsInfo != nil {
		c.GroupsInfo = make([][]int, len(s.GroupsInfo))
		for i, group := range s.GroupsInfo {
			c.GroupsInfo[i] = append([]int(nil), group...)
		}
	}
	c.Fixtures = nil
	return &c
}

type memoryTournaments struct{ db *memoryDB }

func (r memoryTournaments) Create(_ context.Context, _ repositories.SQLExecutor, t *models.Tournament) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t.ID = r.db.id()
	t.CreatedAt = time.Now()
	r.db.tournaments[t.ID] = copyTournament(t)
	return nil
}

func (r memoryTournaments) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return copyTournament(t), nil
}

func (r memoryTournaments) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, exec, id)
}

func (r memoryTournaments) List(_ context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	list := make([]*models.Tournament, 0)
	for _, t := range r.db.tournaments {
		if filter.Published != nil && t.Published != *filter.Published {
			continue
		}
		if filter.CreatorID != nil && (t.CreatorID == nil || *t.CreatorID != *filter.CreatorID) {
			continue
		}
		list = append(list, copyTournament(t))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (r memoryTournaments) Update(_ context.Context, _ repositories.SQLExecutor, t *models.Tournament) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tournaments[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	r.db.tournaments[t.ID] = copyTournament(t)
	return nil
}

func (r memoryTournaments) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.db.tournaments, id)
	r.db.deleteStagesLocked(id)
	for pid, p := range r.db.participations {
		if p.TournamentID == id {
			delete(r.db.participations, pid)
		}
	}
	return nil
}

func (r memoryTournaments) progressLocked(id int) repositories.TournamentProgress {
	var progress repositories.TournamentProgress
	for _, f := range r.db.fixtures {
		if s, ok := r.db.stages[f.StageID]; ok && s.TournamentID == id {
			progress.HasFixtures = true
		}
	}
	for _, p := range r.db.participations {
		if p.TournamentID == id && p.PodiumPosition != nil {
			progress.HasPodium = true
		}
	}
	return progress
}

func (r memoryTournaments) ListActiveIDs(_ context.Context) ([]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ids := make([]int, 0)
	for id, t := range r.db.tournaments {
		progress := r.progressLocked(id)
		if t.Published && progress.HasFixtures && !progress.HasPodium {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (r memoryTournaments) ListProgress(_ context.Context, ids []int) (map[int]repositories.TournamentProgress, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	progress := make(map[int]repositories.TournamentProgress, len(ids))
	for _, id := range ids {
		progress[id] = r.progressLocked(id)
	}
	return progress, nil
}

type memoryStages struct{ db *memoryDB }

func (r memoryStages) Create(_ context.Context, _ repositories.SQLExecutor, s *models.Stage) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.stages {
		if existing.TournamentID == s.TournamentID && existing.Identifier == s.Identifier {
			return repositories.ErrStageIdentifierConflict
		}
	}
	s.ID = r.db.id()
	r.db.stages[s.ID] = copyStage(s)
	return nil
}

func (r memoryStages) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Stage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	list := make([]*models.Stage, 0)
	for _, s := range r.db.stages {
		if s.TournamentID == tournamentID {
			list = append(list, copyStage(s))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Position < list[j].Position })
	return list, nil
}

func (r memoryStages) UpdateGroupsInfo(_ context.Context, _ repositories.SQLExecutor, s *models.Stage) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.stages[s.ID]
	if !ok {
		return repositories.ErrStageNotFound
	}
	stored.GroupsInfo = copyStage(s).GroupsInfo
	return nil
}

func (r memoryStages) DeleteByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.deleteStagesLocked(tournamentID)
	return nil
}

func (m *memoryDB) deleteStagesLocked(tournamentID int) {
	for id, s := range m.stages {
		if s.TournamentID != tournamentID {
			continue
		}
		delete(m.stages, id)
		for fid, f := range m.fixtures {
			if f.StageID == id {
				delete(m.fixtures, fid)
				delete(m.confirmations, fid)
			}
		}
	}
}

type memoryFixtures struct{ db *memoryDB }

func (r memoryFixtures) Create(_ context.Context, _ repositories.SQLExecutor, f *models.Fixture) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.stages[f.StageID]; !ok {
		return repositories.ErrFixtureNotFound
	}
	f.ID = r.db.id()
	stored := f.Clone()
	stored.Confirmations = nil
	r.db.fixtures[f.ID] = stored
	return nil
}

func (r memoryFixtures) ListByStages(_ context.Context, _ repositories.SQLExecutor, stageIDs []int) ([]*models.Fixture, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	wanted := make(map[int]bool, len(stageIDs))
	for _, id := range stageIDs {
		wanted[id] = true
	}
	list := make([]*models.Fixture, 0)
	for _, f := range r.db.fixtures {
		if wanted[f.StageID] {
			list = append(list, f.Clone())
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].StageID != list[j].StageID {
			return list[i].StageID < list[j].StageID
		}
		return list[i].Index < list[j].Index
	})
	return list, nil
}

func (r memoryFixtures) Update(_ context.Context, _ repositories.SQLExecutor, f *models.Fixture) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.fixtures[f.ID]
	if !ok {
		return repositories.ErrFixtureNotFound
	}
	c := f.Clone()
	stored.Player1ID, stored.Player2ID = c.Player1ID, c.Player2ID
	stored.Score1, stored.Score2 = c.Score1, c.Score2
	return nil
}

func (r memoryFixtures) AddConfirmation(_ context.Context, _ repositories.SQLExecutor, fixtureID, participantID int) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.fixtures[fixtureID]; !ok {
		return false, repositories.ErrFixtureNotFound
	}
	set := r.db.confirmations[fixtureID]
	if set == nil {
		set = map[int]bool{}
		r.db.confirmations[fixtureID] = set
	}
	if set[participantID] {
		return false, nil
	}
	set[participantID] = true
	return true, nil
}

func (r memoryFixtures) ClearConfirmations(_ context.Context, _ repositories.SQLExecutor, fixtureID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.confirmations, fixtureID)
	return nil
}

func (r memoryFixtures) ListConfirmations(_ context.Context, _ repositories.SQLExecutor, fixtureIDs []int) (map[int][]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	result := make(map[int][]int)
	for _, id := range fixtureIDs {
		for participantID := range r.db.confirmations[id] {
			result[id] = append(result[id], participantID)
		}
		sort.Ints(result[id])
	}
	return result, nil
}

func (m *memoryDB) confirmationCount(fixtureID int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.confirmations[fixtureID])
}

type memoryParticipants struct{ db *memoryDB }

func (r memoryParticipants) Create(_ context.Context, _ repositories.SQLExecutor, p *models.Participant) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.participants {
		if existing.Name == p.Name {
			return repositories.ErrParticipantNameConflict
		}
		if p.UserID != nil && existing.UserID != nil && *existing.UserID == *p.UserID {
			return repositories.ErrParticipantNameConflict
		}
	}
	p.ID = r.db.id()
	p.CreatedAt = time.Now()
	c := *p
	r.db.participants[p.ID] = &c
	return nil
}

func (r memoryParticipants) find(match func(p *models.Participant) bool) (*models.Participant, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.participants {
		if match(p) {
			c := *p
			return &c, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r memoryParticipants) FindByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Participant, error) {
	return r.find(func(p *models.Participant) bool { return p.ID == id })
}

func (r memoryParticipants) FindByUserID(_ context.Context, _ repositories.SQLExecutor, userID int) (*models.Participant, error) {
	return r.find(func(p *models.Participant) bool { return p.UserID != nil && *p.UserID == userID })
}

func (r memoryParticipants) FindByName(_ context.Context, _ repositories.SQLExecutor, name string) (*models.Participant, error) {
	return r.find(func(p *models.Participant) bool { return p.Name == name })
}

func (r memoryParticipants) CreateParticipation(_ context.Context, _ repositories.SQLExecutor, p *models.Participation) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.participants[p.ParticipantID]; !ok {
		return repositories.ErrParticipantNotFound
	}
	for _, existing := range r.db.participations {
		if existing.TournamentID != p.TournamentID {
			continue
		}
		if existing.ParticipantID == p.ParticipantID {
			return repositories.ErrParticipationConflict
		}
		if existing.SlotID == p.SlotID {
			return repositories.ErrParticipationSlotTaken
		}
	}
	p.ID = r.db.id()
	c := *p
	c.Participant = nil
	r.db.participations[p.ID] = &c
	return nil
}

func (r memoryParticipants) DeleteParticipation(_ context.Context, _ repositories.SQLExecutor, tournamentID, participantID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, p := range r.db.participations {
		if p.TournamentID == tournamentID && p.ParticipantID == participantID {
			delete(r.db.participations, id)
			return nil
		}
	}
	return repositories.ErrParticipationNotFound
}

func (r memoryParticipants) DeleteParticipations(_ context.Context, _ repositories.SQLExecutor, tournamentID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, p := range r.db.participations {
		if p.TournamentID == tournamentID {
			delete(r.db.participations, id)
		}
	}
	return nil
}

func (r memoryParticipants) ListParticipations(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Participation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	list := make([]*models.Participation, 0)
	for _, p := range r.db.participations {
		if p.TournamentID != tournamentID {
			continue
		}
		c := *p
		if p.PodiumPosition != nil {
			pos := *p.PodiumPosition
			c.PodiumPosition = &pos
		}
		participant := *r.db.participants[p.ParticipantID]
		c.Participant = &participant
		list = append(list, &c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].SlotID < list[j].SlotID })
	return list, nil
}

func (r memoryParticipants) NextSlotID(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	next := 0
	for _, p := range r.db.participations {
		if p.TournamentID == tournamentID && p.SlotID >= next {
			next = p.SlotID + 1
		}
	}
	return next, nil
}

func (r memoryParticipants) UpdateSlots(_ context.Context, _ repositories.SQLExecutor, tournamentID int, slots map[int]int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, slot := range slots {
		p, ok := r.db.participations[id]
		if !ok || p.TournamentID != tournamentID {
			return repositories.ErrParticipationNotFound
		}
		p.SlotID = slot
	}
	taken := map[int]bool{}
	for _, p := range r.db.participations {
		if p.TournamentID != tournamentID {
			continue
		}
		if taken[p.SlotID] {
			return repositories.ErrParticipationSlotTaken
		}
		taken[p.SlotID] = true
	}
	return nil
}

func (r memoryParticipants) UpdatePodium(_ context.Context, _ repositories.SQLExecutor, tournamentID int, positions map[int]int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.participations {
		if p.TournamentID == tournamentID {
			p.PodiumPosition = nil
		}
	}
	for id, position := range positions {
		p, ok := r.db.participations[id]
		if !ok || p.TournamentID != tournamentID {
			return repositories.ErrParticipationNotFound
		}
		pos := position
		p.PodiumPosition = &pos
	}
	return nil
}

func (r memoryParticipants) PodiumCounts(_ context.Context, positions int) ([]repositories.PodiumCount, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	type key struct{ position, participant int }
	counts := map[key]int{}
	for _, p := range r.db.participations {
		if p.PodiumPosition != nil && *p.PodiumPosition < positions {
			counts[key{*p.PodiumPosition, p.ParticipantID}]++
		}
	}
	result := make([]repositories.PodiumCount, 0, len(counts))
	for k, count := range counts {
		result = append(result, repositories.PodiumCount{
			Position:      k.position,
			ParticipantID: k.participant,
			Name:          r.db.participants[k.participant].Name,
			Count:         count,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Position != result[j].Position {
			return result[i].Position < result[j].Position
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (r memoryParticipants) DeleteOrphanPlaceholders(_ context.Context, _ repositories.SQLExecutor) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	used := map[int]bool{}
	for _, p := range r.db.participations {
		used[p.ParticipantID] = true
	}
	var deleted int64
	for id, p := range r.db.participants {
		if p.UserID == nil && !used[id] {
			delete(r.db.participants, id)
			deleted++
		}
	}
	return deleted, nil
}
