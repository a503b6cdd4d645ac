package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"loom/contexts/narrative/pacing-service/domain/entities"
	domainerrors "loom/contexts/narrative/pacing-service/domain/errors"
	"loom/contexts/narrative/pacing-service/ports"
	"loom/internal/shared/events"
	"loom/internal/shared/outbox"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   outbox.Message
	published bool
}

// Store is the in-memory adapter behind NewInMemoryModule. Its proposal
// engine is scriptable so tests can drive act, scene and tension outcomes
// without the real consensus module.
type Store struct {
	mu sync.RWMutex

	acts   map[string]entities.Act
	scenes map[string]entities.Scene
	outbox []outboxRecord

	proposalOutcomes map[string]ports.ProposalOutcome
	openedDeltas     map[string]int
	gameInfo         map[string]ports.GameInfo

	suggestedDelta     int
	suggestedRationale string

	now time.Time
}

func NewStore() *Store {
	return &Store{
		acts:             make(map[string]entities.Act),
		scenes:           make(map[string]entities.Scene),
		proposalOutcomes: make(map[string]ports.ProposalOutcome),
		openedDeltas:     make(map[string]int),
		gameInfo:         make(map[string]ports.GameInfo),
		now:              time.Now().UTC(),
	}
}

func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now.UTC()
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) SetGameInfo(gameID string, info ports.GameInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameInfo[gameID] = info
}

func (s *Store) GetGameInfo(_ context.Context, gameID string) (ports.GameInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.gameInfo[gameID]
	if !ok {
		return ports.GameInfo{Status: "active", StartingTension: 5, TensionVotingMode: "group_vote"}, nil
	}
	return info, nil
}

func (s *Store) SetDeltaSuggestion(delta int, rationale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestedDelta = delta
	s.suggestedRationale = rationale
}

func (s *Store) SuggestDelta(_ context.Context, _ string, _ string) (int, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.suggestedDelta, s.suggestedRationale
}

func (s *Store) SaveAct(_ context.Context, act entities.Act) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acts[act.ActID] = act
	return nil
}

func (s *Store) GetAct(_ context.Context, actID string) (entities.Act, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	act, ok := s.acts[actID]
	if !ok {
		return entities.Act{}, domainerrors.ErrActNotFound
	}
	return act, nil
}

func (s *Store) ListActsByGame(_ context.Context, gameID string) ([]entities.Act, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acts := make([]entities.Act, 0)
	for _, act := range s.acts {
		if act.GameID == gameID {
			acts = append(acts, act)
		}
	}
	sort.Slice(acts, func(i, j int) bool { return acts[i].Order < acts[j].Order })
	return acts, nil
}

func (s *Store) SaveScene(_ context.Context, scene entities.Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes[scene.SceneID] = scene
	return nil
}

func (s *Store) GetScene(_ context.Context, sceneID string) (entities.Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scene, ok := s.scenes[sceneID]
	if !ok {
		return entities.Scene{}, domainerrors.ErrSceneNotFound
	}
	return scene, nil
}

func (s *Store) ListScenesByAct(_ context.Context, actID string) ([]entities.Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scenes := make([]entities.Scene, 0)
	for _, scene := range s.scenes {
		if scene.ActID == actID {
			scenes = append(scenes, scene)
		}
	}
	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].CreatedAt.Before(scenes[j].CreatedAt)
	})
	return scenes, nil
}

func (s *Store) LatestCompletedScene(_ context.Context, gameID string) (entities.Scene, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest entities.Scene
	found := false
	for _, scene := range s.scenes {
		if scene.GameID != gameID || scene.Status != entities.SceneStatusComplete {
			continue
		}
		if !found || scene.UpdatedAt.After(latest.UpdatedAt) {
			latest = scene
			found = true
		}
	}
	return latest, found, nil
}

func (s *Store) SetProposalOutcome(kind string, subjectID string, outcome ports.ProposalOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposalOutcomes[kind+"/"+subjectID] = outcome
}

func (s *Store) OpenProposal(
	_ context.Context,
	_ string,
	kind string,
	_ string,
	subjectID string,
	_ string,
) (ports.ProposalOutcome, error) {
	return s.openLocked(kind, subjectID)
}

func (s *Store) OpenSystemProposal(
	_ context.Context,
	_ string,
	kind string,
	_ string,
	subjectID string,
	_ string,
	suggestedDelta int,
) (ports.ProposalOutcome, error) {
	s.mu.Lock()
	s.openedDeltas[kind+"/"+subjectID] = suggestedDelta
	s.mu.Unlock()
	return s.openLocked(kind, subjectID)
}

// OpenedDelta reports the suggested delta recorded with a system-opened
// ballot, for assertions.
func (s *Store) OpenedDelta(kind string, subjectID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	delta, ok := s.openedDeltas[kind+"/"+subjectID]
	return delta, ok
}

func (s *Store) openLocked(kind string, subjectID string) (ports.ProposalOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	outcome, ok := s.proposalOutcomes[kind+"/"+subjectID]
	if !ok {
		outcome = ports.ProposalOutcome{ProposalID: uuid.NewString(), Status: "open"}
		s.proposalOutcomes[kind+"/"+subjectID] = outcome
	}
	return outcome, nil
}

func (s *Store) ResolvedOutcome(_ context.Context, kind string, subjectID string) (ports.ProposalOutcome, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	outcome, ok := s.proposalOutcomes[kind+"/"+subjectID]
	if !ok || !outcome.Resolved {
		return ports.ProposalOutcome{}, false, nil
	}
	return outcome, true, nil
}

// ForceResolve settles a still-open scripted proposal as approved, keeping
// whatever winning delta the test staged on it.
func (s *Store) ForceResolve(_ context.Context, kind string, subjectID string) (ports.ProposalOutcome, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	outcome, ok := s.proposalOutcomes[kind+"/"+subjectID]
	if !ok {
		return ports.ProposalOutcome{}, false, nil
	}
	if !outcome.Resolved {
		outcome.Resolved = true
		if outcome.Status == "" || outcome.Status == "open" {
			outcome.Status = "approved"
		}
		s.proposalOutcomes[kind+"/"+subjectID] = outcome
	}
	return outcome, true, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope events.Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, outboxRecord{message: outbox.Message{
		ID:        envelope.EventID,
		EventType: envelope.EventType,
		Payload:   payload,
		Status:    "pending",
	}})
	return nil
}

// OutboxEventTypes lists appended event types in order, for assertions.
func (s *Store) OutboxEventTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]string, 0, len(s.outbox))
	for _, record := range s.outbox {
		types = append(types, record.message.EventType)
	}
	return types
}

var (
	_ ports.PacingRepository = (*Store)(nil)
	_ ports.ProposalEngine   = (*Store)(nil)
	_ ports.GameSource       = (*Store)(nil)
	_ ports.DeltaSuggester   = (*Store)(nil)
	_ ports.OutboxWriter     = (*Store)(nil)
	_ ports.Clock            = (*Store)(nil)
	_ ports.IDGenerator      = (*Store)(nil)
)
