package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"loom/contexts/narrative/beat-service/domain/entities"
	domainerrors "loom/contexts/narrative/beat-service/domain/errors"
	"loom/contexts/narrative/beat-service/ports"
	"loom/internal/shared/events"
	"loom/internal/shared/outbox"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   outbox.Message
	published bool
}

// Store is the in-memory adapter behind NewInMemoryModule. Its proposal
// engine, roller and classifier are scriptable so tests can drive beat
// outcomes without the real consensus and fortune modules.
type Store struct {
	mu sync.RWMutex

	beats      map[string]entities.Beat
	challenges map[string]entities.Challenge
	comments   map[string][]entities.Comment
	outbox     []outboxRecord

	proposalOutcomes map[string]ports.ProposalOutcome
	sceneInfo        map[string]ports.SceneInfo
	gameInfo         map[string]ports.GameInfo
	members          map[string]map[string]bool

	significance string
	rationale    string

	diceTotal      int
	fortuneOutcome string

	now time.Time
}

func NewStore() *Store {
	return &Store{
		beats:            make(map[string]entities.Beat),
		challenges:       make(map[string]entities.Challenge),
		comments:         make(map[string][]entities.Comment),
		proposalOutcomes: make(map[string]ports.ProposalOutcome),
		sceneInfo:        make(map[string]ports.SceneInfo),
		gameInfo:         make(map[string]ports.GameInfo),
		members:          make(map[string]map[string]bool),
		significance:     string(entities.SignificanceMinor),
		diceTotal:        7,
		fortuneOutcome:   "yes",
		now:              time.Now().UTC(),
	}
}

func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now.UTC()
}

// Advance moves the clock forward.
func (s *Store) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) SetSceneInfo(sceneID string, info ports.SceneInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sceneInfo[sceneID] = info
}

func (s *Store) GetSceneInfo(_ context.Context, sceneID string) (ports.SceneInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.sceneInfo[sceneID]
	if !ok {
		return ports.SceneInfo{}, domainerrors.ErrSceneNotActive
	}
	return info, nil
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
		return ports.GameInfo{
			Status:                "active",
			SignificanceThreshold: "flag_obvious",
			SilenceTimer:          12 * time.Hour,
		}, nil
	}
	return info, nil
}

func (s *Store) SetMembers(gameID string, userIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		roster[id] = true
	}
	s.members[gameID] = roster
}

func (s *Store) IsActiveMember(_ context.Context, gameID string, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roster, ok := s.members[gameID]
	if !ok {
		// Unseeded games treat everyone as a member, keeping submission
		// tests free of roster boilerplate.
		return true, nil
	}
	return roster[userID], nil
}

func (s *Store) SetSignificance(significance string, rationale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.significance = significance
	s.rationale = rationale
}

func (s *Store) Classify(_ context.Context, _ string, _ string, _ string) (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.significance, s.rationale
}

// SetDiceTotal scripts the total returned for every roll.
func (s *Store) SetDiceTotal(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diceTotal = total
}

// SetFortuneOutcome scripts the outcome returned for every fortune roll.
func (s *Store) SetFortuneOutcome(outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fortuneOutcome = outcome
}

func (s *Store) RollDice(_ context.Context, notation string) (ports.DiceResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if notation == "" {
		return ports.DiceResult{}, domainerrors.ErrInvalidBeatInput
	}
	return ports.DiceResult{
		Notation: notation,
		Rolls:    []int{s.diceTotal},
		Total:    s.diceTotal,
	}, nil
}

func (s *Store) RollFortune(_ context.Context, odds string, tension int) (ports.FortuneResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if odds == "" {
		return ports.FortuneResult{}, domainerrors.ErrInvalidBeatInput
	}
	return ports.FortuneResult{
		Odds:        odds,
		Tension:     tension,
		Outcome:     s.fortuneOutcome,
		Exceptional: s.fortuneOutcome == "exceptional_yes" || s.fortuneOutcome == "exceptional_no",
	}, nil
}

func (s *Store) SaveBeat(_ context.Context, beat entities.Beat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beats[beat.BeatID] = beat
	return nil
}

func (s *Store) GetBeat(_ context.Context, beatID string) (entities.Beat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	beat, ok := s.beats[beatID]
	if !ok {
		return entities.Beat{}, domainerrors.ErrBeatNotFound
	}
	return beat, nil
}

func (s *Store) ListBeatsByScene(_ context.Context, sceneID string) ([]entities.Beat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	beats := make([]entities.Beat, 0)
	for _, beat := range s.beats {
		if beat.SceneID == sceneID {
			beats = append(beats, beat)
		}
	}
	sort.Slice(beats, func(i, j int) bool {
		return beats[i].CreatedAt.Before(beats[j].CreatedAt)
	})
	return beats, nil
}

func (s *Store) SaveChallenge(_ context.Context, challenge entities.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if challenge.Open() {
		for _, other := range s.challenges {
			if other.BeatID == challenge.BeatID && other.Open() && other.ChallengeID != challenge.ChallengeID {
				return domainerrors.ErrConflict
			}
		}
	}
	s.challenges[challenge.ChallengeID] = challenge
	return nil
}

func (s *Store) GetChallenge(_ context.Context, challengeID string) (entities.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	challenge, ok := s.challenges[challengeID]
	if !ok {
		return entities.Challenge{}, domainerrors.ErrChallengeNotFound
	}
	return challenge, nil
}

func (s *Store) GetOpenChallengeByBeat(_ context.Context, beatID string) (entities.Challenge, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, challenge := range s.challenges {
		if challenge.BeatID == beatID && challenge.Open() {
			return challenge, true, nil
		}
	}
	return entities.Challenge{}, false, nil
}

func (s *Store) ListChallengesByBeat(_ context.Context, beatID string) ([]entities.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	challenges := make([]entities.Challenge, 0)
	for _, challenge := range s.challenges {
		if challenge.BeatID == beatID {
			challenges = append(challenges, challenge)
		}
	}
	sort.Slice(challenges, func(i, j int) bool {
		return challenges[i].CreatedAt.Before(challenges[j].CreatedAt)
	})
	return challenges, nil
}

func (s *Store) ListDueOpenChallenges(_ context.Context, now time.Time, limit int) ([]entities.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	due := make([]entities.Challenge, 0)
	for _, challenge := range s.challenges {
		if !challenge.Open() || challenge.EscalationProposalID != "" {
			continue
		}
		if !now.Before(challenge.DueAt) {
			due = append(due, challenge)
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (s *Store) SaveComment(_ context.Context, comment entities.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[comment.ChallengeID] = append(s.comments[comment.ChallengeID], comment)
	return nil
}

func (s *Store) ListCommentsByChallenge(_ context.Context, challengeID string) ([]entities.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	comments := make([]entities.Comment, len(s.comments[challengeID]))
	copy(comments, s.comments[challengeID])
	return comments, nil
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
) (ports.ProposalOutcome, error) {
	return s.openLocked(kind, subjectID)
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
	_ ports.BeatRepository         = (*Store)(nil)
	_ ports.SceneSource            = (*Store)(nil)
	_ ports.GameSource             = (*Store)(nil)
	_ ports.MembershipSource       = (*Store)(nil)
	_ ports.SignificanceClassifier = (*Store)(nil)
	_ ports.Roller                 = (*Store)(nil)
	_ ports.ProposalEngine         = (*Store)(nil)
	_ ports.OutboxWriter           = (*Store)(nil)
	_ ports.Clock                  = (*Store)(nil)
	_ ports.IDGenerator            = (*Store)(nil)
)
