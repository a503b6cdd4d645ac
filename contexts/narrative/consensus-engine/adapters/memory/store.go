package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"loom/contexts/narrative/consensus-engine/domain/entities"
	domainerrors "loom/contexts/narrative/consensus-engine/domain/errors"
	"loom/contexts/narrative/consensus-engine/ports"
	"loom/internal/shared/events"
	"loom/internal/shared/outbox"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   outbox.Message
	published bool
}

// Store is the in-memory adapter behind NewInMemoryModule. It implements
// the repository, roster, settings, outbox, clock and ID ports in one
// place so tests can steer every dependency.
type Store struct {
	mu sync.RWMutex

	proposals map[string]entities.Proposal
	votes     map[string]entities.Vote
	outbox    []outboxRecord

	members  map[string][]string
	settings map[string]ports.ConsensusSettings

	suggestedDelta     int
	suggestedRationale string

	now time.Time
}

func NewStore() *Store {
	return &Store{
		proposals: make(map[string]entities.Proposal),
		votes:     make(map[string]entities.Vote),
		members:   make(map[string][]string),
		settings:  make(map[string]ports.ConsensusSettings),
		now:       time.Now().UTC(),
	}
}

func (s *Store) SetMembers(gameID string, memberIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[strings.TrimSpace(gameID)] = append([]string(nil), memberIDs...)
}

func (s *Store) SetSettings(gameID string, settings ports.ConsensusSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[strings.TrimSpace(gameID)] = settings
}

func (s *Store) SetDeltaSuggestion(delta int, rationale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestedDelta = delta
	s.suggestedRationale = rationale
}

func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now.UTC()
}

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

// WithinTx runs fn directly: every store operation already holds the
// single mutex, so there is nothing to roll back.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *Store) SaveProposal(_ context.Context, proposal entities.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if proposal.Open() {
		for _, existing := range s.proposals {
			if existing.ProposalID == proposal.ProposalID {
				continue
			}
			if existing.Open() && existing.Kind == proposal.Kind && existing.SubjectID == proposal.SubjectID {
				return domainerrors.ErrConflict
			}
		}
	}
	s.proposals[proposal.ProposalID] = proposal
	return nil
}

func (s *Store) GetProposal(_ context.Context, proposalID string) (entities.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	return proposal, nil
}

func (s *Store) GetOpenProposalBySubject(
	_ context.Context,
	kind entities.ProposalKind,
	subjectID string,
) (entities.Proposal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, proposal := range s.proposals {
		if proposal.Open() && proposal.Kind == kind && proposal.SubjectID == strings.TrimSpace(subjectID) {
			return proposal, true, nil
		}
	}
	return entities.Proposal{}, false, nil
}

func (s *Store) GetLatestProposalBySubject(
	_ context.Context,
	kind entities.ProposalKind,
	subjectID string,
) (entities.Proposal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest entities.Proposal
	found := false
	for _, proposal := range s.proposals {
		if proposal.Kind != kind || proposal.SubjectID != strings.TrimSpace(subjectID) {
			continue
		}
		if !found || proposal.OpenedAt.After(latest.OpenedAt) {
			latest = proposal
			found = true
		}
	}
	return latest, found, nil
}

func (s *Store) ListOpenProposalsByGame(_ context.Context, gameID string) ([]entities.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Proposal, 0)
	for _, proposal := range s.proposals {
		if proposal.Open() && proposal.GameID == strings.TrimSpace(gameID) {
			items = append(items, proposal)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].OpenedAt.Before(items[j].OpenedAt) })
	return items, nil
}

func (s *Store) ListDueOpenProposals(_ context.Context, now time.Time, limit int) ([]entities.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Proposal, 0)
	for _, proposal := range s.proposals {
		if proposal.Due(now) {
			items = append(items, proposal)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].OpenedAt.Before(items[j].OpenedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) SaveVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.votes {
		if existing.VoteID == vote.VoteID {
			continue
		}
		if existing.ProposalID == vote.ProposalID && existing.VoterID == vote.VoterID {
			return domainerrors.ErrConflict
		}
	}
	s.votes[vote.VoteID] = vote
	return nil
}

func (s *Store) GetVoteByIdentity(_ context.Context, proposalID string, voterID string) (entities.Vote, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, vote := range s.votes {
		if vote.ProposalID == strings.TrimSpace(proposalID) && vote.VoterID == strings.TrimSpace(voterID) {
			return vote, true, nil
		}
	}
	return entities.Vote{}, false, nil
}

func (s *Store) ListVotesByProposal(_ context.Context, proposalID string) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Vote, 0)
	for _, vote := range s.votes {
		if vote.ProposalID == strings.TrimSpace(proposalID) {
			items = append(items, vote)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (s *Store) ListActiveMemberIDs(_ context.Context, gameID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.members[strings.TrimSpace(gameID)]...), nil
}

func (s *Store) IsActiveMember(_ context.Context, gameID string, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, memberID := range s.members[strings.TrimSpace(gameID)] {
		if memberID == strings.TrimSpace(userID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetConsensusSettings(_ context.Context, gameID string) (ports.ConsensusSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.settings[strings.TrimSpace(gameID)]
	if !ok {
		return ports.ConsensusSettings{
			SilenceTimer:   24 * time.Hour,
			TieBreakPolicy: entities.TieBreakRandom,
		}, nil
	}
	return settings, nil
}

func (s *Store) SuggestDelta(_ context.Context, _ string, _ string) (int, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.suggestedDelta, s.suggestedRationale
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

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]outbox.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]outbox.Message, 0)
	for _, record := range s.outbox {
		if record.published {
			continue
		}
		items = append(items, record.message)
		if limit > 0 && len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].message.ID == outboxID {
			s.outbox[i].published = true
			s.outbox[i].message.Status = "published"
			return nil
		}
	}
	return nil
}

// OutboxEventTypes lists emitted event types in append order, published or
// not. Test helper.
func (s *Store) OutboxEventTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]string, 0, len(s.outbox))
	for _, record := range s.outbox {
		types = append(types, record.message.EventType)
	}
	return types
}

var _ ports.ProposalRepository = (*Store)(nil)
var _ ports.MembershipSource = (*Store)(nil)
var _ ports.GameSettingsSource = (*Store)(nil)
var _ ports.DeltaSuggester = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.TxRunner = (*Store)(nil)
var _ outbox.Store = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
