package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"loom/contexts/narrative/game-service/domain/entities"
	domainerrors "loom/contexts/narrative/game-service/domain/errors"
	"loom/contexts/narrative/game-service/ports"
	"loom/internal/shared/events"
	"loom/internal/shared/outbox"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   outbox.Message
	published bool
}

// Store is the in-memory adapter behind NewInMemoryModule. Its proposal
// engine is scriptable so tests can drive activation outcomes without the
// real consensus module.
type Store struct {
	mu sync.RWMutex

	games       map[string]entities.Game
	members     map[string]entities.GameMember
	invitations map[string]entities.Invitation
	outbox      []outboxRecord

	proposalOutcomes map[string]ports.ProposalOutcome

	now time.Time
}

func NewStore() *Store {
	return &Store{
		games:            make(map[string]entities.Game),
		members:          make(map[string]entities.GameMember),
		invitations:      make(map[string]entities.Invitation),
		proposalOutcomes: make(map[string]ports.ProposalOutcome),
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

func (s *Store) NewToken(_ context.Context) (string, error) {
	return strings.ReplaceAll(uuid.NewString(), "-", ""), nil
}

func (s *Store) SaveGame(_ context.Context, game entities.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.GameID] = game
	return nil
}

func (s *Store) GetGame(_ context.Context, gameID string) (entities.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[strings.TrimSpace(gameID)]
	if !ok {
		return entities.Game{}, domainerrors.ErrGameNotFound
	}
	return game, nil
}

func (s *Store) SaveMember(_ context.Context, member entities.GameMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveMemberLocked(member)
}

func (s *Store) saveMemberLocked(member entities.GameMember) error {
	for _, existing := range s.members {
		if existing.MemberID == member.MemberID {
			continue
		}
		if existing.GameID == member.GameID && existing.UserID == member.UserID {
			return domainerrors.ErrAlreadyMember
		}
	}
	s.members[member.MemberID] = member
	return nil
}

func (s *Store) DeleteMember(_ context.Context, gameID string, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, member := range s.members {
		if member.GameID == strings.TrimSpace(gameID) && member.UserID == strings.TrimSpace(userID) {
			delete(s.members, id)
			return nil
		}
	}
	return domainerrors.ErrNotGameMember
}

func (s *Store) GetMemberByUser(_ context.Context, gameID string, userID string) (entities.GameMember, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, member := range s.members {
		if member.GameID == strings.TrimSpace(gameID) && member.UserID == strings.TrimSpace(userID) {
			return member, true, nil
		}
	}
	return entities.GameMember{}, false, nil
}

func (s *Store) ListMembers(_ context.Context, gameID string) ([]entities.GameMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.GameMember, 0)
	for _, member := range s.members {
		if member.GameID == strings.TrimSpace(gameID) {
			items = append(items, member)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (s *Store) SaveInvitation(_ context.Context, invitation entities.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invitations[invitation.Token] = invitation
	return nil
}

func (s *Store) GetInvitationByToken(_ context.Context, token string) (entities.Invitation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invitation, ok := s.invitations[strings.TrimSpace(token)]
	return invitation, ok, nil
}

func (s *Store) RedeemInvitation(_ context.Context, token string, member entities.GameMember) (entities.GameMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invitation, ok := s.invitations[strings.TrimSpace(token)]
	if !ok {
		return entities.GameMember{}, domainerrors.ErrInvitationNotFound
	}
	if !invitation.Active {
		return entities.GameMember{}, domainerrors.ErrInvitationInactive
	}

	count := 0
	for _, existing := range s.members {
		if existing.GameID == invitation.GameID {
			count++
		}
	}
	if count >= entities.MaxMembers {
		return entities.GameMember{}, domainerrors.ErrGameFull
	}

	member.GameID = invitation.GameID
	if err := s.saveMemberLocked(member); err != nil {
		return entities.GameMember{}, err
	}

	invitation.Active = false
	invitation.UsedByID = member.UserID
	invitation.UpdatedAt = s.now
	s.invitations[invitation.Token] = invitation
	return member, nil
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

// OutboxEventTypes lists emitted event types in append order. Test helper.
func (s *Store) OutboxEventTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]string, 0, len(s.outbox))
	for _, record := range s.outbox {
		types = append(types, record.message.EventType)
	}
	return types
}

var _ ports.GameRepository = (*Store)(nil)
var _ ports.ProposalEngine = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
var _ ports.TokenGenerator = (*Store)(nil)
