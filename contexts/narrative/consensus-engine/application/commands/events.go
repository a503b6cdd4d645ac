package commands

import (
	"time"

	"loom/contexts/narrative/consensus-engine/domain/entities"
	"loom/internal/shared/events"
)

func newProposalEnvelope(
	eventID string,
	eventType string,
	proposal entities.Proposal,
	occurredAt time.Time,
	data map[string]any,
) events.Envelope {
	payload := map[string]any{
		"proposal_id":  proposal.ProposalID,
		"game_id":      proposal.GameID,
		"kind":         string(proposal.Kind),
		"status":       string(proposal.Status),
		"proposer_id":  proposal.ProposerID,
		"subject_type": proposal.SubjectType,
		"subject_id":   proposal.SubjectID,
		"occurred_at":  occurredAt.UTC().Format(time.RFC3339),
	}
	for key, value := range data {
		payload[key] = value
	}
	return events.Envelope{
		EventID:        eventID,
		EventType:      eventType,
		SourceService:  "consensus-engine",
		OccurredAtUTC:  occurredAt.UTC(),
		GameID:         proposal.GameID,
		EntityType:     "proposal",
		EntityID:       proposal.ProposalID,
		PayloadVersion: 1,
		Payload:        payload,
	}
}
