package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"loom/contexts/narrative/consensus-engine/domain/entities"
	domainerrors "loom/contexts/narrative/consensus-engine/domain/errors"
	"loom/contexts/narrative/consensus-engine/ports"
	"loom/internal/shared/events"
	"loom/internal/shared/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

type txKey struct{}

// WithinTx runs fn inside one transaction. Repository calls made with
// the context fn receives run against that transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (r *Repository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *Repository) SaveProposal(ctx context.Context, proposal entities.Proposal) error {
	row := proposalModelFromEntity(proposal)
	create := r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":           row.Status,
			"opened_at":        row.OpenedAt,
			"deadline_at":      row.DeadlineAt,
			"resolved_at":      row.ResolvedAt,
			"resolution_cause": row.ResolutionCause,
			"winning_delta":    row.WinningDelta,
			"updated_at":       row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		// The partial unique index on open (kind, subject_id) turns a
		// racing open into the benign conflict sentinel.
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("consensus_repo_save_proposal_failed", create.Error,
			"proposal_id", strings.TrimSpace(proposal.ProposalID),
			"game_id", strings.TrimSpace(proposal.GameID),
		)
	}
	return nil
}

func (r *Repository) GetProposal(ctx context.Context, proposalID string) (entities.Proposal, error) {
	var row proposalModel
	err := r.conn(ctx).
		Where("id = ?", strings.TrimSpace(proposalID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Proposal{}, domainerrors.ErrProposalNotFound
		}
		return entities.Proposal{}, r.logError("consensus_repo_get_proposal_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) GetOpenProposalBySubject(
	ctx context.Context,
	kind entities.ProposalKind,
	subjectID string,
) (entities.Proposal, bool, error) {
	var row proposalModel
	err := r.conn(ctx).
		Where("kind = ?", string(kind)).
		Where("subject_id = ?", strings.TrimSpace(subjectID)).
		Where("status = ?", string(entities.ProposalStatusOpen)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Proposal{}, false, nil
		}
		return entities.Proposal{}, false, r.logError("consensus_repo_get_open_by_subject_failed", err,
			"kind", string(kind),
			"subject_id", strings.TrimSpace(subjectID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) GetLatestProposalBySubject(
	ctx context.Context,
	kind entities.ProposalKind,
	subjectID string,
) (entities.Proposal, bool, error) {
	var row proposalModel
	err := r.conn(ctx).
		Where("kind = ?", string(kind)).
		Where("subject_id = ?", strings.TrimSpace(subjectID)).
		Order("opened_at DESC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Proposal{}, false, nil
		}
		return entities.Proposal{}, false, r.logError("consensus_repo_get_latest_by_subject_failed", err,
			"kind", string(kind),
			"subject_id", strings.TrimSpace(subjectID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListOpenProposalsByGame(ctx context.Context, gameID string) ([]entities.Proposal, error) {
	var rows []proposalModel
	if err := r.conn(ctx).
		Where("game_id = ?", strings.TrimSpace(gameID)).
		Where("status = ?", string(entities.ProposalStatusOpen)).
		Order("opened_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("consensus_repo_list_open_by_game_failed", err,
			"game_id", strings.TrimSpace(gameID),
		)
	}
	return toProposalEntities(rows), nil
}

func (r *Repository) ListDueOpenProposals(ctx context.Context, now time.Time, limit int) ([]entities.Proposal, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []proposalModel
	if err := r.conn(ctx).
		Where("status = ?", string(entities.ProposalStatusOpen)).
		Where("deadline_at <= ?", now.UTC()).
		Order("deadline_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("consensus_repo_list_due_failed", err)
	}
	return toProposalEntities(rows), nil
}

func (r *Repository) SaveVote(ctx context.Context, vote entities.Vote) error {
	row := voteModelFromEntity(vote)
	create := r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "proposal_id"}, {Name: "voter_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"choice":     row.Choice,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("consensus_repo_save_vote_failed", create.Error,
			"vote_id", strings.TrimSpace(vote.VoteID),
			"proposal_id", strings.TrimSpace(vote.ProposalID),
			"voter_id", strings.TrimSpace(vote.VoterID),
		)
	}
	return nil
}

func (r *Repository) GetVoteByIdentity(ctx context.Context, proposalID string, voterID string) (entities.Vote, bool, error) {
	var row voteModel
	err := r.conn(ctx).
		Where("proposal_id = ?", strings.TrimSpace(proposalID)).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, false, nil
		}
		return entities.Vote{}, false, r.logError("consensus_repo_get_vote_by_identity_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListVotesByProposal(ctx context.Context, proposalID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.conn(ctx).
		Where("proposal_id = ?", strings.TrimSpace(proposalID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("consensus_repo_list_votes_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
		)
	}
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope events.Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		ID:        strings.TrimSpace(envelope.EventID),
		EventType: strings.TrimSpace(envelope.EventType),
		Payload:   payload,
		Status:    outboxStatusPending,
		CreatedAt: envelope.OccurredAtUTC.UTC(),
		UpdatedAt: envelope.OccurredAtUTC.UTC(),
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if err := r.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return r.logError("consensus_repo_append_outbox_failed", err,
			"event_type", row.EventType,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]outbox.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.conn(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("consensus_repo_list_pending_outbox_failed", err)
	}
	items := make([]outbox.Message, 0, len(rows))
	for _, row := range rows {
		items = append(items, outbox.Message{
			ID:         row.ID,
			EventType:  row.EventType,
			Payload:    row.Payload,
			Status:     row.Status,
			RetryCount: row.RetryCount,
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	if err := r.conn(ctx).
		Model(&outboxModel{}).
		Where("id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
			"updated_at":   publishedAt.UTC(),
		}).Error; err != nil {
		return r.logError("consensus_repo_mark_outbox_published_failed", err,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "narrative/consensus-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("consensus repository operation failed", fields...)
	return err
}

type proposalModel struct {
	ID                  string     `gorm:"column:id;primaryKey"`
	GameID              string     `gorm:"column:game_id"`
	Kind                string     `gorm:"column:kind"`
	Status              string     `gorm:"column:status"`
	ProposerID          string     `gorm:"column:proposer_id"`
	SubjectType         string     `gorm:"column:subject_type"`
	SubjectID           string     `gorm:"column:subject_id"`
	OpenedAt            time.Time  `gorm:"column:opened_at"`
	SilenceTimerSeconds int64      `gorm:"column:silence_timer_seconds"`
	DeadlineAt          time.Time  `gorm:"column:deadline_at"`
	AIRationale         string     `gorm:"column:ai_rationale"`
	SuggestedDelta      *int       `gorm:"column:suggested_delta"`
	ResolvedAt          *time.Time `gorm:"column:resolved_at"`
	ResolutionCause     string     `gorm:"column:resolution_cause"`
	WinningDelta        *int       `gorm:"column:winning_delta"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at"`
}

func (proposalModel) TableName() string {
	return "proposals"
}

func proposalModelFromEntity(proposal entities.Proposal) proposalModel {
	return proposalModel{
		ID:                  strings.TrimSpace(proposal.ProposalID),
		GameID:              strings.TrimSpace(proposal.GameID),
		Kind:                string(proposal.Kind),
		Status:              string(proposal.Status),
		ProposerID:          strings.TrimSpace(proposal.ProposerID),
		SubjectType:         strings.TrimSpace(proposal.SubjectType),
		SubjectID:           strings.TrimSpace(proposal.SubjectID),
		OpenedAt:            proposal.OpenedAt.UTC(),
		SilenceTimerSeconds: int64(proposal.SilenceTimer / time.Second),
		DeadlineAt:          proposal.Deadline().UTC(),
		AIRationale:         proposal.AIRationale,
		SuggestedDelta:      proposal.SuggestedDelta,
		ResolvedAt:          proposal.ResolvedAt,
		ResolutionCause:     proposal.ResolutionCause,
		WinningDelta:        proposal.WinningDelta,
		CreatedAt:           proposal.CreatedAt.UTC(),
		UpdatedAt:           proposal.UpdatedAt.UTC(),
	}
}

func (m proposalModel) toEntity() entities.Proposal {
	return entities.Proposal{
		ProposalID:      m.ID,
		GameID:          m.GameID,
		Kind:            entities.ProposalKind(m.Kind),
		Status:          entities.ProposalStatus(m.Status),
		ProposerID:      m.ProposerID,
		SubjectType:     m.SubjectType,
		SubjectID:       m.SubjectID,
		OpenedAt:        m.OpenedAt,
		SilenceTimer:    time.Duration(m.SilenceTimerSeconds) * time.Second,
		AIRationale:     m.AIRationale,
		SuggestedDelta:  m.SuggestedDelta,
		ResolvedAt:      m.ResolvedAt,
		ResolutionCause: m.ResolutionCause,
		WinningDelta:    m.WinningDelta,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toProposalEntities(rows []proposalModel) []entities.Proposal {
	items := make([]entities.Proposal, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

type voteModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	ProposalID string    `gorm:"column:proposal_id"`
	VoterID    string    `gorm:"column:voter_id"`
	Choice     string    `gorm:"column:choice"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (voteModel) TableName() string {
	return "proposal_votes"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	return voteModel{
		ID:         strings.TrimSpace(vote.VoteID),
		ProposalID: strings.TrimSpace(vote.ProposalID),
		VoterID:    strings.TrimSpace(vote.VoterID),
		Choice:     string(vote.Choice),
		CreatedAt:  vote.CreatedAt.UTC(),
		UpdatedAt:  vote.UpdatedAt.UTC(),
	}
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		VoteID:     m.ID,
		ProposalID: m.ProposalID,
		VoterID:    m.VoterID,
		Choice:     entities.VoteChoice(m.Choice),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

type outboxModel struct {
	ID          string     `gorm:"column:id;primaryKey"`
	EventType   string     `gorm:"column:event_type"`
	Payload     []byte     `gorm:"column:payload"`
	Status      string     `gorm:"column:status"`
	RetryCount  int        `gorm:"column:retry_count"`
	PublishedAt *time.Time `gorm:"column:published_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

func (outboxModel) TableName() string {
	return "consensus_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.ProposalRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.TxRunner = (*Repository)(nil)
var _ outbox.Store = (*Repository)(nil)
