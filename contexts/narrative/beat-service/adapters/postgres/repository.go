package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"loom/contexts/narrative/beat-service/domain/entities"
	domainerrors "loom/contexts/narrative/beat-service/domain/errors"
	"loom/contexts/narrative/beat-service/ports"
	"loom/internal/shared/events"
	"loom/internal/shared/outbox"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

func (r *Repository) SaveBeat(ctx context.Context, beat entities.Beat) error {
	row, err := beatModelFromEntity(beat)
	if err != nil {
		return err
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":     row.Status,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("beat_repo_save_beat_failed", create.Error,
			"beat_id", strings.TrimSpace(beat.BeatID),
		)
	}
	return nil
}

func (r *Repository) GetBeat(ctx context.Context, beatID string) (entities.Beat, error) {
	var row beatModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(beatID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Beat{}, domainerrors.ErrBeatNotFound
		}
		return entities.Beat{}, r.logError("beat_repo_get_beat_failed", err,
			"beat_id", strings.TrimSpace(beatID),
		)
	}
	return row.toEntity()
}

func (r *Repository) ListBeatsByScene(ctx context.Context, sceneID string) ([]entities.Beat, error) {
	var rows []beatModel
	err := r.db.WithContext(ctx).
		Where("scene_id = ?", strings.TrimSpace(sceneID)).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("beat_repo_list_beats_failed", err,
			"scene_id", strings.TrimSpace(sceneID),
		)
	}
	beats := make([]entities.Beat, 0, len(rows))
	for _, row := range rows {
		beat, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		beats = append(beats, beat)
	}
	return beats, nil
}

func (r *Repository) SaveChallenge(ctx context.Context, challenge entities.Challenge) error {
	row := challengeModelFromEntity(challenge)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":                 row.Status,
			"escalation_proposal_id": row.EscalationProposalID,
			"resolved_at":            row.ResolvedAt,
			"updated_at":             row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		// A partial unique index on (beat_id) WHERE status = 'open' keeps
		// the one-open-challenge-per-beat invariant under concurrency.
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("beat_repo_save_challenge_failed", create.Error,
			"challenge_id", strings.TrimSpace(challenge.ChallengeID),
		)
	}
	return nil
}

func (r *Repository) GetChallenge(ctx context.Context, challengeID string) (entities.Challenge, error) {
	var row challengeModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(challengeID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Challenge{}, domainerrors.ErrChallengeNotFound
		}
		return entities.Challenge{}, r.logError("beat_repo_get_challenge_failed", err,
			"challenge_id", strings.TrimSpace(challengeID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) GetOpenChallengeByBeat(ctx context.Context, beatID string) (entities.Challenge, bool, error) {
	var row challengeModel
	err := r.db.WithContext(ctx).
		Where("beat_id = ? AND status = ?", strings.TrimSpace(beatID), string(entities.ChallengeStatusOpen)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Challenge{}, false, nil
		}
		return entities.Challenge{}, false, r.logError("beat_repo_open_challenge_failed", err,
			"beat_id", strings.TrimSpace(beatID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListChallengesByBeat(ctx context.Context, beatID string) ([]entities.Challenge, error) {
	var rows []challengeModel
	err := r.db.WithContext(ctx).
		Where("beat_id = ?", strings.TrimSpace(beatID)).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("beat_repo_list_challenges_failed", err,
			"beat_id", strings.TrimSpace(beatID),
		)
	}
	challenges := make([]entities.Challenge, 0, len(rows))
	for _, row := range rows {
		challenges = append(challenges, row.toEntity())
	}
	return challenges, nil
}

func (r *Repository) ListDueOpenChallenges(ctx context.Context, now time.Time, limit int) ([]entities.Challenge, error) {
	var rows []challengeModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND escalation_proposal_id = '' AND due_at <= ?",
			string(entities.ChallengeStatusOpen), now.UTC()).
		Order("due_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("beat_repo_due_challenges_failed", err)
	}
	challenges := make([]entities.Challenge, 0, len(rows))
	for _, row := range rows {
		challenges = append(challenges, row.toEntity())
	}
	return challenges, nil
}

func (r *Repository) SaveComment(ctx context.Context, comment entities.Comment) error {
	row := commentModel{
		ID:          strings.TrimSpace(comment.CommentID),
		ChallengeID: strings.TrimSpace(comment.ChallengeID),
		AuthorID:    strings.TrimSpace(comment.AuthorID),
		Text:        comment.Text,
		CreatedAt:   comment.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return r.logError("beat_repo_save_comment_failed", err,
			"challenge_id", row.ChallengeID,
		)
	}
	return nil
}

func (r *Repository) ListCommentsByChallenge(ctx context.Context, challengeID string) ([]entities.Comment, error) {
	var rows []commentModel
	err := r.db.WithContext(ctx).
		Where("challenge_id = ?", strings.TrimSpace(challengeID)).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("beat_repo_list_comments_failed", err,
			"challenge_id", strings.TrimSpace(challengeID),
		)
	}
	comments := make([]entities.Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, entities.Comment{
			CommentID:   row.ID,
			ChallengeID: row.ChallengeID,
			AuthorID:    row.AuthorID,
			Text:        row.Text,
			CreatedAt:   row.CreatedAt.UTC(),
		})
	}
	return comments, nil
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
		Status:    "pending",
		CreatedAt: envelope.OccurredAtUTC.UTC(),
		UpdatedAt: envelope.OccurredAtUTC.UTC(),
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return r.logError("beat_repo_append_outbox_failed", err,
			"event_type", row.EventType,
		)
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "narrative/beat-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("beat repository operation failed", fields...)
	return err
}

type beatModel struct {
	ID            string          `gorm:"column:id;primaryKey"`
	SceneID       string          `gorm:"column:scene_id"`
	GameID        string          `gorm:"column:game_id"`
	AuthorID      string          `gorm:"column:author_id"`
	Significance  string          `gorm:"column:significance"`
	SignRationale string          `gorm:"column:significance_rationale"`
	Status        string          `gorm:"column:status"`
	Events        json.RawMessage `gorm:"column:events"`
	Version       int             `gorm:"column:version"`
	RevisesBeatID string          `gorm:"column:revises_beat_id"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}

func (beatModel) TableName() string {
	return "beats"
}

func beatModelFromEntity(beat entities.Beat) (beatModel, error) {
	eventsJSON, err := json.Marshal(beat.Events)
	if err != nil {
		return beatModel{}, err
	}
	return beatModel{
		ID:            strings.TrimSpace(beat.BeatID),
		SceneID:       strings.TrimSpace(beat.SceneID),
		GameID:        strings.TrimSpace(beat.GameID),
		AuthorID:      strings.TrimSpace(beat.AuthorID),
		Significance:  string(beat.Significance),
		SignRationale: beat.SignRationale,
		Status:        string(beat.Status),
		Events:        eventsJSON,
		Version:       beat.Version,
		RevisesBeatID: beat.RevisesBeatID,
		CreatedAt:     beat.CreatedAt.UTC(),
		UpdatedAt:     beat.UpdatedAt.UTC(),
	}, nil
}

func (m beatModel) toEntity() (entities.Beat, error) {
	var beatEvents []entities.BeatEvent
	if len(m.Events) > 0 {
		if err := json.Unmarshal(m.Events, &beatEvents); err != nil {
			return entities.Beat{}, err
		}
	}
	return entities.Beat{
		BeatID:        m.ID,
		SceneID:       m.SceneID,
		GameID:        m.GameID,
		AuthorID:      m.AuthorID,
		Significance:  entities.BeatSignificance(m.Significance),
		SignRationale: m.SignRationale,
		Status:        entities.BeatStatus(m.Status),
		Events:        beatEvents,
		Version:       m.Version,
		RevisesBeatID: m.RevisesBeatID,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}, nil
}

type challengeModel struct {
	ID                   string     `gorm:"column:id;primaryKey"`
	BeatID               string     `gorm:"column:beat_id"`
	GameID               string     `gorm:"column:game_id"`
	ChallengerID         string     `gorm:"column:challenger_id"`
	Reason               string     `gorm:"column:reason"`
	Status               string     `gorm:"column:status"`
	EscalationProposalID string     `gorm:"column:escalation_proposal_id"`
	OpenedAt             time.Time  `gorm:"column:opened_at"`
	DueAt                time.Time  `gorm:"column:due_at"`
	ResolvedAt           *time.Time `gorm:"column:resolved_at"`
	CreatedAt            time.Time  `gorm:"column:created_at"`
	UpdatedAt            time.Time  `gorm:"column:updated_at"`
}

func (challengeModel) TableName() string {
	return "beat_challenges"
}

func challengeModelFromEntity(challenge entities.Challenge) challengeModel {
	row := challengeModel{
		ID:                   strings.TrimSpace(challenge.ChallengeID),
		BeatID:               strings.TrimSpace(challenge.BeatID),
		GameID:               strings.TrimSpace(challenge.GameID),
		ChallengerID:         strings.TrimSpace(challenge.ChallengerID),
		Reason:               challenge.Reason,
		Status:               string(challenge.Status),
		EscalationProposalID: challenge.EscalationProposalID,
		OpenedAt:             challenge.OpenedAt.UTC(),
		DueAt:                challenge.DueAt.UTC(),
		CreatedAt:            challenge.CreatedAt.UTC(),
		UpdatedAt:            challenge.UpdatedAt.UTC(),
	}
	if challenge.ResolvedAt != nil {
		resolved := challenge.ResolvedAt.UTC()
		row.ResolvedAt = &resolved
	}
	return row
}

func (m challengeModel) toEntity() entities.Challenge {
	challenge := entities.Challenge{
		ChallengeID:          m.ID,
		BeatID:               m.BeatID,
		GameID:               m.GameID,
		ChallengerID:         m.ChallengerID,
		Reason:               m.Reason,
		Status:               entities.ChallengeStatus(m.Status),
		EscalationProposalID: m.EscalationProposalID,
		OpenedAt:             m.OpenedAt.UTC(),
		DueAt:                m.DueAt.UTC(),
		CreatedAt:            m.CreatedAt.UTC(),
		UpdatedAt:            m.UpdatedAt.UTC(),
	}
	if m.ResolvedAt != nil {
		resolved := m.ResolvedAt.UTC()
		challenge.ResolvedAt = &resolved
	}
	return challenge
}

type commentModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	ChallengeID string    `gorm:"column:challenge_id"`
	AuthorID    string    `gorm:"column:author_id"`
	Text        string    `gorm:"column:text"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (commentModel) TableName() string {
	return "challenge_comments"
}

type outboxModel struct {
	ID          string          `gorm:"column:id;primaryKey"`
	EventType   string          `gorm:"column:event_type"`
	Payload     json.RawMessage `gorm:"column:payload"`
	Status      string          `gorm:"column:status"`
	RetryCount  int             `gorm:"column:retry_count"`
	PublishedAt *time.Time      `gorm:"column:published_at"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`
}

func (outboxModel) TableName() string {
	return "beat_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]outbox.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", "pending").
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("beat_repo_list_pending_outbox_failed", err)
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
	if err := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       "published",
			"published_at": publishedAt.UTC(),
			"updated_at":   publishedAt.UTC(),
		}).Error; err != nil {
		return r.logError("beat_repo_mark_outbox_published_failed", err,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	return nil
}

var _ ports.BeatRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ outbox.Store = (*Repository)(nil)
