package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"loom/contexts/narrative/game-service/domain/entities"
	domainerrors "loom/contexts/narrative/game-service/domain/errors"
	"loom/contexts/narrative/game-service/ports"
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

func (r *Repository) SaveGame(ctx context.Context, game entities.Game) error {
	row := gameModelFromEntity(game)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name":                   row.Name,
			"pitch":                  row.Pitch,
			"status":                 row.Status,
			"silence_timer_hours":    row.SilenceTimerHours,
			"tie_break_method":       row.TieBreakMethod,
			"significance_threshold": row.SignificanceThreshold,
			"tension_voting_mode":    row.TensionVotingMode,
			"starting_tension":       row.StartingTension,
			"updated_at":             row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("game_repo_save_game_failed", create.Error,
			"game_id", strings.TrimSpace(game.GameID),
		)
	}
	return nil
}

func (r *Repository) GetGame(ctx context.Context, gameID string) (entities.Game, error) {
	var row gameModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(gameID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Game{}, domainerrors.ErrGameNotFound
		}
		return entities.Game{}, r.logError("game_repo_get_game_failed", err,
			"game_id", strings.TrimSpace(gameID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) SaveMember(ctx context.Context, member entities.GameMember) error {
	row := memberModelFromEntity(member)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		// Unique (game_id, user_id) makes a duplicate join benign.
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyMember
		}
		return r.logError("game_repo_save_member_failed", err,
			"game_id", strings.TrimSpace(member.GameID),
			"user_id", strings.TrimSpace(member.UserID),
		)
	}
	return nil
}

func (r *Repository) DeleteMember(ctx context.Context, gameID string, userID string) error {
	result := r.db.WithContext(ctx).
		Where("game_id = ?", strings.TrimSpace(gameID)).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Delete(&memberModel{})
	if result.Error != nil {
		return r.logError("game_repo_delete_member_failed", result.Error,
			"game_id", strings.TrimSpace(gameID),
			"user_id", strings.TrimSpace(userID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotGameMember
	}
	return nil
}

func (r *Repository) GetMemberByUser(ctx context.Context, gameID string, userID string) (entities.GameMember, bool, error) {
	var row memberModel
	err := r.db.WithContext(ctx).
		Where("game_id = ?", strings.TrimSpace(gameID)).
		Where("user_id = ?", strings.TrimSpace(userID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.GameMember{}, false, nil
		}
		return entities.GameMember{}, false, r.logError("game_repo_get_member_failed", err,
			"game_id", strings.TrimSpace(gameID),
			"user_id", strings.TrimSpace(userID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListMembers(ctx context.Context, gameID string) ([]entities.GameMember, error) {
	var rows []memberModel
	if err := r.db.WithContext(ctx).
		Where("game_id = ?", strings.TrimSpace(gameID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("game_repo_list_members_failed", err,
			"game_id", strings.TrimSpace(gameID),
		)
	}
	items := make([]entities.GameMember, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) SaveInvitation(ctx context.Context, invitation entities.Invitation) error {
	row := invitationModelFromEntity(invitation)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"active":     row.Active,
			"used_by_id": row.UsedByID,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("game_repo_save_invitation_failed", create.Error,
			"invitation_id", strings.TrimSpace(invitation.InvitationID),
		)
	}
	return nil
}

func (r *Repository) GetInvitationByToken(ctx context.Context, token string) (entities.Invitation, bool, error) {
	var row invitationModel
	err := r.db.WithContext(ctx).
		Where("token = ?", strings.TrimSpace(token)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Invitation{}, false, nil
		}
		return entities.Invitation{}, false, r.logError("game_repo_get_invitation_failed", err)
	}
	return row.toEntity(), true, nil
}

// RedeemInvitation re-reads the token and the member count inside the
// transaction so the roster cap and the single-use flag hold under
// concurrent redemptions.
func (r *Repository) RedeemInvitation(ctx context.Context, token string, member entities.GameMember) (entities.GameMember, error) {
	var seated entities.GameMember
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invitation invitationModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token = ?", strings.TrimSpace(token)).
			First(&invitation).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrInvitationNotFound
			}
			return err
		}
		if !invitation.Active {
			return domainerrors.ErrInvitationInactive
		}

		var count int64
		if err := tx.Model(&memberModel{}).
			Where("game_id = ?", invitation.GameID).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= entities.MaxMembers {
			return domainerrors.ErrGameFull
		}

		member.GameID = invitation.GameID
		row := memberModelFromEntity(member)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrAlreadyMember
			}
			return err
		}

		if err := tx.Model(&invitationModel{}).
			Where("id = ?", invitation.ID).
			Updates(map[string]any{
				"active":     false,
				"used_by_id": member.UserID,
				"updated_at": member.UpdatedAt.UTC(),
			}).Error; err != nil {
			return err
		}

		seated = member
		return nil
	})
	if err != nil {
		return entities.GameMember{}, err
	}
	return seated, nil
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
		return r.logError("game_repo_append_outbox_failed", err,
			"event_type", row.EventType,
		)
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "narrative/game-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("game repository operation failed", fields...)
	return err
}

type gameModel struct {
	ID                    string    `gorm:"column:id;primaryKey"`
	Name                  string    `gorm:"column:name"`
	Pitch                 string    `gorm:"column:pitch"`
	Status                string    `gorm:"column:status"`
	SilenceTimerHours     int       `gorm:"column:silence_timer_hours"`
	TieBreakMethod        string    `gorm:"column:tie_break_method"`
	SignificanceThreshold string    `gorm:"column:significance_threshold"`
	TensionVotingMode     string    `gorm:"column:tension_voting_mode"`
	StartingTension       int       `gorm:"column:starting_tension"`
	CreatedAt             time.Time `gorm:"column:created_at"`
	UpdatedAt             time.Time `gorm:"column:updated_at"`
}

func (gameModel) TableName() string {
	return "games"
}

func gameModelFromEntity(game entities.Game) gameModel {
	return gameModel{
		ID:                    strings.TrimSpace(game.GameID),
		Name:                  game.Name,
		Pitch:                 game.Pitch,
		Status:                string(game.Status),
		SilenceTimerHours:     game.Settings.SilenceTimerHours,
		TieBreakMethod:        string(game.Settings.TieBreakMethod),
		SignificanceThreshold: string(game.Settings.SignificanceThreshold),
		TensionVotingMode:     string(game.Settings.TensionVotingMode),
		StartingTension:       game.Settings.StartingTension,
		CreatedAt:             game.CreatedAt.UTC(),
		UpdatedAt:             game.UpdatedAt.UTC(),
	}
}

func (m gameModel) toEntity() entities.Game {
	return entities.Game{
		GameID: m.ID,
		Name:   m.Name,
		Pitch:  m.Pitch,
		Status: entities.GameStatus(m.Status),
		Settings: entities.Settings{
			SilenceTimerHours:     m.SilenceTimerHours,
			TieBreakMethod:        entities.TieBreakMethod(m.TieBreakMethod),
			SignificanceThreshold: entities.SignificanceThreshold(m.SignificanceThreshold),
			TensionVotingMode:     entities.TensionVotingMode(m.TensionVotingMode),
			StartingTension:       m.StartingTension,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type memberModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	GameID    string    `gorm:"column:game_id"`
	UserID    string    `gorm:"column:user_id"`
	Role      string    `gorm:"column:role"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (memberModel) TableName() string {
	return "game_members"
}

func memberModelFromEntity(member entities.GameMember) memberModel {
	return memberModel{
		ID:        strings.TrimSpace(member.MemberID),
		GameID:    strings.TrimSpace(member.GameID),
		UserID:    strings.TrimSpace(member.UserID),
		Role:      string(member.Role),
		CreatedAt: member.CreatedAt.UTC(),
		UpdatedAt: member.UpdatedAt.UTC(),
	}
}

func (m memberModel) toEntity() entities.GameMember {
	return entities.GameMember{
		MemberID:  m.ID,
		GameID:    m.GameID,
		UserID:    m.UserID,
		Role:      entities.MemberRole(m.Role),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type invitationModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	GameID    string    `gorm:"column:game_id"`
	Token     string    `gorm:"column:token"`
	Active    bool      `gorm:"column:active"`
	UsedByID  *string   `gorm:"column:used_by_id"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (invitationModel) TableName() string {
	return "invitations"
}

func invitationModelFromEntity(invitation entities.Invitation) invitationModel {
	row := invitationModel{
		ID:        strings.TrimSpace(invitation.InvitationID),
		GameID:    strings.TrimSpace(invitation.GameID),
		Token:     strings.TrimSpace(invitation.Token),
		Active:    invitation.Active,
		CreatedAt: invitation.CreatedAt.UTC(),
		UpdatedAt: invitation.UpdatedAt.UTC(),
	}
	if strings.TrimSpace(invitation.UsedByID) != "" {
		usedBy := strings.TrimSpace(invitation.UsedByID)
		row.UsedByID = &usedBy
	}
	return row
}

func (m invitationModel) toEntity() entities.Invitation {
	invitation := entities.Invitation{
		InvitationID: m.ID,
		GameID:       m.GameID,
		Token:        m.Token,
		Active:       m.Active,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.UsedByID != nil {
		invitation.UsedByID = *m.UsedByID
	}
	return invitation
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
	return "game_outbox"
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
		return nil, r.logError("game_repo_list_pending_outbox_failed", err)
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
		return r.logError("game_repo_mark_outbox_published_failed", err,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	return nil
}

var _ ports.GameRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ outbox.Store = (*Repository)(nil)
