package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"loom/contexts/narrative/pacing-service/domain/entities"
	domainerrors "loom/contexts/narrative/pacing-service/domain/errors"
	"loom/contexts/narrative/pacing-service/ports"
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

func (r *Repository) SaveAct(ctx context.Context, act entities.Act) error {
	row := actModelFromEntity(act)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"guiding_question": row.GuidingQuestion,
			"status":           row.Status,
			"updated_at":       row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("pacing_repo_save_act_failed", create.Error,
			"act_id", strings.TrimSpace(act.ActID),
		)
	}
	return nil
}

func (r *Repository) GetAct(ctx context.Context, actID string) (entities.Act, error) {
	var row actModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(actID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Act{}, domainerrors.ErrActNotFound
		}
		return entities.Act{}, r.logError("pacing_repo_get_act_failed", err,
			"act_id", strings.TrimSpace(actID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListActsByGame(ctx context.Context, gameID string) ([]entities.Act, error) {
	var rows []actModel
	err := r.db.WithContext(ctx).
		Where("game_id = ?", strings.TrimSpace(gameID)).
		Order("act_order ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("pacing_repo_list_acts_failed", err,
			"game_id", strings.TrimSpace(gameID),
		)
	}
	acts := make([]entities.Act, 0, len(rows))
	for _, row := range rows {
		acts = append(acts, row.toEntity())
	}
	return acts, nil
}

func (r *Repository) SaveScene(ctx context.Context, scene entities.Scene) error {
	row := sceneModelFromEntity(scene)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"guiding_question":      row.GuidingQuestion,
			"location":              row.Location,
			"status":                row.Status,
			"tension_carry_forward": row.TensionCarryForward,
			"updated_at":            row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("pacing_repo_save_scene_failed", create.Error,
			"scene_id", strings.TrimSpace(scene.SceneID),
		)
	}
	return nil
}

func (r *Repository) GetScene(ctx context.Context, sceneID string) (entities.Scene, error) {
	var row sceneModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(sceneID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Scene{}, domainerrors.ErrSceneNotFound
		}
		return entities.Scene{}, r.logError("pacing_repo_get_scene_failed", err,
			"scene_id", strings.TrimSpace(sceneID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListScenesByAct(ctx context.Context, actID string) ([]entities.Scene, error) {
	var rows []sceneModel
	err := r.db.WithContext(ctx).
		Where("act_id = ?", strings.TrimSpace(actID)).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("pacing_repo_list_scenes_failed", err,
			"act_id", strings.TrimSpace(actID),
		)
	}
	scenes := make([]entities.Scene, 0, len(rows))
	for _, row := range rows {
		scenes = append(scenes, row.toEntity())
	}
	return scenes, nil
}

func (r *Repository) LatestCompletedScene(ctx context.Context, gameID string) (entities.Scene, bool, error) {
	var row sceneModel
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND status = ?", strings.TrimSpace(gameID), string(entities.SceneStatusComplete)).
		Order("updated_at DESC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Scene{}, false, nil
		}
		return entities.Scene{}, false, r.logError("pacing_repo_latest_scene_failed", err,
			"game_id", strings.TrimSpace(gameID),
		)
	}
	return row.toEntity(), true, nil
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
		return r.logError("pacing_repo_append_outbox_failed", err,
			"event_type", row.EventType,
		)
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "narrative/pacing-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("pacing repository operation failed", fields...)
	return err
}

type actModel struct {
	ID              string    `gorm:"column:id;primaryKey"`
	GameID          string    `gorm:"column:game_id"`
	GuidingQuestion string    `gorm:"column:guiding_question"`
	Status          string    `gorm:"column:status"`
	Order           int       `gorm:"column:act_order"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (actModel) TableName() string {
	return "acts"
}

func actModelFromEntity(act entities.Act) actModel {
	return actModel{
		ID:              strings.TrimSpace(act.ActID),
		GameID:          strings.TrimSpace(act.GameID),
		GuidingQuestion: act.GuidingQuestion,
		Status:          string(act.Status),
		Order:           act.Order,
		CreatedAt:       act.CreatedAt.UTC(),
		UpdatedAt:       act.UpdatedAt.UTC(),
	}
}

func (m actModel) toEntity() entities.Act {
	return entities.Act{
		ActID:           m.ID,
		GameID:          m.GameID,
		GuidingQuestion: m.GuidingQuestion,
		Status:          entities.ActStatus(m.Status),
		Order:           m.Order,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}

type sceneModel struct {
	ID                  string    `gorm:"column:id;primaryKey"`
	ActID               string    `gorm:"column:act_id"`
	GameID              string    `gorm:"column:game_id"`
	GuidingQuestion     string    `gorm:"column:guiding_question"`
	Location            string    `gorm:"column:location"`
	Status              string    `gorm:"column:status"`
	Tension             int       `gorm:"column:tension"`
	TensionCarryForward *int      `gorm:"column:tension_carry_forward"`
	CreatedAt           time.Time `gorm:"column:created_at"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func (sceneModel) TableName() string {
	return "scenes"
}

func sceneModelFromEntity(scene entities.Scene) sceneModel {
	return sceneModel{
		ID:                  strings.TrimSpace(scene.SceneID),
		ActID:               strings.TrimSpace(scene.ActID),
		GameID:              strings.TrimSpace(scene.GameID),
		GuidingQuestion:     scene.GuidingQuestion,
		Location:            scene.Location,
		Status:              string(scene.Status),
		Tension:             scene.Tension,
		TensionCarryForward: scene.TensionCarryForward,
		CreatedAt:           scene.CreatedAt.UTC(),
		UpdatedAt:           scene.UpdatedAt.UTC(),
	}
}

func (m sceneModel) toEntity() entities.Scene {
	return entities.Scene{
		SceneID:             m.ID,
		ActID:               m.ActID,
		GameID:              m.GameID,
		GuidingQuestion:     m.GuidingQuestion,
		Location:            m.Location,
		Status:              entities.SceneStatus(m.Status),
		Tension:             m.Tension,
		TensionCarryForward: m.TensionCarryForward,
		CreatedAt:           m.CreatedAt.UTC(),
		UpdatedAt:           m.UpdatedAt.UTC(),
	}
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
	return "pacing_outbox"
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
		return nil, r.logError("pacing_repo_list_pending_outbox_failed", err)
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
		return r.logError("pacing_repo_mark_outbox_published_failed", err,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	return nil
}

var _ ports.PacingRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ outbox.Store = (*Repository)(nil)
