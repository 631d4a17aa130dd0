package persistence

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ordersync/backend/internal/infrastructure/persistence/models"
	"github.com/ordersync/backend/internal/infrastructure/resilience"
)

// deadLetterQueueKey is the redis list the re-drive worker consumes
const deadLetterQueueKey = "ordersync:deadletter:queue"

// GormDeadLetterRepository implements resilience.DeadLetterSink. Entries are
// written to Postgres as the system of record and mirrored onto a redis list
// so the re-drive worker can consume them without polling the table.
type GormDeadLetterRepository struct {
	db     *gorm.DB
	rdb    redis.UniversalClient
	logger *zap.Logger
}

// NewGormDeadLetterRepository creates a new GormDeadLetterRepository. The
// redis client is optional; without it entries are only persisted.
func NewGormDeadLetterRepository(db *gorm.DB, rdb redis.UniversalClient, logger *zap.Logger) *GormDeadLetterRepository {
	return &GormDeadLetterRepository{db: db, rdb: rdb, logger: logger}
}

// Record durably stores a dead letter entry
func (r *GormDeadLetterRepository) Record(ctx context.Context, entry *resilience.DeadLetterEntry) error {
	m := &models.DeadLetterModel{}
	m.FromDomain(entry)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}

	if r.rdb != nil {
		// The queue mirror is best effort; the table row is authoritative
		if data, err := json.Marshal(map[string]any{
			"id":        entry.ID.String(),
			"tenant_id": entry.TenantID.String(),
			"queue":     entry.OriginalQueue,
			"operation": entry.OriginalOperation,
		}); err == nil {
			if err := r.rdb.RPush(ctx, deadLetterQueueKey, data).Err(); err != nil {
				r.logger.Warn("dead letter queue mirror push failed",
					zap.String("entry_id", entry.ID.String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// FindUnreplayed returns entries not yet consumed by the re-drive worker,
// oldest first
func (r *GormDeadLetterRepository) FindUnreplayed(ctx context.Context, tenantID uuid.UUID, limit int) ([]*resilience.DeadLetterEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var ms []models.DeadLetterModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND replayed = ?", tenantID, false).
		Order("failed_at ASC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	entries := make([]*resilience.DeadLetterEntry, 0, len(ms))
	for i := range ms {
		entries = append(entries, ms[i].ToDomain())
	}
	return entries, nil
}

// MarkReplayed flags an entry as consumed by the re-drive worker
func (r *GormDeadLetterRepository) MarkReplayed(ctx context.Context, entryID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.DeadLetterModel{}).
		Where("id = ?", entryID).
		Update("replayed", true).Error
}

// Ensure GormDeadLetterRepository implements the sink port
var _ resilience.DeadLetterSink = (*GormDeadLetterRepository)(nil)
