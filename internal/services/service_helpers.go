package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/auth"
	"github.com/hezretaly/toefl/internal/events"
	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/storage"
)

// requireRole fails with ErrForbidden unless the caller holds one of roles
func requireRole(identity auth.Identity, action string, roles ...models.UserRole) error {
	if identity.UserID == 0 {
		return fmt.Errorf("%s: %w", action, ErrUnauthorized)
	}
	if !identity.HasRole(roles...) {
		return fmt.Errorf("%s requires role %v, caller is %s: %w", action, roles, identity.Role, ErrForbidden)
	}
	return nil
}

func requireSectionType(sectionType models.SectionType) error {
	if !sectionType.IsValid() {
		return NewValidationError("type", "must be one of reading, listening, speaking, writing", sectionType)
	}
	return nil
}

// readConsistent runs a multi-statement read in one transaction. On postgres
// it is a read-only repeatable read snapshot so every statement sees the same
// committed submissions.
func readConsistent(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var opts []*sql.TxOptions
	if db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	}
	return db.WithContext(ctx).Transaction(fn, opts...)
}

// publishEvent sends an event after commit. Failures are logged only; the
// committed work stands.
func publishEvent(ctx context.Context, logger *slog.Logger, publisher events.EventPublisher, eventType string, data interface{}) {
	if publisher == nil {
		return
	}
	event := events.NewEvent(eventType, data)
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Error("Failed to publish event", "event_type", eventType, "event_id", event.ID, "error", err)
	}
}

// removeFiles deletes stored keys best effort, logging the ones left behind
func removeFiles(ctx context.Context, logger *slog.Logger, provider storage.StorageProvider, keys []string) {
	if provider == nil || len(keys) == 0 {
		return
	}
	if failed := storage.DeleteAll(ctx, provider, keys); len(failed) > 0 {
		logger.Warn("Failed to remove stored files", "keys", failed)
	}
}

func sortedKeys[V any](m map[uint]V) []uint {
	keys := make([]uint, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func ptr[T any](v T) *T {
	return &v
}
