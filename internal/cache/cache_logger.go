package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern invalidates a cache pattern, logging instead of failing
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete deletes cache keys, logging instead of failing
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// SectionKey is the cache key of a section content tree
func SectionKey(sectionType string, id uint) string {
	return fmt.Sprintf("%s:%d", sectionType, id)
}

// InvalidateSectionCache drops the content tree of a section and the listing of its type
func InvalidateSectionCache(ctx context.Context, cm *CacheManager, sectionType string, id uint) {
	SafeDelete(ctx, cm.Section, SectionKey(sectionType, id))
	SafeDelete(ctx, cm.SectionList, sectionType)
}

// InvalidateSectionList drops the listing of a section type
func InvalidateSectionList(ctx context.Context, cm *CacheManager, sectionType string) {
	SafeInvalidatePattern(ctx, cm.SectionList, sectionType+"*")
}
