// Package cache provides content-addressed storage of analysis judgments.
// The key is a fingerprint of the normalized message text, so two messages
// with different identifiers but identical normalized text share an entry.
// The cache is an optimization, never a correctness mechanism: concurrent
// misses on the same fingerprint are tolerated and a later Put overwrites.
package cache

import (
	"context"

	"github.com/sentinelle/backend/internal/models"
	"github.com/sentinelle/backend/pkg/utils"
)

type Store interface {
	Get(ctx context.Context, fingerprint string) (*models.Judgment, bool)
	Put(ctx context.Context, fingerprint string, judgment *models.Judgment)
}

// Fingerprint returns the cache key for a message text.
func Fingerprint(text string) string {
	return utils.HashString(utils.NormalizeText(text))
}
