// Package mongodb implements repositories on MongoDB.
package mongodb

import (
	"errors"
	"fmt"

	"github.com/aranya-one/toastd/internal/domain/errs"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	// DefaultPaginationLimit is the default page size for list queries.
	DefaultPaginationLimit = 50

	// MaxPaginationLimit caps list queries.
	MaxPaginationLimit = 500
)

// HandleMongoError converts a MongoDB error into a domain error.
// Returns:
//   - nil if err == nil
//   - errs.ErrNotFound if no document matched
//   - errs.ErrInvalidState if a unique constraint was violated
//   - a wrapped error otherwise
func HandleMongoError(err error, resourceType string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return errs.ErrNotFound
	}

	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: duplicate %s", errs.ErrInvalidState, resourceType)
	}

	return fmt.Errorf("failed to operate on %s: %w", resourceType, err)
}

// UpsertOptions returns the standard options for an upsert.
func UpsertOptions() *options.UpdateOneOptionsBuilder {
	return options.UpdateOne().SetUpsert(true)
}

// DefaultLimitWithMax returns limit with the default and maximum applied.
// If limit <= 0, returns defaultLimit.
// If limit > maxLimit, returns maxLimit.
func DefaultLimitWithMax(limit, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
