package tasks

import (
	"context"

	"github.com/goodaegwang/cirrus/internal/core"
	"github.com/goodaegwang/cirrus/internal/logging"
)

// TokenCleanupTaskName is the registered name of the expired-token sweep.
const TokenCleanupTaskName = "token-cleanup"

// NewTokenCleanup returns the handler that removes expired refresh-token
// records. Token expiry is enforced by the codec regardless; sweeping
// only keeps the store from growing without bound.
func NewTokenCleanup(store core.CredentialStore) TaskFunc {
	return func(ctx context.Context, logger logging.InternalLogger) error {
		deleted, err := store.DeleteExpiredTokens(ctx)
		if err != nil {
			return err
		}
		logger.Info("deleted %d expired refresh tokens", deleted)
		return nil
	}
}
