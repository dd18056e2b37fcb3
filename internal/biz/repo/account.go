package repo

import (
	"context"

	"github.com/feedbridge/twitter-bridge/internal/biz/domain"
)

// AccountRepo persists the accounts the bridge polls for
type AccountRepo interface {
	// RegisterAccount creates or updates an account with its credential
	RegisterAccount(ctx context.Context, cred *domain.Credential) error

	// GetCredential returns the credential of an account, or domain.ErrUnknownAccount
	GetCredential(ctx context.Context, accountID string) (*domain.Credential, error)

	// ListKnownAccounts lists every registered account
	ListKnownAccounts(ctx context.Context) ([]string, error)
}
