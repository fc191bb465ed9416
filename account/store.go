package account

import "context"

// Store persists accounts.
//
// Insert must fail with ErrDuplicateEmail when the email is already present
// under any kind, atomically with respect to other inserts. FindByEmail only
// matches accounts of the given kind. Update replaces the stored record only
// if its Revision still equals acct.Revision, then increments both; a record
// that moved on fails with ErrConflict, an unknown ID with ErrNotFound.
// Emails reaching a Store are already normalized.
type Store interface {
	Insert(ctx context.Context, acct *Account) error
	FindByEmail(ctx context.Context, kind Kind, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Update(ctx context.Context, acct *Account) error
}
