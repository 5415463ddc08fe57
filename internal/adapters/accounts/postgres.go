// Package accounts reads the account service's records: premium flag
// and configured partner. This surface is read-only here; signup,
// pairing and payment live elsewhere.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sarim-aliii/duet/internal/core"
	"github.com/sarim-aliii/duet/internal/domain"
)

var ErrNotFound = errors.New("account not found")

type PgAccounts struct {
	pool *pgxpool.Pool
}

func NewPgAccounts(pool *pgxpool.Pool) *PgAccounts {
	return &PgAccounts{pool: pool}
}

var _ core.Accounts = (*PgAccounts)(nil)

func (a *PgAccounts) Lookup(ctx context.Context, id domain.UserID) (domain.Account, error) {
	row := a.pool.QueryRow(ctx, `
		SELECT name, COALESCE(avatar, ''), is_premium, COALESCE(partner_id, '')
		FROM users WHERE id = $1`,
		string(id),
	)
	acct := domain.Account{ID: id}
	var partner string
	if err := row.Scan(&acct.Name, &acct.Avatar, &acct.Premium, &partner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return domain.Account{}, fmt.Errorf("lookup account: %w", err)
	}
	acct.Partner = domain.UserID(partner)
	return acct, nil
}
