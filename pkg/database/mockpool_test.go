package database

import (
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var _ TxStarter = (pgxmock.PgxPoolIface)(nil)

// NewMockPool creates a pgxmock pool that satisfies TxStarter.
func NewMockPool() (pgxmock.PgxPoolIface, error) {
	return pgxmock.NewPool()
}
