package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/edulab/internal/database"
)

// pgStores は同一のDBハンドルに束縛されたPostgreSQLリポジトリの組。
type pgStores struct {
	accounts *PostgresAccountRepo
	progress *PostgresProgressRepo
}

// NewPostgresStores はdb（*sql.DB または *sql.Tx）に束縛されたStoresを生成する。
func NewPostgresStores(db database.DBTX) Stores {
	return &pgStores{
		accounts: NewPostgresAccountRepo(db),
		progress: NewPostgresProgressRepo(db),
	}
}

func (s *pgStores) Accounts() AccountRepository { return s.accounts }
func (s *pgStores) Progress() ProgressRepository { return s.progress }

// PostgresTransactor は*sql.DB上でトランザクションを開始するTransactor。
type PostgresTransactor struct {
	db database.TxBeginner
}

// NewPostgresTransactor はPostgresTransactorを生成する。
func NewPostgresTransactor(db database.TxBeginner) *PostgresTransactor {
	return &PostgresTransactor{db: db}
}

// WithinTx はトランザクションに束縛したStoresでfnを実行する。
// fnがnilを返した場合のみコミットする。
func (t *PostgresTransactor) WithinTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, stores Stores) error) error {
	return database.WithTx(ctx, t.db, opts, func(ctx context.Context, tx database.DBTX) error {
		return fn(ctx, NewPostgresStores(tx))
	})
}

// compile-time interface check
var _ Transactor = (*PostgresTransactor)(nil)
