// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hitoshi/edulab/internal/model"
)

var (
	// ErrDuplicateEmail は同じメールアドレスのアカウントが既に存在することを示す。
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrNotFound は更新対象のレコードが存在しないことを示す。
	ErrNotFound = errors.New("record not found")
)

// AccountRepository はアカウントデータの永続化インターフェース。
type AccountRepository interface {
	// FindByEmail は指定メールアドレスのアカウントを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Create はアカウントを作成する。
	// 同一メールアドレスが存在する場合はErrDuplicateEmailを返す。
	// 登録ワークフローのトランザクション内でのみ呼び出すこと。
	Create(ctx context.Context, account *model.Account) error

	// UpdateName は表示名を更新する。対象が存在しない場合はErrNotFoundを返す。
	UpdateName(ctx context.Context, email, name string) error
}

// ProgressRepository はクイズ進捗データの永続化インターフェース。
type ProgressRepository interface {
	// Find は(quizID, email)の進捗を取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, quizID int, email string) (*model.QuizProgress, error)

	// ListByEmail はアカウントの全進捗をquiz_id昇順で返す。
	ListByEmail(ctx context.Context, email string) ([]*model.QuizProgress, error)

	// Seed は指定クイズIDすべてに同一ステータスの進捗行を一括作成する。
	Seed(ctx context.Context, email string, quizIDs []int, status model.QuizStatus) error

	// Upsert は進捗を冪等にUPSERTする。既存行があればステータスのみ更新し、行は増やさない。
	// アカウントが存在しない場合はErrNotFoundを返す。
	Upsert(ctx context.Context, quizID int, email string, status model.QuizStatus) error
}

// Stores は同一のDBハンドル（*sql.DB または *sql.Tx）に束縛されたリポジトリの組。
type Stores interface {
	Accounts() AccountRepository
	Progress() ProgressRepository
}

// Transactor は複数リポジトリにまたがる処理を1トランザクションで実行する。
// fnがエラーを返した場合、fn内の書き込みはすべてロールバックされる。
type Transactor interface {
	WithinTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, stores Stores) error) error
}
