// Package memstore はrepositoryインターフェースのインメモリ実装を提供する。
// トランザクションは状態のコピーに対して実行され、成功時のみ差し替えられるため、
// 途中状態が他の読み取りから観測されることはない。
// テストおよびDBなしでの動作確認用。
package memstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/edulab/internal/model"
	"github.com/hitoshi/edulab/internal/repository"
)

// 障害注入に使う操作名
const (
	OpAccountCreate  = "accounts.create"
	OpProgressSeed   = "progress.seed"
	OpProgressUpsert = "progress.upsert"
)

type progressKey struct {
	email  string
	quizID int
}

type state struct {
	accounts map[string]model.Account
	progress map[progressKey]model.QuizProgress
}

func newState() *state {
	return &state{
		accounts: make(map[string]model.Account),
		progress: make(map[progressKey]model.QuizProgress),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.progress {
		c.progress[k] = v
	}
	return c
}

// Store はインメモリのStoresとTransactorを兼ねる。
type Store struct {
	mu       sync.Mutex
	cur      *state
	failures map[string]error
}

// New は空のStoreを生成する。
func New() *Store {
	return &Store{
		cur:      newState(),
		failures: make(map[string]error),
	}
}

// FailOn は指定操作が呼ばれたときにerrを返すよう設定する。errがnilなら解除する。
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Accounts はトランザクション外のAccountRepositoryを返す。
func (s *Store) Accounts() repository.AccountRepository {
	return &accountRepo{view: &liveView{store: s}}
}

// Progress はトランザクション外のProgressRepositoryを返す。
func (s *Store) Progress() repository.ProgressRepository {
	return &progressRepo{view: &liveView{store: s}}
}

// WithinTx は状態のコピーに対してfnを実行し、成功時のみコピーを確定する。
// トランザクションは直列に実行される。
func (s *Store) WithinTx(ctx context.Context, _ *sql.TxOptions, fn func(ctx context.Context, stores repository.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.cur.clone()
	tv := &txView{st: draft, failures: s.failures}
	if err := fn(ctx, &txStores{view: tv}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cur = draft
	return nil
}

// AccountCount はテスト用に保存済みアカウント数を返す。
func (s *Store) AccountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cur.accounts)
}

// ProgressRows はテスト用に指定メールアドレスの進捗行を quiz_id 昇順で返す。
func (s *Store) ProgressRows(email string) []model.QuizProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listProgress(s.cur, email)
}

// view は状態へのアクセス方法（ロック有無）を抽象化する。
type view interface {
	do(op string, fn func(st *state) error) error
}

// liveView はトランザクション外の操作。1操作ごとにロックを取る。
type liveView struct {
	store *Store
}

func (v *liveView) do(op string, fn func(st *state) error) error {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	if err := v.store.failures[op]; err != nil {
		return err
	}
	return fn(v.store.cur)
}

// txView はトランザクション内の操作。WithinTxがロックを保持している。
type txView struct {
	st       *state
	failures map[string]error
}

func (v *txView) do(op string, fn func(st *state) error) error {
	if err := v.failures[op]; err != nil {
		return err
	}
	return fn(v.st)
}

type txStores struct {
	view view
}

func (s *txStores) Accounts() repository.AccountRepository { return &accountRepo{view: s.view} }
func (s *txStores) Progress() repository.ProgressRepository { return &progressRepo{view: s.view} }

type accountRepo struct {
	view view
}

func (r *accountRepo) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	var found *model.Account
	err := r.view.do("accounts.find", func(st *state) error {
		if a, ok := st.accounts[email]; ok {
			found = &a
		}
		return nil
	})
	return found, err
}

func (r *accountRepo) Create(_ context.Context, account *model.Account) error {
	return r.view.do(OpAccountCreate, func(st *state) error {
		if _, ok := st.accounts[account.Email]; ok {
			return repository.ErrDuplicateEmail
		}
		now := time.Now().UTC()
		if account.CreatedAt.IsZero() {
			account.CreatedAt = now
		}
		if account.UpdatedAt.IsZero() {
			account.UpdatedAt = now
		}
		st.accounts[account.Email] = *account
		return nil
	})
}

func (r *accountRepo) UpdateName(_ context.Context, email, name string) error {
	return r.view.do("accounts.update_name", func(st *state) error {
		a, ok := st.accounts[email]
		if !ok {
			return repository.ErrNotFound
		}
		a.Name = name
		a.UpdatedAt = time.Now().UTC()
		st.accounts[email] = a
		return nil
	})
}

type progressRepo struct {
	view view
}

func (r *progressRepo) Find(_ context.Context, quizID int, email string) (*model.QuizProgress, error) {
	var found *model.QuizProgress
	err := r.view.do("progress.find", func(st *state) error {
		if p, ok := st.progress[progressKey{email: email, quizID: quizID}]; ok {
			found = &p
		}
		return nil
	})
	return found, err
}

func (r *progressRepo) ListByEmail(_ context.Context, email string) ([]*model.QuizProgress, error) {
	var list []*model.QuizProgress
	err := r.view.do("progress.list", func(st *state) error {
		for _, p := range listProgress(st, email) {
			p := p
			list = append(list, &p)
		}
		return nil
	})
	return list, err
}

func (r *progressRepo) Seed(_ context.Context, email string, quizIDs []int, status model.QuizStatus) error {
	return r.view.do(OpProgressSeed, func(st *state) error {
		if _, ok := st.accounts[email]; !ok {
			return repository.ErrNotFound
		}
		now := time.Now().UTC()
		for _, id := range quizIDs {
			key := progressKey{email: email, quizID: id}
			if _, ok := st.progress[key]; ok {
				return fmt.Errorf("failed to seed quiz statuses: quiz %d already exists for %s", id, email)
			}
			st.progress[key] = model.QuizProgress{Email: email, QuizID: id, Status: status, UpdatedAt: now}
		}
		return nil
	})
}

func (r *progressRepo) Upsert(_ context.Context, quizID int, email string, status model.QuizStatus) error {
	return r.view.do(OpProgressUpsert, func(st *state) error {
		if _, ok := st.accounts[email]; !ok {
			return repository.ErrNotFound
		}
		key := progressKey{email: email, quizID: quizID}
		st.progress[key] = model.QuizProgress{Email: email, QuizID: quizID, Status: status, UpdatedAt: time.Now().UTC()}
		return nil
	})
}

func listProgress(st *state, email string) []model.QuizProgress {
	var list []model.QuizProgress
	for k, p := range st.progress {
		if k.email == email {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].QuizID < list[j].QuizID })
	return list
}

// compile-time interface checks
var (
	_ repository.Stores             = (*Store)(nil)
	_ repository.Transactor         = (*Store)(nil)
	_ repository.AccountRepository  = (*accountRepo)(nil)
	_ repository.ProgressRepository = (*progressRepo)(nil)
)
