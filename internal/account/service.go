// Package account はアカウント登録・認証・表示名更新のドメインロジックを提供する。
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/edulab/internal/credential"
	"github.com/hitoshi/edulab/internal/database"
	"github.com/hitoshi/edulab/internal/metrics"
	"github.com/hitoshi/edulab/internal/model"
	"github.com/hitoshi/edulab/internal/repository"
)

// PasswordHasher はパスワードのハッシュ化と照合のインターフェース。
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

// NameSanitizer は表示名からマークアップを除去する。
type NameSanitizer interface {
	SanitizeName(name string) string
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithNameSanitizer は登録時と表示名更新時に名前を正規化するNameSanitizerを設定する。
func WithNameSanitizer(sanitizer NameSanitizer) Option {
	return func(s *Service) {
		s.sanitizer = sanitizer
	}
}

// RegisterInput は登録リクエストの入力。
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// LoginInput はログインリクエストの入力。
type LoginInput struct {
	Email    string
	Password string
}

// Service はアカウントのサービス層。
type Service struct {
	transactor repository.Transactor
	accounts   repository.AccountRepository
	hasher     PasswordHasher
	quizIDs    []int
	metrics    metrics.MetricsCollector
	sanitizer  NameSanitizer
}

// NewService はServiceを生成する。
// quizIDsは登録時に進捗行をシードするクイズIDの集合。
func NewService(
	transactor repository.Transactor,
	accounts repository.AccountRepository,
	hasher PasswordHasher,
	quizIDs []int,
	collector metrics.MetricsCollector,
	opts ...Option,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	ids := make([]int, len(quizIDs))
	copy(ids, quizIDs)
	s := &Service{
		transactor: transactor,
		accounts:   accounts,
		hasher:     hasher,
		quizIDs:    ids,
		metrics:    collector,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// registerTxOptions は登録トランザクションの分離レベル。
// 同一メールアドレスの同時登録では片方がシリアライゼーション失敗または一意制約違反になる。
var registerTxOptions = &sql.TxOptions{Isolation: sql.LevelSerializable}

// maxRegisterAttempts は直列化失敗時に登録トランザクションを試行する最大回数。
// SERIALIZABLEの述語ロックはインデックスページ単位のため、別メールアドレスの同時登録でも40001になりうる。
const maxRegisterAttempts = 3

// Register はアカウントを作成し、全クイズの進捗行を "not completed" でシードする。
// アカウントとシード行は1トランザクションで作成され、途中で失敗した場合は何も残らない。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Account, error) {
	in.Name = s.sanitizeName(in.Name)
	if in.Email == "" || in.Name == "" || in.Password == "" {
		s.metrics.RecordRegistration(metrics.ResultInvalid)
		return nil, model.NewMissingFieldsError()
	}
	if apiErr := validateRegisterInput(in); apiErr != nil {
		s.metrics.RecordRegistration(metrics.ResultInvalid)
		return nil, apiErr
	}

	// ハッシュ計算はCPUバウンドのため、コネクションを保持する前に済ませる
	hash, err := s.hash(in.Password)
	if err != nil {
		s.metrics.RecordRegistration(metrics.ResultError)
		return nil, err
	}

	account := &model.Account{
		Email:          in.Email,
		Name:           in.Name,
		CredentialHash: hash,
	}

	for attempt := 1; ; attempt++ {
		err = s.transactor.WithinTx(ctx, registerTxOptions, func(ctx context.Context, stores repository.Stores) error {
			existing, err := stores.Accounts().FindByEmail(ctx, in.Email)
			if err != nil {
				return err
			}
			if existing != nil {
				return repository.ErrDuplicateEmail
			}
			if err := stores.Accounts().Create(ctx, account); err != nil {
				return err
			}
			return stores.Progress().Seed(ctx, in.Email, s.quizIDs, model.QuizStatusNotCompleted)
		})
		if attempt >= maxRegisterAttempts || !s.shouldRetryRegistration(ctx, in.Email, err) {
			break
		}
		slog.Debug("直列化失敗のため登録を再試行します", slog.Int("attempt", attempt))
	}
	if err != nil {
		return nil, s.registrationError(ctx, in.Email, err)
	}

	s.metrics.RecordRegistration(metrics.ResultSuccess)
	slog.Info("アカウントを登録しました",
		slog.String("email", in.Email),
		slog.Int("seeded_quizzes", len(s.quizIDs)),
	)
	return account, nil
}

// validateRegisterInput は列長とbcryptの入力上限を検証する。
func validateRegisterInput(in RegisterInput) *model.APIError {
	if utf8.RuneCountInString(in.Email) > model.MaxEmailLength {
		return model.NewValidationError(fmt.Sprintf("email must be at most %d characters", model.MaxEmailLength))
	}
	if utf8.RuneCountInString(in.Name) > model.MaxNameLength {
		return model.NewValidationError(fmt.Sprintf("name must be at most %d characters", model.MaxNameLength))
	}
	if len(in.Password) > credential.MaxPasswordBytes {
		return model.NewValidationError(fmt.Sprintf("password must be at most %d bytes", credential.MaxPasswordBytes))
	}
	return nil
}

// shouldRetryRegistration は直列化失敗で、かつ対象メールアドレスがまだ登録されていない場合にtrueを返す。
// 失敗したトランザクションはロールバック済みのため、再試行しても副作用は残らない。
func (s *Service) shouldRetryRegistration(ctx context.Context, email string, err error) bool {
	if !database.IsSerializationFailure(err) {
		return false
	}
	existing, findErr := s.accounts.FindByEmail(ctx, email)
	return findErr == nil && existing == nil
}

// registrationError は登録トランザクションのエラーをドメインエラーに変換する。
func (s *Service) registrationError(ctx context.Context, email string, err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateEmail) || database.IsUniqueViolation(err):
		s.metrics.RecordRegistration(metrics.ResultDuplicate)
		return model.NewDuplicateEmailError()

	case database.IsSerializationFailure(err):
		// 同時登録で競合した。相手がコミット済みなら重複として扱う
		existing, findErr := s.accounts.FindByEmail(ctx, email)
		if findErr == nil && existing != nil {
			s.metrics.RecordRegistration(metrics.ResultDuplicate)
			return model.NewDuplicateEmailError()
		}
	}

	s.metrics.RecordRegistration(metrics.ResultError)
	return fmt.Errorf("failed to register account: %w", err)
}

// Login はメールアドレスとパスワードを照合し、公開フィールドのみを返す。
// メール未登録とパスワード不一致は同一のエラーを返す。
func (s *Service) Login(ctx context.Context, in LoginInput) (*model.PublicAccount, error) {
	if in.Email == "" || in.Password == "" {
		s.metrics.RecordLogin(metrics.ResultInvalid)
		return nil, model.NewMissingFieldsError()
	}
	// bcryptの上限を超えるパスワードで登録されたアカウントは存在しない
	if len(in.Password) > credential.MaxPasswordBytes {
		s.metrics.RecordLogin(metrics.ResultInvalid)
		return nil, model.NewInvalidCredentialsError()
	}

	account, err := s.accounts.FindByEmail(ctx, in.Email)
	if err != nil {
		s.metrics.RecordLogin(metrics.ResultError)
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		s.metrics.RecordLogin(metrics.ResultInvalid)
		return nil, model.NewInvalidCredentialsError()
	}

	ok, err := s.hasher.Verify(in.Password, account.CredentialHash)
	if err != nil {
		s.metrics.RecordLogin(metrics.ResultError)
		return nil, fmt.Errorf("failed to verify credential: %w", err)
	}
	if !ok {
		s.metrics.RecordLogin(metrics.ResultInvalid)
		return nil, model.NewInvalidCredentialsError()
	}

	s.metrics.RecordLogin(metrics.ResultSuccess)
	public := account.Public()
	return &public, nil
}

// UpdateName は表示名を更新する。アカウントが存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) UpdateName(ctx context.Context, email, name string) error {
	name = s.sanitizeName(name)
	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if name == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return model.NewMissingFieldsError(missing...)
	}
	if utf8.RuneCountInString(name) > model.MaxNameLength {
		return model.NewValidationError(fmt.Sprintf("name must be at most %d characters", model.MaxNameLength))
	}

	err := s.accounts.UpdateName(ctx, email, name)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewUserNotFoundError()
	}
	if err != nil {
		return fmt.Errorf("failed to update name: %w", err)
	}

	slog.Info("表示名を更新しました", slog.String("email", email))
	return nil
}

func (s *Service) sanitizeName(name string) string {
	if s.sanitizer == nil {
		return name
	}
	return s.sanitizer.SanitizeName(name)
}

// QuizIDs はシード対象のクイズIDを返す。
func (s *Service) QuizIDs() []int {
	ids := make([]int, len(s.quizIDs))
	copy(ids, s.quizIDs)
	return ids
}

func (s *Service) hash(password string) (string, error) {
	start := time.Now()
	hash, err := s.hasher.Hash(password)
	s.metrics.RecordHashLatency(time.Since(start))
	if err != nil {
		return "", err
	}
	return hash, nil
}
