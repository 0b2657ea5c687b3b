package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/hitoshi/edulab/internal/account"
	"github.com/hitoshi/edulab/internal/model"
	"github.com/hitoshi/edulab/internal/progress"
)

// --- モック定義 ---

type mockAccountService struct {
	registerFn   func(ctx context.Context, in account.RegisterInput) (*model.Account, error)
	loginFn      func(ctx context.Context, in account.LoginInput) (*model.PublicAccount, error)
	updateNameFn func(ctx context.Context, email, name string) error
}

func (m *mockAccountService) Register(ctx context.Context, in account.RegisterInput) (*model.Account, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return &model.Account{Email: in.Email, Name: in.Name}, nil
}

func (m *mockAccountService) Login(ctx context.Context, in account.LoginInput) (*model.PublicAccount, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, in)
	}
	return &model.PublicAccount{Email: in.Email}, nil
}

func (m *mockAccountService) UpdateName(ctx context.Context, email, name string) error {
	if m.updateNameFn != nil {
		return m.updateNameFn(ctx, email, name)
	}
	return nil
}

type mockProgressService struct {
	getStatusFn    func(ctx context.Context, quizID int, email string) (model.QuizStatus, error)
	setStatusFn    func(ctx context.Context, quizID int, email string, status model.QuizStatus) error
	listStatusesFn func(ctx context.Context, email string) ([]progress.QuizStatusEntry, error)
}

func (m *mockProgressService) GetStatus(ctx context.Context, quizID int, email string) (model.QuizStatus, error) {
	if m.getStatusFn != nil {
		return m.getStatusFn(ctx, quizID, email)
	}
	return model.QuizStatusNotStarted, nil
}

func (m *mockProgressService) SetStatus(ctx context.Context, quizID int, email string, status model.QuizStatus) error {
	if m.setStatusFn != nil {
		return m.setStatusFn(ctx, quizID, email, status)
	}
	return nil
}

func (m *mockProgressService) ListStatuses(ctx context.Context, email string) ([]progress.QuizStatusEntry, error) {
	if m.listStatusesFn != nil {
		return m.listStatusesFn(ctx, email)
	}
	return nil, nil
}

// stubTokens は "token-for:<email>" 形式のトークンを発行・検証する。
type stubTokens struct{}

func (stubTokens) Issue(email string) (string, error) { return "token-for:" + email, nil }

func (stubTokens) Verify(tokenString string) (string, error) {
	email, ok := strings.CutPrefix(tokenString, "token-for:")
	if !ok || email == "" {
		return "", errors.New("invalid token")
	}
	return email, nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error { return m.err }
