package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/edulab/internal/account"
	"github.com/hitoshi/edulab/internal/model"
)

// AccountServiceInterface は認証・ユーザーハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Register(ctx context.Context, in account.RegisterInput) (*model.Account, error)
	Login(ctx context.Context, in account.LoginInput) (*model.PublicAccount, error)
	UpdateName(ctx context.Context, email, name string) error
}

// TokenIssuer はログイン済みアカウントのトークンを発行するインターフェース。
type TokenIssuer interface {
	Issue(email string) (string, error)
}

// AuthHandler は登録・ログインのHTTPハンドラー。
type AuthHandler struct {
	service AccountServiceInterface
	tokens  TokenIssuer
}

// NewAuthHandler はAuthHandlerを生成する。tokensがnilの場合はトークンを返さない。
func NewAuthHandler(service AccountServiceInterface, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{
		service: service,
		tokens:  tokens,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type registerResponse struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User  model.PublicAccount `json:"user"`
	Token string              `json:"token,omitempty"`
}

// Register はアカウントを登録する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if apiErr := decodeJSONBody(r, &req); apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	acc, err := h.service.Register(r.Context(), account.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	tok, err := h.issueToken(acc.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Message: "User registered successfully",
		Token:   tok,
	})
}

// Login はメールアドレスとパスワードで認証する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if apiErr := decodeJSONBody(r, &req); apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	user, err := h.service.Login(r.Context(), account.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	tok, err := h.issueToken(user.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{User: *user, Token: tok})
}

func (h *AuthHandler) issueToken(email string) (string, error) {
	if h.tokens == nil {
		return "", nil
	}
	return h.tokens.Issue(email)
}
