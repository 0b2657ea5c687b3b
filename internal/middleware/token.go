// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/edulab/internal/model"
	"github.com/hitoshi/edulab/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// emailContextKey はリクエストコンテキストに認証済みメールアドレスを格納するためのキー。
var emailContextKey = contextKey("email")

// TokenVerifier はトークンを検証しメールアドレスを返すインターフェース。
type TokenVerifier interface {
	Verify(tokenString string) (string, error)
}

// NewTokenMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// 有効なトークンのメールアドレスをリクエストコンテキストに注入する。
// 不正・期限切れのトークンには401を返す。
// トークンがない場合、requiredがfalseならそのまま通し、trueなら401を返す。
func NewTokenMiddleware(verifier TokenVerifier, required bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				if required {
					WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := token.FromAuthorizationHeader(header)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			email, err := verifier.Verify(raw)
			if err != nil {
				slog.Warn("token verification failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			noteIdentity(r.Context(), email)
			next.ServeHTTP(w, r.WithContext(ContextWithEmail(r.Context(), email)))
		})
	}
}

// EmailFromContext はリクエストコンテキストから認証済みメールアドレスを取得する。
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailContextKey).(string)
	return email, ok && email != ""
}

// ContextWithEmail はコンテキストに認証済みメールアドレスを注入する。
func ContextWithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailContextKey, email)
}

// CheckEmailAccess は認証済みアカウントがemailを操作してよいかを判定する。
// 未認証のリクエストは許可し、トークンの主体と異なる場合はFORBIDDENを返す。
func CheckEmailAccess(ctx context.Context, email string) *model.APIError {
	authed, ok := EmailFromContext(ctx)
	if !ok || authed == email {
		return nil
	}
	return model.NewForbiddenError()
}
