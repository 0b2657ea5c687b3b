package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/edulab/internal/metrics"
	"github.com/hitoshi/edulab/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	TokenVerifier     middleware.TokenVerifier
	RequireToken      bool
	TrustProxy        bool // X-Forwarded-For / X-Real-IP をクライアントアドレスとして信頼する
	MaxBodyBytes      int64

	// メトリクス
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// ヘルスチェック
	DB Pinger

	// ドメイン
	AccountService  AccountServiceInterface
	ProgressService ProgressServiceInterface
	TokenIssuer     TokenIssuer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → (RealIP) → Logging → HTTPStatusMetrics → CORS → SecurityHeaders → BodyLimit
//
// そのうえで /api/auth/* には登録・ログイン用のレート制限、
// それ以外の /api/* にはトークン検証と全般レート制限を掛ける。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = middleware.DefaultMaxBodyBytes
	}
	rl := deps.RateLimiter
	if rl == nil {
		rl = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewRequestIDMiddleware())
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(metrics.HTTPStatusMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewBodyLimitMiddleware(maxBody))

	authHandler := NewAuthHandler(deps.AccountService, deps.TokenIssuer)
	userHandler := NewUserHandler(deps.AccountService)
	quizHandler := NewQuizHandler(deps.ProgressService)

	// --- 運用エンドポイント ---
	r.Get("/health", Health(deps.DB))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証不要のルート ---
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(rl.AuthMiddleware())
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// --- トークン検証付きのルート ---
	// ミドルウェアスタック: RateLimit(General) → Token
	r.Group(func(r chi.Router) {
		r.Use(rl.GeneralMiddleware())
		if deps.TokenVerifier != nil {
			r.Use(middleware.NewTokenMiddleware(deps.TokenVerifier, deps.RequireToken))
		}

		r.Put("/api/update-name", userHandler.UpdateName)

		r.Route("/api/quiz", func(r chi.Router) {
			r.Post("/status", quizHandler.SetStatus)
			r.Get("/status/{quiz_id}/{email}", quizHandler.GetStatus)
			r.Get("/statuses/{email}", quizHandler.ListStatuses)
		})
	})

	return r
}
