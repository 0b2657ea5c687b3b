package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/edulab/internal/account"
	"github.com/hitoshi/edulab/internal/credential"
	"github.com/hitoshi/edulab/internal/middleware"
	"github.com/hitoshi/edulab/internal/model"
	"github.com/hitoshi/edulab/internal/progress"
	"github.com/hitoshi/edulab/internal/repository/memstore"
	"github.com/hitoshi/edulab/internal/token"
)

// --- 統合テスト用ルーター構築ヘルパー ---

func createIntegrationRouter(t *testing.T, store *memstore.Store) http.Handler {
	t.Helper()
	tokens := token.NewManager("integration-secret", time.Hour)
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		CORSAllowedOrigin: "*",
		RateLimiter:       rl,
		TokenVerifier:     tokens,
		TokenIssuer:       tokens,
		DB:                &mockPinger{},
		AccountService: account.NewService(store, store.Accounts(),
			credential.NewHasher(bcrypt.MinCost), model.DefaultQuizIDs, nil),
		ProgressService: progress.NewService(store.Progress(), model.DefaultQuizIDs, nil),
	})
}

type apiClient struct {
	t      *testing.T
	router http.Handler
}

func (c *apiClient) do(method, path string, body any, bearer string) (*httptest.ResponseRecorder, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var decoded map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

// TestIntegration_EndToEnd は登録から進捗更新・ログインまでの一連の流れを検証する。
func TestIntegration_EndToEnd(t *testing.T) {
	store := memstore.New()
	c := &apiClient{t: t, router: createIntegrationRouter(t, store)}

	// 1. 登録
	w, body := c.do(http.MethodPost, "/api/auth/register",
		map[string]string{"email": "a@x.com", "name": "A", "password": "password123"}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status = %d, body = %s", w.Code, w.Body.String())
	}
	if body["message"] != "User registered successfully" {
		t.Errorf("register message = %v", body["message"])
	}
	tok, _ := body["token"].(string)
	if tok == "" {
		t.Fatal("register should return a token")
	}

	rows := store.ProgressRows("a@x.com")
	if len(rows) != 5 {
		t.Fatalf("seeded rows = %d, want 5", len(rows))
	}
	for _, row := range rows {
		if row.Status != model.QuizStatusNotCompleted {
			t.Errorf("quiz %d status = %q, want not completed", row.QuizID, row.Status)
		}
	}

	// 2. 進捗更新と参照
	w, _ = c.do(http.MethodPost, "/api/quiz/status",
		map[string]any{"quiz_id": 3, "email": "a@x.com", "status": "completed"}, tok)
	if w.Code != http.StatusOK {
		t.Fatalf("set status: status = %d, body = %s", w.Code, w.Body.String())
	}

	_, body = c.do(http.MethodGet, "/api/quiz/status/3/a@x.com", nil, tok)
	if body["status"] != "completed" {
		t.Errorf("quiz 3 status = %v, want completed", body["status"])
	}
	_, body = c.do(http.MethodGet, "/api/quiz/status/1/a@x.com", nil, tok)
	if body["status"] != "not completed" {
		t.Errorf("quiz 1 status = %v, want not completed", body["status"])
	}
	_, body = c.do(http.MethodGet, "/api/quiz/status/42/a@x.com", nil, tok)
	if body["status"] != "not_started" {
		t.Errorf("quiz 42 status = %v, want not_started", body["status"])
	}

	// 3. 重複登録
	w, body = c.do(http.MethodPost, "/api/auth/register",
		map[string]string{"email": "a@x.com", "name": "Z", "password": "other"}, "")
	if w.Code != http.StatusBadRequest || body["code"] != model.ErrCodeDuplicateEmail {
		t.Errorf("duplicate register: status = %d, code = %v", w.Code, body["code"])
	}
	if store.AccountCount() != 1 || len(store.ProgressRows("a@x.com")) != 5 {
		t.Errorf("row counts changed after duplicate registration")
	}

	// 4. ログイン
	w, body = c.do(http.MethodPost, "/api/auth/login",
		map[string]string{"email": "a@x.com", "password": "wrongpass"}, "")
	if w.Code != http.StatusUnauthorized || body["code"] != model.ErrCodeInvalidCredentials {
		t.Errorf("wrong password: status = %d, code = %v", w.Code, body["code"])
	}

	w, body = c.do(http.MethodPost, "/api/auth/login",
		map[string]string{"email": "a@x.com", "password": "password123"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login: status = %d, body = %s", w.Code, w.Body.String())
	}
	user, _ := body["user"].(map[string]any)
	if user["email"] != "a@x.com" || user["name"] != "A" || len(user) != 2 {
		t.Errorf("login user = %v", user)
	}

	// 5. 表示名更新と一括取得
	w, body = c.do(http.MethodPut, "/api/update-name",
		map[string]string{"email": "a@x.com", "name": "Alice"}, tok)
	if w.Code != http.StatusOK || body["success"] != true {
		t.Errorf("update name: status = %d, body = %v", w.Code, body)
	}

	w, body = c.do(http.MethodGet, "/api/quiz/statuses/a@x.com", nil, tok)
	if w.Code != http.StatusOK {
		t.Fatalf("list statuses: status = %d", w.Code)
	}
	statuses, _ := body["statuses"].([]any)
	if len(statuses) != 5 {
		t.Errorf("statuses = %d entries, want 5", len(statuses))
	}
}

// TestIntegration_TokenProtectsOtherAccounts は他人のアカウントを操作できないことを検証する。
func TestIntegration_TokenProtectsOtherAccounts(t *testing.T) {
	store := memstore.New()
	c := &apiClient{t: t, router: createIntegrationRouter(t, store)}

	_, body := c.do(http.MethodPost, "/api/auth/register",
		map[string]string{"email": "a@x.com", "name": "A", "password": "pw-a"}, "")
	tokA, _ := body["token"].(string)
	c.do(http.MethodPost, "/api/auth/register",
		map[string]string{"email": "b@x.com", "name": "B", "password": "pw-b"}, "")

	w, _ := c.do(http.MethodPost, "/api/quiz/status",
		map[string]any{"quiz_id": 1, "email": "b@x.com", "status": "completed"}, tokA)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}

	w, _ = c.do(http.MethodPut, "/api/update-name",
		map[string]string{"email": "b@x.com", "name": "Hacked"}, tokA)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}

	w, _ = c.do(http.MethodGet, "/api/quiz/status/1/a@x.com", nil, "tampered."+tokA)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("tampered token: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// TestIntegration_UpdateNameUnknownEmail は存在しないアカウントの名前更新が404になることを検証する。
func TestIntegration_UpdateNameUnknownEmail(t *testing.T) {
	c := &apiClient{t: t, router: createIntegrationRouter(t, memstore.New())}

	w, body := c.do(http.MethodPut, "/api/update-name",
		map[string]string{"email": "ghost@x.com", "name": "G"}, "")
	if w.Code != http.StatusNotFound || body["code"] != model.ErrCodeUserNotFound {
		t.Errorf("status = %d, code = %v", w.Code, body["code"])
	}
}
