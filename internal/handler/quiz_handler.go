package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/edulab/internal/middleware"
	"github.com/hitoshi/edulab/internal/model"
	"github.com/hitoshi/edulab/internal/progress"
)

// ProgressServiceInterface はクイズハンドラーが必要とするサービスインターフェース。
type ProgressServiceInterface interface {
	GetStatus(ctx context.Context, quizID int, email string) (model.QuizStatus, error)
	SetStatus(ctx context.Context, quizID int, email string, status model.QuizStatus) error
	ListStatuses(ctx context.Context, email string) ([]progress.QuizStatusEntry, error)
}

// QuizHandler はクイズ進捗のHTTPハンドラー。
type QuizHandler struct {
	service ProgressServiceInterface
}

// NewQuizHandler はQuizHandlerを生成する。
func NewQuizHandler(service ProgressServiceInterface) *QuizHandler {
	return &QuizHandler{service: service}
}

var errNotInteger = errors.New("quiz_id must be an integer")

// quizID はJSONの数値と数値文字列の両方を受け付けるクイズID。
type quizID struct {
	value int
	set   bool
}

// UnmarshalJSON は 3 と "3" を同じ値として読む。nullは未指定扱い。
func (q *quizID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return errNotInteger
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
	} else {
		raw = string(data)
	}

	v, err := parseQuizID(raw)
	if err != nil {
		return err
	}
	q.value = v
	q.set = true
	return nil
}

// parseQuizID はquiz_id列（INTEGER）に収まる整数のみを受け付ける。
func parseQuizID(raw string) (int, error) {
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, errNotInteger
	}
	return int(v), nil
}

type setStatusRequest struct {
	QuizID    quizID `json:"quiz_id"`
	Email     string `json:"email"`
	UserEmail string `json:"user_email"` // 旧クライアント互換
	Status    string `json:"status"`
}

func (req *setStatusRequest) email() string {
	if req.Email != "" {
		return req.Email
	}
	return req.UserEmail
}

type statusResponse struct {
	Status model.QuizStatus `json:"status"`
}

type statusesResponse struct {
	Statuses []progress.QuizStatusEntry `json:"statuses"`
}

// SetStatus はクイズ進捗を保存する。
// POST /api/quiz/status
func (h *QuizHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, errNotInteger) {
			handleServiceError(w, r, model.NewValidationError(errNotInteger.Error()))
			return
		}
		handleServiceError(w, r, bodyError(err))
		return
	}

	email := req.email()
	var missing []string
	if !req.QuizID.set {
		missing = append(missing, "quiz_id")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if req.Status == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		handleServiceError(w, r, model.NewMissingFieldsError(missing...))
		return
	}

	if apiErr := middleware.CheckEmailAccess(r.Context(), email); apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	if err := h.service.SetStatus(r.Context(), req.QuizID.value, email, model.QuizStatus(req.Status)); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Quiz status updated successfully"})
}

// GetStatus はクイズ進捗を返す。行がない場合はnot_started。
// GET /api/quiz/status/{quiz_id}/{email}
func (h *QuizHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseQuizID(chi.URLParam(r, "quiz_id"))
	if err != nil {
		handleServiceError(w, r, model.NewValidationError(errNotInteger.Error()))
		return
	}
	email := chi.URLParam(r, "email")

	if apiErr := middleware.CheckEmailAccess(r.Context(), email); apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	status, err := h.service.GetStatus(r.Context(), id, email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: status})
}

// ListStatuses はアカウントの全クイズ進捗を返す。
// GET /api/quiz/statuses/{email}
func (h *QuizHandler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	if apiErr := middleware.CheckEmailAccess(r.Context(), email); apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	entries, err := h.service.ListStatuses(r.Context(), email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusesResponse{Statuses: entries})
}
