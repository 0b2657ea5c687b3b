// Package progress はクイズ進捗の参照・更新のドメインロジックを提供する。
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"unicode/utf8"

	"github.com/hitoshi/edulab/internal/metrics"
	"github.com/hitoshi/edulab/internal/model"
	"github.com/hitoshi/edulab/internal/repository"
)

// QuizStatusEntry は一括取得の1要素。
type QuizStatusEntry struct {
	QuizID int              `json:"quiz_id"`
	Status model.QuizStatus `json:"status"`
}

// Service はクイズ進捗のサービス層。
type Service struct {
	repo    repository.ProgressRepository
	quizIDs []int
	metrics metrics.MetricsCollector
}

// NewService はServiceを生成する。
// quizIDsは一括取得で必ず返すクイズIDの集合。
func NewService(repo repository.ProgressRepository, quizIDs []int, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	ids := make([]int, len(quizIDs))
	copy(ids, quizIDs)
	return &Service{repo: repo, quizIDs: ids, metrics: collector}
}

// GetStatus は(quizID, email)のステータスを返す。
// 行が存在しない場合はエラーではなくnot_startedを返す。
func (s *Service) GetStatus(ctx context.Context, quizID int, email string) (model.QuizStatus, error) {
	if email == "" {
		return "", model.NewMissingFieldsError("email")
	}

	p, err := s.repo.Find(ctx, quizID, email)
	if err != nil {
		return "", fmt.Errorf("failed to get quiz status: %w", err)
	}
	if p == nil {
		return model.QuizStatusNotStarted, nil
	}
	return p.Status, nil
}

// SetStatus は(quizID, email)のステータスを保存する。
// 行の有無にかかわらず成功し、同じ呼び出しを繰り返しても行は1つのまま。
func (s *Service) SetStatus(ctx context.Context, quizID int, email string, status model.QuizStatus) error {
	if email == "" || status == "" {
		var missing []string
		if email == "" {
			missing = append(missing, "email")
		}
		if status == "" {
			missing = append(missing, "status")
		}
		return model.NewMissingFieldsError(missing...)
	}
	if !status.IsStorable() {
		return model.NewInvalidStatusError(string(status))
	}
	// 列長を超えるメールアドレスのアカウントは存在しない
	if utf8.RuneCountInString(email) > model.MaxEmailLength {
		return model.NewUserNotFoundError()
	}

	err := s.repo.Upsert(ctx, quizID, email, status)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewUserNotFoundError()
	}
	if err != nil {
		return fmt.Errorf("failed to set quiz status: %w", err)
	}

	s.metrics.RecordQuizStatusUpdate(string(status))
	slog.Debug("クイズ進捗を更新しました",
		slog.String("email", email),
		slog.Int("quiz_id", quizID),
		slog.String("status", string(status)),
	)
	return nil
}

// ListStatuses はアカウントの全クイズのステータスをquiz_id昇順で返す。
// 設定済みクイズIDは行がなくてもnot_startedとして含め、設定外の保存済み行も含める。
func (s *Service) ListStatuses(ctx context.Context, email string) ([]QuizStatusEntry, error) {
	if email == "" {
		return nil, model.NewMissingFieldsError("email")
	}

	rows, err := s.repo.ListByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list quiz statuses: %w", err)
	}

	byID := make(map[int]model.QuizStatus, len(s.quizIDs)+len(rows))
	for _, id := range s.quizIDs {
		byID[id] = model.QuizStatusNotStarted
	}
	for _, p := range rows {
		byID[p.QuizID] = p.Status
	}

	entries := make([]QuizStatusEntry, 0, len(byID))
	for id, status := range byID {
		entries = append(entries, QuizStatusEntry{QuizID: id, Status: status})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].QuizID < entries[j].QuizID })
	return entries, nil
}
