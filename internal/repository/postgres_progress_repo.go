package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/edulab/internal/database"
	"github.com/hitoshi/edulab/internal/model"
)

// PostgresProgressRepo はPostgreSQLを使用したクイズ進捗リポジトリ。
type PostgresProgressRepo struct {
	db database.DBTX
}

// NewPostgresProgressRepo はPostgresProgressRepoを生成する。
func NewPostgresProgressRepo(db database.DBTX) *PostgresProgressRepo {
	return &PostgresProgressRepo{db: db}
}

// Find は(quizID, email)の進捗を取得する。見つからない場合はnilを返す。
func (r *PostgresProgressRepo) Find(ctx context.Context, quizID int, email string) (*model.QuizProgress, error) {
	p := &model.QuizProgress{}
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT email, quiz_id, status, updated_at FROM quiz_status WHERE quiz_id = $1 AND email = $2`,
		quizID, email,
	).Scan(&p.Email, &p.QuizID, &status, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find quiz status: %w", err)
	}

	p.Status = model.QuizStatus(status)
	return p, nil
}

// ListByEmail はアカウントの全進捗をquiz_id昇順で返す。
func (r *PostgresProgressRepo) ListByEmail(ctx context.Context, email string) ([]*model.QuizProgress, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT email, quiz_id, status, updated_at FROM quiz_status WHERE email = $1 ORDER BY quiz_id`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list quiz statuses: %w", err)
	}
	defer rows.Close()

	var list []*model.QuizProgress
	for rows.Next() {
		p := &model.QuizProgress{}
		var status string
		if err := rows.Scan(&p.Email, &p.QuizID, &status, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quiz status: %w", err)
		}
		p.Status = model.QuizStatus(status)
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quiz statuses: %w", err)
	}

	return list, nil
}

// Seed は指定クイズIDすべてに同一ステータスの進捗行を1文のINSERTで作成する。
func (r *PostgresProgressRepo) Seed(ctx context.Context, email string, quizIDs []int, status model.QuizStatus) error {
	if len(quizIDs) == 0 {
		return nil
	}

	// VALUES ($1, $3, $2), ($1, $4, $2), ...
	values := make([]string, len(quizIDs))
	args := make([]any, 0, len(quizIDs)+2)
	args = append(args, email, string(status))
	for i, id := range quizIDs {
		values[i] = fmt.Sprintf("($1, $%d, $2)", i+3)
		args = append(args, id)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO quiz_status (email, quiz_id, status) VALUES `+strings.Join(values, ", "),
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to seed quiz statuses: %w", err)
	}
	return nil
}

// Upsert は進捗を冪等にUPSERTする。
// UNIQUE(email, quiz_id)制約を利用したINSERT ON CONFLICTで実装する。
func (r *PostgresProgressRepo) Upsert(ctx context.Context, quizID int, email string, status model.QuizStatus) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO quiz_status (email, quiz_id, status, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (email, quiz_id) DO UPDATE SET
		     status = EXCLUDED.status,
		     updated_at = EXCLUDED.updated_at`,
		email, quizID, string(status),
	)
	if database.IsForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to upsert quiz status: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProgressRepository = (*PostgresProgressRepo)(nil)
