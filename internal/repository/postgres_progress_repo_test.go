package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/hitoshi/edulab/internal/model"
)

const findProgressQuery = `(?s)^SELECT\s+email,\s*quiz_id,\s*status,\s*updated_at\s+FROM\s+quiz_status\s+WHERE\s+quiz_id\s*=\s*\$1\s+AND\s+email\s*=\s*\$2$`

func TestPostgresProgressRepo_Find(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresProgressRepo(db)

	rows := sqlmock.NewRows([]string{"email", "quiz_id", "status", "updated_at"}).
		AddRow("alice@example.com", 3, "completed", time.Now())
	mock.ExpectQuery(findProgressQuery).WithArgs(3, "alice@example.com").WillReturnRows(rows)

	got, err := repo.Find(context.Background(), 3, "alice@example.com")
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if got == nil || got.QuizID != 3 || got.Status != model.QuizStatusCompleted {
		t.Errorf("unexpected progress: %+v", got)
	}
	assertExpectations(t, mock)
}

func TestPostgresProgressRepo_Find_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresProgressRepo(db)

	mock.ExpectQuery(findProgressQuery).WithArgs(99, "alice@example.com").WillReturnError(sql.ErrNoRows)

	got, err := repo.Find(context.Background(), 99, "alice@example.com")
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
	assertExpectations(t, mock)
}

func TestPostgresProgressRepo_ListByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresProgressRepo(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"email", "quiz_id", "status", "updated_at"}).
		AddRow("alice@example.com", 1, "completed", now).
		AddRow("alice@example.com", 2, "not completed", now)
	mock.ExpectQuery(`(?s)^SELECT\s+email,\s*quiz_id,\s*status,\s*updated_at\s+FROM\s+quiz_status\s+WHERE\s+email\s*=\s*\$1\s+ORDER\s+BY\s+quiz_id$`).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	list, err := repo.ListByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("ListByEmail returned error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Status != model.QuizStatusCompleted || list[1].Status != model.QuizStatusNotCompleted {
		t.Errorf("unexpected statuses: %q, %q", list[0].Status, list[1].Status)
	}
	assertExpectations(t, mock)
}

func TestPostgresProgressRepo_Seed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresProgressRepo(db)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+quiz_status\s*\(email,\s*quiz_id,\s*status\)\s*VALUES\s*\(\$1, \$3, \$2\), \(\$1, \$4, \$2\), \(\$1, \$5, \$2\)$`).
		WithArgs("alice@example.com", "not completed", 1, 2, 3).
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := repo.Seed(context.Background(), "alice@example.com", []int{1, 2, 3}, model.QuizStatusNotCompleted)
	if err != nil {
		t.Fatalf("Seed returned error: %v", err)
	}
	assertExpectations(t, mock)
}

func TestPostgresProgressRepo_Seed_EmptyIsNoop(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresProgressRepo(db)

	if err := repo.Seed(context.Background(), "alice@example.com", nil, model.QuizStatusNotCompleted); err != nil {
		t.Fatalf("Seed returned error: %v", err)
	}
	assertExpectations(t, mock)
}

const upsertProgressQuery = `(?s)^INSERT\s+INTO\s+quiz_status\s*\(email,\s*quiz_id,\s*status,\s*updated_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*now\(\)\)\s*ON\s+CONFLICT\s*\(email,\s*quiz_id\)\s*DO\s+UPDATE\s+SET.*status\s*=\s*EXCLUDED\.status`

func TestPostgresProgressRepo_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresProgressRepo(db)

	mock.ExpectExec(upsertProgressQuery).
		WithArgs("alice@example.com", 2, "completed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Upsert(context.Background(), 2, "alice@example.com", model.QuizStatusCompleted); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	assertExpectations(t, mock)
}

func TestPostgresProgressRepo_Upsert_UnknownAccount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresProgressRepo(db)

	mock.ExpectExec(upsertProgressQuery).
		WithArgs("ghost@example.com", 2, "completed").
		WillReturnError(&pq.Error{Code: "23503"})

	err := repo.Upsert(context.Background(), 2, "ghost@example.com", model.QuizStatusCompleted)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	assertExpectations(t, mock)
}
