package model

import "time"

// QuizStatus はクイズの完了状態を表す。
type QuizStatus string

const (
	// QuizStatusNotCompleted は未完了を示す。登録時に全クイズへシードされる値。
	QuizStatusNotCompleted QuizStatus = "not completed"
	// QuizStatusCompleted は完了済みを示す。
	QuizStatusCompleted QuizStatus = "completed"
	// QuizStatusNotStarted は対応するレコードが存在しない場合に返すセンチネル値。
	// シード値の "not completed" とは区別される。保存はされない。
	QuizStatusNotStarted QuizStatus = "not_started"
)

// IsStorable は永続化可能なステータスかどうかを返す。
// センチネル値 not_started は保存対象外。
func (s QuizStatus) IsStorable() bool {
	switch s {
	case QuizStatusNotCompleted, QuizStatusCompleted:
		return true
	default:
		return false
	}
}

// DefaultQuizIDs は登録時にシードされるクイズIDの既定セット。
var DefaultQuizIDs = []int{1, 2, 3, 4, 5}

// QuizProgress は1アカウント・1クイズの完了状態を表す。
// (Email, QuizID) の組は一意。
type QuizProgress struct {
	Email     string
	QuizID    int
	Status    QuizStatus
	UpdatedAt time.Time
}
