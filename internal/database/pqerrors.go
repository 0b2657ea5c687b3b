package database

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQLのSQLSTATEコード
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeForeignKeyViolation  = "23503"
)

// IsUniqueViolation は一意制約違反（23505）かどうかを判定する。
func IsUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// IsSerializationFailure はSERIALIZABLE分離レベルでの直列化失敗（40001）かどうかを判定する。
func IsSerializationFailure(err error) bool {
	return hasCode(err, codeSerializationFailure)
}

func hasCode(err error, code string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}
	return false
}

// IsForeignKeyViolation は外部キー制約違反（23503）かどうかを判定する。
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}
