package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound は更新対象の行が存在しないことを示す。
var ErrNotFound = errors.New("record not found")

// ErrDuplicate は一意制約違反を示す。
var ErrDuplicate = errors.New("duplicate record")

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// isUniqueViolation はerrがPostgreSQLの一意制約違反かどうかを返す。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}
