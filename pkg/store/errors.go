package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrConstraint is wrapped into upsert errors caused by an integrity constraint.
var ErrConstraint = errors.New("constraint violation")

// sqliteConstraint is SQLITE_CONSTRAINT; extended codes keep it in the low byte.
const sqliteConstraint = 19

// IsConstraintViolation reports whether err is an integrity constraint
// violation (Postgres SQLSTATE class 23, SQLite SQLITE_CONSTRAINT, or gorm's
// translated equivalents).
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) || errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "23")
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code()&0xff == sqliteConstraint
	}
	return false
}

// errorClass labels a failed upsert for metrics.
func errorClass(err error) string {
	if IsConstraintViolation(err) {
		return "constraint"
	}
	return "other"
}
