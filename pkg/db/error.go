package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// UniqueIndex names a unique index and the columns it covers, in index
// order. Table and Columns are needed to recognise SQLite violations, which
// report columns instead of the index name.
type UniqueIndex struct {
	Name    string
	Table   string
	Columns []string
}

// IsUniqueViolation reports whether err is a unique violation of idx rather
// than of some other constraint such as the primary key. It needs the raw
// driver error; gorm's translated ErrDuplicatedKey has lost the constraint
// name.
func IsUniqueViolation(err error, idx UniqueIndex) bool {
	if err == nil || idx.Name == "" {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == idx.Name
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "duplicate key value violates unique constraint"):
		return strings.Contains(msg, `"`+idx.Name+`"`)
	case strings.Contains(msg, "Error 1062"):
		// MySQL 8 qualifies the key with the table name.
		return strings.Contains(msg, "key '"+idx.Name+"'") ||
			strings.Contains(msg, "."+idx.Name+"'")
	case strings.Contains(msg, sqliteUniqueFailed):
		return sqliteColumns(msg) == idx.qualifiedColumns()
	}
	return false
}

const sqliteUniqueFailed = "UNIQUE constraint failed: "

// sqliteColumns extracts "t.a, t.b" from "... UNIQUE constraint failed: t.a, t.b (2067)".
func sqliteColumns(msg string) string {
	_, rest, _ := strings.Cut(msg, sqliteUniqueFailed)
	if i := strings.Index(rest, " ("); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(rest)
}

func (idx UniqueIndex) qualifiedColumns() string {
	cols := make([]string, len(idx.Columns))
	for i, col := range idx.Columns {
		cols[i] = idx.Table + "." + col
	}
	return strings.Join(cols, ", ")
}

// IsPostgres reports whether tx talks to PostgreSQL.
func IsPostgres(tx *gorm.DB) bool {
	return tx != nil && tx.Dialector != nil && tx.Dialector.Name() == "postgres"
}

// SupportsRowLocks reports whether SELECT ... FOR UPDATE is understood by
// the dialect behind tx.
func SupportsRowLocks(tx *gorm.DB) bool {
	if tx == nil || tx.Dialector == nil {
		return false
	}
	switch tx.Dialector.Name() {
	case "postgres", "mysql":
		return true
	default:
		return false
	}
}
