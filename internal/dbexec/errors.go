package dbexec

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// MySQL error codes for access denied scenarios.
const (
	mysqlErrDBAccessDenied     = 1044 // Access denied for user to database
	mysqlErrTableAccessDenied  = 1142 // command denied to user for table
	mysqlErrColumnAccessDenied = 1143 // command denied to user for column
)

// ErrAccessDenied replaces driver-specific permission errors.
var ErrAccessDenied = errors.New("access denied")

// ExecutorError wraps a failure reported by the backing store.
type ExecutorError struct {
	Op    string
	Table string
	Err   error
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *ExecutorError) Unwrap() error {
	return e.Err
}

func wrapError(op, table string, err error) error {
	if err == nil {
		return nil
	}
	return &ExecutorError{Op: op, Table: table, Err: normalizeQueryError(err)}
}

func normalizeQueryError(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrDBAccessDenied, mysqlErrTableAccessDenied, mysqlErrColumnAccessDenied:
			return ErrAccessDenied
		}
	}
	return err
}
