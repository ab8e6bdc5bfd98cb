package models

import (
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

// IsDuplicateKeyErr reports whether err is a MySQL unique-constraint
// violation (ER_DUP_ENTRY).
func IsDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// IsLockConflictErr reports whether err is a MySQL serialization failure:
// a deadlock victim (ER_LOCK_DEADLOCK) or a lock wait timeout
// (ER_LOCK_WAIT_TIMEOUT). Both mean another transaction won the race.
func IsLockConflictErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}
