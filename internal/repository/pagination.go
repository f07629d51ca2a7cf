package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"gorm.io/gorm"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// DefaultPageSize is used when the caller does not ask for a size
const DefaultPageSize = 50

// Page is a normalized page request
type Page struct {
	Number int
	Size   int
}

// NewPage clamps page and size into valid bounds
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// Offset returns the row offset of the page
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Apply adds LIMIT/OFFSET to a query
func (p Page) Apply(query *gorm.DB) *gorm.DB {
	return query.Offset(p.Offset()).Limit(p.Size)
}

// conn returns tx when a transaction is in progress, otherwise the base handle
func conn(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

// IsUniqueViolation reports whether err is a unique constraint violation on
// PostgreSQL or SQLite
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// IsNotFound reports whether err means no row matched
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// transientMarkers are driver messages for failures that may clear on retry:
// lock contention, serialization failures and lost connections
var transientMarkers = []string{
	"database is locked",
	"database table is locked",
	"connection refused",
	"connection reset",
	"broken pipe",
	"bad connection",
	"i/o timeout",
	"SQLSTATE 40001",
	"SQLSTATE 40P01",
	"SQLSTATE 53300",
	"SQLSTATE 55P03",
	"SQLSTATE 57P01",
	"SQLSTATE 08",
}

// IsTransient reports whether a storage error may go away on retry
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
