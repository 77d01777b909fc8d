package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"canvasdesk/internal/domain"
)

// backendName is reported in BackendUnavailableError.
const backendName = "remote"

// IsPgDuplicateError checks if error is a unique constraint violation
func IsPgDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23505 = unique_violation
		return pgErr.Code == "23505"
	}
	return false
}

// IsPgNoRowsError checks if error is a "no rows" error
func IsPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsPgForeignKeyError checks if error is a foreign key violation
func IsPgForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23503 = foreign_key_violation
		return pgErr.Code == "23503"
	}
	return false
}

// IsUnavailableError reports whether err means the database cannot serve
// requests at all: the connection failed or dropped, the server is shutting
// down or out of resources, or the schema is missing.
func IsUnavailableError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection_exception
			return true
		case strings.HasPrefix(pgErr.Code, "53"): // insufficient_resources
			return true
		case strings.HasPrefix(pgErr.Code, "57P"): // admin/crash shutdown, cannot_connect_now
			return true
		case pgErr.Code == "42P01", pgErr.Code == "42883", pgErr.Code == "3D000":
			// undefined_table, undefined_function, invalid_catalog_name
			return true
		}
		return false
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// unavailable wraps err as BackendUnavailable.
func unavailable(op string, err error) error {
	return &domain.BackendUnavailableError{Backend: backendName, Op: op, Err: err}
}

// wrapErr classifies a query error: unavailability becomes
// BackendUnavailable, anything else is wrapped with the operation name.
func wrapErr(op string, err error) error {
	if IsUnavailableError(err) {
		return unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
