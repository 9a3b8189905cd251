package sqlcat

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alexanderjulianmartinez/dsroute/internal/backend"
)

// classify maps driver errors onto backend error codes. Cancellation of
// ctx is returned unchanged so callers can tell it apart from a backend fault.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return ctxErr
		}
		return backend.NewError(backend.CodeTimeout, err)
	}
	if errors.Is(err, driver.ErrBadConn) {
		return backend.NewError(backend.CodeUnavailable, err)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1044, 1045, 1142, 1143:
			return backend.NewError(backend.CodePermissionDenied, err)
		case 1040, 1203, 1226:
			return backend.NewError(backend.CodeRateLimited, err)
		case 1046, 1049, 1146:
			return backend.NewError(backend.CodeNotFound, err)
		case 1205, 1213:
			return backend.NewError(backend.CodeUnavailable, err)
		}
		return backend.NewError(backend.CodeInvalidRequest, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42501" || strings.HasPrefix(pgErr.Code, "28"):
			return backend.NewError(backend.CodePermissionDenied, err)
		case pgErr.Code == "53300":
			return backend.NewError(backend.CodeRateLimited, err)
		case pgErr.Code == "42P01":
			return backend.NewError(backend.CodeNotFound, err)
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"), strings.HasPrefix(pgErr.Code, "40"):
			return backend.NewError(backend.CodeUnavailable, err)
		}
		return backend.NewError(backend.CodeInvalidRequest, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return backend.NewError(backend.CodeTimeout, err)
		}
		return backend.NewError(backend.CodeUnavailable, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "connection refused"):
		return backend.NewError(backend.CodeUnavailable, err)
	case strings.Contains(msg, "no such table"):
		return backend.NewError(backend.CodeNotFound, err)
	case strings.Contains(msg, "access denied"), strings.Contains(msg, "permission denied"):
		return backend.NewError(backend.CodePermissionDenied, err)
	}
	return backend.NewError(backend.CodeInvalidRequest, err)
}
