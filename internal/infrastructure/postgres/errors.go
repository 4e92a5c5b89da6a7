package postgres

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
)

// PostgreSQL のエラーコード
const (
	codeExclusionViolation   = "23P01"
	codeUniqueViolation      = "23505"
	codeInvalidText          = "22P02"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeTooManyConnections   = "53300"
	codeAdminShutdown        = "57P01"
	codeCrashShutdown        = "57P02"
	codeCannotConnectNow     = "57P03"

	constraintNoOverlap      = "reservations_no_overlap"
	constraintIdempotencyKey = "reservations_holder_idempotency_key"
	constraintPlateNumber    = "vehicles_plate_number_key"
)

// classify はドライバーのエラーをドメインのエラーに変換する
//   - 排他制約違反 → ConflictOverlap
//   - 冪等性キーの一意制約違反 → ConflictIdempotency
//   - 接続断・再試行で解消する失敗 → ErrStorageUnavailable
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == codeExclusionViolation:
			return &reservation.ConflictError{Kind: reservation.ConflictOverlap, Err: err}
		case pqErr.Code == codeUniqueViolation && pqErr.Constraint == constraintIdempotencyKey:
			return &reservation.ConflictError{Kind: reservation.ConflictIdempotency, Err: err}
		case pqErr.Code.Class() == "08",
			pqErr.Code == codeSerializationFailure,
			pqErr.Code == codeDeadlockDetected,
			pqErr.Code == codeTooManyConnections,
			pqErr.Code == codeAdminShutdown,
			pqErr.Code == codeCrashShutdown,
			pqErr.Code == codeCannotConnectNow:
			return fmt.Errorf("%w: %v", reservation.ErrStorageUnavailable, err)
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", reservation.ErrStorageUnavailable, err)
	}
	return err
}

func isInvalidText(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeInvalidText
}

func isPlateNumberViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation && pqErr.Constraint == constraintPlateNumber
}
