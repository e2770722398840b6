package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"restaurant-orders/internal/apperr"
)

// IsNotFound - signals that the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsSerialization - signals a serialization failure or deadlock that may succeed on retry.
func IsSerialization(err error) bool {
	var pgerr *pgconn.PgError
	return errors.As(err, &pgerr) && (pgerr.Code == pgerrcode.SerializationFailure || pgerr.Code == pgerrcode.DeadlockDetected)
}

// orderError translates a driver error of an order write into the apperr vocabulary.
// Errors that already carry an apperr sentinel pass through.
func orderError(orderID string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsNotFound(err):
		return fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
	case IsSerialization(err), pgconn.Timeout(err), pgconn.SafeToRetry(err),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("order %s: %w: %w", orderID, apperr.ErrUnavailable, err)
	default:
		return err
	}
}
