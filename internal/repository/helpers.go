package repository

import (
	"database/sql"
	"errors"
)

// HandleNotFound converts sql.ErrNoRows into a nil result without error.
// Find* lookups use it so that a missing trip, session, or intake reads as
// "not there" rather than a query failure, and callers decide whether that
// deserves a NotFound error.
//
//	var trip model.Trip
//	err := r.db.GetContext(ctx, &trip, query, args...)
//	return HandleNotFound(&trip, err)
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
