package bls

import "bls-go/internal/model"

// OperationLog records the outcome of long-running library operations so
// `bls log` can show what a device did and when. Implementations live in
// internal/database.
type OperationLog interface {
	// Record appends one finished operation. A missing ID is filled in
	// by the implementation.
	Record(op model.Operation) error

	// List returns the most recent operations, newest first, up to
	// limit. limit <= 0 means no limit.
	List(limit int) ([]model.Operation, error)

	Close() error
}
