package bls

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so merge and transfer logic is
// deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// millis converts a time to the epoch-millisecond representation used
// across all persisted records.
func millis(t time.Time) int64 { return t.UnixMilli() }
