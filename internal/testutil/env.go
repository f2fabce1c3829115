package testutil

import (
	"testing"

	"bls-go/internal/bls"
	"bls-go/internal/doc"
	"bls-go/internal/encryption"
	"bls-go/internal/remote"
	"bls-go/internal/store"
)

// Env is a fully wired in-memory library for service-level tests.
type Env struct {
	Service *bls.LibraryService
	Store   bls.ContentStore
	Remote  *remote.MemoryRemote
	Clock   *StubClock
	IDs     *StubIDGenerator
}

// NewEnv creates an Env with no quota limit.
func NewEnv(t *testing.T) *Env {
	return NewEnvQuota(t, 0)
}

// NewEnvQuota creates an Env whose remote enforces the given quota in bytes.
func NewEnvQuota(t *testing.T, quota int64) *Env {
	return NewEnvWithRemote(t, remote.NewMemoryRemote(quota))
}

// NewEnvWithRemote creates an Env against an existing remote, for tests
// that sync several devices through one cloud side.
func NewEnvWithRemote(t *testing.T, rem *remote.MemoryRemote) *Env {
	t.Helper()

	st := store.NewMemoryStore()
	clock := FixedClock()
	ids := NewStubIDGenerator()

	catalog, err := bls.LoadCatalog(st, bls.NewNopLogger())
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}

	svc := bls.NewLibraryService(
		st, rem, doc.NewLoader(), encryption.NoneEncryptor{},
		bls.NewNopLogger(), clock, ids, bls.DefaultReaderDefaults(), catalog,
	)

	return &Env{Service: svc, Store: st, Remote: rem, Clock: clock, IDs: ids}
}
