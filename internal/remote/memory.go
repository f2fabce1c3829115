package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"bls-go/internal/bls"
	"bls-go/internal/model"
)

// MemoryRemote keeps objects and sync records in maps. It exists for
// tests and for running the tool against no real backend; it enforces
// the configured quota the same way a server would so quota handling
// can be exercised without one.
type MemoryRemote struct {
	mu      sync.RWMutex
	objects map[string][]byte
	books   map[string]model.Book
	configs map[string]model.BookConfig
	notes   map[string]model.BookNote
	quota   int64

	// Usage, when set, overrides the measured object total. Lets tests
	// start an account near its quota without storing real bytes.
	Usage int64

	// Errs injects a failure by operation name ("PushNotes",
	// "PullConfigs", ...). The named operation returns the error and
	// does nothing else.
	Errs map[string]error
}

func NewMemoryRemote(quota int64) *MemoryRemote {
	return &MemoryRemote{
		objects: make(map[string][]byte),
		books:   make(map[string]model.Book),
		configs: make(map[string]model.BookConfig),
		notes:   make(map[string]model.BookNote),
		quota:   quota,
	}
}

func (r *MemoryRemote) failure(op string) error {
	if err, ok := r.Errs[op]; ok {
		return err
	}
	return nil
}

func (r *MemoryRemote) usage() int64 {
	if r.Usage > 0 {
		return r.Usage
	}
	var total int64
	for _, data := range r.objects {
		total += int64(len(data))
	}
	return total
}

// ObjectSize reports a stored object's size, for assertions.
func (r *MemoryRemote) ObjectSize(fileKey string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.objects[fileKey]
	return int64(len(data)), ok
}

// SeedObject stores an object directly, bypassing tickets.
func (r *MemoryRemote) SeedObject(fileKey string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[fileKey] = append([]byte(nil), data...)
}

func (r *MemoryRemote) IssueUpload(ctx context.Context, req bls.UploadRequest) (*bls.UploadTicket, error) {
	if err := r.failure("IssueUpload"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	usage := r.usage()
	if r.quota > 0 && usage+req.FileSize > r.quota {
		return nil, &bls.QuotaExceededError{Usage: usage, Quota: r.quota, Needed: usage + req.FileSize - r.quota}
	}
	fileKey := req.BookHash + "/" + req.FileName
	return &bls.UploadTicket{
		UploadURL: "mem://upload/" + fileKey,
		FileKey:   fileKey,
		Usage:     usage,
		Quota:     r.quota,
	}, nil
}

func (r *MemoryRemote) IssueDownload(ctx context.Context, fileKey string) (string, error) {
	if err := r.failure("IssueDownload"); err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.objects[fileKey]; !ok {
		return "", &bls.FileNotFoundError{Key: fileKey}
	}
	return "mem://download/" + fileKey, nil
}

func (r *MemoryRemote) StatObject(ctx context.Context, fileKey string) (int64, bool, error) {
	if err := r.failure("StatObject"); err != nil {
		return 0, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.objects[fileKey]
	return int64(len(data)), ok, nil
}

func (r *MemoryRemote) Put(ctx context.Context, url string, reader io.Reader, size int64, progress func(n int64)) error {
	if err := r.failure("Put"); err != nil {
		return err
	}
	fileKey, ok := strings.CutPrefix(url, "mem://upload/")
	if !ok {
		return fmt.Errorf("unexpected upload url %q", url)
	}
	var buf bytes.Buffer
	src := io.Reader(reader)
	if progress != nil {
		src = &progressReader{r: reader, fn: progress}
	}
	if _, err := io.Copy(&buf, src); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[fileKey] = buf.Bytes()
	return nil
}

func (r *MemoryRemote) Get(ctx context.Context, url string, w io.Writer, progress func(n int64)) error {
	if err := r.failure("Get"); err != nil {
		return err
	}
	fileKey, ok := strings.CutPrefix(url, "mem://download/")
	if !ok {
		return fmt.Errorf("unexpected download url %q", url)
	}
	r.mu.RLock()
	data, present := r.objects[fileKey]
	r.mu.RUnlock()
	if !present {
		return &bls.FileNotFoundError{Key: fileKey}
	}
	src := io.Reader(bytes.NewReader(data))
	if progress != nil {
		src = &progressReader{r: src, fn: progress}
	}
	_, err := io.Copy(w, src)
	return err
}

func (r *MemoryRemote) PushBooks(ctx context.Context, books []model.Book) error {
	if err := r.failure("PushBooks"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range books {
		b.DownloadedAt = nil
		if cur, ok := r.books[b.Hash]; !ok || recRev(b.UpdatedAt, b.DeletedAt) >= recRev(cur.UpdatedAt, cur.DeletedAt) {
			r.books[b.Hash] = b
		}
	}
	return nil
}

func (r *MemoryRemote) PullBooks(ctx context.Context, since int64) ([]model.Book, error) {
	if err := r.failure("PullBooks"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Book
	for _, b := range r.books {
		if recRev(b.UpdatedAt, b.DeletedAt) > since {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *MemoryRemote) PushConfigs(ctx context.Context, configs []model.BookConfig) error {
	if err := r.failure("PushConfigs"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range configs {
		if cur, ok := r.configs[c.BookHash]; !ok || c.UpdatedAt >= cur.UpdatedAt {
			r.configs[c.BookHash] = c
		}
	}
	return nil
}

func (r *MemoryRemote) PullConfigs(ctx context.Context, since int64) ([]model.BookConfig, error) {
	if err := r.failure("PullConfigs"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.BookConfig
	for _, c := range r.configs {
		if c.UpdatedAt > since {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *MemoryRemote) PushNotes(ctx context.Context, notes []model.BookNote) error {
	if err := r.failure("PushNotes"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range notes {
		key := n.BookHash + "." + n.ID
		if cur, ok := r.notes[key]; !ok || recRev(n.UpdatedAt, n.DeletedAt) >= recRev(cur.UpdatedAt, cur.DeletedAt) {
			r.notes[key] = n
		}
	}
	return nil
}

func (r *MemoryRemote) PullNotes(ctx context.Context, since int64) ([]model.BookNote, error) {
	if err := r.failure("PullNotes"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.BookNote
	for _, n := range r.notes {
		if recRev(n.UpdatedAt, n.DeletedAt) > since {
			out = append(out, n)
		}
	}
	return out, nil
}

var _ bls.Remote = (*MemoryRemote)(nil)
