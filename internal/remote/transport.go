package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// presignExpiry is how long issued upload/download URLs stay valid.
const presignExpiry = 1800 * time.Second

// progressReader reports byte counts to fn as they pass through.
type progressReader struct {
	r  io.Reader
	fn func(n int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.fn != nil {
		p.fn(int64(n))
	}
	return n, err
}

// httpTransport moves bytes against pre-signed object-store URLs. The
// API and S3 remotes share it: once a URL is issued, the transfer itself
// is plain HTTP either way.
type httpTransport struct {
	client *http.Client
}

func newHTTPTransport(client *http.Client) httpTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return httpTransport{client: client}
}

// Put uploads size bytes from r to url with a single PUT.
func (t httpTransport) Put(ctx context.Context, url string, r io.Reader, size int64, progress func(n int64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, &progressReader{r: r, fn: progress})
	if err != nil {
		return fmt.Errorf("building upload request: %w", err)
	}
	req.ContentLength = size

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("uploading to object store: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("object store rejected upload: %s", resp.Status)
	}
	return nil
}

// Get downloads the object behind url into w.
func (t httpTransport) Get(ctx context.Context, url string, w io.Writer, progress func(n int64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building download request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading from object store: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("object store rejected download: %s", resp.Status)
	}

	if _, err := io.Copy(w, &progressReader{r: resp.Body, fn: progress}); err != nil {
		return fmt.Errorf("reading object body: %w", err)
	}
	return nil
}
