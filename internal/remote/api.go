package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"bls-go/internal/bls"
	"bls-go/internal/model"
)

// quotaExceededMessage is the literal error string the API uses to
// distinguish a quota refusal from an authentication failure; both come
// back as 403.
const quotaExceededMessage = "storage quota exceeded"

// APIRemote talks to the sync service's HTTP control plane:
//
//	POST /storage/upload            -> {uploadUrl, fileKey, usage, quota}
//	GET  /storage/download?fileKey= -> {downloadUrl}
//	POST /sync/<collection>         push changed records
//	GET  /sync/<collection>?since=  pull records newer than since
//
// Issued URLs are pre-signed and time-limited; the byte transfer runs
// against them directly, not against the API.
type APIRemote struct {
	httpTransport
	baseURL   string
	tokenPath string
}

// NewAPIRemote creates an APIRemote. tokenPath is the bearer-token file
// written by `bls login`; the token is re-read per request so a re-login
// takes effect without restarting.
func NewAPIRemote(baseURL, tokenPath string, client *http.Client) *APIRemote {
	return &APIRemote{
		httpTransport: newHTTPTransport(client),
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		tokenPath:     tokenPath,
	}
}

func (a *APIRemote) token() (string, error) {
	data, err := os.ReadFile(a.tokenPath)
	if err != nil {
		return "", &bls.NotAuthenticatedError{Err: fmt.Errorf("no token at %s, run `bls login`", a.tokenPath)}
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", &bls.NotAuthenticatedError{Err: fmt.Errorf("empty token at %s", a.tokenPath)}
	}
	return tok, nil
}

// call performs one authorized API request and decodes a JSON response
// into out. Error responses are mapped onto the error taxonomy.
func (a *APIRemote) call(ctx context.Context, method, path string, body any, out any) error {
	tok, err := a.token()
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s response: %w", path, err)
		}
		return nil
	}

	var apiErr struct {
		Error string `json:"error"`
		Usage int64  `json:"usage"`
		Quota int64  `json:"quota"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)

	switch resp.StatusCode {
	case http.StatusForbidden:
		if apiErr.Error == quotaExceededMessage {
			return &bls.QuotaExceededError{Usage: apiErr.Usage, Quota: apiErr.Quota}
		}
		return &bls.NotAuthenticatedError{Err: fmt.Errorf("%s", apiErr.Error)}
	case http.StatusNotFound:
		return &bls.FileNotFoundError{Key: path}
	default:
		return fmt.Errorf("%s failed with %s: %s", path, resp.Status, apiErr.Error)
	}
}

func (a *APIRemote) IssueUpload(ctx context.Context, req bls.UploadRequest) (*bls.UploadTicket, error) {
	body := map[string]any{
		"fileName": req.FileName,
		"fileSize": req.FileSize,
		"bookHash": req.BookHash,
	}
	var out struct {
		UploadURL string `json:"uploadUrl"`
		FileKey   string `json:"fileKey"`
		Usage     int64  `json:"usage"`
		Quota     int64  `json:"quota"`
	}
	if err := a.call(ctx, http.MethodPost, "/storage/upload", body, &out); err != nil {
		return nil, err
	}
	return &bls.UploadTicket{UploadURL: out.UploadURL, FileKey: out.FileKey, Usage: out.Usage, Quota: out.Quota}, nil
}

func (a *APIRemote) IssueDownload(ctx context.Context, fileKey string) (string, error) {
	var out struct {
		DownloadURL string `json:"downloadUrl"`
	}
	path := "/storage/download?fileKey=" + url.QueryEscape(fileKey)
	if err := a.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		var nf *bls.FileNotFoundError
		if errors.As(err, &nf) {
			return "", &bls.FileNotFoundError{Key: fileKey}
		}
		return "", err
	}
	return out.DownloadURL, nil
}

// StatObject resolves a download URL and HEADs it: the API has no
// dedicated stat endpoint.
func (a *APIRemote) StatObject(ctx context.Context, fileKey string) (int64, bool, error) {
	u, err := a.IssueDownload(ctx, fileKey)
	if err != nil {
		var nf *bls.FileNotFoundError
		if errors.As(err, &nf) {
			return 0, false, nil
		}
		return 0, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return 0, false, fmt.Errorf("building stat request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("statting object: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return 0, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("stat failed: %s", resp.Status)
	}
	size, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	return size, true, nil
}

func (a *APIRemote) PushBooks(ctx context.Context, books []model.Book) error {
	return a.call(ctx, http.MethodPost, "/sync/books", books, nil)
}

func (a *APIRemote) PullBooks(ctx context.Context, since int64) ([]model.Book, error) {
	var out []model.Book
	if err := a.call(ctx, http.MethodGet, "/sync/books?since="+strconv.FormatInt(since, 10), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *APIRemote) PushConfigs(ctx context.Context, configs []model.BookConfig) error {
	return a.call(ctx, http.MethodPost, "/sync/configs", configs, nil)
}

func (a *APIRemote) PullConfigs(ctx context.Context, since int64) ([]model.BookConfig, error) {
	var out []model.BookConfig
	if err := a.call(ctx, http.MethodGet, "/sync/configs?since="+strconv.FormatInt(since, 10), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *APIRemote) PushNotes(ctx context.Context, notes []model.BookNote) error {
	return a.call(ctx, http.MethodPost, "/sync/notes", notes, nil)
}

func (a *APIRemote) PullNotes(ctx context.Context, since int64) ([]model.BookNote, error) {
	var out []model.BookNote
	if err := a.call(ctx, http.MethodGet, "/sync/notes?since="+strconv.FormatInt(since, 10), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Compile-time check that APIRemote implements bls.Remote
var _ bls.Remote = (*APIRemote)(nil)
