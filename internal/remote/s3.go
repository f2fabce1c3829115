package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"bls-go/internal/bls"
	"bls-go/internal/config"
	"bls-go/internal/model"
)

// S3Remote is a direct-to-bucket remote for self-hosted setups: no API
// server, the device itself issues pre-signed URLs against the bucket.
// Layout under the configured prefix:
//
//	objects/<fileKey>                 book files and covers
//	records/books/<hash>.json         catalog records
//	records/configs/<hash>.json       per-book config records
//	records/notes/<hash>.<id>.json    annotation records
//
// Quota is enforced client-side from configured quota_bytes against the
// measured size of objects/, since there is no server to do it.
type S3Remote struct {
	httpTransport
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	bucket   string
	prefix   string
	quota    int64
}

// NewS3Remote builds an S3Remote from config. Static credentials and a
// custom endpoint are optional; without them the default AWS chain is
// used.
func NewS3Remote(ctx context.Context, cfg config.RemoteConfig) (*S3Remote, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 remote requires s3_bucket to be set")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Remote{
		httpTransport: newHTTPTransport(nil),
		client:        client,
		presign:       s3.NewPresignClient(client),
		uploader:      manager.NewUploader(client),
		bucket:        cfg.S3Bucket,
		prefix:        cfg.S3Prefix,
		quota:         cfg.QuotaBytes,
	}, nil
}

func (r *S3Remote) objectKey(fileKey string) string {
	return path.Join(r.prefix, "objects", fileKey)
}

func (r *S3Remote) recordKey(collection, name string) string {
	return path.Join(r.prefix, "records", collection, name+".json")
}

// usage measures the total size of stored objects. Walking the listing
// per upload is acceptable at personal-library scale.
func (r *S3Remote) usage(ctx context.Context) (int64, error) {
	var total int64
	p := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(path.Join(r.prefix, "objects") + "/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("listing objects: %w", err)
		}
		for _, obj := range page.Contents {
			total += aws.ToInt64(obj.Size)
		}
	}
	return total, nil
}

func (r *S3Remote) IssueUpload(ctx context.Context, req bls.UploadRequest) (*bls.UploadTicket, error) {
	var usage int64
	if r.quota > 0 {
		u, err := r.usage(ctx)
		if err != nil {
			return nil, err
		}
		usage = u
		if usage+req.FileSize > r.quota {
			return nil, &bls.QuotaExceededError{Usage: usage, Quota: r.quota, Needed: usage + req.FileSize - r.quota}
		}
	}

	key := r.objectKey(req.BookHash + "/" + req.FileName)
	signed, err := r.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) { o.Expires = presignExpiry })
	if err != nil {
		return nil, fmt.Errorf("presigning upload: %w", err)
	}

	return &bls.UploadTicket{
		UploadURL: signed.URL,
		FileKey:   req.BookHash + "/" + req.FileName,
		Usage:     usage,
		Quota:     r.quota,
	}, nil
}

func (r *S3Remote) IssueDownload(ctx context.Context, fileKey string) (string, error) {
	if _, found, err := r.StatObject(ctx, fileKey); err != nil {
		return "", err
	} else if !found {
		return "", &bls.FileNotFoundError{Key: fileKey}
	}

	signed, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectKey(fileKey)),
	}, func(o *s3.PresignOptions) { o.Expires = presignExpiry })
	if err != nil {
		return "", fmt.Errorf("presigning download: %w", err)
	}
	return signed.URL, nil
}

func (r *S3Remote) StatObject(ctx context.Context, fileKey string) (int64, bool, error) {
	out, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectKey(fileKey)),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("statting %s: %w", fileKey, err)
	}
	return aws.ToInt64(out.ContentLength), true, nil
}

// putRecord stores one record, last-writer-wins against whatever is
// already there.
func (r *S3Remote) putRecord(ctx context.Context, collection, name string, rec any, rev int64) error {
	key := r.recordKey(collection, name)

	if existing, err := r.getRecordRaw(ctx, key); err != nil {
		return err
	} else if existing != nil {
		var probe struct {
			UpdatedAt int64  `json:"updated_at"`
			DeletedAt *int64 `json:"deleted_at"`
		}
		if json.Unmarshal(existing, &probe) == nil {
			existingRev := probe.UpdatedAt
			if probe.DeletedAt != nil && *probe.DeletedAt > existingRev {
				existingRev = *probe.DeletedAt
			}
			if existingRev >= rev {
				return nil
			}
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	_, err = r.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("storing record %s: %w", key, err)
	}
	return nil
}

func (r *S3Remote) getRecordRaw(ctx context.Context, key string) ([]byte, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching record %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", key, err)
	}
	return data, nil
}

// pullRecords lists a collection and hands every stored record to
// decode; the caller filters by record recency.
func (r *S3Remote) pullRecords(ctx context.Context, collection string, decode func(data []byte) error) error {
	p := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(path.Join(r.prefix, "records", collection) + "/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing %s records: %w", collection, err)
		}
		for _, obj := range page.Contents {
			data, err := r.getRecordRaw(ctx, aws.ToString(obj.Key))
			if err != nil {
				return err
			}
			if data == nil {
				continue
			}
			if err := decode(data); err != nil {
				return err
			}
		}
	}
	return nil
}

func recRev(updatedAt int64, deletedAt *int64) int64 {
	if deletedAt != nil && *deletedAt > updatedAt {
		return *deletedAt
	}
	return updatedAt
}

func (r *S3Remote) PushBooks(ctx context.Context, books []model.Book) error {
	for i := range books {
		b := books[i]
		b.DownloadedAt = nil // local-only
		if err := r.putRecord(ctx, "books", b.Hash, &b, recRev(b.UpdatedAt, b.DeletedAt)); err != nil {
			return err
		}
	}
	return nil
}

func (r *S3Remote) PullBooks(ctx context.Context, since int64) ([]model.Book, error) {
	var out []model.Book
	err := r.pullRecords(ctx, "books", func(data []byte) error {
		var b model.Book
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("decoding book record: %w", err)
		}
		if recRev(b.UpdatedAt, b.DeletedAt) > since {
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *S3Remote) PushConfigs(ctx context.Context, configs []model.BookConfig) error {
	for i := range configs {
		c := configs[i]
		if err := r.putRecord(ctx, "configs", c.BookHash, &c, c.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *S3Remote) PullConfigs(ctx context.Context, since int64) ([]model.BookConfig, error) {
	var out []model.BookConfig
	err := r.pullRecords(ctx, "configs", func(data []byte) error {
		var c model.BookConfig
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("decoding config record: %w", err)
		}
		if c.UpdatedAt > since {
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *S3Remote) PushNotes(ctx context.Context, notes []model.BookNote) error {
	for i := range notes {
		n := notes[i]
		if err := r.putRecord(ctx, "notes", n.BookHash+"."+n.ID, &n, recRev(n.UpdatedAt, n.DeletedAt)); err != nil {
			return err
		}
	}
	return nil
}

func (r *S3Remote) PullNotes(ctx context.Context, since int64) ([]model.BookNote, error) {
	var out []model.BookNote
	err := r.pullRecords(ctx, "notes", func(data []byte) error {
		var n model.BookNote
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("decoding note record: %w", err)
		}
		if recRev(n.UpdatedAt, n.DeletedAt) > since {
			out = append(out, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Compile-time check that S3Remote implements bls.Remote
var _ bls.Remote = (*S3Remote)(nil)
