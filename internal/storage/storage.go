// Package storage uploads exported PDFs to S3-compatible object storage
// and hands back long-lived signed download URLs. Uploads are best-effort:
// a failed upload degrades the report to inline PDF data instead of
// failing the export.
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const pdfContentType = "application/pdf"

// Options configures the object store connection.
type Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string

	// SignedURLTTL bounds the lifetime of signed download URLs.
	SignedURLTTL time.Duration
}

// PDFStore wraps an S3 bucket holding exported report PDFs.
type PDFStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
	logger  *slog.Logger
}

// NewPDFStore builds a store from static credentials. A custom endpoint
// switches the client to path-style addressing for S3-compatible services
// such as MinIO.
func NewPDFStore(ctx context.Context, opts Options, logger *slog.Logger) (*PDFStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("loading object storage config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &PDFStore{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  opts.Bucket,
		ttl:     opts.SignedURLTTL,
		logger:  logger,
	}, nil
}

// ObjectKey returns the bucket key for a user's export: the owner prefix
// keeps per-user listings cheap, the timestamp keeps repeated exports of
// the same report distinct.
func ObjectKey(userID, title string, at time.Time) string {
	return fmt.Sprintf("%s/%d_%s.pdf", userID, at.UnixMilli(), sanitizeTitle(title))
}

// sanitizeTitle reduces a report title to a key-safe slug.
func sanitizeTitle(title string) string {
	var b strings.Builder

	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
	}

	s := b.String()

	const maxSlug = 50
	if len(s) > maxSlug {
		s = s[:maxSlug]
	}

	if s == "" {
		s = "report"
	}

	return s
}

// decodePayload accepts either raw PDF bytes or a base64 data URI
// ("data:application/pdf;base64,...") and returns the raw bytes.
func decodePayload(payload []byte) ([]byte, error) {
	if !bytes.HasPrefix(payload, []byte("data:")) {
		return payload, nil
	}

	idx := bytes.IndexByte(payload, ',')
	if idx < 0 {
		return nil, fmt.Errorf("malformed data URI payload")
	}

	decoded, err := base64.StdEncoding.DecodeString(string(payload[idx+1:]))
	if err != nil {
		return nil, fmt.Errorf("decoding data URI payload: %w", err)
	}

	return decoded, nil
}

// Upload stores the PDF under key and returns a signed download URL.
// Callers treat any error as "fall back to inline data".
func (s *PDFStore) Upload(ctx context.Context, key string, payload []byte) (string, error) {
	data, err := decodePayload(payload)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(pdfContentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}

	signed, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("signing %s: %w", key, err)
	}

	s.logger.Debug("uploaded pdf", "key", key, "bytes", len(data))

	return signed.URL, nil
}

// Remove deletes the object behind a signed URL. Failures are logged and
// swallowed; an orphaned object costs storage, not correctness.
func (s *PDFStore) Remove(ctx context.Context, signedURL string) {
	key, err := s.keyFromURL(signedURL)
	if err != nil {
		s.logger.Warn("cannot resolve pdf key", "error", err)
		return
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Warn("deleting pdf object failed", "key", key, "error", err)
	}
}

// keyFromURL recovers the object key from a signed URL. Path-style URLs
// carry the bucket as the first path segment; virtual-hosted URLs put it
// in the hostname.
func (s *PDFStore) keyFromURL(signedURL string) (string, error) {
	u, err := url.Parse(signedURL)
	if err != nil {
		return "", fmt.Errorf("parsing signed URL: %w", err)
	}

	path := strings.TrimPrefix(u.Path, "/")
	if path == "" {
		return "", fmt.Errorf("signed URL %q has no object path", u.Host)
	}

	if rest, ok := strings.CutPrefix(path, s.bucket+"/"); ok {
		return rest, nil
	}

	return path, nil
}
