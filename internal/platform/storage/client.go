package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const defaultUploadExpiry = 15 * time.Minute

var (
	errNoSigner          = errors.New("storage: signer is required")
	errInvalidBucket     = errors.New("storage: bucket name is required")
	errInvalidObject     = errors.New("storage: object name is required")
	errUploadRequired    = errors.New("storage: upload options are required")
	errMethodNotAllowed  = errors.New("storage: HTTP method not allowed for uploads")
	errContentTypeEmpty  = errors.New("storage: content type is required for uploads")
	errContentTypeDenied = errors.New("storage: content type not allowed")
)

// Client issues signed upload URLs for Cloud Storage objects using a Signer.
type Client struct {
	signer Signer
	scheme storage.SigningScheme
	now    func() time.Time
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewClient constructs a signed URL client. The signer must carry a
// service account email, otherwise the Cloud Storage library cannot
// attribute the signature.
func NewClient(signer Signer, opts ...ClientOption) (*Client, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}
	client := &Client{
		signer: signer,
		scheme: storage.SigningSchemeV4,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// SignedURLOptions capture configuration for a signed URL request.
type SignedURLOptions struct {
	Upload *UploadOptions
}

// UploadOptions control upload-specific validation.
type UploadOptions struct {
	Method              string
	ContentType         string
	AllowedContentTypes []string
	ExpiresIn           time.Duration
}

// SignedURLResult describes the generated signed URL details.
type SignedURLResult struct {
	URL       string
	Method    string
	ExpiresAt time.Time
	Headers   map[string]string
}

// SignedURL creates a signed upload URL for the given bucket and object.
func (c *Client) SignedURL(ctx context.Context, bucket, object string, opts SignedURLOptions) (SignedURLResult, error) {
	if c == nil {
		return SignedURLResult{}, errNoSigner
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return SignedURLResult{}, errInvalidBucket
	}
	if object = strings.TrimSpace(object); object == "" {
		return SignedURLResult{}, errInvalidObject
	}
	upload := opts.Upload
	if upload == nil {
		return SignedURLResult{}, errUploadRequired
	}

	method, err := uploadMethod(upload.Method)
	if err != nil {
		return SignedURLResult{}, err
	}
	contentType := strings.TrimSpace(upload.ContentType)
	if contentType == "" {
		return SignedURLResult{}, errContentTypeEmpty
	}
	if len(upload.AllowedContentTypes) > 0 && !contentTypeAllowed(contentType, upload.AllowedContentTypes) {
		return SignedURLResult{}, errContentTypeDenied
	}

	expiry := upload.ExpiresIn
	if expiry <= 0 {
		expiry = defaultUploadExpiry
	}
	expiresAt := c.now().Add(expiry)

	signed, err := storage.SignedURL(bucket, object, &storage.SignedURLOptions{
		GoogleAccessID: c.signer.Email(),
		Scheme:         c.scheme,
		Method:         method,
		ContentType:    contentType,
		Expires:        expiresAt,
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	})
	if err != nil {
		return SignedURLResult{}, fmt.Errorf("storage: sign upload url: %w", err)
	}

	return SignedURLResult{
		URL:       signed,
		Method:    method,
		ExpiresAt: expiresAt,
		Headers:   map[string]string{"Content-Type": contentType},
	}, nil
}

func uploadMethod(method string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(method)) {
	case "", "PUT":
		return "PUT", nil
	case "POST":
		return "POST", nil
	default:
		return "", errMethodNotAllowed
	}
}

// contentTypeAllowed honours exact matches and trailing wildcards such
// as "image/*".
func contentTypeAllowed(contentType string, allowed []string) bool {
	got := strings.ToLower(strings.TrimSpace(contentType))
	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
		case entry == "*":
			return true
		case strings.HasSuffix(entry, "/*"):
			if strings.HasPrefix(got, strings.TrimSuffix(entry, "*")) {
				return true
			}
		case got == entry:
			return true
		}
	}
	return false
}
