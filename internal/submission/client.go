// Package submission uploads a finalized recording to the dashboard API.
//
// The client performs exactly one request per Submit call. Retrying is left
// to the caller, which re-invokes Submit from the review step.
package submission

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/UtsahaJoshi/The-New-Hires/internal/config"
	"github.com/UtsahaJoshi/The-New-Hires/internal/identity"
	"github.com/UtsahaJoshi/The-New-Hires/internal/logging"
	"github.com/UtsahaJoshi/The-New-Hires/internal/recording"
	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
)

const (
	headerRequestID  = "X-Request-ID"
	userIDParam      = "user_id"
	maxErrorBodySize = 512
)

// Receipt acknowledges an accepted submission.
type Receipt struct {
	StatusCode  int
	RequestID   string
	Body        string
	SubmittedAt time.Time
}

// Client hands an artifact and identifier to the upload endpoint. Failures
// match services.ErrSubmissionFailed.
type Client interface {
	Submit(ctx context.Context, artifact *recording.Artifact, id identity.ID) (Receipt, error)
}

// HTTPClient posts the artifact as a multipart form.
type HTTPClient struct {
	rest       *resty.Client
	uploadPath string
	fieldName  string
	logger     *slog.Logger
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient routes requests through hc while keeping base URL, token
// and timeout settings.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil && hc.Transport != nil {
			c.rest.SetTransport(hc.Transport)
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *HTTPClient) {
		c.logger = logging.NewComponentLogger(logger, "submission")
		c.rest.SetLogger(restyLogger{logger: c.logger})
	}
}

// New builds an HTTPClient from the submission section of cfg.
func New(cfg *config.Config, opts ...Option) *HTTPClient {
	sub := cfg.Submission
	rest := resty.New().
		SetBaseURL(strings.TrimRight(sub.BaseURL, "/")).
		SetTimeout(cfg.SubmissionTimeout()).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if token := strings.TrimSpace(sub.APIToken); token != "" {
		rest.SetAuthToken(token)
	}

	client := &HTTPClient{
		rest:       rest,
		uploadPath: sub.UploadPath,
		fieldName:  sub.FieldName,
		logger:     logging.NewComponentLogger(nil, "submission"),
	}
	rest.SetLogger(restyLogger{logger: client.logger})
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// FileName is the upload file name for a user's recording.
func FileName(id identity.ID, contentType string) string {
	return fmt.Sprintf("retro_%s.%s", id, extensionFor(contentType))
}

func extensionFor(contentType string) string {
	_, subtype, ok := strings.Cut(contentType, "/")
	if !ok {
		return "webm"
	}
	subtype, _, _ = strings.Cut(subtype, ";")
	subtype = strings.TrimSpace(subtype)
	if subtype == "" {
		return "webm"
	}
	return subtype
}

// Submit uploads artifact for id.
func (c *HTTPClient) Submit(ctx context.Context, artifact *recording.Artifact, id identity.ID) (Receipt, error) {
	if artifact.Empty() {
		return Receipt{}, services.Wrap(services.ErrEmptyArtifact, "submission", "upload", "nothing to upload", nil)
	}
	if strings.TrimSpace(string(id)) == "" {
		return Receipt{}, services.Wrap(services.ErrMissingIdentifier, "submission", "upload", "no user identifier", nil)
	}

	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	logger := logging.WithContext(ctx, c.logger)

	started := time.Now()
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader(headerRequestID, requestID).
		SetQueryParam(userIDParam, string(id)).
		SetMultipartField(c.fieldName, FileName(id, artifact.ContentType()), artifact.ContentType(), artifact.Reader()).
		Post(c.uploadPath)
	if err != nil {
		return Receipt{}, services.Wrap(services.ErrSubmissionFailed, "submission", "upload", "request failed", err)
	}

	body := strings.TrimSpace(resp.String())
	if !resp.IsSuccess() {
		return Receipt{}, services.Wrap(services.ErrSubmissionFailed, "submission", "upload",
			fmt.Sprintf("server returned %d: %s", resp.StatusCode(), truncate(body, maxErrorBodySize)), nil)
	}

	logger.Info("recording uploaded",
		logging.String(logging.FieldEventType, "submission_accepted"),
		logging.String(logging.FieldCorrelationID, requestID),
		logging.Int("status", resp.StatusCode()),
		logging.Int("bytes", artifact.Size()),
		logging.Duration("elapsed", time.Since(started)),
	)
	return Receipt{
		StatusCode:  resp.StatusCode(),
		RequestID:   requestID,
		Body:        body,
		SubmittedAt: time.Now(),
	}, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
