// Package ingest implements the inbound webhook pipeline: endpoint lookup,
// signature verification, verification-ping detection and persistence.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aimerfeng/LineHook/internal/logging"
	"github.com/aimerfeng/LineHook/internal/models"
	"github.com/aimerfeng/LineHook/internal/monitoring"
	"github.com/aimerfeng/LineHook/internal/payload"
	"github.com/aimerfeng/LineHook/internal/signature"
	"github.com/google/uuid"
)

// Pipeline errors
var (
	ErrPathMissing      = errors.New("webhook path missing")
	ErrEndpointNotFound = errors.New("webhook endpoint not found")
	ErrSignatureMissing = errors.New("missing LINE signature")
	ErrSignatureInvalid = errors.New("invalid LINE signature")
	ErrStorage          = errors.New("failed to store webhook")
)

// Outcomes reported to logs and metrics
const (
	OutcomeAccepted     = "accepted"
	OutcomeVerification = "verification"
	OutcomeNotFound     = "not_found"
	OutcomeNoSignature  = "missing_signature"
	OutcomeBadSignature = "invalid_signature"
	OutcomeError        = "error"
)

// EndpointFinder resolves active endpoints by path
type EndpointFinder interface {
	FindByPath(ctx context.Context, path string) (*models.Endpoint, error)
}

// LogAppender records accepted webhook calls
type LogAppender interface {
	Append(ctx context.Context, l *models.WebhookLog) error
}

// Request is one inbound webhook call. Body holds the exact bytes received.
type Request struct {
	RequestID string
	Path      string
	Method    string
	Headers   http.Header
	Query     url.Values
	Body      []byte
	ClientIP  string
}

// Result describes an accepted call
type Result struct {
	// Verification is true for a LINE verification ping; nothing was stored
	Verification bool
	LogID        uuid.UUID
	EndpointID   uuid.UUID
}

// Service runs the ingestion pipeline
type Service struct {
	endpoints EndpointFinder
	payloads  payload.Store
	logs      LogAppender
	now       func() time.Time
}

// NewService creates a new ingestion service
func NewService(endpoints EndpointFinder, payloads payload.Store, logs LogAppender) *Service {
	return &Service{
		endpoints: endpoints,
		payloads:  payloads,
		logs:      logs,
		now:       time.Now,
	}
}

// Ingest verifies and stores one webhook call
func (s *Service) Ingest(ctx context.Context, req *Request) (*Result, error) {
	path := strings.Trim(req.Path, "/")
	ep, err := s.Resolve(ctx, path)
	if err != nil {
		outcome := OutcomeNotFound
		if errors.Is(err, ErrStorage) {
			outcome = OutcomeError
		}
		s.record(req, "", path, outcome)
		return nil, err
	}
	endpointID := ep.ID.String()

	sig := req.Headers.Get(signature.Header)
	if sig == "" {
		s.record(req, endpointID, path, OutcomeNoSignature)
		return nil, ErrSignatureMissing
	}
	if !signature.Verify(ep.ChannelSecret, sig, req.Body) {
		s.record(req, endpointID, path, OutcomeBadSignature)
		logging.LogSecurityEvent("invalid_webhook_signature", ep.UserID.String(), req.ClientIP,
			"endpoint "+endpointID)
		return nil, ErrSignatureInvalid
	}

	if isVerificationPing(req.Body) {
		s.record(req, endpointID, path, OutcomeVerification)
		return &Result{Verification: true, EndpointID: ep.ID}, nil
	}

	logID := uuid.New()
	ref, err := s.payloads.Save(ctx, logID, s.snapshot(req))
	if err != nil {
		s.record(req, endpointID, path, OutcomeError)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	entry := &models.WebhookLog{
		ID:         logID,
		EndpointID: ep.ID,
		Method:     req.Method,
		Payload:    ref.Inline,
	}
	if ref.Key != "" {
		entry.LogKey = &ref.Key
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		s.record(req, endpointID, path, OutcomeError)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.record(req, endpointID, path, OutcomeAccepted)
	monitoring.RecordWebhookBody(len(req.Body))

	return &Result{LogID: logID, EndpointID: ep.ID}, nil
}

func (s *Service) record(req *Request, endpointID, path, outcome string) {
	monitoring.RecordWebhook(outcome)
	logging.LogWebhook(req.RequestID, endpointID, path, outcome, len(req.Body))
}

// snapshot captures the request as stored and later shown in the log view
func (s *Service) snapshot(req *Request) *models.WebhookPayload {
	return &models.WebhookPayload{
		Method:    req.Method,
		Headers:   flattenHeaders(req.Headers),
		Body:      snapshotBody(req.Body),
		Query:     flattenQuery(req.Query),
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	}
}

// isVerificationPing reports whether body is a JSON object with an empty
// events array, which LINE sends when a webhook URL is verified
func isVerificationPing(body []byte) bool {
	var ping struct {
		Events *[]json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(body, &ping); err != nil {
		return false
	}
	return ping.Events != nil && len(*ping.Events) == 0
}

// snapshotBody keeps JSON bodies as-is and stores anything else as a JSON string
func snapshotBody(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.Bytes()
		}
	}
	encoded, _ := json.Marshal(string(body))
	return encoded
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	return out
}

func flattenQuery(q url.Values) map[string]string {
	out := make(map[string]string, len(q))
	for name, values := range q {
		out[name] = strings.Join(values, ",")
	}
	return out
}

// Resolve returns the active endpoint for a delivery path, or ErrPathMissing
// or ErrEndpointNotFound
func (s *Service) Resolve(ctx context.Context, rawPath string) (*models.Endpoint, error) {
	path := strings.Trim(rawPath, "/")
	if path == "" {
		return nil, ErrPathMissing
	}

	ep, err := s.endpoints.FindByPath(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if ep == nil {
		return nil, ErrEndpointNotFound
	}
	return ep, nil
}
