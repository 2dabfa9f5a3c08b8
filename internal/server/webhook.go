package server

import (
	"errors"
	"io"
	"net/http"

	apierrors "github.com/aimerfeng/LineHook/internal/errors"
	"github.com/aimerfeng/LineHook/internal/ingest"
	"github.com/aimerfeng/LineHook/internal/middleware"
	"github.com/gin-gonic/gin"
)

// MaxWebhookBodyBytes caps a single inbound webhook body
const MaxWebhookBodyBytes = 1 << 20

// handleWebhook receives a LINE delivery. The body is read raw so the
// signature is checked against the exact bytes LINE signed.
func (s *APIServer) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			respondError(c, apierrors.NewInvalidRequestError("Invalid request body"))
			return
		}
		// An unknown path is reported before the body size
		if _, err := s.ingest.Resolve(c.Request.Context(), c.Param("path")); err != nil {
			respondIngestError(c, err)
			return
		}
		respondError(c, apierrors.NewValidationError("Request body too large"))
		return
	}

	result, err := s.ingest.Ingest(c.Request.Context(), &ingest.Request{
		RequestID: middleware.GetRequestIDFromContext(c),
		Path:      c.Param("path"),
		Method:    c.Request.Method,
		Headers:   c.Request.Header,
		Query:     c.Request.URL.Query(),
		Body:      body,
		ClientIP:  c.ClientIP(),
	})
	if err != nil {
		respondIngestError(c, err)
		return
	}

	if result.Verification {
		c.JSON(http.StatusOK, gin.H{"message": "Verification successful"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Webhook received"})
}

func respondIngestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ingest.ErrPathMissing), errors.Is(err, ingest.ErrEndpointNotFound):
		respondError(c, apierrors.ErrWebhookNotFoundError)
	case errors.Is(err, ingest.ErrSignatureMissing):
		respondError(c, apierrors.ErrMissingSignatureError)
	case errors.Is(err, ingest.ErrSignatureInvalid):
		respondError(c, apierrors.ErrInvalidSignatureError)
	default:
		respondInternal(c, err, "ingest_webhook", apierrors.ErrInternalServerError.Message)
	}
}
