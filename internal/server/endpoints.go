package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aimerfeng/LineHook/internal/endpoint"
	apierrors "github.com/aimerfeng/LineHook/internal/errors"
	"github.com/aimerfeng/LineHook/internal/middleware"
	"github.com/aimerfeng/LineHook/internal/models"
	"github.com/aimerfeng/LineHook/internal/webhooklog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var errEndpointIDRequired = apierrors.NewValidationError("Endpoint ID required")

// CreateEndpointRequest is the body of POST /endpoints
type CreateEndpointRequest struct {
	LineChannelSecret string `json:"lineChannelSecret"`
	Description       string `json:"description"`
}

// DeleteEndpointRequest is the body of DELETE /endpoints
type DeleteEndpointRequest struct {
	ID string `json:"id"`
}

func (s *APIServer) handleListEndpoints(c *gin.Context) {
	endpoints, err := s.endpoints.ListByOwner(c.Request.Context(), middleware.GetUserIDFromContext(c))
	if err != nil {
		respondInternal(c, err, "list_endpoints", "Failed to fetch endpoints")
		return
	}
	if endpoints == nil {
		endpoints = []models.Endpoint{}
	}

	c.JSON(http.StatusOK, gin.H{"endpoints": endpoints})
}

func (s *APIServer) handleCreateEndpoint(c *gin.Context) {
	var req CreateEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(endpoint.ErrChannelSecretRequired.Error()))
		return
	}

	ep, err := s.endpoints.Create(c.Request.Context(), middleware.GetUserIDFromContext(c),
		req.LineChannelSecret, req.Description)
	if err != nil {
		if errors.Is(err, endpoint.ErrChannelSecretRequired) {
			respondError(c, apierrors.NewValidationError(err.Error()))
			return
		}
		respondInternal(c, err, "create_endpoint", "Failed to create endpoint")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"endpoint": ep})
}

// handleDeleteEndpoint never reveals whether the id exists or who owns it
func (s *APIServer) handleDeleteEndpoint(c *gin.Context) {
	var req DeleteEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ID) == "" {
		respondError(c, errEndpointIDRequired)
		return
	}

	// A malformed id cannot belong to the caller, so deleting it is a no-op
	if id, err := uuid.Parse(req.ID); err == nil {
		if err := s.endpoints.Delete(c.Request.Context(), id, middleware.GetUserIDFromContext(c)); err != nil {
			respondInternal(c, err, "delete_endpoint", "Failed to delete endpoint")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Endpoint deleted"})
}

func (s *APIServer) handleListLogs(c *gin.Context) {
	raw := c.Query("endpointId")
	if raw == "" {
		respondError(c, errEndpointIDRequired)
		return
	}

	endpointID, err := uuid.Parse(raw)
	if err != nil {
		respondError(c, apierrors.ErrForbiddenError)
		return
	}

	entries, err := s.logs.List(c.Request.Context(), endpointID, middleware.GetUserIDFromContext(c))
	if err != nil {
		if errors.Is(err, webhooklog.ErrForbidden) {
			respondError(c, apierrors.ErrForbiddenError)
			return
		}
		respondInternal(c, err, "list_logs", "Failed to fetch logs")
		return
	}
	if entries == nil {
		entries = []webhooklog.Entry{}
	}

	c.JSON(http.StatusOK, gin.H{"logs": entries})
}
