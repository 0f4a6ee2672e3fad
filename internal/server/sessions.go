package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voxora/voxora/internal/rate"
	sessiondomain "github.com/voxora/voxora/internal/session/domain"
)

type startSessionRequest struct {
	ServiceType              string         `json:"service_type"`
	EstimatedDurationSeconds int64          `json:"estimated_duration_seconds"`
	SessionToken             string         `json:"session_token"`
	Metadata                 map[string]any `json:"metadata"`
}

// @Summary      Start Session
// @Description  Open a metered session after an admission check
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body startSessionRequest true "Start Session Request"
// @Success      200  {object}  sessiondomain.UsageSession
// @Router       /sessions/start [post]
func (s *Server) StartSession(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	serviceType, err := rate.ParseServiceType(strings.TrimSpace(req.ServiceType))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if req.EstimatedDurationSeconds < 0 {
		AbortWithError(c, newValidationError("estimated_duration_seconds", "invalid_duration", "estimated duration must not be negative"))
		return
	}

	session, err := s.sessionSvc.Start(c.Request.Context(), sessiondomain.StartRequest{
		UserID:            userID,
		ServiceType:       serviceType,
		SessionToken:      strings.TrimSpace(req.SessionToken),
		EstimatedDuration: time.Duration(req.EstimatedDurationSeconds) * time.Second,
		Metadata:          req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": session})
}

type endSessionRequest struct {
	SessionID       string `json:"session_id"`
	DurationSeconds int64  `json:"duration_seconds"`
	Status          string `json:"status"`
}

type endSessionResponse struct {
	Session       *sessiondomain.UsageSession `json:"session"`
	AlreadyClosed bool                        `json:"already_closed"`
	TokensCharged int64                       `json:"tokens_charged"`
}

// @Summary      End Session
// @Description  Close a session and bill the elapsed time
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body endSessionRequest true "End Session Request"
// @Success      200  {object}  endSessionResponse
// @Router       /sessions/end [post]
func (s *Server) EndSession(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	var req endSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		AbortWithError(c, newValidationError("session_id", "required", "session_id is required"))
		return
	}
	if req.DurationSeconds < 0 {
		AbortWithError(c, newValidationError("duration_seconds", "invalid_duration", "duration must not be negative"))
		return
	}

	session, err := s.sessionSvc.Get(c.Request.Context(), strings.TrimSpace(req.SessionID))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if session.UserID != userID {
		AbortWithError(c, sessiondomain.ErrSessionNotFound)
		return
	}

	resp, err := s.sessionSvc.End(c.Request.Context(), sessiondomain.EndRequest{
		SessionRef:       strings.TrimSpace(req.SessionID),
		ReportedDuration: time.Duration(req.DurationSeconds) * time.Second,
		Status:           sessiondomain.SessionStatus(strings.TrimSpace(req.Status)),
		Trigger:          sessiondomain.CloseTriggerClient,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": endSessionResponse{
		Session:       resp.Session,
		AlreadyClosed: resp.AlreadyClosed,
		TokensCharged: resp.TokensCharged,
	}})
}

// @Summary      Get Session
// @Description  Fetch a session by id or uuid
// @Tags         sessions
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id  path  string  true  "Session ID"
// @Success      200  {object}  sessiondomain.UsageSession
// @Router       /sessions/{id} [get]
func (s *Server) GetSession(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	session, err := s.sessionSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if session.UserID != userID {
		AbortWithError(c, sessiondomain.ErrSessionNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": session})
}
