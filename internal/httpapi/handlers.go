package httpapi

import (
	"errors"
	"net/http"
	"time"

	"rooms-platform/internal/room"
	"rooms-platform/internal/study"
	"rooms-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Rooms      *room.Service
	Reconciler *room.Reconciler
	Bans       *room.BanEnforcer
	Study      *study.Service
}

// --- Rooms ---

// CreateRoom persists a new room in Active state for an already-created
// provider call.
func (h Handlers) CreateRoom(c *gin.Context) {
	if h.Rooms == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "rooms not configured"})
		return
	}
	var req room.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	created, err := h.Rooms.CreateRoom(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, room.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id, room_name, host_id required"})
		case errors.Is(err, room.ErrAlreadyExists):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "room already exists for call"})
		case errors.Is(err, room.ErrCallEnded):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call already ended"})
		default:
			logger.FromGin(c).Error("room create failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "room create failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListActiveRooms runs a reconciliation pass and returns joinable rooms.
func (h Handlers) ListActiveRooms(c *gin.Context) {
	if h.Reconciler == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconciler not configured"})
		return
	}
	ctx := logger.With(c.Request.Context(), logger.FromGin(c))
	rooms, err := h.Reconciler.ListActiveRooms(ctx)
	if err != nil {
		logger.FromGin(c).Error("room listing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "room listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// BanUser records a host-issued ban and starts provider-side enforcement.
func (h Handlers) BanUser(c *gin.Context) {
	if h.Bans == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ban enforcement not configured"})
		return
	}
	var req room.BanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ctx := logger.With(c.Request.Context(), logger.FromGin(c))
	ban, err := h.Bans.Ban(ctx, req)
	if err != nil {
		if errors.Is(err, room.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id, user_id, host_id required; host cannot ban itself"})
			return
		}
		logger.FromGin(c).Error("ban failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ban failed"})
		return
	}
	c.JSON(http.StatusOK, ban)
}

// --- Study sessions ---

type studySessionRequest struct {
	UserID string `json:"user_id"`
	CallID string `json:"call_id"`
	Action string `json:"action"`
}

// StudySessionAction starts or ends a study session for (user, call).
func (h Handlers) StudySessionAction(c *gin.Context) {
	if h.Study == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "study tracking not configured"})
		return
	}
	var req studySessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ctx := logger.With(c.Request.Context(), logger.FromGin(c))
	switch req.Action {
	case "start":
		sess, err := h.Study.Start(ctx, req.UserID, req.CallID)
		if err != nil {
			h.studyError(c, err)
			return
		}
		c.JSON(http.StatusOK, sess)
	case "end":
		sess, err := h.Study.End(ctx, req.UserID, req.CallID)
		if err != nil {
			h.studyError(c, err)
			return
		}
		c.JSON(http.StatusOK, sess)
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "action must be start or end"})
	}
}

// DailyDuration returns the accumulated study time for a user on a date
// (defaults to the current UTC date).
func (h Handlers) DailyDuration(c *gin.Context) {
	if h.Study == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "study tracking not configured"})
		return
	}
	userID := c.Query("user_id")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	var date time.Time
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	total, err := h.Study.DailyTotal(c.Request.Context(), userID, date)
	if err != nil {
		h.studyError(c, err)
		return
	}
	c.JSON(http.StatusOK, total)
}

func (h Handlers) studyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, study.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and call_id required"})
	case errors.Is(err, study.ErrNoOpenSession):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no open study session"})
	default:
		logger.FromGin(c).Error("study session operation failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "study session operation failed"})
	}
}
