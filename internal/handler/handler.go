package handler

import (
	"net/http"
	"strconv"

	"pingpal/backend/internal/apperr"
	"pingpal/backend/internal/auth"
	"pingpal/backend/internal/chat"
	"pingpal/backend/internal/media"
	"pingpal/backend/internal/presence"
	"pingpal/backend/internal/registry"
	"pingpal/backend/internal/relationship"

	"github.com/gin-gonic/gin"
)

// Deps wires the coordinators into the routing layer.
type Deps struct {
	Registry  *registry.Registry
	Presence  *presence.Broadcaster
	Relations *relationship.Coordinator
	Chat      *chat.Coordinator
	Sessions  auth.SessionStore
	Media     media.Storage
}

var deps Deps

// Setup installs the handler dependencies. Call once at startup before
// registering routes.
func Setup(d Deps) {
	deps = d
}

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error  string `json:"error" example:"An error message"`
	Reason string `json:"reason,omitempty" example:"already_friends"`
}

// currentUserID reads the authenticated identity set by the auth middleware.
func currentUserID(c *gin.Context) uint {
	userID, _ := c.Get("userID")
	return userID.(uint)
}

// respondError translates a coordinator error into an HTTP response.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	body := ErrorResponse{Reason: apperr.ReasonOf(err)}
	if status == http.StatusInternalServerError {
		body.Error = "Internal server error"
	} else {
		body.Error = err.Error()
	}
	c.JSON(status, body)
}

// parsePagination reads page/limit query params with the usual clamps.
func parsePagination(c *gin.Context) (page, limit int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err = strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100 // Max limit
	}
	return page, limit
}

// parseIDParam reads a numeric path parameter.
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}
