package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SendFriendRequest godoc
// @Summary      Send a friend request
// @Description  Creates a pending friend request to the target user. A previously declined pair may be re-requested.
// @Tags         relationships
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Target User ID"
// @Success      201  {object}  models.Relationship
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /users/{id}/request [post]
func SendFriendRequest(c *gin.Context) {
	targetID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	rel, err := deps.Relations.Request(c.Request.Context(), currentUserID(c), targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rel)
}

// AcceptFriendRequest godoc
// @Summary      Accept a friend request
// @Description  Accepts a pending request sent by the user in the path.
// @Tags         relationships
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Requester User ID"
// @Success      200  {object}  models.Relationship
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/{id}/accept [post]
func AcceptFriendRequest(c *gin.Context) {
	requesterID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	rel, err := deps.Relations.Accept(c.Request.Context(), currentUserID(c), requesterID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

// DeclineFriendRequest godoc
// @Summary      Decline a friend request
// @Description  Declines a pending request sent by the user in the path. The pair can be requested again later.
// @Tags         relationships
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Requester User ID"
// @Success      200  {object}  models.Relationship
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/{id}/decline [post]
func DeclineFriendRequest(c *gin.Context) {
	requesterID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	rel, err := deps.Relations.Decline(c.Request.Context(), currentUserID(c), requesterID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

// BlockUser godoc
// @Summary      Block a user
// @Description  Moves the relationship into blocked. The blocked user is not notified.
// @Tags         relationships
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Target User ID"
// @Success      200  {object}  models.Relationship
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /users/{id}/block [post]
func BlockUser(c *gin.Context) {
	targetID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	rel, err := deps.Relations.Block(c.Request.Context(), currentUserID(c), targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

// GetInvites godoc
// @Summary      List incoming friend requests
// @Description  Returns the pending requests addressed to the current user, most recent first.
// @Tags         relationships
// @Produce      json
// @Security     BearerAuth
// @Param        page  query     int  false  "Page number" default(1)
// @Param        limit query     int  false  "Items per page" default(10)
// @Success      200   {object}  PaginatedResponse[relationship.InviteView]
// @Failure      401   {object}  ErrorResponse
// @Router       /users/me/invites [get]
func GetInvites(c *gin.Context) {
	page, limit := parsePagination(c)

	invites, total, err := deps.Relations.ListInvites(c.Request.Context(), currentUserID(c), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(invites, total, page, limit))
}

// GetSuggestions godoc
// @Summary      List friend suggestions
// @Description  Returns users the current user has no active relationship with. Declined pairs reappear.
// @Tags         relationships
// @Produce      json
// @Security     BearerAuth
// @Param        page  query     int  false  "Page number" default(1)
// @Param        limit query     int  false  "Items per page" default(10)
// @Success      200   {object}  PaginatedResponse[models.PublicProfile]
// @Failure      401   {object}  ErrorResponse
// @Router       /users/me/suggestions [get]
func GetSuggestions(c *gin.Context) {
	page, limit := parsePagination(c)

	profiles, total, err := deps.Relations.ListSuggestions(c.Request.Context(), currentUserID(c), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(profiles, total, page, limit))
}
