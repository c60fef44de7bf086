package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SendMessageInput defines the structure for sending a message.
type SendMessageInput struct {
	Text          string `json:"text" example:"Hey, how are you?"`
	AttachmentURL string `json:"attachmentUrl"`
}

// SendMessage godoc
// @Summary      Send a direct message
// @Description  Sends a message to a friend. Accepts JSON, or multipart form data with an optional "attachment" file that is uploaded before the message is stored.
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int               true  "Receiver User ID"
// @Param        input body      SendMessageInput  true  "Message"
// @Success      201   {object}  models.Message
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Router       /messages/{id} [post]
func SendMessage(c *gin.Context) {
	receiverID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var input SendMessageInput
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		input.Text = c.PostForm("text")
		if file, err := c.FormFile("attachment"); err == nil {
			url, err := uploadFormFile(c, "attachments", file)
			if err != nil {
				c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to upload attachment"})
				return
			}
			input.AttachmentURL = url
		}
	} else if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	msg, err := deps.Chat.Send(c.Request.Context(), currentUserID(c), receiverID, input.Text, input.AttachmentURL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// GetMessages godoc
// @Summary      Get a conversation
// @Description  Returns the full message history with the given user, oldest first.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Counterpart User ID"
// @Success      200  {array}   models.Message
// @Failure      401  {object}  ErrorResponse
// @Router       /messages/{id} [get]
func GetMessages(c *gin.Context) {
	counterpartID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	msgs, err := deps.Chat.ListConversation(c.Request.Context(), currentUserID(c), counterpartID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// MarkMessagesSeen godoc
// @Summary      Mark a conversation as seen
// @Description  Flips every unseen incoming message from the given user to seen. Safe to call repeatedly.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Counterpart User ID"
// @Success      200  {object}  map[string]int64 "{"updated": 3}"
// @Failure      401  {object}  ErrorResponse
// @Router       /messages/{id}/seen [put]
func MarkMessagesSeen(c *gin.Context) {
	counterpartID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	n, err := deps.Chat.MarkSeen(c.Request.Context(), currentUserID(c), counterpartID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// DeleteConversation godoc
// @Summary      Delete a conversation
// @Description  Removes every message exchanged with the given user, in both directions. The friendship itself is untouched.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Counterpart User ID"
// @Success      200  {object}  map[string]int64 "{"deleted": 12}"
// @Failure      401  {object}  ErrorResponse
// @Router       /messages/{id} [delete]
func DeleteConversation(c *gin.Context) {
	counterpartID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	n, err := deps.Chat.DeleteConversation(c.Request.Context(), currentUserID(c), counterpartID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// GetSidebar godoc
// @Summary      Get the conversation sidebar
// @Description  Returns one entry per friend with the latest message and unseen count, most recently active first.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   chat.SidebarEntry
// @Failure      401  {object}  ErrorResponse
// @Router       /messages/sidebar [get]
func GetSidebar(c *gin.Context) {
	entries, err := deps.Chat.ListSidebar(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
