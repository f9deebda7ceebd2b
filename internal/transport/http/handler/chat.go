package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chatcoach/internal/app"
	"chatcoach/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type CreateRoomRequest struct {
	CharacterID uint `json:"character_id" binding:"required,gt=0"`
}

type SaveMessageRequest struct {
	ChatRoomID  uint   `json:"chat_room_id" binding:"required,gt=0"`
	MessageType string `json:"message_type" binding:"required"`
	Content     string `json:"content" binding:"required"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) CreateRoom(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	room, err := h.chatService.CreateRoom(c.Request.Context(), userID, req.CharacterID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrUserNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create room failed")
		}
		return
	}

	response.Created(c, room)
}

func (h *ChatHandler) SaveMessage(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req SaveMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	message, err := h.chatService.SaveMessage(userID, req.ChatRoomID, req.MessageType, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrInvalidMessageType):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrRoomNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "save message failed")
		}
		return
	}

	response.Created(c, message)
}

func (h *ChatHandler) ListRooms(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	rooms, err := h.chatService.ListRooms(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list rooms failed")
		return
	}
	response.OK(c, gin.H{"rooms": rooms})
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	messages, err := h.chatService.ListMessages(userID, roomID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrRoomNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list messages failed")
		}
		return
	}

	response.OK(c, gin.H{"chat_room_id": roomID, "messages": messages})
}

func (h *ChatHandler) ListResults(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	rooms, err := h.chatService.ResultRooms(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list results failed")
		return
	}
	response.OK(c, gin.H{"results": rooms})
}

func (h *ChatHandler) GetResult(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	detail, err := h.chatService.ResultDetailByRoom(userID, roomID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrRoomNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get result failed")
		}
		return
	}

	response.OK(c, detail)
}

func (h *ChatHandler) DeleteRoom(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	if err := h.chatService.DeleteRoom(userID, roomID); err != nil {
		switch {
		case errors.Is(err, app.ErrRoomNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete room failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_room_id": roomID})
}

func (h *ChatHandler) DeleteResult(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	if err := h.chatService.DeleteResult(userID, roomID); err != nil {
		switch {
		case errors.Is(err, app.ErrRoomNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete result failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_room_id": roomID})
}

func parseRoomID(c *gin.Context) (uint, bool) {
	roomID64, err := strconv.ParseUint(c.Param("room_id"), 10, 64)
	if err != nil || roomID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid room id")
		return 0, false
	}
	return uint(roomID64), true
}
