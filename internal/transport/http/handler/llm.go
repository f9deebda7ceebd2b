package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatcoach/internal/app"
	"chatcoach/internal/cache"
	"chatcoach/internal/transport/http/response"
)

type LLMHandler struct {
	llmService *app.LLMService
	streams    *cache.SessionCache
}

type SubmitMessageRequest struct {
	EpisodeID   uint   `json:"episode_id" binding:"required,gt=0"`
	CharacterID uint   `json:"character_id" binding:"required,gt=0"`
	UserMessage string `json:"user_message"`
}

func NewLLMHandler(llmService *app.LLMService, streams *cache.SessionCache) *LLMHandler {
	return &LLMHandler{llmService: llmService, streams: streams}
}

// SubmitMessage enqueues the in-character reply generation and returns
// the job handle immediately; the reply itself arrives on the stream.
func (h *LLMHandler) SubmitMessage(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req SubmitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	taskID, err := h.llmService.SubmitMessage(c.Request.Context(), app.SubmitMessageInput{
		UserID:      userID,
		EpisodeID:   req.EpisodeID,
		CharacterID: req.CharacterID,
		Message:     req.UserMessage,
	})
	if err != nil {
		h.writeLLMError(c, err, "submit message failed")
		return
	}

	response.Accepted(c, gin.H{"task_id": taskID})
}

func (h *LLMHandler) RequestFeedback(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	taskID, err := h.llmService.RequestFeedback(c.Request.Context(), userID)
	if err != nil {
		h.writeLLMError(c, err, "request feedback failed")
		return
	}

	response.Accepted(c, gin.H{"task_id": taskID})
}

// FetchResult blocks until the synthesis task completes, then returns
// the persisted assessment.
func (h *LLMHandler) FetchResult(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	result, err := h.llmService.FetchResult(c.Request.Context(), userID)
	if err != nil {
		h.writeLLMError(c, err, "fetch result failed")
		return
	}

	response.OK(c, result)
}

func (h *LLMHandler) TaskStatus(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	record, err := h.llmService.TaskStatus(userID, c.Param("task_id"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "task status failed")
		return
	}
	if record == nil {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "task not found")
		return
	}
	response.OK(c, record)
}

// Stream relays the caller's broadcast channel as server-sent events
// until the client goes away.
func (h *LLMHandler) Stream(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	events, closeStream := h.streams.SubscribeStream(ctx, userID)
	defer closeStream()

	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := c.Writer.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *LLMHandler) writeLLMError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrRoomStateMissing):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrUserNotFound), errors.Is(err, app.ErrRoomNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, app.ErrTaskEnqueue):
		response.Error(c, http.StatusServiceUnavailable, response.CodeInternalServer, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
