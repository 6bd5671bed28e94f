package api

import (
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"resumedesk/internal/api/middleware"
	"resumedesk/internal/transport"
	"resumedesk/internal/upload"
)

// Dispatcher 接收网关转发的用户事件。
type Dispatcher interface {
	Dispatch(ctx context.Context, ev transport.Event) error
}

// EventHandler 负责网关入站事件。
type EventHandler struct {
	dispatcher Dispatcher
}

// NewEventHandler 构造 EventHandler。
func NewEventHandler(dispatcher Dispatcher) *EventHandler {
	return &EventHandler{dispatcher: dispatcher}
}

type eventRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Username string `json:"username"`
	Text     string `json:"text"`
	Data     string `json:"data"`
}

// PostEvent 处理文本或按钮回调事件。
func (h *EventHandler) PostEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" && req.Data == "" {
		BadRequest(c, "text or data is required")
		return
	}

	h.dispatch(c, transport.Event{
		UserID:   req.UserID,
		Username: req.Username,
		Text:     strings.TrimSpace(req.Text),
		Data:     req.Data,
	})
}

// PostAttachment 处理 multipart 附件事件，字段：user_id、username、file。
func (h *EventHandler) PostAttachment(c *gin.Context) {
	userID, err := strconv.ParseInt(c.PostForm("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		BadRequest(c, "invalid user_id")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}

	h.dispatch(c, transport.Event{
		UserID:     userID,
		Username:   c.PostForm("username"),
		Attachment: attachmentFromForm(file),
	})
}

func (h *EventHandler) dispatch(c *gin.Context, ev transport.Event) {
	if err := h.dispatcher.Dispatch(c.Request.Context(), ev); err != nil {
		middleware.LoggerFromContext(c).Warn("dispatch event failed",
			slog.Int64("user_id", ev.UserID),
			slog.Any("error", err),
		)
		Fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func attachmentFromForm(file *multipart.FileHeader) *upload.Attachment {
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &upload.Attachment{
		FileName:    file.Filename,
		Size:        file.Size,
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return file.Open()
		},
	}
}
