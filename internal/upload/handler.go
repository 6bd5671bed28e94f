// Package upload 处理用户在收集流程中提交的附件：大小上限、可选病毒扫描、先落盘再返回路径。
package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"resumedesk/internal/storage"
)

// DefaultMaxBytes 是默认的单文件上限（200 MiB）。
const DefaultMaxBytes int64 = 200 << 20

// Reason 是拒收原因。
type Reason string

const (
	ReasonTooLarge Reason = "too_large"
	ReasonInfected Reason = "infected"
	ReasonStorage  Reason = "storage"
)

// Attachment 描述一个待接收的附件，Open 每次调用都返回从头开始的读取器。
type Attachment struct {
	FileName    string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// Rejection 描述拒收详情。
type Rejection struct {
	Reason Reason
	Detail string
}

// Outcome 是 Accept 的结果：Path 与 Rejection 二者只有一个非空。
type Outcome struct {
	Path      string
	Rejection *Rejection
}

// Accepted 判断附件是否已写入存储。
func (o Outcome) Accepted() bool { return o.Rejection == nil && o.Path != "" }

// Scanner 扫描附件内容，clean=false 表示检出恶意内容。
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) (clean bool, err error)
}

// Handler 接收附件并写入对象存储。
type Handler struct {
	store    storage.ObjectStore
	maxBytes int64
	scanner  Scanner
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	last int64
}

// NewHandler 创建 Handler；scanner 为 nil 时跳过扫描。
func NewHandler(store storage.ObjectStore, maxBytes int64, scanner Scanner, logger *slog.Logger) *Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, maxBytes: maxBytes, scanner: scanner, logger: logger, now: time.Now}
}

// MaxBytes 返回单文件上限。
func (h *Handler) MaxBytes() int64 { return h.maxBytes }

// Accept 校验并存储附件。恰好等于上限的文件允许通过。
func (h *Handler) Accept(ctx context.Context, userID int64, att Attachment) Outcome {
	logger := h.logger.With(slog.Int64("user_id", userID), slog.String("file_name", att.FileName))

	if att.Size > h.maxBytes {
		logger.Info("attachment rejected", slog.Int64("size", att.Size), slog.String("reason", string(ReasonTooLarge)))
		return reject(ReasonTooLarge, fmt.Sprintf("file is %d bytes, limit is %d", att.Size, h.maxBytes))
	}

	if h.scanner != nil {
		clean, err := h.scan(ctx, att)
		if err != nil {
			logger.Error("scan attachment", slog.Any("error", err))
			return reject(ReasonStorage, "could not scan file")
		}
		if !clean {
			logger.Warn("attachment rejected", slog.String("reason", string(ReasonInfected)))
			return reject(ReasonInfected, "malicious content detected")
		}
	}

	key := ObjectKey(userID, h.nextStamp(), att.FileName)
	if err := h.put(ctx, key, att); err != nil {
		logger.Error("store attachment", slog.String("key", key), slog.Any("error", err))
		return reject(ReasonStorage, "could not store file")
	}

	logger.Info("attachment stored", slog.String("key", key), slog.Int64("size", att.Size))
	return Outcome{Path: key}
}

func (h *Handler) scan(ctx context.Context, att Attachment) (bool, error) {
	rc, err := att.Open()
	if err != nil {
		return false, fmt.Errorf("open attachment: %w", err)
	}
	defer rc.Close()
	return h.scanner.Scan(ctx, rc)
}

func (h *Handler) put(ctx context.Context, key string, att Attachment) error {
	rc, err := att.Open()
	if err != nil {
		return fmt.Errorf("open attachment: %w", err)
	}
	defer rc.Close()

	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return h.store.Put(ctx, key, io.LimitReader(rc, h.maxBytes), att.Size, contentType)
}

// nextStamp 返回单调递增的纳秒时间戳，保证同进程内的键不冲突。
func (h *Handler) nextStamp() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	stamp := h.now().UnixNano()
	if stamp <= h.last {
		stamp = h.last + 1
	}
	h.last = stamp
	return stamp
}

// ObjectKey 生成 uploads/<user>/resume_<user>_<unixnano><ext>。
func ObjectKey(userID, stamp int64, fileName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(fileName)))
	return fmt.Sprintf("uploads/%d/resume_%d_%d%s", userID, userID, stamp, ext)
}

// UserPrefix 返回某个用户全部附件的公共前缀。
func UserPrefix(userID int64) string {
	return fmt.Sprintf("uploads/%d/", userID)
}

func reject(reason Reason, detail string) Outcome {
	return Outcome{Rejection: &Rejection{Reason: reason, Detail: detail}}
}
