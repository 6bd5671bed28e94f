package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"resumedesk/internal/errcode"
	"resumedesk/internal/storage"
)

// OutboxChannel 是网关订阅的 Redis 频道。
const OutboxChannel = "chat_outbox"

// Publisher 是 go-redis 客户端的发布子集。
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Envelope 是发布到 outbox 的消息格式，字段名与网关解析保持一致。
type Envelope struct {
	Type     string        `json:"type"`
	ChatID   int64         `json:"chat_id"`
	Message  *Message      `json:"message,omitempty"`
	Document *DocumentLink `json:"document,omitempty"`
	SentAt   time.Time     `json:"sent_at"`
}

// DocumentLink 是带下载链接的文件消息。
type DocumentLink struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// RedisMessenger 通过 Redis Pub/Sub 把消息交给网关；没有订阅者视为发送失败。
type RedisMessenger struct {
	client  Publisher
	objects storage.ObjectStore
	linkTTL time.Duration
	logger  *slog.Logger
}

// NewRedisMessenger 创建 RedisMessenger。
func NewRedisMessenger(client Publisher, objects storage.ObjectStore, linkTTL time.Duration, logger *slog.Logger) *RedisMessenger {
	if logger == nil {
		logger = slog.Default()
	}
	if linkTTL <= 0 {
		linkTTL = 24 * time.Hour
	}
	return &RedisMessenger{client: client, objects: objects, linkTTL: linkTTL, logger: logger}
}

// Send 实现 Messenger。
func (m *RedisMessenger) Send(ctx context.Context, chatID int64, msg Message) error {
	return m.publish(ctx, Envelope{Type: "message", ChatID: chatID, Message: &msg})
}

// SendDocument 实现 Messenger，文件以限时链接的形式投递。
func (m *RedisMessenger) SendDocument(ctx context.Context, chatID int64, doc Document) error {
	link, err := m.objects.URL(ctx, doc.Key, m.linkTTL)
	if err != nil {
		return fmt.Errorf("link document %q: %w", doc.Key, err)
	}
	return m.publish(ctx, Envelope{
		Type:     "document",
		ChatID:   chatID,
		Document: &DocumentLink{Name: doc.Name, URL: link, Caption: doc.Caption},
	})
}

func (m *RedisMessenger) publish(ctx context.Context, env Envelope) error {
	env.SentAt = time.Now().UTC()
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	receivers, err := m.client.Publish(ctx, OutboxChannel, payload).Result()
	if err != nil {
		return fmt.Errorf("%w: publish to %s: %w", errcode.ErrTransport, OutboxChannel, err)
	}
	if receivers == 0 {
		m.logger.Warn("no gateway subscribed to outbox", slog.Int64("chat_id", env.ChatID))
		return fmt.Errorf("%w: no gateway subscribed to %s", errcode.ErrTransport, OutboxChannel)
	}
	return nil
}
