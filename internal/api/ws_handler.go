package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"resumedesk/internal/auth"
	"resumedesk/internal/transport"
)

// Subscriber 是 redis 订阅端。
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// TokenValidator 校验网关令牌。
type TokenValidator interface {
	Validate(token string) (*auth.GatewayClaims, error)
}

// WsHandler 负责网关 WebSocket 的鉴权与出站消息转发。
type WsHandler struct {
	subscriber Subscriber
	tokens     TokenValidator
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// NewWsHandler 构造 WebSocket 处理器。网关是服务端进程，不校验 Origin。
func NewWsHandler(subscriber Subscriber, tokens TokenValidator, logger *slog.Logger) *WsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WsHandler{
		subscriber: subscriber,
		tokens:     tokens,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// HandleConnection 负责升级连接并启动读写循环。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	baseLog := h.logger.With(
		slog.String("client_ip", c.ClientIP()),
	)

	gatewayCh := make(chan string, 1)
	errCh := make(chan error, 2)

	go h.readLoop(ctx, conn, gatewayCh, errCh, cancel, baseLog)

	var gateway string
	select {
	case <-ctx.Done():
		return
	case err := <-errCh:
		if err != nil {
			baseLog.Warn("websocket authentication failed", slog.Any("error", err))
		}
		return
	case gateway = <-gatewayCh:
	}

	gwLog := baseLog.With(slog.String("gateway", gateway))
	go h.subscribeLoop(ctx, conn, errCh, cancel, gwLog)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			gwLog.Info("websocket connection closed", slog.Any("error", err))
		} else {
			gwLog.Info("websocket connection closed")
		}
	}
}

func (h *WsHandler) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	gatewayCh chan<- string,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	authenticated := false

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			writeClose(conn, websocket.CloseAbnormalClosure, "read error")
			errCh <- fmt.Errorf("read message: %w", err)
			cancel()
			return
		}
		if authenticated {
			// 网关只接收，不上行业务消息；继续读取以感知断开。
			continue
		}

		var authMsg wsAuthMessage
		if err := json.Unmarshal(message, &authMsg); err != nil {
			writeClose(conn, websocket.ClosePolicyViolation, "invalid auth payload")
			errCh <- fmt.Errorf("decode auth payload: %w", err)
			cancel()
			return
		}
		if authMsg.Type != "auth" || authMsg.Token == "" {
			writeClose(conn, websocket.ClosePolicyViolation, "auth required")
			errCh <- fmt.Errorf("invalid auth message")
			cancel()
			return
		}
		claims, err := h.tokens.Validate(authMsg.Token)
		if err != nil {
			writeClose(conn, websocket.ClosePolicyViolation, "unauthorized")
			errCh <- fmt.Errorf("validate token: %w", err)
			cancel()
			return
		}

		authenticated = true
		gatewayCh <- claims.Gateway
		log.Info("websocket authenticated", slog.String("gateway", claims.Gateway))
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

func (h *WsHandler) subscribeLoop(
	ctx context.Context,
	conn *websocket.Conn,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	pubsub := h.subscriber.Subscribe(ctx, transport.OutboxChannel)
	defer pubsub.Close()

	log.Info("subscribed to redis channel", slog.String("channel", transport.OutboxChannel))

	ch := pubsub.Channel()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				errCh <- fmt.Errorf("pubsub channel closed")
				cancel()
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				errCh <- fmt.Errorf("write message: %w", err)
				cancel()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				errCh <- fmt.Errorf("write ping: %w", err)
				cancel()
				return
			}
		}
	}
}
