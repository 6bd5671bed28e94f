// Package bot 把网关事件按用户串行分发给简历收集流程或运营控制台。
package bot

import (
	"context"
	"log/slog"
	"strings"

	"resumedesk/internal/admin"
	"resumedesk/internal/transport"
)

// Handler 处理一次用户输入。
type Handler interface {
	Handle(ctx context.Context, ev transport.Event) error
}

// Console 是运营控制台。
type Console interface {
	Handler
	Active(operatorID int64) bool
}

// BlockList 查询用户是否被拉黑。
type BlockList interface {
	IsBlocked(ctx context.Context, userID int64) (bool, error)
}

// Dispatcher 对同一用户的事件串行处理，不同用户之间并发。
type Dispatcher struct {
	intake     Handler
	console    Console
	blocks     BlockList
	isOperator func(int64) bool
	locks      *userLocks
	logger     *slog.Logger
}

// NewDispatcher 创建 Dispatcher；console 为 nil 时所有人都进入收集流程。
func NewDispatcher(intake Handler, console Console, blocks BlockList, isOperator func(int64) bool, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if isOperator == nil {
		isOperator = func(int64) bool { return false }
	}
	return &Dispatcher{
		intake:     intake,
		console:    console,
		blocks:     blocks,
		isOperator: isOperator,
		locks:      newUserLocks(),
		logger:     logger.With(slog.String("component", "dispatcher")),
	}
}

// Dispatch 路由一次事件。被拉黑用户的输入直接丢弃；查询拉黑状态失败时照常处理。
func (d *Dispatcher) Dispatch(ctx context.Context, ev transport.Event) error {
	unlock := d.locks.lock(ev.UserID)
	defer unlock()

	log := d.logger.With(slog.Int64("user_id", ev.UserID))

	if d.toConsole(ev) {
		return d.console.Handle(ctx, ev)
	}

	if d.blocks != nil {
		blocked, err := d.blocks.IsBlocked(ctx, ev.UserID)
		if err != nil {
			log.Warn("check blocked failed", slog.Any("error", err))
		} else if blocked {
			log.Info("dropping event from blocked user")
			return nil
		}
	}
	return d.intake.Handle(ctx, ev)
}

func (d *Dispatcher) toConsole(ev transport.Event) bool {
	if d.console == nil || !d.isOperator(ev.UserID) {
		return false
	}
	if ev.IsCommand("/admin") || strings.HasPrefix(ev.Data, admin.CallbackPrefix) {
		return true
	}
	// 控制台打开期间，/start 仍交给收集流程，便于运营自己试填。
	return d.console.Active(ev.UserID) && !ev.IsCommand("/start")
}
