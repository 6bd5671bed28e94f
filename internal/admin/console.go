package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"resumedesk/internal/errcode"
	"resumedesk/internal/fields"
	"resumedesk/internal/store"
	"resumedesk/internal/transport"
)

// CallbackPrefix 标识运营控制台的按钮回调。
const CallbackPrefix = "adm:"

// 控制台状态。
const (
	StateMenu         = "menu"
	StateSearching    = "searching"
	StateViewing      = "viewing"
	StateEditSelect   = "edit_select"
	StateEditValue    = "edit_value"
	StateEditOverride = "edit_override"
	StateDeleting     = "deleting"
	StateHardDeleting = "hard_deleting"
)

// DefaultPageSize 是控制台搜索的默认分页大小。
const DefaultPageSize = 10

type consoleSession struct {
	State          string
	Target         int64
	Field          string
	Pending        string
	IncludeDeleted bool
	Query          store.Query
}

// Console 是运营在聊天中的控制台状态机，每个运营一份会话。
type Console struct {
	service   *Service
	messenger transport.Messenger
	pageSize  int
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[int64]*consoleSession
}

// NewConsole 创建 Console。
func NewConsole(service *Service, messenger transport.Messenger, pageSize int, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Console{
		service:   service,
		messenger: messenger,
		pageSize:  pageSize,
		logger:    logger.With(slog.String("component", "console")),
		now:       time.Now,
		sessions:  make(map[int64]*consoleSession),
	}
}

// Active 判断运营当前是否打开了控制台。
func (c *Console) Active(operatorID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sessions[operatorID]
	return ok
}

// State 返回运营当前的控制台状态；未打开时返回空串。
func (c *Console) State(operatorID int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[operatorID]; ok {
		return s.State
	}
	return ""
}

func (c *Console) session(operatorID int64) *consoleSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[operatorID]
	if !ok {
		s = &consoleSession{State: StateMenu}
		c.sessions[operatorID] = s
	}
	return s
}

func (c *Console) close(operatorID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, operatorID)
}

// Handle 处理运营的一次输入。非白名单用户返回 errcode.ErrNotPermitted 且不产生任何回复。
func (c *Console) Handle(ctx context.Context, ev transport.Event) error {
	if !c.service.IsOperator(ev.UserID) {
		return fmt.Errorf("operator %d: %w", ev.UserID, errcode.ErrNotPermitted)
	}
	op := ev.UserID

	switch {
	case ev.IsCommand("/exit") || ev.Data == CallbackPrefix+"close":
		c.close(op)
		return c.messenger.Send(ctx, op, transport.Text("Console closed. Send /admin to open it again."))
	case ev.IsCommand("/admin"):
		s := c.session(op)
		s.State, s.Target, s.Field, s.Pending = StateMenu, 0, "", ""
		return c.sendMenu(ctx, op, s, "")
	case ev.Data != "":
		return c.handleCallback(ctx, op, c.session(op), strings.TrimPrefix(ev.Data, CallbackPrefix))
	default:
		return c.handleText(ctx, op, c.session(op), strings.TrimSpace(ev.Text))
	}
}

func (c *Console) handleCallback(ctx context.Context, op int64, s *consoleSession, data string) error {
	action, arg, _ := strings.Cut(data, ":")
	switch action {
	case "menu":
		s.State, s.Target = StateMenu, 0
		return c.sendMenu(ctx, op, s, "")
	case "search":
		s.State = StateSearching
		return c.messenger.Send(ctx, op, transport.Message{
			Text: "Send a name, handle or major to search for. Add study_status=… or degree=… to filter, or send * to list everything.",
			Buttons: [][]transport.Button{
				transport.Row(button("Cancel", "cancel")),
			},
		})
	case "toggle_deleted":
		s.IncludeDeleted = !s.IncludeDeleted
		return c.sendMenu(ctx, op, s, "")
	case "page":
		offset, err := strconv.Atoi(arg)
		if err != nil || offset < 0 {
			offset = 0
		}
		s.Query.Offset = offset
		return c.runSearch(ctx, op, s)
	case "view":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return c.sendMenu(ctx, op, s, "Unknown record.")
		}
		s.Target = id
		return c.showRecord(ctx, op, s, "")
	case "stats":
		return c.sendStats(ctx, op, s)
	case "export":
		doc, err := c.service.Export(ctx, op, s.IncludeDeleted)
		if err != nil {
			return c.fail(ctx, op, s, "export", err)
		}
		return c.messenger.SendDocument(ctx, op, doc)
	case "logs":
		doc, err := c.service.Logs(ctx, op, 0)
		if err != nil {
			return c.fail(ctx, op, s, "logs", err)
		}
		return c.messenger.SendDocument(ctx, op, doc)
	case "cancel":
		return c.cancel(ctx, op, s)
	}

	if s.Target == 0 {
		return c.sendMenu(ctx, op, s, "Open a record first.")
	}
	switch action {
	case "edit":
		s.State = StateEditSelect
		return c.sendEditMenu(ctx, op)
	case "field":
		if !c.service.Registry().IsEditable(arg) {
			return c.sendEditMenu(ctx, op)
		}
		return c.askValue(ctx, op, s, arg)
	case "override":
		if s.State != StateEditOverride {
			return c.showRecord(ctx, op, s, "")
		}
		res, err := c.service.Edit(ctx, op, s.Target, s.Field, s.Pending, true)
		if err != nil {
			return c.fail(ctx, op, s, "edit", err)
		}
		return c.showRecord(ctx, op, s, fmt.Sprintf("Saved without validation: %s.", c.service.Registry().Label(res.Key)))
	case "delete":
		s.State = StateDeleting
		return c.messenger.Send(ctx, op, confirmPrompt(fmt.Sprintf("Send the user ID %d to hide this record.", s.Target)))
	case "hard":
		s.State = StateHardDeleting
		return c.messenger.Send(ctx, op, confirmPrompt(fmt.Sprintf("This permanently erases the record and its files. Send the user ID %d to confirm.", s.Target)))
	case "restore":
		return c.moderate(ctx, op, s, "Record restored.", c.service.Restore)
	case "block":
		return c.moderate(ctx, op, s, "User blocked.", c.service.Block)
	case "unblock":
		return c.moderate(ctx, op, s, "User unblocked.", c.service.Unblock)
	case "audit":
		return c.sendAudit(ctx, op, s)
	}
	return c.sendMenu(ctx, op, s, "")
}

func (c *Console) handleText(ctx context.Context, op int64, s *consoleSession, text string) error {
	switch s.State {
	case StateSearching:
		s.Query = ParseQuery(c.service.Registry(), text)
		return c.runSearch(ctx, op, s)
	case StateEditValue:
		return c.applyEdit(ctx, op, s, text)
	case StateDeleting:
		if text != strconv.FormatInt(s.Target, 10) {
			return c.showRecord(ctx, op, s, "Identifier does not match, nothing was deleted.")
		}
		return c.moderate(ctx, op, s, "Record hidden.", c.service.SoftDelete)
	case StateHardDeleting:
		if text != strconv.FormatInt(s.Target, 10) {
			return c.showRecord(ctx, op, s, "Identifier does not match, nothing was deleted.")
		}
		if err := c.service.HardDelete(ctx, op, s.Target); err != nil {
			return c.fail(ctx, op, s, "hard delete", err)
		}
		id := s.Target
		s.State, s.Target = StateMenu, 0
		return c.sendMenu(ctx, op, s, fmt.Sprintf("Record %d permanently deleted.", id))
	case StateViewing, StateEditSelect, StateEditOverride:
		return c.showRecord(ctx, op, s, "Use the buttons below.")
	}
	return c.sendMenu(ctx, op, s, "Use the buttons below.")
}

func (c *Console) applyEdit(ctx context.Context, op int64, s *consoleSession, value string) error {
	res, err := c.service.Edit(ctx, op, s.Target, s.Field, value, false)
	switch {
	case err == nil:
		return c.showRecord(ctx, op, s, fmt.Sprintf("Saved: %s.", c.service.Registry().Label(res.Key)))
	case errors.Is(err, errcode.ErrOverrideRequired):
		s.State, s.Pending = StateEditOverride, value
		return c.messenger.Send(ctx, op, transport.Message{
			Text: fmt.Sprintf("⚠️ %s\n\nThis value fails the intake check. Save it anyway?", err.Error()),
			Buttons: [][]transport.Button{
				transport.Row(button("Save anyway", "override"), button("Cancel", "cancel")),
			},
		})
	case errors.Is(err, errcode.ErrValidation):
		return c.messenger.Send(ctx, op, transport.Text(fmt.Sprintf("⚠️ %s\n\nSend another value or press Cancel.", err.Error())))
	}
	return c.fail(ctx, op, s, "edit", err)
}

func (c *Console) askValue(ctx context.Context, op int64, s *consoleSession, key string) error {
	rec, err := c.service.View(ctx, op, s.Target)
	if err != nil {
		return c.fail(ctx, op, s, "view", err)
	}
	s.State, s.Field, s.Pending = StateEditValue, key, ""
	current := rec.Intake.Text(key)
	if current == "" {
		current = "-"
	}
	return c.messenger.Send(ctx, op, transport.Message{
		Text:    fmt.Sprintf("Send the new value for %s.\nCurrent value: %s", c.service.Registry().Label(key), current),
		Buttons: [][]transport.Button{transport.Row(button("Cancel", "cancel"))},
	})
}

func (c *Console) moderate(ctx context.Context, op int64, s *consoleSession, done string, apply func(context.Context, int64, int64) error) error {
	if err := apply(ctx, op, s.Target); err != nil {
		return c.fail(ctx, op, s, "moderate", err)
	}
	return c.showRecord(ctx, op, s, done)
}

func (c *Console) cancel(ctx context.Context, op int64, s *consoleSession) error {
	s.Field, s.Pending = "", ""
	if s.Target == 0 {
		s.State = StateMenu
		return c.sendMenu(ctx, op, s, "Cancelled.")
	}
	return c.showRecord(ctx, op, s, "Cancelled.")
}

func (c *Console) runSearch(ctx context.Context, op int64, s *consoleSession) error {
	q := s.Query
	q.IncludeDeleted = s.IncludeDeleted
	q.Limit = c.pageSize
	page, err := c.service.Search(ctx, op, q)
	if err != nil {
		return c.fail(ctx, op, s, "search", err)
	}
	s.State = StateSearching
	if page.Total == 0 {
		return c.messenger.Send(ctx, op, transport.Message{
			Text:    "No matching records. Send another search term.",
			Buttons: [][]transport.Button{transport.Row(button("Menu", "menu"))},
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Results %d–%d of %d:", q.Offset+1, q.Offset+len(page.Items), page.Total)
	rows := make([][]transport.Button, 0, len(page.Items)+2)
	for _, item := range page.Items {
		label := summaryLabel(item)
		fmt.Fprintf(&b, "\n• %s", label)
		rows = append(rows, transport.Row(button(label, "view:"+strconv.FormatInt(item.UserID, 10))))
	}
	var nav []transport.Button
	if q.Offset > 0 {
		nav = append(nav, button("« Prev", "page:"+strconv.Itoa(max(q.Offset-c.pageSize, 0))))
	}
	if int64(q.Offset+len(page.Items)) < page.Total {
		nav = append(nav, button("Next »", "page:"+strconv.Itoa(q.Offset+c.pageSize)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, transport.Row(button("Menu", "menu")))
	return c.messenger.Send(ctx, op, transport.Message{Text: b.String(), Buttons: rows})
}

func (c *Console) showRecord(ctx context.Context, op int64, s *consoleSession, note string) error {
	rec, err := c.service.View(ctx, op, s.Target)
	if err != nil {
		return c.fail(ctx, op, s, "view", err)
	}
	s.State, s.Field, s.Pending = StateViewing, "", ""

	var b strings.Builder
	if note != "" {
		b.WriteString(note + "\n\n")
	}
	fmt.Fprintf(&b, "Record %d\n\n", rec.UserID)
	b.WriteString(fields.Render(c.service.Registry(), &rec.Intake))
	b.WriteString("\n\nStatus: " + status(rec.IsDeleted, rec.IsBlocked))

	deleteBtn := button("Delete", "delete")
	if rec.IsDeleted {
		deleteBtn = button("Restore", "restore")
	}
	blockBtn := button("Block", "block")
	if rec.IsBlocked {
		blockBtn = button("Unblock", "unblock")
	}
	return c.messenger.Send(ctx, op, transport.Message{
		Text: b.String(),
		Buttons: [][]transport.Button{
			transport.Row(button("Edit", "edit"), button("Audit trail", "audit")),
			transport.Row(deleteBtn, blockBtn),
			transport.Row(button("Delete permanently", "hard")),
			transport.Row(button("Menu", "menu")),
		},
	})
}

func (c *Console) sendMenu(ctx context.Context, op int64, s *consoleSession, note string) error {
	text := "Operator console"
	if note != "" {
		text = note + "\n\n" + text
	}
	toggle := "Include deleted: off"
	if s.IncludeDeleted {
		toggle = "Include deleted: on"
	}
	return c.messenger.Send(ctx, op, transport.Message{
		Text: text,
		Buttons: [][]transport.Button{
			transport.Row(button("Search", "search"), button("Stats", "stats")),
			transport.Row(button("Export", "export"), button("Activity log", "logs")),
			transport.Row(button(toggle, "toggle_deleted")),
			transport.Row(button("Close", "close")),
		},
	})
}

func (c *Console) sendEditMenu(ctx context.Context, op int64) error {
	editable := c.service.Registry().Editable()
	rows := make([][]transport.Button, 0, len(editable)/2+2)
	for i := 0; i < len(editable); i += 2 {
		row := transport.Row(button(editable[i].Label, "field:"+editable[i].Key))
		if i+1 < len(editable) {
			row = append(row, button(editable[i+1].Label, "field:"+editable[i+1].Key))
		}
		rows = append(rows, row)
	}
	rows = append(rows, transport.Row(button("Cancel", "cancel")))
	return c.messenger.Send(ctx, op, transport.Message{Text: "Which field do you want to change?", Buttons: rows})
}

func (c *Console) sendStats(ctx context.Context, op int64, s *consoleSession) error {
	st, err := c.service.Stats(ctx, op, c.now())
	if err != nil {
		return c.fail(ctx, op, s, "stats", err)
	}
	text := fmt.Sprintf("Total records: %d\nRegistered today: %d\nHidden: %d\nBlocked: %d",
		st.Total, st.OnDay, st.Deleted, st.Blocked)
	return c.messenger.Send(ctx, op, transport.Message{
		Text:    text,
		Buttons: [][]transport.Button{transport.Row(button("Menu", "menu"))},
	})
}

func (c *Console) sendAudit(ctx context.Context, op int64, s *consoleSession) error {
	entries, err := c.service.AuditTrail(ctx, op, s.Target)
	if err != nil {
		return c.fail(ctx, op, s, "audit", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Audit trail for %d:", s.Target)
	if len(entries) == 0 {
		b.WriteString("\nno entries")
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "\n%s %s by %d", e.Timestamp.UTC().Format(time.RFC3339), e.Action, e.OperatorID)
		if e.Field != "" {
			fmt.Fprintf(&b, " %s: %q → %q", e.Field, e.OldValue, e.NewValue)
		}
	}
	return c.messenger.Send(ctx, op, transport.Message{
		Text:    b.String(),
		Buttons: [][]transport.Button{transport.Row(button("Back", "cancel"))},
	})
}

// fail 把操作错误转成给运营的回复，系统错误额外写日志。
func (c *Console) fail(ctx context.Context, op int64, s *consoleSession, operation string, err error) error {
	var text string
	switch {
	case errors.Is(err, errcode.ErrNotFound):
		s.State, s.Target = StateMenu, 0
		return c.sendMenu(ctx, op, s, "Record not found.")
	case errors.Is(err, errcode.ErrNotPermitted):
		text = "Not permitted."
	case errcode.Recoverable(err):
		text = "⚠️ " + err.Error()
	default:
		c.logger.Error("console operation failed",
			slog.Int64("operator_id", op),
			slog.String("operation", operation),
			slog.Any("error", err),
		)
		text = "Something went wrong, please try again."
	}
	return c.messenger.Send(ctx, op, transport.Message{
		Text:    text,
		Buttons: [][]transport.Button{transport.Row(button("Menu", "menu"))},
	})
}

// ParseQuery 把运营输入解析为搜索条件：key=value 记为精确过滤，其余词拼成关键字，"*" 表示不限。
func ParseQuery(r *fields.Registry, text string) store.Query {
	q := store.Query{}
	var terms []string
	for _, token := range strings.Fields(text) {
		if key, value, ok := strings.Cut(token, "="); ok && value != "" {
			if _, known := r.Lookup(key); known {
				if q.Filters == nil {
					q.Filters = make(map[string]string)
				}
				q.Filters[key] = value
				continue
			}
		}
		if token == "*" {
			continue
		}
		terms = append(terms, token)
	}
	q.Term = strings.Join(terms, " ")
	return q
}

func button(text, action string) transport.Button {
	return transport.Button{Text: text, Data: CallbackPrefix + action}
}

func confirmPrompt(text string) transport.Message {
	return transport.Message{
		Text:    text,
		Buttons: [][]transport.Button{transport.Row(button("Cancel", "cancel"))},
	}
}

func summaryLabel(item Summary) string {
	name := item.FullName
	if name == "" {
		name = "(no name)"
	}
	label := fmt.Sprintf("%s · %d", name, item.UserID)
	if item.Username != "" {
		label = fmt.Sprintf("%s (@%s) · %d", name, item.Username, item.UserID)
	}
	if item.IsDeleted {
		label += " [hidden]"
	}
	return label
}

func status(deleted, blocked bool) string {
	var parts []string
	if deleted {
		parts = append(parts, "hidden")
	}
	if blocked {
		parts = append(parts, "blocked")
	}
	if len(parts) == 0 {
		return "active"
	}
	return strings.Join(parts, ", ")
}
