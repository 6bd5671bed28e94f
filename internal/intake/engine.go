// Package intake 实现面向求职者的分步收集流程：校验、逐步持久化、技能循环、工作经历分支、附件与确认后编辑。
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"resumedesk/internal/fields"
	"resumedesk/internal/metrics"
	"resumedesk/internal/resume"
	"resumedesk/internal/transport"
	"resumedesk/internal/upload"
)

const maxSkillNameRunes = 64

// Records 持久化 intake 字段组。
type Records interface {
	SaveIntake(ctx context.Context, userID int64, in resume.Intake) error
}

// Uploader 接收附件。
type Uploader interface {
	Accept(ctx context.Context, userID int64, att upload.Attachment) upload.Outcome
	MaxBytes() int64
}

// Notifier 在提交完成后通知运营。
type Notifier interface {
	NotifySubmission(ctx context.Context, userID int64) error
}

// Recorder 写入活动日志。
type Recorder interface {
	Info(ctx context.Context, msg string, attrs ...slog.Attr)
	Error(ctx context.Context, msg string, attrs ...slog.Attr)
}

// Config 汇总 Engine 的依赖。Notifier 与 Activity 可为空。
type Config struct {
	Registry  *fields.Registry
	Sessions  SessionStore
	Records   Records
	Uploads   Uploader
	Messenger transport.Messenger
	Notifier  Notifier
	Activity  Recorder
	Logger    *slog.Logger
}

// Engine 驱动每个用户的收集状态机。同一用户的事件必须串行调用 Handle。
type Engine struct {
	registry       *fields.Registry
	sessions       SessionStore
	records        Records
	uploads        Uploader
	messenger      transport.Messenger
	notifier       Notifier
	activity       Recorder
	logger         *slog.Logger
	now            func() time.Time
	flow           []State
	maxUploadBytes int64
}

// NewEngine 创建 Engine，线性步骤顺序取自字段表，附件步骤紧跟技能之后。
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	activity := cfg.Activity
	if activity == nil {
		activity = nopRecorder{}
	}
	e := &Engine{
		registry:       cfg.Registry,
		sessions:       cfg.Sessions,
		records:        cfg.Records,
		uploads:        cfg.Uploads,
		messenger:      cfg.Messenger,
		notifier:       cfg.Notifier,
		activity:       activity,
		logger:         logger.With(slog.String("component", "intake")),
		now:            time.Now,
		maxUploadBytes: upload.DefaultMaxBytes,
	}
	if cfg.Uploads != nil {
		e.maxUploadBytes = cfg.Uploads.MaxBytes()
	}
	for _, f := range cfg.Registry.Editable() {
		e.flow = append(e.flow, State(f.Key))
		if f.Kind == fields.KindSkills {
			e.flow = append(e.flow, StateUploads)
		}
	}
	e.flow = append(e.flow, StateConfirm)
	return e
}

// outcome 是一次输入的处理结果。session 为 nil 表示会话保持不变。
type outcome struct {
	session *Session
	reply   transport.Message
	persist bool
	submit  bool
	drop    bool
	result  string
}

// Handle 处理一个用户事件：校验、写入会话副本、持久化、发送下一问，发送成功后才提交会话。
func (e *Engine) Handle(ctx context.Context, ev transport.Event) error {
	logger := e.logger.With(slog.Int64("user_id", ev.UserID))

	switch {
	case ev.IsCommand("/start"):
		return e.start(ctx, ev.UserID, logger)
	case ev.IsCommand("/cancel"):
		return e.cancel(ctx, ev.UserID, logger)
	}

	sess, ok, err := e.sessions.Get(ctx, ev.UserID)
	if err != nil {
		logger.Error("load session", slog.Any("error", err))
		return err
	}
	if !ok {
		return e.messenger.Send(ctx, ev.UserID, transport.Text(textNoSession))
	}

	step := string(sess.State)
	out := e.apply(ctx, sess.Clone(), ev, logger)

	if out.persist {
		if err := e.records.SaveIntake(ctx, ev.UserID, out.session.Intake); err != nil {
			metrics.ObserveIntakeStep(step, metrics.ResultError)
			logger.Error("persist intake", slog.String("step", step), slog.Any("error", err))
			e.activity.Error(ctx, "persist intake failed", slog.Int64("user_id", ev.UserID), slog.String("step", step))
			_ = e.messenger.Send(ctx, ev.UserID, transport.Text(textPersistFailed))
			return err
		}
	}

	if out.submit {
		return e.submit(ctx, out.session, logger)
	}

	if err := e.messenger.Send(ctx, ev.UserID, out.reply); err != nil {
		metrics.ObserveIntakeStep(step, metrics.ResultError)
		logger.Warn("send prompt failed, session not advanced", slog.String("step", step), slog.Any("error", err))
		_ = e.messenger.Send(ctx, ev.UserID, transport.Text(textSendFailed))
		return err
	}
	metrics.ObserveIntakeStep(step, out.result)

	switch {
	case out.drop:
		if err := e.sessions.Delete(ctx, ev.UserID); err != nil {
			logger.Error("delete session", slog.Any("error", err))
			return err
		}
	case out.session != nil:
		if err := e.sessions.Put(ctx, out.session); err != nil {
			logger.Error("save session", slog.Any("error", err))
			return err
		}
	}
	return nil
}

func (e *Engine) start(ctx context.Context, userID int64, logger *slog.Logger) error {
	if err := e.sessions.Delete(ctx, userID); err != nil {
		logger.Error("discard session", slog.Any("error", err))
		return err
	}
	if err := e.messenger.Send(ctx, userID, consentPrompt()); err != nil {
		logger.Warn("send consent failed", slog.Any("error", err))
		return err
	}
	return e.sessions.Put(ctx, &Session{UserID: userID, State: StateConsent})
}

func (e *Engine) cancel(ctx context.Context, userID int64, logger *slog.Logger) error {
	if err := e.sessions.Delete(ctx, userID); err != nil {
		logger.Error("discard session", slog.Any("error", err))
		return err
	}
	e.activity.Info(ctx, "intake cancelled", slog.Int64("user_id", userID))
	return e.messenger.Send(ctx, userID, transport.Text(textCancelled))
}

func (e *Engine) submit(ctx context.Context, s *Session, logger *slog.Logger) error {
	if err := e.messenger.Send(ctx, s.UserID, transport.Text(textSubmitted)); err != nil {
		metrics.ObserveIntakeStep(string(StateConfirm), metrics.ResultError)
		logger.Warn("send submission receipt failed, session kept at confirmation", slog.Any("error", err))
		_ = e.messenger.Send(ctx, s.UserID, transport.Text(textSendFailed))
		return err
	}
	s.State = StateFinished
	metrics.ObserveIntakeStep(string(StateConfirm), metrics.ResultOK)
	metrics.ObserveSubmission()

	if err := e.sessions.Delete(ctx, s.UserID); err != nil {
		logger.Error("clear finished session", slog.Any("error", err))
	}
	e.activity.Info(ctx, "resume submitted", slog.Int64("user_id", s.UserID))
	logger.Info("resume submitted")

	if e.notifier != nil {
		if err := e.notifier.NotifySubmission(ctx, s.UserID); err != nil {
			logger.Error("notify operators", slog.Any("error", err))
		}
	}
	return nil
}

func (e *Engine) apply(ctx context.Context, s *Session, ev transport.Event, logger *slog.Logger) outcome {
	switch s.State {
	case StateConsent:
		return e.applyConsent(s, ev)
	case StateSkillOther:
		return e.applySkillOther(s, ev)
	case StateSkillLevel:
		return e.applySkillLevel(s, ev)
	case StateUploads:
		return e.applyUpload(ctx, s, ev, logger)
	case StateWorkHistoryDetails:
		return e.applyWorkDetails(s, ev)
	case StateConfirm:
		return e.applyConfirm(s, ev)
	case StateEditMenu:
		return e.applyEditMenu(s, ev)
	}

	f, ok := e.registry.Lookup(string(s.State))
	if !ok {
		logger.Warn("session in unknown state, restarting", slog.String("state", string(s.State)))
		fresh := &Session{UserID: s.UserID, State: StateConsent}
		return outcome{session: fresh, reply: consentPrompt(), result: metrics.ResultError}
	}
	if f.Kind == fields.KindSkills {
		return e.applySkills(s, ev)
	}
	return e.applyField(s, f, ev)
}

func (e *Engine) invalid(s *Session, note string) outcome {
	return outcome{reply: withError(e.prompt(s), note), result: metrics.ResultInvalid}
}

func (e *Engine) accepted(s *Session, persist bool) outcome {
	return outcome{session: s, reply: e.prompt(s), persist: persist, result: metrics.ResultOK}
}

// after 返回线性流程中 from 的下一步。
func (e *Engine) after(from State) State {
	for i, st := range e.flow {
		if st == from && i+1 < len(e.flow) {
			return e.flow[i+1]
		}
	}
	return StateConfirm
}

// advance 结束当前字段：编辑模式回到编辑菜单，否则进入下一步。
func (e *Engine) advance(s *Session, from State) {
	if s.Editing {
		s.State = StateEditMenu
		s.EditTarget = ""
		return
	}
	s.State = e.after(from)
}

func (e *Engine) applyConsent(s *Session, ev transport.Event) outcome {
	switch ev.Data {
	case dataConsentAccept:
		s.State = e.flow[0]
		return e.accepted(s, false)
	case dataConsentDecline:
		return outcome{drop: true, reply: transport.Text(textDeclined), result: metrics.ResultOK}
	}
	return e.invalid(s, textUseButtons)
}

func (e *Engine) applyField(s *Session, f fields.Field, ev transport.Event) outcome {
	input := ev.Text
	if v, ok := trimPrefix(ev.Data, prefixChoice); ok {
		input = v
	}
	if ev.Attachment != nil || strings.TrimSpace(input) == "" {
		if f.Kind == fields.KindChoice {
			return e.invalid(s, textUseButtons)
		}
		return e.invalid(s, "Please answer with a text message.")
	}

	value, err := f.Validate(input)
	if err != nil {
		return e.invalid(s, "Invalid answer: "+reasonOf(err)+".")
	}

	if f.Key == resume.KeyWorkHistory && value == fields.AnswerYes {
		s.Intake.WorkHistory = value
		s.State = StateWorkHistoryDetails
		return e.accepted(s, true)
	}

	if err := s.Intake.SetText(f.Key, value); err != nil {
		return e.invalid(s, "Invalid answer.")
	}
	if f.Key == resume.KeyFullName && s.Intake.RegisterDate == nil {
		now := e.now()
		s.Intake.RegisterDate = &now
	}
	e.advance(s, State(f.Key))
	return e.accepted(s, true)
}

func (e *Engine) applySkills(s *Session, ev transport.Event) outcome {
	switch ev.Data {
	case dataSkillContinue:
		e.advance(s, State(resume.KeySkills))
		return e.accepted(s, false)
	case dataSkillOther:
		s.State = StateSkillOther
		return e.accepted(s, false)
	}
	if name, ok := trimPrefix(ev.Data, prefixSkill); ok && inCatalog(name) {
		s.PendingSkill = name
		s.State = StateSkillLevel
		return e.accepted(s, false)
	}
	return e.invalid(s, textUseButtons)
}

func (e *Engine) applySkillOther(s *Session, ev transport.Event) outcome {
	name := strings.Join(strings.Fields(ev.Text), " ")
	if ev.Attachment != nil || name == "" || len([]rune(name)) > maxSkillNameRunes || strings.Contains(name, ":") {
		return e.invalid(s, fmt.Sprintf("Please type a skill name (up to %d characters, no colons).", maxSkillNameRunes))
	}
	s.PendingSkill = name
	s.State = StateSkillLevel
	return e.accepted(s, false)
}

func (e *Engine) applySkillLevel(s *Session, ev transport.Event) outcome {
	raw := ev.Text
	if v, ok := trimPrefix(ev.Data, prefixLevel); ok {
		raw = v
	}
	level, ok := resume.ParseLevel(raw)
	if !ok || s.PendingSkill == "" {
		return e.invalid(s, textUseButtons)
	}
	s.Intake.UpsertSkill(resume.Skill{Name: s.PendingSkill, Level: level})
	s.PendingSkill = ""
	s.State = State(resume.KeySkills)
	return e.accepted(s, true)
}

func (e *Engine) applyUpload(ctx context.Context, s *Session, ev transport.Event, logger *slog.Logger) outcome {
	switch ev.Data {
	case dataUploadFinish, dataUploadSkip:
		e.advance(s, StateUploads)
		return e.accepted(s, false)
	}
	if ev.Attachment == nil {
		return e.invalid(s, "Send a file or use the buttons below.")
	}

	res := e.uploads.Accept(ctx, s.UserID, *ev.Attachment)
	if !res.Accepted() {
		reason, detail := upload.ReasonStorage, ""
		if res.Rejection != nil {
			reason, detail = res.Rejection.Reason, res.Rejection.Detail
		}
		metrics.ObserveUpload(string(reason))
		logger.Info("upload rejected", slog.String("reason", string(reason)))
		out := e.invalid(s, rejectionText(reason, detail))
		out.result = metrics.ResultRejected
		return out
	}

	metrics.ObserveUpload(metrics.ResultOK)
	s.Intake.AddFile(res.Path)
	out := e.accepted(s, true)
	out.reply.Text = "File received.\n\n" + out.reply.Text
	return out
}

func (e *Engine) applyWorkDetails(s *Session, ev transport.Event) outcome {
	if ev.Attachment != nil {
		return e.invalid(s, "Please answer with a text message.")
	}
	details, err := fields.ValidateFreeText(resume.KeyWorkHistory, ev.Text)
	if err != nil {
		return e.invalid(s, "Invalid answer: "+reasonOf(err)+".")
	}
	s.Intake.WorkHistory = fields.WorkHistoryWithDetails(details)
	e.advance(s, State(resume.KeyWorkHistory))
	return e.accepted(s, true)
}

func (e *Engine) applyConfirm(s *Session, ev transport.Event) outcome {
	switch ev.Data {
	case dataConfirmSubmit:
		return outcome{session: s, persist: true, submit: true, result: metrics.ResultOK}
	case dataConfirmEdit:
		s.Editing = true
		s.State = StateEditMenu
		return e.accepted(s, false)
	}
	return e.invalid(s, textUseButtons)
}

func (e *Engine) applyEditMenu(s *Session, ev transport.Event) outcome {
	if ev.Data == dataEditDone {
		s.Editing = false
		s.EditTarget = ""
		s.State = StateConfirm
		return e.accepted(s, false)
	}
	if key, ok := trimPrefix(ev.Data, prefixEdit); ok && e.registry.IsEditable(key) {
		s.EditTarget = key
		s.State = State(key)
		return e.accepted(s, false)
	}
	return e.invalid(s, textUseButtons)
}

func inCatalog(name string) bool {
	for _, n := range fields.SkillCatalog {
		if n == name {
			return true
		}
	}
	return false
}

func reasonOf(err error) string {
	var verr *fields.ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return "invalid input"
}

type nopRecorder struct{}

func (nopRecorder) Info(context.Context, string, ...slog.Attr)  {}
func (nopRecorder) Error(context.Context, string, ...slog.Attr) {}
