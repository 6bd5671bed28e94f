package intake

import (
	"fmt"
	"strings"

	"resumedesk/internal/fields"
	"resumedesk/internal/resume"
	"resumedesk/internal/transport"
	"resumedesk/internal/upload"
)

// 回调数据前缀。
const (
	dataConsentAccept  = "consent:accept"
	dataConsentDecline = "consent:decline"
	prefixChoice       = "choice:"
	prefixSkill        = "skill:"
	dataSkillOther     = "skill:other"
	dataSkillContinue  = "skill:continue"
	prefixLevel        = "level:"
	dataUploadFinish   = "upload:finish"
	dataUploadSkip     = "upload:skip"
	dataConfirmSubmit  = "confirm:yes"
	dataConfirmEdit    = "confirm:edit"
	prefixEdit         = "edit:"
	dataEditDone       = "edit:done"
)

const (
	textConsent = "Welcome to the recruitment desk.\n\n" +
		"We will ask you a few questions about your studies, skills and experience. " +
		"Your answers are stored and reviewed by our hiring team. Do you agree to continue?"
	textDeclined      = "No problem. Your data was not collected. Send /start whenever you want to begin."
	textNoSession     = "Send /start to fill in your resume."
	textCancelled     = "Your form was discarded. Send /start to begin again."
	textPersistFailed = "Something went wrong while saving your answer. Please send it again in a moment."
	textSendFailed    = "We could not deliver the next question. Please send your last answer again."
	textSubmitted     = "Thank you! Your resume has been submitted. Our team will contact you if there is a match."
	textSkillOther    = "Type the name of the skill."
	textWorkDetails   = "Please describe your work experience briefly (company, role, duration)."
	textEditMenu      = "Which field do you want to change?"
	textUseButtons    = "Please use the buttons below."
)

func buttonRows(buttons []transport.Button, perRow int) [][]transport.Button {
	var rows [][]transport.Button
	for len(buttons) > 0 {
		n := perRow
		if len(buttons) < n {
			n = len(buttons)
		}
		rows = append(rows, transport.Row(buttons[:n]...))
		buttons = buttons[n:]
	}
	return rows
}

func consentPrompt() transport.Message {
	return transport.Message{
		Text: textConsent,
		Buttons: [][]transport.Button{transport.Row(
			transport.Button{Text: "I agree", Data: dataConsentAccept},
			transport.Button{Text: "No, thanks", Data: dataConsentDecline},
		)},
	}
}

// prompt 渲染会话当前步骤的提问。
func (e *Engine) prompt(s *Session) transport.Message {
	switch s.State {
	case StateConsent:
		return consentPrompt()
	case StateSkillOther:
		return transport.Text(textSkillOther)
	case StateSkillLevel:
		buttons := make([]transport.Button, 0, 3)
		for _, l := range resume.Levels() {
			buttons = append(buttons, transport.Button{Text: string(l), Data: prefixLevel + string(l)})
		}
		return transport.Message{
			Text:    fmt.Sprintf("Your level in %s?", s.PendingSkill),
			Buttons: [][]transport.Button{buttons},
		}
	case StateUploads:
		text := fmt.Sprintf("13. Work samples\nSend your resume or work samples as files (up to %d MB each). "+
			"Press \"Finish\" when you are done, or \"Skip\".", e.maxUploadBytes>>20)
		if n := len(s.Intake.UploadedFiles); n > 0 {
			text += fmt.Sprintf("\n\nFiles received: %d", n)
		}
		return transport.Message{
			Text: text,
			Buttons: [][]transport.Button{transport.Row(
				transport.Button{Text: "Finish", Data: dataUploadFinish},
				transport.Button{Text: "Skip", Data: dataUploadSkip},
			)},
		}
	case StateWorkHistoryDetails:
		return transport.Text(textWorkDetails)
	case StateConfirm:
		return transport.Message{
			Text: "Please review your answers:\n\n" + fields.Render(e.registry, &s.Intake),
			Buttons: [][]transport.Button{transport.Row(
				transport.Button{Text: "Submit", Data: dataConfirmSubmit},
				transport.Button{Text: "Edit", Data: dataConfirmEdit},
			)},
		}
	case StateEditMenu:
		editable := e.registry.Editable()
		buttons := make([]transport.Button, 0, len(editable))
		for _, f := range editable {
			buttons = append(buttons, transport.Button{Text: f.Label, Data: prefixEdit + f.Key})
		}
		rows := buttonRows(buttons, 2)
		rows = append(rows, transport.Row(transport.Button{Text: "Done editing", Data: dataEditDone}))
		return transport.Message{Text: textEditMenu, Buttons: rows}
	}

	f, ok := e.registry.Lookup(string(s.State))
	if !ok {
		return transport.Text(textNoSession)
	}
	if f.Kind == fields.KindSkills {
		return e.skillsPrompt(f, s)
	}

	msg := transport.Message{Text: f.Prompt}
	if s.Editing {
		if current := s.Intake.Text(f.Key); current != "" {
			msg.Text += "\n\nCurrent value: " + current
		}
	}
	if f.Kind == fields.KindChoice {
		buttons := make([]transport.Button, 0, len(f.Options))
		for _, opt := range f.Options {
			buttons = append(buttons, transport.Button{Text: opt, Data: prefixChoice + opt})
		}
		msg.Buttons = buttonRows(buttons, 2)
	}
	return msg
}

func (e *Engine) skillsPrompt(f fields.Field, s *Session) transport.Message {
	text := f.Prompt
	if len(s.Intake.Skills) > 0 {
		text += "\n\nYour skills:\n" + resume.FormatSkills(s.Intake.Skills)
	}
	buttons := make([]transport.Button, 0, len(f.Options)+1)
	for _, name := range f.Options {
		buttons = append(buttons, transport.Button{Text: name, Data: prefixSkill + name})
	}
	buttons = append(buttons, transport.Button{Text: "Other", Data: dataSkillOther})
	rows := buttonRows(buttons, 2)
	rows = append(rows, transport.Row(transport.Button{Text: "Continue", Data: dataSkillContinue}))
	return transport.Message{Text: text, Buttons: rows}
}

// withError 在提问前附加错误说明。
func withError(msg transport.Message, reason string) transport.Message {
	msg.Text = "⚠️ " + reason + "\n\n" + msg.Text
	return msg
}

func rejectionText(reason upload.Reason, detail string) string {
	switch reason {
	case upload.ReasonTooLarge:
		return "This file is too large: " + detail + "."
	case upload.ReasonInfected:
		return "This file was rejected by the malware scanner."
	default:
		return "We could not save this file. Please try again."
	}
}

func trimPrefix(data, prefix string) (string, bool) {
	if !strings.HasPrefix(data, prefix) {
		return "", false
	}
	return strings.TrimPrefix(data, prefix), true
}
