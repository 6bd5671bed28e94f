// Package transport 定义与聊天网关之间的收发契约。
package transport

import (
	"context"

	"resumedesk/internal/upload"
)

// Button 是内联按钮，Data 随回调事件原样带回。
type Button struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

// Message 是一条带可选按钮行的文本消息。
type Message struct {
	Text    string     `json:"text"`
	Buttons [][]Button `json:"buttons,omitempty"`
}

// Document 是一条文件消息，Key 指向对象存储中的对象。
type Document struct {
	Name    string `json:"name"`
	Key     string `json:"key"`
	Caption string `json:"caption,omitempty"`
}

// Messenger 向用户发送消息。
type Messenger interface {
	Send(ctx context.Context, chatID int64, msg Message) error
	SendDocument(ctx context.Context, chatID int64, doc Document) error
}

// Event 是网关投递的一次用户输入：文本、按钮回调或附件之一。
type Event struct {
	UserID     int64              `json:"user_id"`
	Username   string             `json:"username,omitempty"`
	Text       string             `json:"text,omitempty"`
	Data       string             `json:"data,omitempty"`
	Attachment *upload.Attachment `json:"-"`
}

// IsCommand 判断文本是否为指定命令（如 /start）。
func (e Event) IsCommand(name string) bool {
	return e.Text == name || len(e.Text) > len(name) && e.Text[:len(name)+1] == name+" "
}

// Row 把若干按钮组成一行。
func Row(buttons ...Button) []Button { return buttons }

// Text 构造不带按钮的消息。
func Text(text string) Message { return Message{Text: text} }
