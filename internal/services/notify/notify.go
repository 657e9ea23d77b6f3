// Package notify renders registrant messages and hands them to a transport.
package notify

import (
	"context"

	"github.com/valyala/fasttemplate"
)

const (
	TemplateCheckedIn = "checked_in"
	TemplateCalled    = "queue_called"
	TemplateRecalled  = "queue_recalled"
)

var templates = map[string]string{
	TemplateCheckedIn: "Checked in to {activity}. Your queue number is {ticket}.",
	TemplateCalled:    "Queue {ticket}: please proceed to {channel}.",
	TemplateRecalled:  "Reminder: queue {ticket}, please proceed to {channel} now.",
}

type Message struct {
	Template string            `json:"template"`
	Params   map[string]string `json:"params"`
}

// Text renders the message. Unknown templates render as their name so a
// registrant still gets something.
func (m Message) Text() string {
	tpl, ok := templates[m.Template]
	if !ok {
		return m.Template
	}
	values := make(map[string]interface{}, len(m.Params))
	for k, v := range m.Params {
		values[k] = v
	}
	return fasttemplate.ExecuteString(tpl, "{", "}", values)
}

// Notifier delivers a message to one registrant's linked contact.
type Notifier interface {
	Send(ctx context.Context, contactID string, msg Message) error
	Name() string
}

type Nop struct{}

func (Nop) Send(context.Context, string, Message) error { return nil }
func (Nop) Name() string                                { return "none" }
