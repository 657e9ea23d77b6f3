package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageText(t *testing.T) {
	msg := Message{
		Template: TemplateCalled,
		Params:   map[string]string{"ticket": "ANE-007", "channel": "Room 3"},
	}
	assert.Equal(t, "Queue ANE-007: please proceed to Room 3.", msg.Text())
}

func TestMessageText_MissingParamRendersEmpty(t *testing.T) {
	msg := Message{Template: TemplateRecalled, Params: map[string]string{"ticket": "ANE-001"}}
	assert.Equal(t, "Reminder: queue ANE-001, please proceed to  now.", msg.Text())
}

func TestMessageText_UnknownTemplate(t *testing.T) {
	assert.Equal(t, "custom", Message{Template: "custom"}.Text())
}
