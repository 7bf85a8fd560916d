package emailsvc

import (
	"io"
	"log"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-results/core"
	logsvc "github.com/trezcool/masomo-results/services/logger"
)

func setup() (*core.Config, core.Logger) {
	conf := &core.Config{AppName: "Masomo"}
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return conf, logger
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf, logger := setup()
	core.ParseEmailTemplates(logger)
	svc := NewConsoleServiceMock(conf, logger)
	ResetSentMessages()

	svc.SendMessages(
		&core.EmailMessage{Subject: "no recipient", BodyStr: "hello"},
		&core.EmailMessage{To: []mail.Address{{Address: "a@test.cd"}}, Subject: "no content"},
		&core.EmailMessage{To: []mail.Address{{Address: "a@test.cd"}}, Subject: "unknown", TemplateName: "lol"},
		&core.EmailMessage{To: []mail.Address{{Name: "Awe", Address: "a@test.cd"}}, Subject: "plain", BodyStr: "hello"},
	)
	assert.Len(t, SentMessages, 1)
	msg, ok := LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "plain", msg.Subject)
	assert.Equal(t, "hello", msg.TextContent)

	ResetSentMessages()
	_, ok = LastSentMessage()
	assert.False(t, ok)
}

func TestSendgridService_prepare(t *testing.T) {
	conf, logger := setup()
	svc := NewSendgridService(conf, logger).(*sendgridService)

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Awe", Address: "a@test.cd"}},
		Cc:          []mail.Address{{Address: "c@test.cd"}},
		Subject:     "CS101 results uploaded",
		TextContent: "text",
		HTMLContent: "<p>html</p>",
	})
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "["+conf.AppName+"] CS101 results uploaded", p.Subject)
	assert.Equal(t, "a@test.cd", p.To[0].Address)
	assert.Equal(t, "c@test.cd", p.CC[0].Address)
	assert.Equal(t, conf.DefaultFromEmail().Address, m.From.Address)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "text/html", m.Content[1].Type)
}
