package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
)

func TestConsoleServiceMock(t *testing.T) {
	conf := core.NewTestConfig()
	core.ParseEmailTemplates(conf, core.NopLogger{})
	svc := NewConsoleServiceMock(conf)

	to := []mail.Address{{Name: "Ana", Address: "ana@school.ao"}}
	tests := []struct {
		name     string
		msg      core.EmailMessage
		wantSent bool
	}{
		{name: "no recipients", msg: core.EmailMessage{Subject: "s", BodyStr: "hi"}},
		{name: "no content", msg: core.EmailMessage{To: to, Subject: "s"}},
		{name: "plain body", msg: core.EmailMessage{To: to, Subject: "s", BodyStr: "hi"}, wantSent: true},
		{
			name: "template",
			msg: core.EmailMessage{
				To:           to,
				Subject:      "Password reset",
				TemplateName: "password_reset",
				TemplateData: map[string]string{"Name": "Ana", "UID": "dWlk", "Token": "tok"},
			},
			wantSent: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.Reset()
			msg := tt.msg
			svc.SendMessages(&msg)

			sent := svc.SentMessages()
			if !tt.wantSent {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			assert.NotEmpty(t, sent[0].TextContent)
		})
	}

	svc.Reset()
	svc.SendMessages(&core.EmailMessage{
		To:           to,
		TemplateName: "password_reset",
		TemplateData: map[string]string{"Name": "Ana", "UID": "dWlk", "Token": "tok"},
	})
	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "Hello Ana")
	assert.Contains(t, sent[0].TextContent, conf.FrontendBaseURL+"/password-reset/dWlk/tok")
	assert.Contains(t, sent[0].HTMLContent, "Ana")
}

func TestConsoleServiceFormat(t *testing.T) {
	conf := core.NewTestConfig()
	svc := &consoleService{from: conf.DefaultFromEmail(), subjPrefix: "[SomaBem] ", logger: core.NopLogger{}}

	msg := core.EmailMessage{
		To:          []mail.Address{{Address: "a@b.ao"}},
		Cc:          []mail.Address{{Address: "c@b.ao"}},
		Subject:     "Receipt",
		TextContent: "see attached",
	}
	require.NoError(t, msg.Attach(bytes.NewBufferString("%PDF-1.4"), "receipt.pdf", "application/pdf"))

	body, err := svc.format(msg)
	require.NoError(t, err)
	assert.Contains(t, body, "Subject: [SomaBem] Receipt\r\n")
	assert.Contains(t, body, "To: <a@b.ao>\r\n")
	assert.Contains(t, body, "CC: <c@b.ao>\r\n")
	assert.NotContains(t, body, "BCC:")
	assert.Contains(t, body, "multipart/mixed; boundary=")
	assert.Contains(t, body, "attachment; filename=receipt.pdf")
	assert.True(t, strings.Contains(body, "see attached"))
}
