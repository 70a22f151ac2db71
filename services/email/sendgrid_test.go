package emailsvc

import (
	"bytes"
	"net/http"
	"net/mail"
	"testing"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
)

// fakeMailer answers with the queued responses, then 202.
type fakeMailer struct {
	replies []reply
	sent    []*sgmail.SGMailV3
}

type reply struct {
	status int
	err    error
}

func (m *fakeMailer) Send(v3 *sgmail.SGMailV3) (*rest.Response, error) {
	m.sent = append(m.sent, v3)
	r := reply{status: http.StatusAccepted}
	if len(m.replies) > 0 {
		r, m.replies = m.replies[0], m.replies[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &rest.Response{StatusCode: r.status, Body: "{}"}, nil
}

func newTestSendgrid(client mailer) *sendgridService {
	return &sendgridService{
		client:     client,
		sender:     sgmail.NewEmail("SomaBem", "noreply@somabem.ao"),
		subjPrefix: "[SomaBem] ",
		logger:     core.NopLogger{},
	}
}

func TestSendgridService_build(t *testing.T) {
	svc := newTestSendgrid(&fakeMailer{})
	v3 := svc.build(core.EmailMessage{
		To:          []mail.Address{{Name: "Ana", Address: "ana@school.ao"}, {Address: "beto@school.ao"}},
		Bcc:         []mail.Address{{Address: "arquivo@school.ao"}},
		Subject:     "Recibo",
		TextContent: "segue o recibo",
		Attachments: []core.Attachment{
			{Content: bytes.NewBufferString("JVBERi0="), ContentType: "application/pdf", Filename: "recibo.pdf"},
		},
	})

	require.Len(t, v3.Personalizations, 1)
	p := v3.Personalizations[0]
	assert.Equal(t, "[SomaBem] Recibo", p.Subject)
	assert.Equal(t, []*sgmail.Email{{Name: "Ana", Address: "ana@school.ao"}, {Address: "beto@school.ao"}}, p.To)
	assert.Empty(t, p.CC)
	assert.Equal(t, []*sgmail.Email{{Address: "arquivo@school.ao"}}, p.BCC)
	assert.Equal(t, "noreply@somabem.ao", v3.From.Address)

	require.Len(t, v3.Content, 1, "no html part without html content")
	assert.Equal(t, "text/plain", v3.Content[0].Type)
	require.Len(t, v3.Attachments, 1)
	assert.Equal(t, "JVBERi0=", v3.Attachments[0].Content)
	assert.Equal(t, "attachment", v3.Attachments[0].Disposition)
}

func TestSendgridService_deliver(t *testing.T) {
	msg := func() *core.EmailMessage {
		return &core.EmailMessage{To: []mail.Address{{Address: "ana@school.ao"}}, Subject: "s", BodyStr: "olá"}
	}
	tests := []struct {
		name      string
		msg       *core.EmailMessage
		replies   []reply
		wantCalls int
		wantErr   bool
	}{
		{name: "accepted", msg: msg(), wantCalls: 1},
		{name: "no recipients", msg: &core.EmailMessage{Subject: "s", BodyStr: "olá"}, wantCalls: 0},
		{name: "rate limited then accepted", msg: msg(), replies: []reply{{status: http.StatusTooManyRequests}}, wantCalls: 2},
		{
			name: "network error then accepted", msg: msg(),
			replies: []reply{{err: errors.New("connection reset")}}, wantCalls: 2,
		},
		{name: "bad request is final", msg: msg(), replies: []reply{{status: http.StatusBadRequest}}, wantCalls: 1, wantErr: true},
		{
			name: "server errors exhaust the attempts", msg: msg(),
			replies:   []reply{{status: 500}, {status: 502}, {status: 503}, {status: 202}},
			wantCalls: sendAttempts, wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeMailer{replies: tt.replies}
			err := newTestSendgrid(client).deliver(tt.msg)
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
			assert.Len(t, client.sent, tt.wantCalls)
		})
	}
}

func Test_retryable(t *testing.T) {
	for status, want := range map[int]bool{
		http.StatusAccepted:            false,
		http.StatusBadRequest:          false,
		http.StatusUnauthorized:        false,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusServiceUnavailable:  true,
	} {
		assert.Equal(t, want, retryable(status), "status %d", status)
	}
}
