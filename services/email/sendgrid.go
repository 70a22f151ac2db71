package emailsvc

import (
	"net/http"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/somabem/erp/core"
)

const (
	sendAttempts = 3
	retryDelay   = 2 * time.Second
)

// mailer posts a message to the v3 mail/send endpoint; *sendgrid.Client implements it.
type mailer interface {
	Send(m *sgmail.SGMailV3) (*rest.Response, error)
}

// Deliveries rejected with 429 or 5xx are attempted again, up to sendAttempts times.
type sendgridService struct {
	client     mailer
	sender     *sgmail.Email
	subjPrefix string
	delay      time.Duration
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

// NewSendgridService delivers the emails through the SendGrid API, one goroutine per message.
func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		client:     sendgrid.NewSendClient(conf.SendgridApiKey),
		sender:     toSG(from),
		subjPrefix: "[" + conf.AppName + "] ",
		delay:      retryDelay,
		logger:     logger,
	}
}

func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go func(msg *core.EmailMessage) {
			if err := svc.deliver(msg); err != nil {
				svc.logger.Error("sending email: "+err.Error(), err)
			}
		}(msg)
	}
}

// deliver renders msg and posts it. Messages without recipients or content are dropped silently.
func (svc *sendgridService) deliver(msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return nil
	}
	v3 := svc.build(*msg)

	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(svc.delay * time.Duration(attempt-1))
		}
		res, err := svc.client.Send(v3)
		switch {
		case err != nil:
			lastErr = errors.Wrap(err, "calling sendgrid")
		case retryable(res.StatusCode):
			lastErr = errors.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
		case res.StatusCode >= http.StatusBadRequest:
			return errors.Errorf("sendgrid rejected the message (%d): %s", res.StatusCode, res.Body)
		default:
			return nil
		}
	}
	return errors.Wrapf(lastErr, "giving up after %d attempts", sendAttempts)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// build maps msg onto a single-personalization v3 message.
func (svc *sendgridService) build(msg core.EmailMessage) *sgmail.SGMailV3 {
	rcpt := sgmail.NewPersonalization()
	rcpt.Subject = svc.subjPrefix + msg.Subject
	rcpt.AddTos(toSGList(msg.To)...)
	if len(msg.Cc) > 0 {
		rcpt.AddCCs(toSGList(msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		rcpt.AddBCCs(toSGList(msg.Bcc)...)
	}

	v3 := sgmail.NewV3Mail().SetFrom(svc.sender)
	v3.AddPersonalizations(rcpt)
	v3.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		v3.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	for _, at := range msg.Attachments {
		file := sgmail.NewAttachment()
		file.SetContent(at.Content.String()) // already base64
		file.SetType(at.ContentType)
		file.SetFilename(at.Filename)
		file.SetDisposition("attachment")
		v3.AddAttachment(file)
	}
	return v3
}

func toSG(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

func toSGList(addrs []mail.Address) []*sgmail.Email {
	list := make([]*sgmail.Email, len(addrs))
	for i, a := range addrs {
		list[i] = toSG(a)
	}
	return list
}
