package notifysvc

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sethvargo/go-retry"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/notify"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
	sendgridRetries  = 3
)

// sendgridSink emails the parents whose contact is an email address. Other contacts are skipped.
type sendgridSink struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
	backoff    time.Duration
	logger     core.Logger
}

var _ notify.Sink = (*sendgridSink)(nil)

func NewSendgridSink(logger core.Logger, conf *core.Config) *sendgridSink {
	return &sendgridSink{
		key:        conf.SendgridApiKey,
		host:       sendgridHost,
		from:       sgmail.NewEmail(conf.AppName, conf.DefaultFromEmail),
		subjPrefix: "[" + conf.AppName + "] ",
		backoff:    200 * time.Millisecond,
		logger:     logger,
	}
}

func (s sendgridSink) SendBatch(ctx context.Context, msgs []notify.Message) error {
	var failed int
	for _, msg := range msgs {
		addr, err := mail.ParseAddress(msg.Recipient.Contact)
		if err != nil {
			continue // not an email contact
		}
		if err = s.send(ctx, s.prepare(msg, addr)); err != nil {
			s.logger.Error(fmt.Sprintf("emailing %s: %v", addr.Address, err), err)
			failed++
		}
	}
	if failed > 0 {
		return errors.Errorf("%d emails could not be sent", failed)
	}
	return nil
}

func (s sendgridSink) prepare(msg notify.Message, to *mail.Address) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.Recipient.Name, to.Address))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	return m
}

// send retries on network errors, rate limiting and server errors.
func (s sendgridSink) send(ctx context.Context, m *sgmail.SGMailV3) error {
	body := sgmail.GetRequestBody(m)
	backoff := retry.WithMaxRetries(sendgridRetries, retry.NewExponential(s.backoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
		req.Method = http.MethodPost
		req.Body = body

		res, err := sendgrid.API(req)
		switch {
		case err != nil:
			return retry.RetryableError(errors.Wrap(err, "calling sendgrid"))
		case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError:
			return retry.RetryableError(errors.Errorf("sendgrid status: %d", res.StatusCode))
		case res.StatusCode >= http.StatusBadRequest:
			return errors.Errorf("sendgrid status: %d - body: %s", res.StatusCode, res.Body)
		}
		return nil
	})
}
