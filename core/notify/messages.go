package notify

import (
	"bytes"
	"context"
	"text/template"

	"github.com/pkg/errors"

	"github.com/trezcool/shala/core"
)

type absenceData struct {
	Name   string
	Date   string
	School string
}

// Composer turns events into parent messages.
type Composer struct {
	absence *template.Template
}

func NewComposer(conf *core.Config) (*Composer, error) {
	tmpl, err := template.New("absence").Option("missingkey=error").Parse(conf.Notify.AbsenceMessage)
	if err != nil {
		return nil, errors.Wrap(err, "parsing absence message template")
	}
	return &Composer{absence: tmpl}, nil
}

// Compose returns one message per recipient with a contact. Unknown events yield no message.
func (c *Composer) Compose(ev Event) ([]Message, error) {
	switch ev := ev.(type) {
	case AttendanceMarked:
		msgs := make([]Message, 0, len(ev.Absentees))
		for _, r := range withContact(ev.Absentees) {
			var buf bytes.Buffer
			data := absenceData{Name: r.Name, Date: ev.Date.String(), School: ev.SchoolID}
			if err := c.absence.Execute(&buf, data); err != nil {
				return nil, errors.Wrap(err, "rendering absence message")
			}
			msgs = append(msgs, Message{Recipient: r, Subject: "Absence", Text: buf.String()})
		}
		return msgs, nil

	case NoticeCreated:
		subject := ev.Title
		if ev.Urgent {
			subject = "[URGENT] " + subject
		}
		return broadcast(ev.Recipients, subject, subject+"\n\n"+ev.Body), nil

	case StudyMessageCreated:
		return broadcast(ev.Recipients, ev.Subject, ev.Subject+": "+ev.Body), nil
	}
	return nil, nil
}

// SinkHandler composes the messages of every event and sends them to `sink` in one batch.
func SinkHandler(composer *Composer, sink Sink) HandlerFunc {
	return func(ctx context.Context, ev Event) error {
		msgs, err := composer.Compose(ev)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		return errors.Wrapf(sink.SendBatch(ctx, msgs), "sending %d messages", len(msgs))
	}
}

func broadcast(recipients []Recipient, subject, text string) []Message {
	recipients = withContact(recipients)
	msgs := make([]Message, 0, len(recipients))
	for _, r := range recipients {
		msgs = append(msgs, Message{Recipient: r, Subject: subject, Text: text})
	}
	return msgs
}

func withContact(recipients []Recipient) []Recipient {
	filtered := make([]Recipient, 0, len(recipients))
	for _, r := range recipients {
		if core.CleanString(r.Contact) != "" {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
