package notifysvc

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/notify"
)

var (
	SentMessages = make([]notify.Message, 0)
	mu           sync.Mutex
)

// consoleSink writes the messages to the standard logger instead of delivering them.
type consoleSink struct {
	appName       string
	disableOutput bool
}

var _ notify.Sink = (*consoleSink)(nil)

func NewConsoleSink(conf *core.Config) notify.Sink {
	return &consoleSink{appName: conf.AppName}
}

// NewConsoleSinkMock records the messages in SentMessages without printing them.
func NewConsoleSinkMock(conf *core.Config) notify.Sink {
	return &consoleSink{appName: conf.AppName, disableOutput: true}
}

func (s consoleSink) SendBatch(_ context.Context, msgs []notify.Message) error {
	for _, msg := range msgs {
		if !s.disableOutput {
			log.Println(s.format(msg))
		}
	}
	mu.Lock()
	SentMessages = append(SentMessages, msgs...)
	mu.Unlock()
	return nil
}

func (s consoleSink) format(msg notify.Message) string {
	b := new(strings.Builder)
	_, _ = fmt.Fprintf(b, "From: %s\r\n", s.appName)
	_, _ = fmt.Fprintf(b, "Date: %s\r\n", core.NowFunc().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(b, "To: %s <%s>\r\n", msg.Recipient.Name, msg.Recipient.Contact)
	if msg.Subject != "" {
		_, _ = fmt.Fprintf(b, "Subject: [%s] %s\r\n", s.appName, msg.Subject)
	}
	_, _ = fmt.Fprintf(b, "\r\n%s\r\n", msg.Text)
	return b.String()
}

// ResetSentMessages empties SentMessages.
func ResetSentMessages() {
	mu.Lock()
	SentMessages = SentMessages[:0]
	mu.Unlock()
}
