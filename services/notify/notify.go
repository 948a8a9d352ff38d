// Package notifysvc provides the notify.Sink implementations: console output for development,
// SendGrid email for production, or both.
package notifysvc

import (
	"github.com/pkg/errors"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/notify"
)

// NewSink returns the sink named by conf.Notify.Sink.
func NewSink(logger core.Logger, conf *core.Config) (notify.Sink, error) {
	switch conf.Notify.Sink {
	case "", "console":
		if conf.TestMode {
			return NewConsoleSinkMock(conf), nil
		}
		return NewConsoleSink(conf), nil
	case "sendgrid":
		return NewSendgridSink(logger, conf), nil
	case "multi":
		return MultiSink{NewConsoleSink(conf), NewSendgridSink(logger, conf)}, nil
	}
	return nil, errors.Errorf("unknown notification sink %q", conf.Notify.Sink)
}
