package notifysvc

import (
	"context"

	"go.uber.org/multierr"

	"github.com/trezcool/shala/core/notify"
)

// MultiSink hands every batch to each of its sinks, even when one of them fails.
type MultiSink []notify.Sink

var _ notify.Sink = (MultiSink)(nil)

func (ms MultiSink) SendBatch(ctx context.Context, msgs []notify.Message) error {
	var err error
	for _, s := range ms {
		err = multierr.Append(err, s.SendBatch(ctx, msgs))
	}
	return err
}
