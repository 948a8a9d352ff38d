package notify_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/notify"
	"github.com/trezcool/shala/tests"
)

func TestEventBus_Dispatch(t *testing.T) {
	logger := testutil.NewLogger(t)

	var handled int32
	ok := func(ctx context.Context, ev notify.Event) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}
	failing := func(ctx context.Context, ev notify.Event) error {
		return errors.New("gateway down")
	}
	panicking := func(ctx context.Context, ev notify.Event) error {
		panic("boom")
	}

	bus := notify.NewEventBus(logger, time.Second, failing, panicking, ok)
	for i := 0; i < 5; i++ {
		bus.Dispatch(notify.AttendanceMarked{SchoolID: "s1"})
	}
	bus.Wait()

	assert.EqualValues(t, 5, atomic.LoadInt32(&handled), "a failing handler must not stop the others")
	assert.Equal(t, 10, logger.ErrorCount())
}

func TestEventBus_detachedContext(t *testing.T) {
	logger := testutil.NewLogger(t)

	var ctxErr error
	bus := notify.NewEventBus(logger, time.Second, func(ctx context.Context, ev notify.Event) error {
		ctxErr = ctx.Err()
		return nil
	})
	bus.Dispatch(notify.NoticeCreated{})
	bus.Wait()
	assert.NoError(t, ctxErr)
}

func TestSinkHandler(t *testing.T) {
	conf := core.NewTestConfig()
	composer, err := notify.NewComposer(conf)
	require.NoError(t, err)

	sink := &testutil.Sink{}
	bus := notify.NewSyncEventBus(testutil.NewLogger(t), notify.SinkHandler(composer, sink))

	bus.Dispatch(notify.AttendanceMarked{
		SchoolID: "s1",
		Date:     core.NewDate(2024, time.March, 4),
		Absentees: []notify.Recipient{
			{StudentID: "1", Name: "Amani", Contact: "+254700000001"},
			{StudentID: "2", Name: "Baraka"}, // no contact
		},
	})
	require.Equal(t, 1, sink.BatchCount())
	msgs := sink.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "+254700000001", msgs[0].Recipient.Contact)
	assert.Equal(t, "Dear parent, Amani was marked absent on 2024-03-04.", msgs[0].Text)

	// no recipient with a contact: the sink is not called
	bus.Dispatch(notify.NoticeCreated{Title: "Closed", Recipients: []notify.Recipient{{Name: "Baraka"}}})
	assert.Equal(t, 1, sink.BatchCount())

	bus.Dispatch(notify.NoticeCreated{
		Title:      "Closed",
		Body:       "School is closed on Friday.",
		Urgent:     true,
		Recipients: []notify.Recipient{{Name: "Amani", Contact: "a@test.cd"}, {Name: "Chausiku", Contact: "c@test.cd"}},
	})
	require.Equal(t, 2, sink.BatchCount())
	msgs = sink.Messages()[1:]
	require.Len(t, msgs, 2)
	assert.Equal(t, "[URGENT] Closed", msgs[0].Subject)
	assert.Equal(t, "[URGENT] Closed\n\nSchool is closed on Friday.", msgs[1].Text)
}

func TestSinkHandler_sinkErrorIsLogged(t *testing.T) {
	composer, err := notify.NewComposer(core.NewTestConfig())
	require.NoError(t, err)

	logger := testutil.NewLogger(t)
	sink := &testutil.Sink{Err: errors.New("provider unavailable")}
	bus := notify.NewSyncEventBus(logger, notify.SinkHandler(composer, sink))

	assert.NotPanics(t, func() {
		bus.Dispatch(notify.StudyMessageCreated{
			Subject:    "Maths",
			Body:       "Revise fractions",
			Recipients: []notify.Recipient{{Name: "Amani", Contact: "+254700000001"}},
		})
	})
	assert.Equal(t, 1, logger.ErrorCount())
}

func TestNewComposer_invalidTemplate(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Notify.AbsenceMessage = "{{.Name"
	_, err := notify.NewComposer(conf)
	assert.Error(t, err)
}
