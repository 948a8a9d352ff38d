// Package notify carries the events published once attendance or notices have been persisted,
// and hands the resulting messages over to a Sink. Delivery is best-effort: failures are logged, never returned.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trezcool/shala/core"
)

type Recipient struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Contact   string `json:"contact"` // parent's phone number, chat ID or email
}

type Message struct {
	Recipient Recipient `json:"recipient"`
	Subject   string    `json:"subject,omitempty"`
	Text      string    `json:"text"`
}

// Sink delivers messages to parents (SMS gateway, chat bot, email...).
type Sink interface {
	SendBatch(ctx context.Context, msgs []Message) error
}

type Event interface {
	Name() string
}

type (
	// AttendanceMarked is published once per marking batch, after every row has been written.
	AttendanceMarked struct {
		SchoolID  string
		Date      core.Date
		MarkedBy  string
		Absentees []Recipient
	}

	// NoticeCreated is published once per created notice.
	NoticeCreated struct {
		SchoolID   string
		NoticeID   string
		AuthorID   string
		Title      string
		Body       string
		Urgent     bool
		Recipients []Recipient
	}

	// StudyMessageCreated is published once per created study message.
	StudyMessageCreated struct {
		SchoolID   string
		MessageID  string
		AuthorID   string
		Subject    string
		Body       string
		Recipients []Recipient
	}
)

func (AttendanceMarked) Name() string    { return "attendance.marked" }
func (NoticeCreated) Name() string       { return "notice.created" }
func (StudyMessageCreated) Name() string { return "study_message.created" }

// HandlerFunc reacts to an event. Returned errors are logged by the dispatcher.
type HandlerFunc func(ctx context.Context, ev Event) error

// Dispatcher publishes events to the registered handlers.
type Dispatcher interface {
	Dispatch(ev Event)
}

// EventBus is the Dispatcher used by the services.
// In async mode, every event is handled in its own goroutine, detached from the request's context.
type EventBus struct {
	handlers []HandlerFunc
	logger   core.Logger
	timeout  time.Duration
	async    bool
	wg       sync.WaitGroup
}

var _ Dispatcher = (*EventBus)(nil)

func NewEventBus(logger core.Logger, timeout time.Duration, handlers ...HandlerFunc) *EventBus {
	return &EventBus{handlers: handlers, logger: logger, timeout: timeout, async: true}
}

// NewSyncEventBus handles events in the caller's goroutine.
func NewSyncEventBus(logger core.Logger, handlers ...HandlerFunc) *EventBus {
	return &EventBus{handlers: handlers, logger: logger}
}

func (bus *EventBus) Dispatch(ev Event) {
	if !bus.async {
		bus.handle(context.Background(), ev)
		return
	}

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()

		ctx := context.Background()
		if bus.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, bus.timeout)
			defer cancel()
		}
		bus.handle(ctx, ev)
	}()
}

// Wait blocks until every dispatched event has been handled.
func (bus *EventBus) Wait() {
	bus.wg.Wait()
}

func (bus *EventBus) handle(ctx context.Context, ev Event) {
	for _, h := range bus.handlers {
		bus.safeHandle(ctx, h, ev)
	}
}

func (bus *EventBus) safeHandle(ctx context.Context, h HandlerFunc, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			bus.logger.Error(fmt.Sprintf("handling %s: panic: %v", ev.Name(), r))
		}
	}()
	if err := h(ctx, ev); err != nil {
		bus.logger.Error(fmt.Sprintf("handling %s: %v", ev.Name(), err), err)
	}
}
