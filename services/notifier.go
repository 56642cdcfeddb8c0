package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

// Notification event types sent through the Notifier port.
const (
	EventSubmissionReceived = "SUBMISSION_RECEIVED"
	EventStatusChanged      = "SUBMISSION_STATUS_CHANGED"
	EventReviewRequested    = "REVIEW_REQUESTED"
	EventReviewSubmitted    = "REVIEW_SUBMITTED"
	EventDecisionRecorded   = "DECISION_RECORDED"
	EventReviewOverdue      = "REVIEW_OVERDUE"
)

// Notifier delivers one message to one user. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, userID uint, eventType string, payload map[string]string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, userID uint, eventType string, payload map[string]string) error

func (f NotifierFunc) Notify(ctx context.Context, userID uint, eventType string, payload map[string]string) error {
	return f(ctx, userID, eventType, payload)
}

// FanoutNotifier sends to every channel and joins their failures.
type FanoutNotifier []Notifier

func (f FanoutNotifier) Notify(ctx context.Context, userID uint, eventType string, payload map[string]string) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, userID, eventType, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatcher runs notifications in the background with their own lifetime,
// so a slow channel never holds up the operation that triggered it.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu orders wg.Add against Close.
	mu     sync.Mutex
	closed bool
}

func NewDispatcher(notifier Notifier, timeout time.Duration) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		notifier: notifier,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Dispatch queues one notification and returns immediately.
func (d *Dispatcher) Dispatch(userID uint, eventType string, payload map[string]string) {
	if d == nil || d.notifier == nil || userID == 0 {
		return
	}
	copied := make(map[string]string, len(payload))
	for k, v := range payload {
		copied[k] = v
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		log.Printf("notification %s for user %d dropped: dispatcher closed", eventType, userID)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		ctx := d.ctx
		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
		if err := d.notifier.Notify(ctx, userID, eventType, copied); err != nil {
			log.Printf("notification %s for user %d failed: %v", eventType, userID, err)
		}
	}()
}

// Wait blocks until every queued notification has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// Close cancels in-flight notifications and waits for them to return.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()
	d.wg.Wait()
}

// renderMessage turns an event into a title and plain-text body shared by
// the inbox and mail channels.
func renderMessage(eventType string, payload map[string]string) (string, string) {
	title := payload["title"]
	switch eventType {
	case EventSubmissionReceived:
		return "Submission received", fmt.Sprintf("Your manuscript %q has been received and is awaiting editorial screening.", title)
	case EventStatusChanged:
		return "Submission status updated", fmt.Sprintf("The status of %q changed from %s to %s.", title, payload["from"], payload["to"])
	case EventReviewRequested:
		body := fmt.Sprintf("You have been invited to review %q (round %s).", title, payload["round"])
		if due := payload["due_at"]; due != "" {
			body += " Please submit your report by " + due + "."
		}
		return "Review invitation", body
	case EventReviewSubmitted:
		return "Review submitted", fmt.Sprintf("A review for %q (round %s) has been submitted.", title, payload["round"])
	case EventDecisionRecorded:
		body := fmt.Sprintf("An editorial decision of %s was recorded for %q.", payload["decision"], title)
		if note := strings.TrimSpace(payload["note"]); note != "" {
			body += "\n\n" + note
		}
		return "Editorial decision", body
	case EventReviewOverdue:
		return "Review overdue", fmt.Sprintf("Your review for %q (round %s) was due on %s.", title, payload["round"], payload["due_at"])
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+payload[k])
	}
	return eventType, strings.Join(lines, "\n")
}
