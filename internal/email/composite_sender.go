package email

import (
	"context"
	"errors"
	"fmt"
)

// CompositeEmailSender implements the Sender interface and delegates sending to multiple Senders.
type CompositeEmailSender struct {
	senders []Sender
}

// NewCompositeEmailSender creates a new CompositeEmailSender. Nil senders are
// skipped.
func NewCompositeEmailSender(senders ...Sender) *CompositeEmailSender {
	cs := &CompositeEmailSender{}
	for _, s := range senders {
		cs.AddSender(s)
	}
	return cs
}

// AddSender adds a sender to the composite sender's list.
func (cs *CompositeEmailSender) AddSender(sender Sender) {
	if sender != nil {
		cs.senders = append(cs.senders, sender)
	}
}

// Send calls every sender, even after a failure, and joins the errors.
func (cs *CompositeEmailSender) Send(ctx context.Context, msg Message) error {
	if len(cs.senders) == 0 {
		return fmt.Errorf("no senders configured in CompositeEmailSender")
	}
	var errs []error
	for _, sender := range cs.senders {
		if err := sender.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("composite email send failed: %w", errors.Join(errs...))
	}
	return nil
}
