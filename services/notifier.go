package services

import (
	"context"

	"terretahub/models"
)

// Notifier receives XP events after the write that produced them committed.
type Notifier interface {
	Publish(ctx context.Context, event models.XPEvent) error
}

// Notifiers fans an event out to several notifiers. Every notifier is tried;
// the first error is returned.
type Notifiers []Notifier

func (n Notifiers) Publish(ctx context.Context, event models.XPEvent) error {
	var first error
	for _, notifier := range n {
		if notifier == nil {
			continue
		}
		if err := notifier.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
