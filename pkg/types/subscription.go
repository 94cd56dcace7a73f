package types

import "fmt"

// SubscriptionStatus mirrors the Stripe subscription status set. past_due is
// also set locally when an invoice payment fails before Stripe flips the
// subscription itself.
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
)

var knownSubscriptionStatuses = map[SubscriptionStatus]struct{}{
	SubscriptionStatusActive:            {},
	SubscriptionStatusTrialing:          {},
	SubscriptionStatusPastDue:           {},
	SubscriptionStatusCanceled:          {},
	SubscriptionStatusUnpaid:            {},
	SubscriptionStatusIncomplete:        {},
	SubscriptionStatusIncompleteExpired: {},
	SubscriptionStatusPaused:            {},
}

// ParseSubscriptionStatus rejects statuses outside the known set. A provider
// value we have never seen must fail the event instead of being defaulted,
// otherwise status drift is silently masked.
func ParseSubscriptionStatus(s string) (SubscriptionStatus, error) {
	st := SubscriptionStatus(s)
	if _, ok := knownSubscriptionStatuses[st]; !ok {
		return "", fmt.Errorf("unsupported subscription status: %q", s)
	}
	return st, nil
}
