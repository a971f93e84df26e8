package campaign

import "fmt"

// Status is the lifecycle state of a campaign.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

var campaignTransitions = map[Status][]Status{
	StatusDraft:   {StatusRunning, StatusCancelled},
	StatusRunning: {StatusPaused, StatusCompleted, StatusCancelled, StatusFailed},
	StatusPaused:  {StatusRunning, StatusCancelled, StatusFailed},
}

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// CanTransition reports whether a campaign may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range campaignTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition returns next if the move is allowed, otherwise ErrInvalidTransition.
func (s Status) Transition(next Status) (Status, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}

// RecipientStatus is the delivery state of one recipient.
type RecipientStatus string

const (
	RecipientPending   RecipientStatus = "pending"
	RecipientSending   RecipientStatus = "sending"
	RecipientSent      RecipientStatus = "sent"
	RecipientRetrying  RecipientStatus = "retrying"
	RecipientFailed    RecipientStatus = "failed"
	RecipientCancelled RecipientStatus = "cancelled"
)

// RecipientStatuses lists every recipient status in display order.
var RecipientStatuses = []RecipientStatus{
	RecipientPending,
	RecipientSending,
	RecipientRetrying,
	RecipientSent,
	RecipientFailed,
	RecipientCancelled,
}

// IsTerminal reports whether no further attempt may be made for the recipient.
func (s RecipientStatus) IsTerminal() bool {
	return s == RecipientSent || s == RecipientFailed || s == RecipientCancelled
}

// IsDispatchable reports whether a recipient in this status may be handed to a worker.
func (s RecipientStatus) IsDispatchable() bool {
	return s == RecipientPending || s == RecipientRetrying
}
