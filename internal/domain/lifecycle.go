package domain

import "fmt"

// Event is something a participant does to a delivery.
type Event string

const (
	EventAssign           Event = "assign"
	EventAccept           Event = "accept"
	EventMarkDelivered    Event = "mark_delivered"
	EventConfirmDelivered Event = "confirm_delivered"
	EventDeclineDelivered Event = "decline_delivered"
	EventCancel           Event = "cancel"
)

// AllEvents lists every lifecycle event.
var AllEvents = []Event{
	EventAssign,
	EventAccept,
	EventMarkDelivered,
	EventConfirmDelivered,
	EventDeclineDelivered,
	EventCancel,
}

// ParseEvent converts a wire value into an Event. "complete" is accepted as
// the confirmed delivery.
func ParseEvent(s string) (Event, error) {
	if s == "complete" {
		return EventConfirmDelivered, nil
	}
	for _, e := range AllEvents {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown event %q", s)
}

// Stamp names the timestamp column a transition sets.
type Stamp string

const (
	StampNone          Stamp = ""
	StampWorkStartedAt Stamp = "work_started_at"
	StampCompletedAt   Stamp = "completed_at"
)

// Rule describes one event of the lifecycle graph.
type Rule struct {
	Event Event
	From  []Status
	To    Status
	Stamp Stamp
	// Actor is the role allowed to fire the event.
	Actor Role
	// OwnDriver restricts driver events to the driver the record is assigned to.
	OwnDriver bool
}

// Mutates reports whether applying the rule writes to the store.
func (r Rule) Mutates() bool {
	if len(r.From) != 1 {
		return true
	}
	return r.From[0] != r.To
}

// Allows reports whether the rule may fire from status s.
func (r Rule) Allows(s Status) bool {
	for _, f := range r.From {
		if f == s {
			return true
		}
	}
	return false
}

// RuleFor returns the lifecycle rule for an event.
func RuleFor(e Event) (Rule, error) {
	switch e {
	case EventAssign:
		return Rule{Event: e, From: []Status{StatusDraft}, To: StatusAssigned, Actor: RoleManager}, nil
	case EventAccept:
		return Rule{Event: e, From: []Status{StatusAssigned}, To: StatusInProgress,
			Stamp: StampWorkStartedAt, Actor: RoleDriver, OwnDriver: true}, nil
	case EventMarkDelivered:
		return Rule{Event: e, From: []Status{StatusInProgress}, To: StatusInProgress,
			Actor: RoleDriver, OwnDriver: true}, nil
	case EventConfirmDelivered:
		return Rule{Event: e, From: []Status{StatusInProgress}, To: StatusCompleted,
			Stamp: StampCompletedAt, Actor: RoleDriver, OwnDriver: true}, nil
	case EventDeclineDelivered:
		return Rule{Event: e, From: []Status{StatusInProgress}, To: StatusInProgress,
			Actor: RoleDriver, OwnDriver: true}, nil
	case EventCancel:
		return Rule{Event: e, From: []Status{StatusDraft, StatusAssigned, StatusInProgress},
			To: StatusCancelled, Actor: RoleManager}, nil
	}
	return Rule{}, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, e)
}

// Next returns the status reached by firing e from current.
func Next(current Status, e Event) (Status, error) {
	rule, err := RuleFor(e)
	if err != nil {
		return current, err
	}
	if current.Terminal() || !rule.Allows(current) {
		return current, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, e, current)
	}
	return rule.To, nil
}

// Authorize checks that the actor may fire the rule on rec.
func (r Rule) Authorize(actor Identity, rec *DeliveryRecord) error {
	if actor.Role != r.Actor {
		return fmt.Errorf("%w: %s requires %s", ErrUnauthorized, r.Event, r.Actor)
	}
	if r.OwnDriver && rec != nil && !rec.AssignedTo(actor.ID) {
		return fmt.Errorf("%w: delivery %d is not assigned to %d", ErrUnauthorized, rec.ID, actor.ID)
	}
	return nil
}
