package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_FollowsLifecycleGraph(t *testing.T) {
	legal := map[Status]map[Event]Status{
		StatusDraft: {
			EventAssign: StatusAssigned,
			EventCancel: StatusCancelled,
		},
		StatusAssigned: {
			EventAccept: StatusInProgress,
			EventCancel: StatusCancelled,
		},
		StatusInProgress: {
			EventMarkDelivered:    StatusInProgress,
			EventConfirmDelivered: StatusCompleted,
			EventDeclineDelivered: StatusInProgress,
			EventCancel:           StatusCancelled,
		},
	}

	for _, from := range AllStatuses {
		for _, ev := range AllEvents {
			got, err := Next(from, ev)
			want, ok := legal[from][ev]
			if ok {
				require.NoError(t, err, "%s from %s", ev, from)
				assert.Equal(t, want, got, "%s from %s", ev, from)
				continue
			}
			assert.True(t, errors.Is(err, ErrInvalidTransition), "%s from %s should be rejected", ev, from)
			assert.Equal(t, from, got, "rejected transition must not change status")
		}
	}
}

func TestNext_TerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		assert.True(t, s.Terminal())
		for _, ev := range AllEvents {
			_, err := Next(s, ev)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	}
}

func TestNext_UnknownEvent(t *testing.T) {
	_, err := Next(StatusDraft, Event("teleport"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRuleFor_Stamps(t *testing.T) {
	accept, err := RuleFor(EventAccept)
	require.NoError(t, err)
	assert.Equal(t, StampWorkStartedAt, accept.Stamp)

	confirm, err := RuleFor(EventConfirmDelivered)
	require.NoError(t, err)
	assert.Equal(t, StampCompletedAt, confirm.Stamp)

	decline, err := RuleFor(EventDeclineDelivered)
	require.NoError(t, err)
	assert.False(t, decline.Mutates())

	cancel, err := RuleFor(EventCancel)
	require.NoError(t, err)
	assert.True(t, cancel.Mutates())
}

func TestRule_Authorize(t *testing.T) {
	driverID := int64(42)
	name := "Jane"
	rec := &DeliveryRecord{ID: 1, DriverID: &driverID, DriverName: &name, Status: StatusAssigned}

	accept, _ := RuleFor(EventAccept)
	assert.NoError(t, accept.Authorize(Identity{ID: 42, Role: RoleDriver}, rec))
	assert.ErrorIs(t, accept.Authorize(Identity{ID: 43, Role: RoleDriver}, rec), ErrUnauthorized)
	assert.ErrorIs(t, accept.Authorize(Identity{ID: 42, Role: RoleManager}, rec), ErrUnauthorized)

	assign, _ := RuleFor(EventAssign)
	assert.NoError(t, assign.Authorize(Identity{ID: 1, Role: RoleManager}, rec))
	assert.ErrorIs(t, assign.Authorize(Identity{ID: 1, Role: RoleNone}, rec), ErrUnauthorized)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Completed ")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, s)

	_, err = ParseStatus("delivered")
	assert.Error(t, err)
}
