package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationID(t *testing.T) {
	assert.Equal(t, ConversationID("b", "a"), ConversationID("a", "b"))
	assert.Equal(t, "a:b", ConversationID("b", "a"))
}

func TestBookingIsActive(t *testing.T) {
	assert.True(t, (&Booking{Status: StatusConfirmed}).IsActive())
	assert.True(t, (&Booking{Status: StatusPending}).IsActive())
	assert.False(t, (&Booking{Status: StatusCancelled}).IsActive())
}

func TestPrincipal(t *testing.T) {
	assert.True(t, Principal{}.IsZero())
	assert.True(t, Principal{UserID: "u", Role: RoleAdmin}.IsAdmin())
	assert.False(t, Principal{UserID: "u", Role: RoleUser}.IsAdmin())
}

func TestUserPublic(t *testing.T) {
	u := &User{ID: "u1", Email: "secret@example.com", FullName: "Ann", Role: RoleAdmin}
	p := u.Public()
	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, "Ann", p.FullName)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "25.00", FormatCents(2500))
	assert.Equal(t, "-1.10", FormatCents(-110))
}

func TestOutboxEventTask(t *testing.T) {
	id := ""
	ev := OutboxEvent{EventType: "garden_created", Build: func() (string, interface{}) {
		return id, map[string]int{"plots": 3}
	}}

	_, err := ev.Task()
	assert.Error(t, err, "aggregate id is read when the task is built")

	id = "g1"
	task, err := ev.Task()
	assert.NoError(t, err)
	assert.Equal(t, "g1", task.AggregateID)
	assert.Equal(t, OutboxStatusPending, task.Status)
	assert.JSONEq(t, `{"plots":3}`, task.Payload)

	_, err = OutboxEvent{Build: ev.Build}.Task()
	assert.Error(t, err)
	_, err = OutboxEvent{EventType: "x"}.Task()
	assert.Error(t, err)
}
