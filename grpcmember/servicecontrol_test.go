package grpcmember

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamma-cc/aeron/wire"
)

func TestAckInbox_AckThenPollAcks_Drains(t *testing.T) {
	inbox := NewAckInbox()

	_, err := inbox.Ack(context.Background(), &wire.ServiceAck{LogPosition: 10, TermId: 1, ServiceId: 2, Action: wire.ActionSnapshot})
	require.NoError(t, err)
	_, err = inbox.Ack(context.Background(), &wire.ServiceAck{LogPosition: 20, TermId: 1, ServiceId: 3, Action: wire.ActionNeutral})
	require.NoError(t, err)

	ctl := NewControl(inbox, NewPublisher(), nil)

	var seen []int32
	n := ctl.PollAcks(func(logPosition, termID int64, serviceID int32, action int32) {
		seen = append(seen, serviceID)
	})

	assert.Equal(t, 2, n)
	assert.Equal(t, []int32{2, 3}, seen)

	// a second poll with nothing new buffered drains zero.
	n2 := ctl.PollAcks(func(logPosition, termID int64, serviceID int32, action int32) {
		t.Fatalf("unexpected ack delivered: %d", serviceID)
	})
	assert.Equal(t, 0, n2)
}

func TestControl_JoinLog_NoServices_NoOp(t *testing.T) {
	ctl := NewControl(NewAckInbox(), NewPublisher(), nil)
	err := ctl.JoinLog(context.Background(), 1, 2, 3, 4, "chan")
	assert.NoError(t, err, "an empty service list should not error")
}
