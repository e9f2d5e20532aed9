package grpcmember

import (
	"context"
	"sync"

	"github.com/kamma-cc/aeron/collab"
	"github.com/kamma-cc/aeron/wire"
)

// AckInbox implements ServiceControlServer, buffering upward ACKs from
// co-hosted services until the sequencer's next PollAcks call drains them
// (§4.5 "the sequencer counts ACKs"). Control, not AckInbox, implements
// collab.ServiceControl by pairing the inbox with a Publisher for the
// downward JoinLog calls.
type AckInbox struct {
	mu      sync.Mutex
	pending []*wire.ServiceAck
}

// NewAckInbox returns an empty inbox.
func NewAckInbox() *AckInbox {
	return &AckInbox{}
}

// Ack implements ServiceControlServer: a service calls this upward.
func (a *AckInbox) Ack(ctx context.Context, req *wire.ServiceAck) (*wire.Ack, error) {
	a.mu.Lock()
	a.pending = append(a.pending, req)
	a.mu.Unlock()
	return &wire.Ack{}, nil
}

// drain removes and returns all buffered ACKs.
func (a *AckInbox) drain() []*wire.ServiceAck {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.pending
	a.pending = nil
	return out
}

// ServiceEndpoint names a co-hosted service replica's JoinLog endpoint.
type ServiceEndpoint struct {
	ServiceID int32
	Endpoint  string
}

// Control implements collab.ServiceControl using AckInbox for upward ACKs
// and a Publisher for downward JoinLog RPCs, fanned out to every configured
// service endpoint.
type Control struct {
	inbox     *AckInbox
	publisher *Publisher
	services  []ServiceEndpoint
}

// NewControl binds an inbox, a publisher, and the set of co-hosted services.
func NewControl(inbox *AckInbox, publisher *Publisher, services []ServiceEndpoint) *Control {
	return &Control{inbox: inbox, publisher: publisher, services: services}
}

// JoinLog signals every co-hosted service to attach to the log (§4.2/§4.5).
func (c *Control) JoinLog(ctx context.Context, termID, commitPosID, sessionID int64, streamID int32, channel string) error {
	req := &wire.JoinLog{
		LeadershipTermId: termID,
		CommitPositionId: commitPosID,
		SessionId:        sessionID,
		StreamId:         streamID,
		Channel:          channel,
	}
	for _, svc := range c.services {
		if err := c.publisher.JoinLog(ctx, svc.ServiceID, svc.Endpoint, req); err != nil {
			return err
		}
	}
	return nil
}

// PollAcks implements collab.ServiceControl.
func (c *Control) PollAcks(handler func(logPosition, termID int64, serviceID int32, action int32)) int {
	acks := c.inbox.drain()
	for _, ack := range acks {
		handler(ack.LogPosition, ack.TermId, ack.ServiceId, int32(ack.Action))
	}
	return len(acks)
}

var _ collab.ServiceControl = (*Control)(nil)
