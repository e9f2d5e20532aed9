package grpcmember

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kamma-cc/aeron/wire"
)

// peerConn lazily dials a peer's member-status endpoint and caches the
// connection, mirroring the lazy-dial grpcTransClient/tryClient pattern in
// transport_grpc.go.
type peerConn struct {
	endpoint string
	conn     *grpc.ClientConn
}

// Publisher is a pool of per-peer outgoing gRPC connections; the sequencer
// reaches it through Collaborators.MemberPublisher. cluster.Member holds a
// collab.Publication, not a Publisher.
type Publisher struct {
	mu    sync.RWMutex
	conns map[int32]*peerConn
}

// NewPublisher returns an empty peer-connection pool.
func NewPublisher() *Publisher {
	return &Publisher{conns: make(map[int32]*peerConn)}
}

func (p *Publisher) connLocked(id int32, endpoint string) (*grpc.ClientConn, error) {
	if c, ok := p.conns[id]; ok {
		return c.conn, nil
	}
	conn, err := grpc.Dial(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype("proto")),
	)
	if err != nil {
		return nil, err
	}
	p.conns[id] = &peerConn{endpoint: endpoint, conn: conn}
	return conn, nil
}

func (p *Publisher) conn(id int32, endpoint string) (*grpc.ClientConn, error) {
	p.mu.RLock()
	c, ok := p.conns[id]
	p.mu.RUnlock()
	if ok {
		return c.conn, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connLocked(id, endpoint)
}

// IsConnected reports whether a connection to id exists and is READY, IDLE
// or CONNECTING; any other state, including TRANSIENT_FAILURE, reports false.
func (p *Publisher) IsConnected(id int32) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.conns[id]
	if !ok {
		return false
	}
	state := c.conn.GetState()
	return state.String() == "READY" || state.String() == "IDLE" || state.String() == "CONNECTING"
}

// Disconnect tears down the connection to a peer, if any.
func (p *Publisher) Disconnect(id int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.conns[id]; ok {
		delete(p.conns, id)
		_ = c.conn.Close()
	}
}

// RequestVote sends a vote request to peer id at endpoint.
func (p *Publisher) RequestVote(ctx context.Context, id int32, endpoint string, req *wire.RequestVote) (*wire.Vote, error) {
	conn, err := p.conn(id, endpoint)
	if err != nil {
		return nil, err
	}
	out := new(wire.Vote)
	if err := conn.Invoke(ctx, "/aeron.MemberStatus/RequestVote", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendedPosition reports follower progress to the leader.
func (p *Publisher) AppendedPosition(ctx context.Context, id int32, endpoint string, req *wire.AppendedPosition) error {
	conn, err := p.conn(id, endpoint)
	if err != nil {
		return err
	}
	out := new(wire.Ack)
	return conn.Invoke(ctx, "/aeron.MemberStatus/AppendedPosition", req, out)
}

// CommitPosition broadcasts the leader's commit position to a peer.
func (p *Publisher) CommitPosition(ctx context.Context, id int32, endpoint string, req *wire.CommitPosition) error {
	conn, err := p.conn(id, endpoint)
	if err != nil {
		return err
	}
	out := new(wire.Ack)
	return conn.Invoke(ctx, "/aeron.MemberStatus/CommitPosition", req, out)
}

// JoinLog calls a co-located service's JoinLog RPC (downward direction,
// §4.2/§4.5).
func (p *Publisher) JoinLog(ctx context.Context, id int32, endpoint string, req *wire.JoinLog) error {
	conn, err := p.conn(id, endpoint)
	if err != nil {
		return err
	}
	out := new(wire.Ack)
	return conn.Invoke(ctx, "/aeron.JoinLog/JoinLog", req, out)
}

// Close tears down every outstanding peer connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, c := range p.conns {
		_ = c.conn.Close()
		delete(p.conns, id)
	}
}
