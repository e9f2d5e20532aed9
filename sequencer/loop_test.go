package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamma-cc/aeron/collab"
	"github.com/kamma-cc/aeron/internal/devcollab"
	"github.com/kamma-cc/aeron/wire"
)

// TestPollLogAdapter_StopsAtFollowerCommitPosition verifies a follower never
// replay-dispatches past the position it already believes is committed
// (§4.1), even when the image has more buffered frames past that boundary.
func TestPollLogAdapter_StopsAtFollowerCommitPosition(t *testing.T) {
	a := newSingleNodeAgent(t)
	a.alterRole(Follower)
	a.alterState(StateActive)

	transport := devcollab.NewTransport()
	pub, err := transport.AddExclusivePublication("replay", 9)
	require.NoError(t, err)

	rec1, err := wire.Marshal(&wire.LogRecord{Kind: wire.RecordSessionMessage, SessionID: 1})
	require.NoError(t, err)
	rec2, err := wire.Marshal(&wire.LogRecord{Kind: wire.RecordSessionMessage, SessionID: 2})
	require.NoError(t, err)
	rec3, err := wire.Marshal(&wire.LogRecord{Kind: wire.RecordSessionMessage, SessionID: 3})
	require.NoError(t, err)
	_, err = pub.Offer(rec1)
	require.NoError(t, err)
	_, err = pub.Offer(rec2)
	require.NoError(t, err)
	_, err = pub.Offer(rec3)
	require.NoError(t, err)

	require.NoError(t, transport.AddSubscription("replay", 9))
	image, err := transport.Image(9)
	require.NoError(t, err)
	a.logAdapter = image

	// Only the first two records are committed as far as this follower knows.
	a.followerCommitPosition = 2

	// The fragment past the boundary is held back with collab.ErrAbort.
	n, err := a.pollLogAdapter()
	require.ErrorIs(t, err, collab.ErrAbort)
	assert.Equal(t, 2, n, "must not dispatch past followerCommitPosition")
	assert.Equal(t, int64(2), a.logAdapter.Position(), "read position must not advance past the boundary either")

	// A second poll at the same boundary does no further work.
	n2, err := a.pollLogAdapter()
	require.NoError(t, err)
	assert.Equal(t, 0, n2)

	// Once the boundary advances, the remaining record becomes visible.
	a.followerCommitPosition = 3
	n3, err := a.pollLogAdapter()
	require.NoError(t, err)
	assert.Equal(t, 1, n3)
	assert.Equal(t, int64(3), a.logAdapter.Position())
}
