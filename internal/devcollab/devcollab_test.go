package devcollab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamma-cc/aeron/collab"
)

func TestArchive_RecordingSharesTransportBuffer(t *testing.T) {
	transport := NewTransport()
	archive := NewArchive(transport)

	recordingID, err := archive.StartRecording("log-channel", 1, true)
	require.NoError(t, err)

	pub, err := transport.AddExclusivePublication("log-channel", 1)
	require.NoError(t, err)

	_, err = pub.Offer([]byte("frame-1"))
	require.NoError(t, err)

	desc, ok, err := archive.ListRecording(recordingID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), desc.StopPosition, "what was published must be exactly what the recording sees")
}

func TestArchive_StartReplay_ReadsRecordedFrames(t *testing.T) {
	transport := NewTransport()
	archive := NewArchive(transport)

	recordingID, err := archive.StartRecording("log-channel", 1, true)
	require.NoError(t, err)

	pub, err := transport.AddExclusivePublication("log-channel", 1)
	require.NoError(t, err)
	_, _ = pub.Offer([]byte("a"))
	_, _ = pub.Offer([]byte("b"))

	sessionID, err := archive.StartReplay(recordingID, 0, -1, "replay-channel", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), sessionID)

	image, err := transport.Image(sessionID)
	require.NoError(t, err)

	var got [][]byte
	n, err := image.Poll(func(f collab.Fragment) error {
		got = append(got, f.Buf)
		return nil
	}, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, got)
}

func TestRecordingLog_CommitLeadershipTermPosition_ClosesOpenStep(t *testing.T) {
	log := NewRecordingLog()
	require.NoError(t, log.AppendTerm(1, 0, 5, 0))

	data, err := log.CreateRecoveryPlan()
	require.NoError(t, err)
	require.Len(t, data.TermSteps, 1)
	assert.Equal(t, int64(-1), data.TermSteps[0].StopPosition)

	require.NoError(t, log.CommitLeadershipTermPosition(5, 42))

	data, err = log.CreateRecoveryPlan()
	require.NoError(t, err)
	assert.Equal(t, int64(42), data.TermSteps[0].StopPosition)
}

func TestRecordingLog_CommitLeadershipTermPosition_IgnoresUnknownTerm(t *testing.T) {
	log := NewRecordingLog()
	require.NoError(t, log.AppendTerm(1, 0, 5, 0))

	require.NoError(t, log.CommitLeadershipTermPosition(99, 42))

	data, err := log.CreateRecoveryPlan()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), data.TermSteps[0].StopPosition, "committing an unrelated term must not touch this step")
}
