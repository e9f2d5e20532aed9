package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kamma-cc/aeron/collab"
)

func TestPlan_LastLogPosition_ColdStart(t *testing.T) {
	p := FromData(collab.RecoveryPlanData{})
	assert.Equal(t, int64(0), p.LastLogPosition())
	assert.Equal(t, int64(0), p.LastTermPositionAppended())
	assert.Equal(t, int64(-1), p.LastLeadershipTermID())
}

func TestPlan_LastLogPosition_SnapshotPlusClosedTermSteps(t *testing.T) {
	p := FromData(collab.RecoveryPlanData{
		HasSnapshot: true,
		SnapshotStep: collab.SnapshotStep{
			RecordingID:      1,
			LogPosition:      1000,
			LeadershipTermID: 2,
			TermPosition:     100,
		},
		TermSteps: []collab.TermStep{
			{RecordingID: 2, StartPosition: 0, StopPosition: 50, LeadershipTermID: 3},
			{RecordingID: 3, StartPosition: 0, StopPosition: 30, LeadershipTermID: 4},
		},
	})

	assert.Equal(t, int64(1080), p.LastLogPosition())
	assert.Equal(t, int64(30), p.LastTermPositionAppended())
	assert.Equal(t, int64(4), p.LastLeadershipTermID())
}

func TestPlan_LastLogPosition_SumsOnlyClosedSteps(t *testing.T) {
	p := FromData(collab.RecoveryPlanData{
		TermSteps: []collab.TermStep{
			{RecordingID: 1, StartPosition: 0, StopPosition: 40, LeadershipTermID: 1},
			{RecordingID: 2, StartPosition: 0, StopPosition: 15, LeadershipTermID: 2},
		},
	})

	assert.Equal(t, int64(55), p.LastLogPosition())
	assert.Equal(t, int64(15), p.LastTermPositionAppended())
}
