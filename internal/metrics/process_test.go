package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopProcesses_LimitAndOrder(t *testing.T) {
	var procs []ProcessInfo
	// distinct cpu values in scrambled order
	for i := 0; i < 15; i++ {
		procs = append(procs, ProcessInfo{
			PID:        int32(100 + i),
			Name:       fmt.Sprintf("proc-%d", i),
			CPUPercent: float64((i * 7) % 15),
		})
	}

	top := TopProcesses(procs, 10)

	require.Len(t, top, 10)
	for i := 1; i < len(top); i++ {
		assert.Greater(t, top[i-1].CPUPercent, top[i].CPUPercent)
	}
	assert.Equal(t, 14.0, top[0].CPUPercent)
	assert.Equal(t, 5.0, top[9].CPUPercent)
}

func TestTopProcesses_StableForTies(t *testing.T) {
	procs := []ProcessInfo{
		{PID: 1, CPUPercent: 5},
		{PID: 2, CPUPercent: 9},
		{PID: 3, CPUPercent: 5},
		{PID: 4, CPUPercent: 5},
	}

	top := TopProcesses(procs, 10)

	assert.Equal(t, []int32{2, 1, 3, 4}, []int32{top[0].PID, top[1].PID, top[2].PID, top[3].PID})
	// input untouched
	assert.Equal(t, int32(1), procs[0].PID)
}

func TestTopProcesses_FewerThanLimit(t *testing.T) {
	assert.Len(t, TopProcesses([]ProcessInfo{{PID: 1}}, 10), 1)
	assert.Empty(t, TopProcesses(nil, 10))
}

func TestProcCPUTracker_Percent(t *testing.T) {
	tr := newProcCPUTracker()
	t0 := time.Now()

	assert.Equal(t, 0.0, tr.percent(42, 10.0, t0), "first sight is a baseline")
	assert.InDelta(t, 50.0, tr.percent(42, 11.0, t0.Add(2*time.Second)), 1e-9)
	assert.Equal(t, 0.0, tr.percent(42, 11.0, t0.Add(2*time.Second)), "no elapsed time")
	assert.Equal(t, 0.0, tr.percent(42, 1.0, t0.Add(3*time.Second)), "pid reuse never goes negative")
}

func TestProcCPUTracker_Prune(t *testing.T) {
	tr := newProcCPUTracker()
	now := time.Now()
	tr.percent(1, 1, now)
	tr.percent(2, 1, now)

	tr.prune(map[int32]struct{}{2: {}})

	_, has1 := tr.cache[1]
	_, has2 := tr.cache[2]
	assert.False(t, has1)
	assert.True(t, has2)
}
