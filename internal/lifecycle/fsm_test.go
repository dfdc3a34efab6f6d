package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/askql-systems/askql/pkg/types"
)

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from  types.JobStatus
		to    types.JobStatus
		valid bool
	}{
		{types.JobPending, types.JobProcessing, true},
		{types.JobPending, types.JobCompleted, false},
		{types.JobPending, types.JobFailed, false},
		{types.JobProcessing, types.JobCompleted, true},
		{types.JobProcessing, types.JobFailed, true},
		{types.JobProcessing, types.JobPending, false},
		{types.JobCompleted, types.JobProcessing, false},
		{types.JobCompleted, types.JobFailed, false},
		{types.JobFailed, types.JobPending, false},
		{types.JobFailed, types.JobProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.valid, CanTransition(tt.from, tt.to))
			err := Transition(tt.from, tt.to)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(types.JobCompleted))
	assert.True(t, IsTerminal(types.JobFailed))
	assert.False(t, IsTerminal(types.JobPending))
	assert.False(t, IsTerminal(types.JobProcessing))
}
