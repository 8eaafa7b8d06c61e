package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreErrorWrapping(t *testing.T) {
	err := NewStoreError("GetByID", "workflow", "wf-1", ErrWorkflowNotFound)

	assert.Contains(t, err.Error(), "GetByID")
	assert.Contains(t, err.Error(), "wf-1")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
	assert.True(t, IsWorkflowNotFound(err))
	assert.True(t, IsNotFound(err))
}

func TestNotFoundPredicates(t *testing.T) {
	tests := []struct {
		err       error
		workflow  bool
		run       bool
		transcr   bool
		anyNotFnd bool
	}{
		{ErrWorkflowNotFound, true, false, false, true},
		{ErrRunNotFound, false, true, false, true},
		{ErrTranscriptNotFound, false, false, true, true},
		{fmt.Errorf("load run: %w", ErrRunNotFound), false, true, false, true},
		{errors.New("disk full"), false, false, false, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.workflow, IsWorkflowNotFound(tt.err))
		assert.Equal(t, tt.run, IsRunNotFound(tt.err))
		assert.Equal(t, tt.transcr, IsTranscriptNotFound(tt.err))
		assert.Equal(t, tt.anyNotFnd, IsNotFound(tt.err))
	}
}
