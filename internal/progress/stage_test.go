package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Stage
		want     bool
	}{
		{StageQueued, StageUploading, true},
		{StageUploading, StageProcessing, true},
		{StageProcessing, StageCompleted, true},
		{StageQueued, StageError, true},
		{StageUploading, StageError, true},
		{StageProcessing, StageError, true},
		{StageQueued, StageProcessing, false},
		{StageUploading, StageCompleted, false},
		{StageProcessing, StageUploading, false},
		{StageCompleted, StageError, false},
		{StageError, StageQueued, false},
		{StageCompleted, StageCompleted, false},
		{Stage("paused"), StageUploading, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestStageTerminal(t *testing.T) {
	assert.True(t, StageCompleted.Terminal())
	assert.True(t, StageError.Terminal())
	assert.False(t, StageQueued.Terminal())
	assert.False(t, StageUploading.Terminal())
	assert.False(t, StageProcessing.Terminal())
	assert.False(t, Stage("bogus").Valid())
}
