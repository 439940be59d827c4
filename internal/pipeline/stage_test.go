package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cortexerrors "github.com/mrz1836/cortex/internal/errors"
)

func TestNextStage(t *testing.T) {
	tests := []struct {
		stage    Stage
		want     Stage
		wantNext bool
	}{
		{StageFinalizeTasksQueue, StagePopulateThoughtQueue, true},
		{StageBuildContext, StagePerformDMAs, true},
		{StagePerformASPDMA, StageActionSelection, true},
		{StageHandlerStart, StageHandlerComplete, true},
		{StageHandlerComplete, "", false},
		{Stage("bogus"), "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			got, ok := NextStage(tt.stage)
			assert.Equal(t, tt.wantNext, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStages_Order(t *testing.T) {
	stages := Stages()
	require.Len(t, stages, 8)
	for i, s := range stages {
		assert.Equal(t, i, s.Index())
	}

	stages[0] = "mutated"
	assert.Equal(t, StageFinalizeTasksQueue, Stages()[0], "returned slice is a copy")
}

func TestParseStages(t *testing.T) {
	got, err := ParseStages([]string{"build_context", "handler_complete"})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageBuildContext, StageHandlerComplete}, got)

	got, err = ParseStages(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseStages([]string{"build_context", "nope"})
	require.ErrorIs(t, err, cortexerrors.ErrUnknownStage)
}
