package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onepager/internal/domain"
)

func TestDecodeBackupShapes(t *testing.T) {
	backup, err := decodeBackup([]byte(`{"version":1,"projectCount":1,"projects":[{"id":"a","title":"A"}]}`))
	require.NoError(t, err)
	require.Len(t, backup.Projects, 1)
	assert.Equal(t, "A", backup.Projects[0].Title)

	backup, err = decodeBackup([]byte(` [{"id":"a","name":"Old"},{"id":"b","title":"B","phases":[]}]`))
	require.NoError(t, err)
	require.Len(t, backup.Projects, 2)
	assert.Equal(t, "Old", backup.Projects[0].Title)
	assert.Equal(t, 2, backup.ProjectCount)

	backup, err = decodeBackup([]byte(`{"id":"solo","currentPhase":2}`))
	require.NoError(t, err)
	require.Len(t, backup.Projects, 1)
	assert.Equal(t, 2, backup.Projects[0].Phase)

	_, err = decodeBackup([]byte("  "))
	assert.Error(t, err)
	_, err = decodeBackup([]byte(`"nope"`))
	assert.Error(t, err)
}

func TestFormPatchFromFlagsOnlyChanged(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addFormFlags(fs)
	require.NoError(t, fs.Parse([]string{"--problem-statement", "Slow deploys", "--timeline", ""}))

	patch := formPatchFromFlags(fs)
	require.NotNil(t, patch.ProblemStatement)
	assert.Equal(t, "Slow deploys", *patch.ProblemStatement)
	require.NotNil(t, patch.TimelineEstimate)
	assert.Equal(t, "", *patch.TimelineEstimate)
	assert.Nil(t, patch.ProjectName)
	assert.Nil(t, patch.Context)
}

func TestDiffForm(t *testing.T) {
	before := domain.FormData{ProjectName: "P", KeyGoals: "old"}
	after := before
	after.KeyGoals = "new"
	after.Context = "added"

	patch := diffForm(before, after)
	require.NotNil(t, patch.KeyGoals)
	assert.Equal(t, "new", *patch.KeyGoals)
	require.NotNil(t, patch.Context)
	assert.Nil(t, patch.ProjectName)

	assert.True(t, diffForm(before, before).Empty())
}

func TestPhaseLabel(t *testing.T) {
	assert.Equal(t, "1 Initial Draft (Claude)", phaseLabel(0))
	assert.Equal(t, "2 Alternative Perspective (Gemini)", phaseLabel(2))
	assert.Equal(t, "complete", phaseLabel(4))
}
