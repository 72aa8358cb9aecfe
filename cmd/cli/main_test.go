package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/limaJavier/examtabling/internal/config"
	"github.com/limaJavier/examtabling/internal/snapshot"
	"github.com/limaJavier/examtabling/pkg/model"
	"github.com/limaJavier/examtabling/pkg/sat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func savedRun(t *testing.T) (config.StoreSettings, snapshot.Snapshot) {
	t.Helper()
	settings := config.StoreSettings{Kind: "file", Directory: t.TempDir()}
	input, err := model.ProcessRawInput(model.RawModelInput{
		Exams:    []model.RawExam{{Name: "E1"}, {Name: "E2"}},
		Students: []model.RawStudent{{Name: "S1", Exams: []string{"E1", "E2"}}},
		Rooms:    []model.RawRoom{{Name: "Hall", Capabilities: []model.Capability{model.StandardCapability}, Capacity: 10}},
		Calendar: &model.Calendar{Days: 5, Slots: 2},
	}, model.DefaultConfiguration())
	require.NoError(t, err)

	frozen := snapshot.New(input, model.BuildResult{
		Status: sat.Optimal,
		Timetable: model.Timetable{
			"E1": {Day: 0, Slot: 0, Rooms: []string{"Hall"}},
			"E2": {Day: 1, Slot: 0, Rooms: []string{"Hall"}},
		},
	})
	store, err := snapshot.FromSettings(settings)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), frozen))
	return settings, frozen
}

func writeDocument(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timetable.csv")
	content := strings.Join(append([]string{"Day,Date,Time,Exam,Students,Rooms,Type"}, lines...), "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0666))
	return path
}

func TestSnapshotInput(t *testing.T) {
	t.Run("The input of a saved run is loaded", func(t *testing.T) {
		//** Arrange
		settings, frozen := savedRun(t)

		//** Act
		input, err := snapshotInput(settings, frozen.Id.String())

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, uint64(5), input.Calendar.Days)
		assert.Len(t, input.Exams, 2)
	})

	t.Run("Unknown and malformed ids", func(t *testing.T) {
		settings, _ := savedRun(t)

		_, err := snapshotInput(settings, uuid.NewString())
		assert.ErrorIs(t, err, snapshot.ErrNotFound)

		_, err = snapshotInput(settings, "latest")
		assert.Error(t, err)
	})
}

func TestCheck(t *testing.T) {
	settings, frozen := savedRun(t)
	input, err := snapshotInput(settings, frozen.Id.String())
	require.NoError(t, err)
	timetabler := model.NewPseudoBooleanTimetabler(sat.NewGophersatSolver(), zap.NewNop())

	t.Run("A clean document exits with zero", func(t *testing.T) {
		path := writeDocument(t, "0,,Morning,E1,,Hall,", "1,,Morning,E2,,Hall,")

		assert.Equal(t, 0, check(timetabler, input, path, zap.NewNop()))
	})

	t.Run("Hard findings set the exit code", func(t *testing.T) {
		path := writeDocument(t, "1,,Morning,E1,,Hall,", "0,,Morning,E1,,Hall,", "0,,Morning,E2,,Hall,")

		assert.Equal(t, hardFindingsExitCode, check(timetabler, input, path, zap.NewNop()))
	})
}
