package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessRawInput(t *testing.T) {
	t.Run("Leaders and headcounts are derived", func(t *testing.T) {
		//** Arrange
		raw := RawModelInput{
			Exams: []RawExam{
				{Name: "E1", Leaders: []string{"Dr A", "Dr B", "Dr A"}},
				{Name: "E2", Leaders: []string{"Dr A"}},
			},
			Students: []RawStudent{
				{Name: "S1", Exams: []string{"E2", "E1"}},
				{Name: "S2", Tier: ComputerOnlyTier, Exams: []string{"E1"}},
			},
			Rooms:    []RawRoom{hall("R1", 50)},
			Calendar: &Calendar{Days: 7, Slots: 2},
		}

		//** Act
		input, err := ProcessRawInput(raw, testConfiguration())

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, []Leader{
			{Id: 0, Name: "Dr A", Exams: []uint64{0, 1}},
			{Id: 1, Name: "Dr B", Exams: []uint64{0}},
		}, input.Leaders)
		assert.Equal(t, []uint64{0, 1}, input.Exams[0].Leaders)
		assert.Equal(t, []Headcount{{Accessible: 1, Standard: 1}, {Accessible: 0, Standard: 1}}, input.Headcounts)
		assert.Equal(t, []uint64{0, 1}, input.Students[0].Exams)
		assert.Equal(t, NoTier, input.Students[0].Tier)
		assert.Equal(t, StandardStyle, input.Exams[0].Style)
	})

	t.Run("Every problem is reported at once", func(t *testing.T) {
		raw := RawModelInput{
			Exams: []RawExam{
				{Name: "E1"},
				{Name: "E1"},
				{Name: "Fixed", Fixed: true},
			},
			Students: []RawStudent{
				{Name: "S1", Exams: []string{"E1", "Unknown"}},
				{Name: "S2", Exams: []string{}},
			},
			Rooms:    []RawRoom{hall("R1", 50)},
			Calendar: &Calendar{Days: 7, Slots: 2},
		}

		_, err := ProcessRawInput(raw, testConfiguration())

		var validationError *ValidationError
		require.ErrorAs(t, err, &validationError)
		assert.Contains(t, validationError.Problems, `exam "E1" is declared more than once`)
		assert.Contains(t, validationError.Problems, `fixed exam "Fixed" has no pinned sitting`)
		assert.Contains(t, validationError.Problems, `fixed exam "Fixed" requires a placeholder room`)
		assert.Contains(t, validationError.Problems, `student "S1" is enrolled in unknown exam "Unknown"`)
		assert.Contains(t, validationError.Problems, "RawModelInput.Students[1].Exams must satisfy min=1")
	})

	t.Run("Calendar problems join the other problems", func(t *testing.T) {
		//** Arrange
		raw := RawModelInput{
			Exams:    []RawExam{{Name: "E1"}, {Name: "E1"}},
			Students: []RawStudent{{Name: "S1", Exams: []string{"E1"}}},
			Rooms:    []RawRoom{hall("R1", 50)},
			Term:     &CalendarSource{TermStart: "someday"},
		}

		//** Act
		_, err := ProcessRawInput(raw, testConfiguration())

		//** Assert
		var validationError *ValidationError
		require.ErrorAs(t, err, &validationError)
		assert.Contains(t, validationError.Problems, `exam "E1" is declared more than once`)
		assert.Contains(t, validationError.Problems, `invalid calendar field TermStart: cannot parse "someday"`)

		var calendarError *CalendarError
		require.ErrorAs(t, err, &calendarError)
		assert.Equal(t, "TermStart", calendarError.Field)
	})

	t.Run("Invalid configurations are rejected", func(t *testing.T) {
		config := testConfiguration()
		config.TimeBudget = 0

		_, err := ProcessRawInput(RawModelInput{}, config)

		var validationError *ValidationError
		assert.ErrorAs(t, err, &validationError)
	})

	t.Run("Pins outside of the calendar", func(t *testing.T) {
		raw := RawModelInput{
			Exams:    []RawExam{{Name: "E1", Core: true, Fixed: true, Pin: &Sitting{Day: 10, Slot: 0}}},
			Rooms:    []RawRoom{hall("R1", 50)},
			Calendar: &Calendar{Days: 7, Slots: 2},
		}

		_, err := ProcessRawInput(raw, testConfiguration())

		var validationError *ValidationError
		require.ErrorAs(t, err, &validationError)
		assert.Len(t, validationError.Problems, 1)
	})
}

func TestInputFromJson(t *testing.T) {
	//** Arrange
	file := filepath.Join(t.TempDir(), "input.json")
	content := `{
		"Exams": [{"Name": "E1", "Style": "Computer"}, {"Name": "E2", "Core": true}],
		"Students": [{"Name": "S1", "Tier": "ExtraTime50", "Exams": ["E1", "E2"]}],
		"Rooms": [{"Name": "Lab", "Capabilities": ["AEA", "Computer"], "Capacity": 12}],
		"Term": {"TermStart": "2024-05-01"}
	}`
	require.NoError(t, os.WriteFile(file, []byte(content), 0666))
	config := DefaultConfiguration()
	config.TimeBudget = time.Second

	//** Act
	input, err := InputFromJson(file, config)

	//** Assert
	require.NoError(t, err)
	assert.Len(t, input.Exams, 2)
	assert.Equal(t, ComputerStyle, input.Exams[0].Style)
	assert.True(t, input.Exams[1].Core)
	assert.Equal(t, ExtraTime50Tier, input.Students[0].Tier)
	assert.Equal(t, []Capability{AccessibleCapability, ComputerCapability}, input.Rooms[0].Capabilities)
	assert.Equal(t, uint64(21), input.Calendar.Days)
	assert.Equal(t, "Mon 06/05/2024", input.Calendar.Labels[0])
}
