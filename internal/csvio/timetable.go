package csvio

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/limaJavier/examtabling/pkg/model"
	"github.com/samber/lo"
)

const roomSeparator = "; "

// timetableRow is one (day, slot, exam) triple of the timetable document. Rows with an empty exam stand for unused
// sittings, and blank day, date or time cells repeat the previous row
type timetableRow struct {
	Day      string `csv:"Day"`
	Date     string `csv:"Date"`
	Time     string `csv:"Time"`
	Exam     string `csv:"Exam"`
	Students string `csv:"Students"`
	Rooms    string `csv:"Rooms"`
	Type     string `csv:"Type"`
}

func slotName(calendar model.Calendar, slot uint64) string {
	switch {
	case calendar.Slots == 2 && slot == model.Morning:
		return "Morning"
	case calendar.Slots == 2 && slot == model.Afternoon:
		return "Afternoon"
	}
	return fmt.Sprintf("Slot %v", slot)
}

func parseSlot(value string) (uint64, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "morning":
		return model.Morning, nil
	case "afternoon":
		return model.Afternoon, nil
	}
	slot, err := strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(normalized, "slot")), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown time %q", value)
	}
	return slot, nil
}

// WriteTimetable writes one row per exam, sitting by sitting, and an empty row for every unused sitting. Exams placed
// outside of the calendar follow the calendar rows
func WriteTimetable(writer io.Writer, timetable model.Timetable, modelInput model.ModelInput) error {
	calendar := modelInput.Calendar
	exams := lo.SliceToMap(modelInput.Exams, func(exam model.Exam) (string, model.Exam) { return exam.Name, exam })

	bySitting := make(map[model.Sitting][]string)
	outside := make([]string, 0)
	for name, placement := range timetable {
		if calendar.Contains(placement.Sitting()) {
			bySitting[placement.Sitting()] = append(bySitting[placement.Sitting()], name)
		} else {
			outside = append(outside, name)
		}
	}

	row := func(sitting model.Sitting, name string) *timetableRow {
		date := ""
		if sitting.Day < uint64(len(calendar.Labels)) {
			date = calendar.Labels[sitting.Day]
		}
		result := &timetableRow{
			Day:  strconv.FormatUint(sitting.Day, 10),
			Date: date,
			Time: slotName(calendar, sitting.Slot),
			Exam: name,
		}
		if name == "" {
			return result
		}

		result.Rooms = strings.Join(timetable[name].Rooms, roomSeparator)
		if exam, ok := exams[name]; ok {
			headcount := modelInput.Headcounts[exam.Id]
			result.Students = fmt.Sprintf("AEA %v, SEQ %v", headcount.Accessible, headcount.Standard)
			result.Type = string(exam.Style)
		}
		return result
	}

	rows := make([]*timetableRow, 0, len(timetable)+int(calendar.Days*calendar.Slots))
	for _, sitting := range calendar.Sittings() {
		names := bySitting[sitting]
		if len(names) == 0 {
			rows = append(rows, row(sitting, ""))
			continue
		}
		slices.Sort(names)
		for _, name := range names {
			rows = append(rows, row(sitting, name))
		}
	}

	slices.Sort(outside)
	for _, name := range outside {
		rows = append(rows, row(timetable[name].Sitting(), name))
	}

	return gocsv.Marshal(rows, writer)
}

// ReadTimetable reads a timetable document, carrying blank day and time cells forward. An exam listed more than once
// takes its last row, and every earlier one is reported as a finding
func ReadTimetable(reader io.Reader) (model.Timetable, []model.Finding, error) {
	rows := []*timetableRow{}
	if err := gocsv.Unmarshal(reader, &rows); err != nil {
		return nil, nil, fmt.Errorf("cannot decode timetable: %w", err)
	}

	timetable := make(model.Timetable)
	lines := make(map[string]int)
	findings := make([]model.Finding, 0)
	day, time := "", ""
	for i, row := range rows {
		line := i + 2 // Header included
		if strings.TrimSpace(row.Day) != "" {
			day = row.Day
		}
		if strings.TrimSpace(row.Time) != "" {
			time = row.Time
		}

		name := strings.TrimSpace(row.Exam)
		if name == "" {
			continue
		}
		if day == "" || time == "" {
			return nil, nil, fmt.Errorf("line %v: exam %q has no day or time", line, name)
		}

		dayIndex, err := strconv.ParseUint(strings.TrimSpace(day), 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("line %v: invalid day %q", line, day)
		}
		slot, err := parseSlot(time)
		if err != nil {
			return nil, nil, fmt.Errorf("line %v: %w", line, err)
		}

		if previous, ok := lines[name]; ok {
			findings = append(findings, model.Finding{
				Severity: model.SoftWarning,
				Rule:     model.DuplicateRowRule,
				Message:  fmt.Sprintf("exam %v is listed on lines %v and %v, line %v is ignored", name, previous, line, previous),
				Exams:    []string{name},
			})
		}
		lines[name] = line

		rooms := lo.Filter(
			lo.Map(strings.Split(row.Rooms, strings.TrimSpace(roomSeparator)), func(room string, _ int) string { return strings.TrimSpace(room) }),
			func(room string, _ int) bool { return room != "" },
		)
		timetable[name] = model.Placement{Day: dayIndex, Slot: slot, Rooms: rooms}
	}
	return timetable, findings, nil
}

func WriteTimetableFile(path string, timetable model.Timetable, modelInput model.ModelInput) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create timetable file: %w", err)
	}
	defer file.Close()

	if err := WriteTimetable(file, timetable, modelInput); err != nil {
		return err
	}
	return file.Close()
}

func ReadTimetableFile(path string) (model.Timetable, []model.Finding, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open timetable file: %w", err)
	}
	defer file.Close()

	return ReadTimetable(file)
}
