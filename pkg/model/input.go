package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

type ExamStyle string

const (
	StandardStyle ExamStyle = "Standard"
	ComputerStyle ExamStyle = "Computer"
)

type Capability string

const (
	AccessibleCapability Capability = "AEA"
	StandardCapability   Capability = "SEQ"
	ComputerCapability   Capability = "Computer"
)

// Tier is the accessibility arrangement of a student. Any tier other than NoTier places the student in the accessible pool
type Tier string

const (
	NoTier           Tier = "None"
	ExtraTime25Tier  Tier = "ExtraTime25"
	ExtraTime50Tier  Tier = "ExtraTime50"
	ComputerOnlyTier Tier = "ComputerOnly"
	ArrangementTier  Tier = "Arrangement"
)

func (tier Tier) Accessible() bool {
	return tier != NoTier && tier != ""
}

type Sitting struct {
	Day  uint64
	Slot uint64
}

type Exam struct {
	Id      uint64
	Name    string
	Style   ExamStyle
	Core    bool
	Fixed   bool
	Pin     Sitting // Meaningful only for fixed exams
	Leaders []uint64
}

type Student struct {
	Id    uint64
	Name  string
	Tier  Tier
	Exams []uint64
}

type Room struct {
	Id           uint64
	Name         string
	Capabilities []Capability
	Capacity     uint64
	Placeholder  bool // The placeholder has unbounded capacity and supports every capability
}

type Leader struct {
	Id    uint64
	Name  string
	Exams []uint64
}

// Headcount splits the students of an exam between the accessible and the standard pool
type Headcount struct {
	Accessible uint64
	Standard   uint64
}

type RawExam struct {
	Name    string    `validate:"required"`
	Style   ExamStyle `validate:"omitempty,oneof=Standard Computer"`
	Core    bool
	Fixed   bool
	Pin     *Sitting
	Leaders []string
}

type RawStudent struct {
	Name  string   `validate:"required"`
	Tier  Tier     `validate:"omitempty,oneof=None ExtraTime25 ExtraTime50 ComputerOnly Arrangement"`
	Exams []string `validate:"min=1,dive,required"`
}

type RawRoom struct {
	Name         string       `validate:"required"`
	Capabilities []Capability `validate:"dive,oneof=AEA SEQ Computer"`
	Capacity     uint64
	Placeholder  bool
}

type RawModelInput struct {
	Exams    []RawExam    `validate:"min=1,dive"`
	Students []RawStudent `validate:"dive"`
	Rooms    []RawRoom    `validate:"min=1,dive"`

	// Either an explicit calendar or a term to derive it from
	Calendar *Calendar
	Term     *CalendarSource
}

type ModelInput struct {
	Exams      []Exam
	Students   []Student
	Rooms      []Room
	Leaders    []Leader
	Headcounts []Headcount // Indexed by exam
	Calendar   Calendar
	Config     Configuration
}

// ValidationError lists every problem found in an input, so they can be fixed at once
type ValidationError struct {
	Problems []string
	Calendar *CalendarError // Set when the term could not be turned into a calendar, which is also among the problems
}

func (err *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %v", strings.Join(err.Problems, "; "))
}

func (err *ValidationError) Unwrap() error {
	if err.Calendar == nil {
		return nil
	}
	return err.Calendar
}

var validate = validator.New()

func InputFromJson(file string, config Configuration) (ModelInput, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		return ModelInput{}, err
	}

	var inputJson map[string]any
	if err := json.Unmarshal(bytes, &inputJson); err != nil {
		return ModelInput{}, err
	}

	var rawInput RawModelInput
	if err := mapstructure.Decode(inputJson, &rawInput); err != nil {
		return ModelInput{}, fmt.Errorf("cannot decode input file: %w", err)
	}
	return ProcessRawInput(rawInput, config)
}

// ProcessRawInput validates the raw input and resolves it into an immutable model. No partial model is returned on failure
func ProcessRawInput(rawInput RawModelInput, config Configuration) (ModelInput, error) {
	if err := config.Validate(); err != nil {
		return ModelInput{}, err
	}

	problems := structProblems(rawInput)

	//** Resolve calendar
	var calendar Calendar
	var calendarError *CalendarError
	switch {
	case rawInput.Term != nil:
		derived, err := DeriveCalendar(*rawInput.Term, config)
		if errors.As(err, &calendarError) {
			problems = append(problems, calendarError.Error())
		} else if err != nil {
			return ModelInput{}, err
		}
		calendar = derived
	case rawInput.Calendar != nil:
		calendar = *rawInput.Calendar
	}
	if calendar.Days == 0 {
		calendar.Days = config.Days
	}
	if calendar.Slots == 0 {
		calendar.Slots = config.Slots
	}
	config.Days, config.Slots = calendar.Days, calendar.Slots
	for _, sitting := range slices.Concat(calendar.Forbidden, calendar.Discouraged) {
		if !calendar.Contains(sitting) {
			problems = append(problems, fmt.Sprintf("calendar sitting %v is outside of %v days with %v slots", sitting, calendar.Days, calendar.Slots))
		}
	}

	input := ModelInput{
		Exams:    make([]Exam, 0, len(rawInput.Exams)),
		Students: make([]Student, 0, len(rawInput.Students)),
		Rooms:    make([]Room, 0, len(rawInput.Rooms)),
		Leaders:  make([]Leader, 0),
		Calendar: calendar,
		Config:   config,
	}

	//** Manage rooms
	roomIds := make(map[string]uint64)
	for _, rawRoom := range rawInput.Rooms {
		if _, ok := roomIds[rawRoom.Name]; ok {
			problems = append(problems, fmt.Sprintf("room %q is declared more than once", rawRoom.Name))
			continue
		}
		room := Room{
			Id:           uint64(len(input.Rooms)),
			Name:         rawRoom.Name,
			Capabilities: lo.Uniq(rawRoom.Capabilities),
			Capacity:     rawRoom.Capacity,
			Placeholder:  rawRoom.Placeholder,
		}
		roomIds[room.Name] = room.Id
		input.Rooms = append(input.Rooms, room)
	}
	placeholders := lo.CountBy(input.Rooms, func(room Room) bool { return room.Placeholder })
	if placeholders > 1 {
		problems = append(problems, fmt.Sprintf("at most one placeholder room is allowed, found %v", placeholders))
	}

	//** Manage exams and leaders
	examIds := make(map[string]uint64)
	leaderIds := make(map[string]uint64)
	for _, rawExam := range rawInput.Exams {
		if _, ok := examIds[rawExam.Name]; ok {
			problems = append(problems, fmt.Sprintf("exam %q is declared more than once", rawExam.Name))
			continue
		}

		exam := Exam{
			Id:    uint64(len(input.Exams)),
			Name:  rawExam.Name,
			Style: lo.Ternary(rawExam.Style == "", StandardStyle, rawExam.Style),
			Core:  rawExam.Core,
			Fixed: rawExam.Fixed,
		}
		if exam.Fixed {
			if rawExam.Pin == nil {
				problems = append(problems, fmt.Sprintf("fixed exam %q has no pinned sitting", exam.Name))
			} else if !calendar.Contains(*rawExam.Pin) {
				problems = append(problems, fmt.Sprintf("fixed exam %q is pinned outside of the calendar: %v", exam.Name, *rawExam.Pin))
			} else {
				exam.Pin = *rawExam.Pin
			}
			if !exam.Core && placeholders == 0 {
				problems = append(problems, fmt.Sprintf("fixed exam %q requires a placeholder room", exam.Name))
			}
		}

		for _, leaderName := range lo.Uniq(rawExam.Leaders) {
			leaderId, ok := leaderIds[leaderName]
			if !ok {
				leaderId = uint64(len(input.Leaders))
				leaderIds[leaderName] = leaderId
				input.Leaders = append(input.Leaders, Leader{Id: leaderId, Name: leaderName})
			}
			input.Leaders[leaderId].Exams = append(input.Leaders[leaderId].Exams, exam.Id)
			exam.Leaders = append(exam.Leaders, leaderId)
		}

		examIds[exam.Name] = exam.Id
		input.Exams = append(input.Exams, exam)
	}

	//** Manage students
	input.Headcounts = make([]Headcount, len(input.Exams))
	studentNames := make(map[string]bool)
	for _, rawStudent := range rawInput.Students {
		if studentNames[rawStudent.Name] {
			problems = append(problems, fmt.Sprintf("student %q is declared more than once", rawStudent.Name))
			continue
		}
		studentNames[rawStudent.Name] = true

		student := Student{
			Id:   uint64(len(input.Students)),
			Name: rawStudent.Name,
			Tier: lo.Ternary(rawStudent.Tier == "", NoTier, rawStudent.Tier),
		}
		if duplicates := lo.FindDuplicates(rawStudent.Exams); len(duplicates) > 0 {
			problems = append(problems, fmt.Sprintf("student %q is enrolled more than once in %v", student.Name, duplicates))
		}
		for _, examName := range lo.Uniq(rawStudent.Exams) {
			examId, ok := examIds[examName]
			if !ok {
				problems = append(problems, fmt.Sprintf("student %q is enrolled in unknown exam %q", student.Name, examName))
				continue
			}
			student.Exams = append(student.Exams, examId)

			if student.Tier.Accessible() {
				input.Headcounts[examId].Accessible++
			} else {
				input.Headcounts[examId].Standard++
			}
		}
		slices.Sort(student.Exams)
		input.Students = append(input.Students, student)
	}

	if len(problems) > 0 {
		return ModelInput{}, &ValidationError{Problems: problems, Calendar: calendarError}
	}
	return input, nil
}

// structProblems turns the tag-based validation failures into readable problems
func structProblems(value any) []string {
	err := validate.Struct(value)
	if err == nil {
		return []string{}
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}
	return lo.Map(validationErrors, func(fieldError validator.FieldError, _ int) string {
		if fieldError.Param() != "" {
			return fmt.Sprintf("%v must satisfy %v=%v", fieldError.Namespace(), fieldError.Tag(), fieldError.Param())
		}
		return fmt.Sprintf("%v must satisfy %v", fieldError.Namespace(), fieldError.Tag())
	})
}
