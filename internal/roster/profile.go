package roster

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/limaJavier/examtabling/pkg/model"
	"gopkg.in/yaml.v3"
)

type FixedExam struct {
	Exam string `yaml:"exam"`
	Day  uint64 `yaml:"day"`
	Slot uint64 `yaml:"slot"`
}

type ProfileRoom struct {
	Name         string             `yaml:"name"`
	Capabilities []model.Capability `yaml:"capabilities"`
	Capacity     uint64             `yaml:"capacity"`
	Placeholder  bool               `yaml:"placeholder"`
}

// Profile describes the institution-specific side of a term: what the enrollment and registry do not say
type Profile struct {
	Enrollment     string               `yaml:"enrollment"`
	Registry       string               `yaml:"registry"`
	Threshold      int                  `yaml:"threshold"`
	IgnoredColumns []string             `yaml:"ignored_columns"`
	Core           []string             `yaml:"core"`
	Fixed          []FixedExam          `yaml:"fixed"`
	Rooms          []ProfileRoom        `yaml:"rooms"`
	Calendar       model.CalendarSource `yaml:"calendar"`
}

func ReadProfile(file string) (Profile, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		return Profile{}, err
	}

	profile := Profile{Threshold: DefaultThreshold}
	if err := yaml.Unmarshal(bytes, &profile); err != nil {
		return Profile{}, fmt.Errorf("cannot parse profile %v: %w", file, err)
	}

	// Sources are relative to the profile
	directory := filepath.Dir(file)
	for _, path := range []*string{&profile.Enrollment, &profile.Registry} {
		if *path != "" && !filepath.IsAbs(*path) {
			*path = filepath.Join(directory, *path)
		}
	}
	return profile, nil
}

// Load assembles a raw input out of a profile and the enrollment and registry it points to
func Load(file string) (model.RawModelInput, []Resolution, error) {
	profile, err := ReadProfile(file)
	if err != nil {
		return model.RawModelInput{}, nil, err
	}

	problems := make([]string, 0)
	if profile.Enrollment == "" {
		problems = append(problems, "profile does not name an enrollment")
	}
	if profile.Registry == "" {
		problems = append(problems, "profile does not name a module registry")
	}
	if len(problems) > 0 {
		return model.RawModelInput{}, nil, &model.ValidationError{Problems: problems}
	}

	//** Read sources
	enrollmentFile, err := os.Open(profile.Enrollment)
	if err != nil {
		return model.RawModelInput{}, nil, err
	}
	defer enrollmentFile.Close()
	enrollment, problems, err := ReadEnrollment(enrollmentFile, profile.IgnoredColumns)
	if err != nil {
		return model.RawModelInput{}, nil, err
	}

	registryFile, err := os.Open(profile.Registry)
	if err != nil {
		return model.RawModelInput{}, nil, err
	}
	defer registryFile.Close()
	modules, err := ReadRegistry(registryFile)
	if err != nil {
		return model.RawModelInput{}, nil, err
	}

	//** Assemble exams
	exams := make([]model.RawExam, len(enrollment.Exams))
	for i, name := range enrollment.Exams {
		exams[i] = model.RawExam{Name: name, Style: model.StandardStyle, Leaders: make([]string, 0)}
	}
	resolutions := applyRegistry(exams, modules, profile.Threshold)

	for _, reference := range profile.Core {
		i, ok := findExam(exams, reference)
		if !ok {
			problems = append(problems, fmt.Sprintf("core exam %q is not in the enrollment", reference))
			continue
		}
		exams[i].Core = true
	}
	for _, fixed := range profile.Fixed {
		i, ok := findExam(exams, fixed.Exam)
		if !ok {
			problems = append(problems, fmt.Sprintf("fixed exam %q is not in the enrollment", fixed.Exam))
			continue
		}
		exams[i].Fixed = true
		exams[i].Pin = &model.Sitting{Day: fixed.Day, Slot: fixed.Slot}
	}

	if len(problems) > 0 {
		return model.RawModelInput{}, resolutions, &model.ValidationError{Problems: problems}
	}

	rooms := make([]model.RawRoom, len(profile.Rooms))
	for i, room := range profile.Rooms {
		rooms[i] = model.RawRoom{
			Name:         room.Name,
			Capabilities: room.Capabilities,
			Capacity:     room.Capacity,
			Placeholder:  room.Placeholder,
		}
	}

	return model.RawModelInput{
		Exams:    exams,
		Students: enrollment.Students,
		Rooms:    rooms,
		Term:     &profile.Calendar,
	}, resolutions, nil
}

// findExam matches a reference either by the whole exam name or by the code the name starts with
func findExam(exams []model.RawExam, reference string) (int, bool) {
	reference = strings.TrimSpace(reference)
	for i, exam := range exams {
		if exam.Name == reference {
			return i, true
		}
	}
	for i, exam := range exams {
		if strings.HasPrefix(exam.Name, reference+" ") {
			return i, true
		}
	}
	return 0, false
}
