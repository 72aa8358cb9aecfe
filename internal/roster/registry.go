package roster

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/limaJavier/examtabling/pkg/model"
)

type Module struct {
	Code         string `csv:"Code"`
	Name         string `csv:"Module Name"`
	Leader       string `csv:"Module Leader"`
	SecondMarker string `csv:"Second Marker"`
	Style        string `csv:"Exam Style"`
}

// Title is the text matched against exam names
func (module Module) Title() string {
	return strings.TrimSpace(module.Code + " " + module.Name)
}

func (module Module) ExamStyle() model.ExamStyle {
	switch strings.ToLower(strings.TrimSpace(module.Style)) {
	case "pc", "computer":
		return model.ComputerStyle
	}
	return model.StandardStyle
}

func (module Module) Leaders() []string {
	leaders := make([]string, 0, 2)
	for _, leader := range []string{module.Leader, module.SecondMarker} {
		if leader = strings.TrimSpace(leader); leader != "" && leader != "#N/A" {
			leaders = append(leaders, leader)
		}
	}
	return leaders
}

func ReadRegistry(reader io.Reader) ([]Module, error) {
	modules := make([]*Module, 0)
	if err := gocsv.Unmarshal(reader, &modules); err != nil {
		return nil, fmt.Errorf("cannot read module registry: %w", err)
	}

	result := make([]Module, 0, len(modules))
	for _, module := range modules {
		if module.Title() != "" {
			result = append(result, *module)
		}
	}
	return result, nil
}

// Resolution records how a registry module was associated with an exam
type Resolution struct {
	Module  string
	Exam    string
	Score   int
	Matched bool
}

// applyRegistry fills the style and leaders of the exams matched by the modules. Exams that no module resolves to keep
// the standard style and have no leaders
func applyRegistry(exams []model.RawExam, modules []Module, threshold int) []Resolution {
	names := make([]string, len(exams))
	positions := make(map[string]int, len(exams))
	for i, exam := range exams {
		names[i] = exam.Name
		positions[exam.Name] = i
	}
	resolver := NewResolver(names, threshold)

	resolutions := make([]Resolution, 0, len(modules))
	for _, module := range modules {
		match, score, ok := resolver.Resolve(module.Title())
		resolutions = append(resolutions, Resolution{Module: module.Title(), Exam: match, Score: score, Matched: ok})
		if !ok {
			continue
		}

		exam := &exams[positions[match]]
		if style := module.ExamStyle(); style == model.ComputerStyle {
			exam.Style = style
		}
		for _, leader := range module.Leaders() {
			if !slices.Contains(exam.Leaders, leader) {
				exam.Leaders = append(exam.Leaders, leader)
			}
		}
	}
	return resolutions
}
