package roster

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/limaJavier/examtabling/pkg/model"
	"github.com/samber/lo"
)

const (
	IdColumn          = "CID"
	ArrangementColumn = "AEA"
)

// Enrollment is the student-by-exam matrix of a term
type Enrollment struct {
	Exams    []string // Sorted by name
	Students []model.RawStudent
}

// ReadEnrollment reads the enrollment matrix. Every column other than the id, the arrangement and the ignored ones
// is an exam, and a student sits it when the cell holds x, a or b
func ReadEnrollment(reader io.Reader, ignored []string) (Enrollment, []string, error) {
	rows, err := gocsv.CSVToMaps(reader)
	if err != nil {
		return Enrollment{}, nil, fmt.Errorf("cannot read enrollment: %w", err)
	}

	problems := make([]string, 0)
	if len(rows) == 0 {
		return Enrollment{}, append(problems, "enrollment has no students"), nil
	}
	for _, column := range []string{IdColumn, ArrangementColumn} {
		if _, ok := rows[0][column]; !ok {
			problems = append(problems, fmt.Sprintf("enrollment is missing the %v column", column))
		}
	}
	if len(problems) > 0 {
		return Enrollment{}, problems, nil
	}

	exams := lo.Filter(lo.Keys(rows[0]), func(column string, _ int) bool {
		return column != IdColumn && column != ArrangementColumn && !slices.Contains(ignored, column) && strings.TrimSpace(column) != ""
	})
	slices.Sort(exams)
	if len(exams) == 0 {
		return Enrollment{}, append(problems, "enrollment has no exam columns"), nil
	}

	enrollment := Enrollment{
		Exams:    exams,
		Students: make([]model.RawStudent, 0, len(rows)),
	}
	for i, row := range rows {
		id := strings.TrimSpace(row[IdColumn])
		if id == "" {
			problems = append(problems, fmt.Sprintf("missing %v in row %v", IdColumn, i+2))
			continue
		}

		student := model.RawStudent{
			Name:  id,
			Tier:  ParseTier(row[ArrangementColumn]),
			Exams: make([]string, 0),
		}
		for _, exam := range exams {
			switch value := strings.ToLower(strings.TrimSpace(row[exam])); value {
			case "x", "a", "b":
				student.Exams = append(student.Exams, exam)
			case "", "nan":
			default:
				problems = append(problems, fmt.Sprintf("invalid exam indicator %q for student %v in exam %v", value, id, exam))
			}
		}
		if len(student.Exams) > 0 { // Students without exams do not take part in the timetable
			enrollment.Students = append(enrollment.Students, student)
		}
	}
	return enrollment, problems, nil
}
