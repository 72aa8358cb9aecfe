package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/limaJavier/examtabling/internal/jobs"
	"github.com/limaJavier/examtabling/internal/snapshot"
	"github.com/limaJavier/examtabling/pkg/model"
	"github.com/limaJavier/examtabling/pkg/sat"
	"github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimetabler struct{}

func (fakeTimetabler) Build(modelInput model.ModelInput) (model.BuildResult, error) {
	return model.BuildResult{
		Status: sat.Optimal,
		Timetable: model.Timetable{
			"E1": {Day: 0, Slot: 0, Rooms: []string{"Hall"}},
			"E2": {Day: 1, Slot: 0, Rooms: []string{"Hall"}},
		},
	}, nil
}

func (fakeTimetabler) Verify(timetable model.Timetable, modelInput model.ModelInput) []model.Finding {
	return model.Check(timetable, modelInput)
}

const rawInput = `{
	"Exams": [{"Name": "E1"}, {"Name": "E2"}],
	"Students": [{"Name": "S1", "Exams": ["E1", "E2"]}],
	"Rooms": [{"Name": "Hall", "Capabilities": ["AEA", "SEQ"], "Capacity": 10}],
	"Calendar": {"Days": 5, "Slots": 2}
}`

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

func newTestServer(t *testing.T, store snapshot.Store) *httptest.Server {
	timetabler := fakeTimetabler{}
	registry := jobs.NewRegistry(timetabler, jobs.Options{Store: store}, nil)
	server := httptest.NewServer(NewServer(registry, timetabler, store, model.DefaultConfiguration(), nil).Router())
	t.Cleanup(server.Close)
	return server
}

func call(t *testing.T, method, url, body string) (int, envelope) {
	request, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	request.Header.Set("Content-Type", "application/json")

	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()

	var decoded envelope
	require.NoError(t, json.NewDecoder(response.Body).Decode(&decoded))
	return response.StatusCode, decoded
}

func TestHealth(t *testing.T) {
	server := newTestServer(t, nil)

	status, response := call(t, http.MethodGet, server.URL+"/health", "")

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, response.Success)
}

func TestTimetables(t *testing.T) {
	server := newTestServer(t, nil)

	t.Run("Created timetables can be fetched once finished", func(t *testing.T) {
		//** Arrange
		status, response := call(t, http.MethodPost, server.URL+"/api/v1/timetables", rawInput)
		require.Equal(t, http.StatusAccepted, status)
		var created struct {
			Id uuid.UUID `json:"id"`
		}
		require.NoError(t, json.Unmarshal(response.Data, &created))

		//** Act
		var view timetableView
		require.Eventually(t, func() bool {
			_, response := call(t, http.MethodGet, server.URL+"/api/v1/timetables/"+created.Id.String(), "")
			view = timetableView{}
			return json.Unmarshal(response.Data, &view) == nil && view.State == jobs.Finished
		}, 5*time.Second, 10*time.Millisecond)

		//** Assert
		assert.Equal(t, "optimal", view.Status)
		assert.Len(t, view.Timetable, 2)
		assert.Empty(t, model.HardFindings(view.Findings))

		document, err := http.Get(server.URL + "/api/v1/timetables/" + created.Id.String() + "/csv")
		require.NoError(t, err)
		defer document.Body.Close()
		var content bytes.Buffer
		_, err = content.ReadFrom(document.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, document.StatusCode)
		assert.Equal(t, "text/csv", document.Header.Get("Content-Type"))
		assert.True(t, strings.HasPrefix(content.String(), "Day,Date,Time,Exam,Students,Rooms,Type\n"))
		assert.Contains(t, content.String(), "0,,Morning,E1,\"AEA 0, SEQ 1\",Hall,Standard\n")
	})

	t.Run("Invalid inputs list their problems", func(t *testing.T) {
		status, response := call(t, http.MethodPost, server.URL+"/api/v1/timetables", `{"Exams": [], "Rooms": []}`)

		assert.Equal(t, http.StatusUnprocessableEntity, status)
		require.NotNil(t, response.Error)
		assert.Equal(t, "invalid_input", response.Error.Code)
		assert.NotEmpty(t, response.Error.Problems)
	})

	t.Run("Malformed bodies", func(t *testing.T) {
		status, _ := call(t, http.MethodPost, server.URL+"/api/v1/timetables", `{`)

		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("Unknown and invalid ids", func(t *testing.T) {
		status, _ := call(t, http.MethodGet, server.URL+"/api/v1/timetables/"+uuid.NewString(), "")
		assert.Equal(t, http.StatusNotFound, status)

		status, _ = call(t, http.MethodGet, server.URL+"/api/v1/timetables/nope", "")
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestSnapshotFallback(t *testing.T) {
	//** Arrange
	store, err := snapshot.NewFileStore(t.TempDir())
	require.NoError(t, err)
	input, err := model.ProcessRawInput(model.RawModelInput{
		Exams: []model.RawExam{{Name: "E1"}},
		Rooms: []model.RawRoom{{Name: "Hall", Capabilities: []model.Capability{model.StandardCapability}, Capacity: 10}},
	}, model.DefaultConfiguration())
	require.NoError(t, err)
	frozen := snapshot.New(input, model.BuildResult{
		Status:    sat.Feasible,
		Penalty:   2,
		Timetable: model.Timetable{"E1": {Day: 0, Slot: 0, Rooms: []string{"Hall"}}},
	})
	require.NoError(t, store.Save(context.Background(), frozen))
	server := newTestServer(t, store)

	//** Act
	status, response := call(t, http.MethodGet, server.URL+"/api/v1/timetables/"+frozen.Id.String(), "")

	//** Assert
	require.Equal(t, http.StatusOK, status)
	var view timetableView
	require.NoError(t, json.Unmarshal(response.Data, &view))
	assert.Equal(t, jobs.Finished, view.State)
	assert.Equal(t, "feasible", view.Status)
	assert.Equal(t, int64(2), view.Penalty)
}

func TestCheck(t *testing.T) {
	server := newTestServer(t, nil)
	body := `{
		"input": ` + rawInput + `,
		"timetable": {"E1": {"Day": 0, "Slot": 0, "Rooms": ["Hall"]}, "E2": {"Day": 0, "Slot": 0, "Rooms": ["Hall"]}}
	}`

	status, response := call(t, http.MethodPost, server.URL+"/api/v1/checks", body)

	require.Equal(t, http.StatusOK, status)
	var view checkView
	require.NoError(t, json.Unmarshal(response.Data, &view))
	g := gomega.NewWithT(t)
	g.Expect(view.Feasible).To(gomega.BeFalse())
	g.Expect(ruleSet(view.Findings)).To(gomega.ContainElements(model.StudentClashRule, model.RoomClashRule))
}

func TestCheckTimetable(t *testing.T) {
	store, err := snapshot.NewFileStore(t.TempDir())
	require.NoError(t, err)
	var raw model.RawModelInput
	require.NoError(t, json.Unmarshal([]byte(rawInput), &raw))
	input, err := model.ProcessRawInput(raw, model.DefaultConfiguration())
	require.NoError(t, err)
	frozen := snapshot.New(input, model.BuildResult{
		Status: sat.Optimal,
		Timetable: model.Timetable{
			"E1": {Day: 0, Slot: 0, Rooms: []string{"Hall"}},
			"E2": {Day: 1, Slot: 0, Rooms: []string{"Hall"}},
		},
	})
	require.NoError(t, store.Save(context.Background(), frozen))
	server := newTestServer(t, store)
	url := server.URL + "/api/v1/timetables/" + frozen.Id.String() + "/checks"

	t.Run("Documents are checked against the stored input", func(t *testing.T) {
		//** Arrange
		document := strings.Join([]string{
			"Day,Date,Time,Exam,Students,Rooms,Type",
			"1,,Morning,E1,,Hall,",
			"0,,Morning,E1,,Hall,",
			"0,,Morning,E2,,Hall,",
		}, "\n")

		//** Act
		status, response := call(t, http.MethodPost, url, document)

		//** Assert
		require.Equal(t, http.StatusOK, status)
		var view checkView
		require.NoError(t, json.Unmarshal(response.Data, &view))
		g := gomega.NewWithT(t)
		g.Expect(view.Feasible).To(gomega.BeFalse())
		g.Expect(ruleSet(view.Findings)).To(gomega.ContainElements(model.StudentClashRule, model.RoomClashRule, model.DuplicateRowRule))
	})

	t.Run("A clean document is feasible", func(t *testing.T) {
		document := "Day,Date,Time,Exam,Students,Rooms,Type\n0,,Morning,E1,,Hall,\n1,,Morning,E2,,Hall,\n"

		status, response := call(t, http.MethodPost, url, document)

		require.Equal(t, http.StatusOK, status)
		var view checkView
		require.NoError(t, json.Unmarshal(response.Data, &view))
		assert.True(t, view.Feasible)
		assert.Empty(t, model.HardFindings(view.Findings))
	})

	t.Run("Live jobs lend their input", func(t *testing.T) {
		status, response := call(t, http.MethodPost, server.URL+"/api/v1/timetables", rawInput)
		require.Equal(t, http.StatusAccepted, status)
		var created struct {
			Id uuid.UUID `json:"id"`
		}
		require.NoError(t, json.Unmarshal(response.Data, &created))

		status, response = call(t, http.MethodPost, server.URL+"/api/v1/timetables/"+created.Id.String()+"/checks",
			"Day,Date,Time,Exam,Students,Rooms,Type\n0,,Morning,E1,,Hall,\n")

		require.Equal(t, http.StatusOK, status)
		var view checkView
		require.NoError(t, json.Unmarshal(response.Data, &view))
		assert.Contains(t, ruleSet(view.Findings), model.MissingExamRule)
	})

	t.Run("Malformed documents and unknown runs", func(t *testing.T) {
		status, _ := call(t, http.MethodPost, url, "Day,Date,Time,Exam,Students,Rooms,Type\nmonday,,Morning,E1,,Hall,\n")
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = call(t, http.MethodPost, server.URL+"/api/v1/timetables/"+uuid.NewString()+"/checks", "")
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func ruleSet(findings []model.Finding) []model.Rule {
	rules := make([]model.Rule, len(findings))
	for i, finding := range findings {
		rules[i] = finding.Rule
	}
	return rules
}
