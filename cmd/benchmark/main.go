package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/limaJavier/examtabling/internal/config"
	"github.com/limaJavier/examtabling/internal/logger"
	"github.com/limaJavier/examtabling/pkg/model"
	"github.com/limaJavier/examtabling/pkg/sat"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type TestMetadata struct {
	Name     string `csv:"Test"`
	Exams    int    `csv:"Exams"`
	Students int    `csv:"Students"`
	Rooms    int    `csv:"Rooms"`
	Days     uint64 `csv:"Days"`
}

type BenchmarkResult struct {
	Solver string `csv:"Solver"`
	TestMetadata
	Duration    int64  `csv:"Duration(ms)"`
	Status      string `csv:"Status"`
	Penalty     int64  `csv:"Penalty"`
	Variables   uint64 `csv:"Variables"`
	Constraints uint64 `csv:"Constraints"`
	Hard        int    `csv:"Hard findings"`
}

func main() {
	sat.ServeWorker() // Gophersat searches run in a child copy of this binary

	directoryPtr := flag.String("dir", "test/instances", "Directory holding the JSON inputs to benchmark")
	solversPtr := flag.String("solvers", "gophersat", "Comma-separated solvers to benchmark")
	outFilePtr := flag.String("out", "benchmark_results.csv", "Path to the CSV file where the results will be written")
	configPathPtr := flag.String("config", "", "Path to the settings file")
	flag.Parse()

	settings, err := config.Load(*configPathPtr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load settings: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(settings.Env, settings.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "cannot initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()
	defer log.Sync()

	solvers := lo.Map(strings.Split(*solversPtr, ","), func(solver string, _ int) string { return strings.TrimSpace(solver) })
	for _, solver := range solvers {
		if _, ok := sat.Solvers[solver]; !ok {
			log.Fatal("invalid solver", zap.String("solver", solver))
		}
	}

	tests, inputs := getTests(*directoryPtr, settings.Model, log)
	results := make([]BenchmarkResult, 0, len(tests)*len(solvers))
	for i, test := range tests {
		for _, solver := range solvers {
			log.Info("benchmarking", zap.String("test", test.Name), zap.String("solver", solver))
			results = append(results, measure(solver, test, inputs[i], log))
		}
	}

	file, err := os.Create(*outFilePtr)
	if err != nil {
		log.Fatal("cannot create CSV file", zap.Error(err))
	}
	defer file.Close()
	if err := toCsv(results, file); err != nil {
		log.Fatal("cannot write CSV file", zap.Error(err))
	}
}

func getTests(directory string, configuration model.Configuration, log *zap.Logger) ([]TestMetadata, []model.ModelInput) {
	testFiles, err := os.ReadDir(directory)
	if err != nil {
		log.Fatal("cannot read directory", zap.Error(err))
	}

	tests := make([]TestMetadata, 0, len(testFiles))
	inputs := make([]model.ModelInput, 0, len(testFiles))
	for _, file := range testFiles {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		filename := filepath.Join(directory, file.Name())
		input, err := model.InputFromJson(filename, configuration)
		if err != nil {
			log.Fatal("cannot parse input file", zap.String("file", filename), zap.Error(err))
		}

		tests = append(tests, testMetadata(filename, input))
		inputs = append(inputs, input)
	}
	return tests, inputs
}

func testMetadata(name string, input model.ModelInput) TestMetadata {
	return TestMetadata{
		Name:     name,
		Exams:    len(input.Exams),
		Students: len(input.Students),
		Rooms:    len(input.Rooms),
		Days:     input.Calendar.Days,
	}
}

func measure(solver string, test TestMetadata, input model.ModelInput, log *zap.Logger) BenchmarkResult {
	timetabler := model.NewPseudoBooleanTimetabler(sat.Solvers[solver](), log)

	start := time.Now()
	result, err := timetabler.Build(input)
	duration := time.Since(start)
	if err != nil {
		log.Fatal("an error occurred during timetable construction", zap.String("test", test.Name), zap.String("solver", solver), zap.Error(err))
	}

	benchmark := BenchmarkResult{
		Solver:       solver,
		TestMetadata: test,
		Duration:     duration.Milliseconds(),
		Status:       result.Status.String(),
		Penalty:      result.Penalty,
		Variables:    result.Variables,
		Constraints:  result.Constraints,
	}
	if result.Status.Solved() {
		benchmark.Hard = len(model.HardFindings(timetabler.Verify(result.Timetable, input)))
	}
	return benchmark
}

func toCsv(results []BenchmarkResult, writer io.Writer) error {
	slices.SortStableFunc(results, func(a, b BenchmarkResult) int {
		return strings.Compare(a.Name, b.Name)
	})
	return gocsv.Marshal(results, writer)
}
