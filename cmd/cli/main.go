package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/limaJavier/examtabling/internal/config"
	"github.com/limaJavier/examtabling/internal/csvio"
	"github.com/limaJavier/examtabling/internal/jobs"
	"github.com/limaJavier/examtabling/internal/logger"
	"github.com/limaJavier/examtabling/internal/roster"
	"github.com/limaJavier/examtabling/internal/snapshot"
	"github.com/limaJavier/examtabling/pkg/model"
	"github.com/limaJavier/examtabling/pkg/sat"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Exit codes
const (
	solvedExitCode       = 10
	hardFindingsExitCode = 15
	infeasibleExitCode   = 20
	unknownExitCode      = 30
)

const progressInterval = 5 * time.Second

var validModes = []string{"generate", "check"}

func main() {
	sat.ServeWorker() // Gophersat searches run in a child copy of this binary

	// Define arguments
	modePtr := flag.String("mode", "generate", `Mode to run in. Allowed values are:
- "generate" (builds a timetable for the input) and
- "check" (verifies the timetable given by -timetable against the input), where "generate" is the default`)
	filePathPtr := flag.String("file", "", "Path to the JSON input file")
	rosterPathPtr := flag.String("roster", "", "Path to the profile YAML of a term, used instead of -file to read the enrollment and module registry CSVs")
	timetablePathPtr := flag.String("timetable", "", "Path to the timetable document to check")
	outFilePathPtr := flag.String("out", "", "Path to the file where the timetable document will be written; if empty, it'll be written into the Standard Output")
	solverPtr := flag.String("solver", "", "Solver to use. Allowed values are: \"gophersat\", \"kissat\", \"cadical\", \"minisat\"; if empty, the configured one is used")
	configPathPtr := flag.String("config", "", "Path to the settings file; if empty, examtabling.yaml is looked up in the working directory")
	snapshotPtr := flag.Bool("snapshot", false, "Save a snapshot of the generated timetable")
	snapshotIdPtr := flag.String("snapshot-id", "", "Id of a saved snapshot whose input the timetable is checked against, used instead of -file or -roster")
	storePtr := flag.String("store", "", "Snapshot store. Allowed values are: \"file\", \"redis\"; if empty, the configured one is used")
	flag.Parse()
	mode := strings.ToLower(*modePtr)

	// Load settings
	settings, err := config.Load(*configPathPtr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load settings: %v\n", err)
		os.Exit(1)
	}
	if *solverPtr != "" {
		settings.Solver = strings.ToLower(*solverPtr)
	}
	if *storePtr != "" {
		settings.Store.Kind = strings.ToLower(*storePtr)
	}

	if err := logger.Init(settings.Env, settings.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "cannot initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()
	defer log.Sync()

	// Validate arguments
	newSolver, ok := sat.Solvers[settings.Solver]
	if !slices.Contains(validModes, mode) {
		log.Fatal("invalid mode", zap.String("mode", mode))
	} else if !ok {
		log.Fatal("invalid solver", zap.String("solver", settings.Solver))
	} else if *filePathPtr == "" && *rosterPathPtr == "" && *snapshotIdPtr == "" {
		log.Fatal("an input file, a roster profile or a snapshot id must be specified")
	} else if *snapshotIdPtr != "" && mode != "check" {
		log.Fatal("snapshot ids can only be checked against")
	} else if mode == "check" && *timetablePathPtr == "" {
		log.Fatal("a timetable must be specified to check")
	}
	if settings.Solver != "gophersat" {
		setConfigPath(log)
	}

	// Extract input
	var input model.ModelInput
	if *snapshotIdPtr != "" {
		input, err = snapshotInput(settings.Store, *snapshotIdPtr)
	} else {
		input, err = readInput(*filePathPtr, *rosterPathPtr, settings.Model, log)
	}
	if err != nil {
		log.Fatal("cannot read input", zap.Error(err))
	}

	// Initialize engines
	timetabler := model.NewPseudoBooleanTimetabler(newSolver(), log)

	var exitCode int
	switch mode {
	case "generate":
		exitCode = generate(timetabler, input, settings, *outFilePathPtr, *snapshotPtr, log)
	case "check":
		exitCode = check(timetabler, input, *timetablePathPtr, log)
	}
	log.Sync()
	os.Exit(exitCode)
}

func readInput(filePath, rosterPath string, configuration model.Configuration, log *zap.Logger) (model.ModelInput, error) {
	if rosterPath == "" {
		return model.InputFromJson(filePath, configuration)
	}

	raw, resolutions, err := roster.Load(rosterPath)
	for _, resolution := range resolutions {
		if !resolution.Matched {
			log.Warn("module does not match any exam", zap.String("module", resolution.Module), zap.Int("score", resolution.Score))
		}
	}
	if err != nil {
		return model.ModelInput{}, err
	}
	return model.ProcessRawInput(raw, configuration)
}

// snapshotInput loads the input a saved run was built from
func snapshotInput(settings config.StoreSettings, snapshotId string) (model.ModelInput, error) {
	id, err := uuid.Parse(snapshotId)
	if err != nil {
		return model.ModelInput{}, fmt.Errorf("invalid snapshot id %q: %w", snapshotId, err)
	}
	store, err := snapshot.FromSettings(settings)
	if err != nil {
		return model.ModelInput{}, fmt.Errorf("cannot open snapshot store: %w", err)
	}
	frozen, err := store.Load(context.Background(), id)
	if err != nil {
		return model.ModelInput{}, err
	}
	return frozen.Input, nil
}

func generate(timetabler model.Timetabler, input model.ModelInput, settings config.Settings, outFile string, save bool, log *zap.Logger) int {
	// Build timetable
	job := jobs.Start(timetabler, input)
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for waiting := true; waiting; {
		select {
		case <-job.Done():
			waiting = false
		case <-ticker.C:
			log.Info("still solving", zap.Duration("elapsed", job.Elapsed().Round(time.Second)), zap.Duration("budget", input.Config.TimeBudget))
		}
	}

	result, err := job.Wait()
	if err != nil {
		log.Fatal("an error occurred during timetable construction", zap.Error(err))
	}

	switch result.Status {
	case sat.Infeasible:
		log.Warn("no timetable exists", zap.Strings("diagnostics", result.Diagnostics))
		return infeasibleExitCode
	case sat.Unknown:
		log.Warn("no timetable was found within the time budget", zap.Duration("budget", input.Config.TimeBudget))
		return unknownExitCode
	}

	// Verify timetable correctness
	findings := timetabler.Verify(result.Timetable, input)
	if hard := model.HardFindings(findings); len(hard) > 0 {
		for _, finding := range hard {
			log.Error("generated timetable is incorrect", zap.Stringer("finding", finding))
		}
		return hardFindingsExitCode
	}

	// Write timetable document, into the Standard Output when no file is given
	if outFile == "" {
		err = csvio.WriteTimetable(os.Stdout, result.Timetable, input)
	} else {
		err = csvio.WriteTimetableFile(outFile, result.Timetable, input)
	}
	if err != nil {
		log.Fatal("an error occurred while writing the timetable", zap.Error(err))
	}

	if save {
		store, err := snapshot.FromSettings(settings.Store)
		if err != nil {
			log.Fatal("cannot open snapshot store", zap.Error(err))
		}
		frozen := snapshot.New(input, result)
		if err := store.Save(context.Background(), frozen); err != nil {
			log.Fatal("cannot save snapshot", zap.Error(err))
		}
		log.Info("snapshot saved", zap.Stringer("id", frozen.Id), zap.String("store", settings.Store.Kind))
	}

	log.Info("timetable built",
		zap.Stringer("status", result.Status),
		zap.Int64("penalty", result.Penalty),
		zap.Uint64("variables", result.Variables),
		zap.Uint64("constraints", result.Constraints),
		zap.Duration("elapsed", job.Elapsed()),
	)
	return solvedExitCode
}

func check(timetabler model.Timetabler, input model.ModelInput, timetablePath string, log *zap.Logger) int {
	timetable, findings, err := csvio.ReadTimetableFile(timetablePath)
	if err != nil {
		log.Fatal("cannot read timetable", zap.Error(err))
	}

	findings = append(findings, timetabler.Verify(timetable, input)...)
	for _, finding := range findings {
		fmt.Println(finding)
	}

	hard := model.HardFindings(findings)
	log.Info("timetable checked",
		zap.Int("hard", len(hard)),
		zap.Int("soft", len(findings)-len(hard)),
		zap.Int64("penalty", model.Penalty(findings)),
	)
	if len(hard) > 0 {
		return hardFindingsExitCode
	}
	return 0
}

// setConfigPath points the external solvers at the config.json beside the executable, when there is one
func setConfigPath(log *zap.Logger) {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatal("cannot determine executable path", zap.Error(err))
	}
	execPath = path.Dir(execPath)

	files, err := os.ReadDir(execPath)
	if err != nil {
		log.Fatal("cannot read executable's directory", zap.Error(err))
	}
	fileNames := lo.Map(files, func(file os.DirEntry, _ int) string { return file.Name() })

	if !slices.Contains(fileNames, "config.json") {
		log.Warn("config.json was not found beside the executable, using the working directory", zap.String("directory", execPath))
		return
	}
	sat.ConfigPath = execPath + "/config.json"
}
