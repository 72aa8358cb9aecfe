package sat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

// ConfigPath points to the JSON file mapping solver keys (e.g. "kissatPath") to executable paths
var ConfigPath = "config.json"

// Exit-code of 10 stands for satisfiable and exit-code 20 stands for unsatisfiable
const (
	satisfiableExitCode   = 10
	unsatisfiableExitCode = 20
)

// runDimacs lowers the problem, feeds it to the executable and translates the outcome. When outputFile is set the
// executable receives an input and an output path, as minisat does, instead of using its standard streams
func runDimacs(problem Problem, budget time.Duration, executable string, arguments []string, outputFile bool) (Result, error) {
	sat, err := problem.ToSAT()
	if err != nil {
		return Result{}, err
	}
	dimacs := sat.ToDIMACS() // Transform SAT into DIMACS-CNF string format

	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	cmd := exec.CommandContext(ctx, executable, arguments...)

	var outputPath string
	if outputFile {
		inputTempFile, err := os.CreateTemp("", "dimacs-*.cnf")
		if err != nil {
			return Result{}, fmt.Errorf("failed to create temporary file: %w", err)
		}
		defer os.Remove(inputTempFile.Name())

		outputTempFile, err := os.CreateTemp("", "solver_output-*.cnf")
		if err != nil {
			return Result{}, fmt.Errorf("failed to create temporary file: %w", err)
		}
		outputTempFile.Close()
		defer os.Remove(outputTempFile.Name())

		if _, err := inputTempFile.WriteString(dimacs); err != nil {
			return Result{}, fmt.Errorf("failed to write DIMACS to temporary file: %w", err)
		}
		if err := inputTempFile.Close(); err != nil {
			return Result{}, fmt.Errorf("failed to close temporary file: %w", err)
		}

		outputPath = outputTempFile.Name()
		cmd.Args = append(cmd.Args, inputTempFile.Name(), outputPath)
	} else {
		cmd.Stdin = strings.NewReader(dimacs) // Feed dimacs into the solver's standard input
	}

	var stdOut bytes.Buffer
	cmd.Stdout = &stdOut
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err = cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Result{Status: Unknown}, nil
	}

	if cmd.ProcessState == nil {
		return Result{}, fmt.Errorf("cannot start %v: %w", executable, err)
	}

	exitCode := cmd.ProcessState.ExitCode()
	if err != nil && exitCode != satisfiableExitCode && exitCode != unsatisfiableExitCode {
		return Result{}, fmt.Errorf("an error occurred during %v execution: %w : %v", executable, err, stderr.String())
	} else if exitCode == unsatisfiableExitCode {
		return Result{Status: Infeasible}, nil
	}

	var solution SATSolution
	if outputFile {
		output, err := os.ReadFile(outputPath)
		if err != nil {
			return Result{}, fmt.Errorf("failed to read output file: %w", err)
		}
		solution, err = parseMinisatSolution(string(output))
		if err != nil {
			return Result{}, err
		}
	} else {
		solution, err = parseSolution(stdOut.String())
		if err != nil {
			return Result{}, err
		}
	}

	// The objective was dropped during lowering, so the model is feasible but not optimized
	return Result{
		Status:     Feasible,
		Assignment: solution.Assignment(problem.Variables),
	}, nil
}

// parseSolution reads the "v" lines of a competition-format output
func parseSolution(solverOutput string) (SATSolution, error) {
	fields := lo.Reduce(
		lo.Filter(strings.Split(solverOutput, "\n"), func(line string, _ int) bool {
			return len(line) > 0 && line[0] == 'v'
		}),
		func(values []string, line string, _ int) []string {
			return append(values, strings.Fields(line[1:])...)
		},
		[]string{},
	)
	return parseLiterals(fields)
}

// parseMinisatSolution reads minisat's output file, whose first line is the header
func parseMinisatSolution(solverOutput string) (SATSolution, error) {
	lines := strings.Split(solverOutput, "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("malformed solver output: %q", solverOutput)
	}
	return parseLiterals(strings.Fields(lines[1]))
}

func parseLiterals(fields []string) (SATSolution, error) {
	solution := make(SATSolution, 0, len(fields))
	for _, field := range fields {
		value, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid literal in solver output: %w", err)
		}
		if value != 0 {
			solution = append(solution, value)
		}
	}
	return solution, nil
}

// getExecutablePath looks the solver key up in the configuration file, falling back to the executable name on PATH
func getExecutablePath(key, fallback string) (string, error) {
	bytes, err := os.ReadFile(ConfigPath)
	if err == nil {
		var inputJson map[string]any
		if err := json.Unmarshal(bytes, &inputJson); err != nil {
			return "", fmt.Errorf("cannot read %v file: %w", ConfigPath, err)
		}

		var config map[string]string
		if err := mapstructure.Decode(inputJson, &config); err != nil {
			return "", fmt.Errorf("cannot decode %v file: %w", ConfigPath, err)
		}
		if path, ok := config[key]; ok {
			return path, nil
		}
	}

	path, err := exec.LookPath(fallback)
	if err != nil {
		return "", fmt.Errorf("solver %q is neither present in %v nor on PATH: %w", key, ConfigPath, err)
	}
	return path, nil
}
