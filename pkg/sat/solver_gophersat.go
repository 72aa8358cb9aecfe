package sat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	gophersat "github.com/crillab/gophersat/solver"
	"github.com/samber/lo"
)

// WorkerEnv marks a process started by its parent to run a single gophersat search
const WorkerEnv = "EXAMTABLING_SAT_WORKER"

// Lines written by a worker: "o <weight> <model bits>" per improving model, then one "s <outcome>"
const (
	modelLine     = "o"
	outcomeLine   = "s"
	outcomeSolved = "optimal"
	outcomeUnsat  = "infeasible"
	outcomeOpen   = "unknown"
)

type gophersatSolver struct {
	executable string // Empty means the running binary
}

// NewGophersatSolver returns a solver that minimizes the objective within the budget. The search runs in a child
// process (the running binary itself, see ServeWorker) that is killed once the budget is spent
func NewGophersatSolver() Solver {
	return &gophersatSolver{}
}

// ServeWorker turns the process into a gophersat worker when its parent started it as one, and exits afterwards.
// Every binary that solves with gophersat calls it before anything else, tests included (from TestMain)
func ServeWorker() {
	if os.Getenv(WorkerEnv) == "" {
		return
	}
	if err := serveGophersat(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}

func (solver *gophersatSolver) Solve(problem Problem, budget time.Duration) (Result, error) {
	for _, constraint := range problem.Constraints {
		_, weights, bound := constraint.normalized()
		if bound > 0 && bound > lo.Sum(weights) {
			return Result{Status: Infeasible}, nil
		}
	}

	executable := solver.executable
	if executable == "" {
		var err error
		if executable, err = os.Executable(); err != nil {
			return Result{}, fmt.Errorf("cannot locate the gophersat worker: %w", err)
		}
	}

	payload, err := json.Marshal(problem)
	if err != nil {
		return Result{}, fmt.Errorf("cannot encode problem: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	cmd := exec.CommandContext(ctx, executable)
	cmd.Env = append(os.Environ(), WorkerEnv+"=1")
	cmd.Stdin = bytes.NewReader(payload)
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdOut, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, err
	}
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("cannot start the gophersat worker: %w", err)
	}

	best, outcome, readErr := readWorkerOutput(stdOut, problem.Variables)
	err = cmd.Wait()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		// The worker was killed, so its last model is the best one found
		if best == nil {
			return Result{Status: Unknown}, nil
		}
		best.Status = Feasible
		return *best, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("an error occurred during gophersat execution: %w : %v", err, stderr.String())
	}
	if readErr != nil {
		return Result{}, readErr
	}

	switch {
	case outcome == outcomeUnsat:
		return Result{Status: Infeasible}, nil
	case outcome == outcomeSolved && best != nil:
		best.Status = Optimal
		return *best, nil
	}
	return Result{Status: Unknown}, nil
}

// readWorkerOutput consumes the worker's lines until the stream ends, keeping the last model
func readWorkerOutput(reader io.Reader, variables uint64) (*Result, string, error) {
	var best *Result
	var outcome string

	lines := bufio.NewReader(reader)
	for {
		line, err := lines.ReadString('\n')
		if errors.Is(err, io.EOF) && !strings.HasSuffix(line, "\n") {
			// A partial line belongs to a killed worker
			return best, outcome, nil
		} else if err != nil {
			return best, outcome, err
		}

		fields := strings.Fields(line)
		switch {
		case len(fields) == 0:
		case fields[0] == outcomeLine && len(fields) == 2:
			outcome = fields[1]
		case fields[0] == modelLine && len(fields) >= 2:
			weight, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return best, outcome, fmt.Errorf("malformed gophersat output %q: %w", line, err)
			}
			assignment := make(Assignment, variables)
			if len(fields) == 3 {
				for i, bit := range fields[2] {
					if i < len(assignment) {
						assignment[i] = bit == '1'
					}
				}
			}
			best = &Result{Assignment: assignment, Objective: weight}
		default:
			return best, outcome, fmt.Errorf("malformed gophersat output %q", line)
		}
	}
}

// serveGophersat reads a JSON problem and writes every improving model as soon as it is found
func serveGophersat(reader io.Reader, writer io.Writer) error {
	var problem Problem
	if err := json.NewDecoder(reader).Decode(&problem); err != nil {
		return fmt.Errorf("cannot decode problem: %w", err)
	}

	output := bufio.NewWriter(writer)
	emit := func(format string, arguments ...any) error {
		if _, err := fmt.Fprintf(output, format+"\n", arguments...); err != nil {
			return err
		}
		return output.Flush()
	}

	pb, feasible := toGophersat(problem)
	if !feasible {
		return emit("%v %v", outcomeLine, outcomeUnsat)
	}

	results := make(chan gophersat.Result)
	go gophersat.New(pb).Optimal(results, nil)

	outcome := outcomeOpen
	for result := range results {
		switch result.Status {
		case gophersat.Sat:
			bits := lo.Map(result.Model, func(value bool, _ int) string { return lo.Ternary(value, "1", "0") })
			if err := emit("%v %v %v", modelLine, result.Weight, strings.Join(bits, "")); err != nil {
				return err
			}
			outcome = outcomeSolved
		case gophersat.Unsat:
			outcome = outcomeUnsat
		}
	}
	return emit("%v %v", outcomeLine, outcome)
}

// toGophersat translates the problem, reporting false when some constraint can never hold
func toGophersat(problem Problem) (*gophersat.Problem, bool) {
	constraints := make([]gophersat.PBConstr, 0, len(problem.Constraints))
	for _, constraint := range problem.Constraints {
		literals, weights, bound := constraint.normalized()
		if bound <= 0 {
			continue // Trivially satisfied
		} else if bound > lo.Sum(weights) {
			return nil, false
		}
		constraints = append(constraints, gophersat.GtEq(toInts(literals), toInts(weights), int(bound)))
	}

	pb := gophersat.ParsePBConstrs(constraints)

	costTerms := lo.Filter(problem.Objective, func(term Term, _ int) bool { return term.Weight > 0 })
	if len(costTerms) > 0 {
		pb.SetCostFunc(
			lo.Map(costTerms, func(term Term, _ int) gophersat.Lit { return gophersat.IntToLit(int32(term.Literal)) }),
			lo.Map(costTerms, func(term Term, _ int) int { return int(term.Weight) }),
		)
	}
	return pb, true
}

func toInts(values []int64) []int {
	return lo.Map(values, func(value int64, _ int) int { return int(value) })
}
