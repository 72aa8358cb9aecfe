package sat

// Solvers maps the name of every backend to its constructor
var Solvers = map[string]func() Solver{
	"gophersat": NewGophersatSolver,
	"kissat":    NewKissatSolver,
	"cadical":   NewCadicalSolver,
	"minisat":   NewMinisatSolver,
}
