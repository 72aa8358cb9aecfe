package jobs

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/limaJavier/examtabling/internal/snapshot"
	"github.com/limaJavier/examtabling/pkg/model"
	"go.uber.org/zap"
)

const (
	saveTimeout      = 10 * time.Second
	DefaultRetention = time.Hour
)

type Options struct {
	Store       snapshot.Store // Optional
	Concurrency int            // Builds running at once, one per CPU when zero
	Retention   time.Duration  // How long a finished job that was not snapshotted stays, DefaultRetention when zero
}

// Registry keeps track of the jobs it starts until they are over. Solved jobs are snapshotted under their id when a
// store is given and leave the registry right away, the rest leave once the retention elapses
type Registry struct {
	timetabler model.Timetabler
	store      snapshot.Store
	retention  time.Duration
	logger     *zap.Logger

	mutex sync.RWMutex
	jobs  map[uuid.UUID]*Job
}

func NewRegistry(timetabler model.Timetabler, options Options, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options.Concurrency <= 0 {
		options.Concurrency = runtime.NumCPU()
	}
	if options.Retention <= 0 {
		options.Retention = DefaultRetention
	}
	return &Registry{
		timetabler: &limitedTimetabler{Timetabler: timetabler, slots: make(chan struct{}, options.Concurrency)},
		store:      options.Store,
		retention:  options.Retention,
		logger:     logger,
		jobs:       make(map[uuid.UUID]*Job),
	}
}

func (registry *Registry) Start(input model.ModelInput) *Job {
	job := Start(registry.timetabler, input)

	registry.mutex.Lock()
	registry.jobs[job.Id] = job
	registry.mutex.Unlock()

	registry.logger.Info("job started", zap.Stringer("id", job.Id), zap.Int("exams", len(input.Exams)))
	go registry.follow(job)
	return job
}

func (registry *Registry) Get(id uuid.UUID) (*Job, bool) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	job, ok := registry.jobs[id]
	return job, ok
}

func (registry *Registry) forget(id uuid.UUID) {
	registry.mutex.Lock()
	delete(registry.jobs, id)
	registry.mutex.Unlock()
	registry.logger.Debug("job forgotten", zap.Stringer("id", id))
}

func (registry *Registry) follow(job *Job) {
	if registry.snapshot(job) {
		registry.forget(job.Id)
		return
	}
	time.AfterFunc(registry.retention, func() { registry.forget(job.Id) })
}

// snapshot reports whether the job's timetable is now in the store
func (registry *Registry) snapshot(job *Job) bool {
	result, err := job.Wait()
	if err != nil {
		registry.logger.Error("job failed", zap.Stringer("id", job.Id), zap.Error(err))
		return false
	}
	registry.logger.Info("job finished",
		zap.Stringer("id", job.Id),
		zap.Stringer("status", result.Status),
		zap.Int64("penalty", result.Penalty),
		zap.Duration("elapsed", job.Elapsed()),
	)

	if registry.store == nil || !result.Status.Solved() {
		return false
	}
	frozen := snapshot.New(job.Input, result)
	frozen.Id = job.Id

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := registry.store.Save(ctx, frozen); err != nil {
		registry.logger.Error("cannot save snapshot", zap.Stringer("id", job.Id), zap.Error(err))
		return false
	}
	return true
}

// limitedTimetabler holds a build until one of its slots is free
type limitedTimetabler struct {
	model.Timetabler
	slots chan struct{}
}

func (timetabler *limitedTimetabler) Build(input model.ModelInput) (model.BuildResult, error) {
	timetabler.slots <- struct{}{}
	defer func() { <-timetabler.slots }()
	return timetabler.Timetabler.Build(input)
}
