package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/limaJavier/examtabling/pkg/model"
)

type State string

const (
	Running  State = "running"
	Finished State = "finished"
	Failed   State = "failed"
)

// Job is a timetable build running in the background. Its result is published once, when Done is closed
type Job struct {
	Id    uuid.UUID
	Input model.ModelInput

	started time.Time
	done    chan struct{}

	mutex    sync.RWMutex
	finished time.Time
	result   model.BuildResult
	err      error
}

func Start(timetabler model.Timetabler, input model.ModelInput) *Job {
	job := &Job{
		Id:      uuid.New(),
		Input:   input,
		started: time.Now(),
		done:    make(chan struct{}),
	}

	go func() {
		result, err := build(timetabler, input)

		job.mutex.Lock()
		job.result, job.err = result, err
		job.finished = time.Now()
		job.mutex.Unlock()
		close(job.done)
	}()

	return job
}

func build(timetabler model.Timetabler, input model.ModelInput) (result model.BuildResult, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("timetable build panicked: %v", recovered)
		}
	}()
	return timetabler.Build(input)
}

func (job *Job) Done() <-chan struct{} {
	return job.done
}

// Wait blocks until the build finishes
func (job *Job) Wait() (model.BuildResult, error) {
	<-job.done
	job.mutex.RLock()
	defer job.mutex.RUnlock()
	return job.result, job.err
}

func (job *Job) State() State {
	select {
	case <-job.done:
	default:
		return Running
	}

	job.mutex.RLock()
	defer job.mutex.RUnlock()
	if job.err != nil {
		return Failed
	}
	return Finished
}

// Elapsed is the running time so far, or the total one once the job is over
func (job *Job) Elapsed() time.Duration {
	job.mutex.RLock()
	defer job.mutex.RUnlock()
	if job.finished.IsZero() {
		return time.Since(job.started)
	}
	return job.finished.Sub(job.started)
}
