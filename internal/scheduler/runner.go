package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is a fixed-interval periodic task with single-flight execution: a tick
// that fires while the previous run is still going is skipped, never queued
// or overlapped.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	running sync.Mutex
	ticks   sync.WaitGroup
	stop    chan struct{}
	done    chan struct{}
}

// Runner owns the lifecycle of all periodic jobs.
type Runner struct {
	jobs []*Job
}

func NewRunner() *Runner {
	return &Runner{}
}

func (r *Runner) Register(name string, interval time.Duration, run func(ctx context.Context) error) {
	r.jobs = append(r.jobs, &Job{
		Name:     name,
		Interval: interval,
		Run:      run,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	})
}

func (r *Runner) Start() {
	for _, job := range r.jobs {
		go job.loop()
		log.Printf("scheduler: job %q started (every %s)", job.Name, job.Interval)
	}
}

// Stop signals every job and waits for in-flight runs to finish.
func (r *Runner) Stop() {
	for _, job := range r.jobs {
		close(job.stop)
	}
	for _, job := range r.jobs {
		<-job.done
	}
	log.Println("scheduler: stopped")
}

func (j *Job) loop() {
	defer close(j.done)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.ticks.Add(1)
			go j.tick()
		case <-j.stop:
			// Wait out every launched tick, including one that has not
			// reached its lock yet, before reporting done.
			j.ticks.Wait()
			return
		}
	}
}

func (j *Job) tick() {
	defer j.ticks.Done()
	if !j.running.TryLock() {
		log.Printf("scheduler: job %q still running, skipping tick", j.Name)
		return
	}
	defer j.running.Unlock()

	if err := j.Run(context.Background()); err != nil {
		log.Printf("scheduler: job %q failed: %v", j.Name, err)
	}
}
