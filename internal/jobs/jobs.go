package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("job not found")

type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

type Result struct {
	Source string `json:"source"`
	Rows   int    `json:"rows"`
	Sheet  string `json:"sheet"`
}

type Job struct {
	ID        string
	Status    Status
	Logs      []string
	Progress  int // 0-100
	Result    *Result
	Error     string
	CreatedAt time.Time

	mu sync.RWMutex
}

// View is a consistent copy of a job for encoding.
type View struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Logs      []string  `json:"logs"`
	Progress  int       `json:"progress"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newJob() *Job {
	return &Job{
		ID:        uuid.New().String(),
		Status:    StatusRunning,
		Logs:      []string{},
		CreatedAt: time.Now(),
	}
}

func (j *Job) Log(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.appendLog(msg)
}

func (j *Job) appendLog(msg string) {
	ts := time.Now().Format("15:04:05")
	j.Logs = append(j.Logs, fmt.Sprintf("[%s] %s", ts, msg))
}

func (j *Job) SetProgress(current, total int, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if total > 0 {
		j.Progress = int(float64(current) / float64(total) * 100)
	}
	if msg != "" {
		j.appendLog(msg)
	}
}

func (j *Job) fail(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusError
	j.Error = msg
	j.Logs = append(j.Logs, "[ERROR] "+msg)
}

func (j *Job) complete(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusDone
	j.Result = res
	j.Progress = 100
	j.appendLog("Job completed.")
}

func (j *Job) View() View {
	j.mu.RLock()
	defer j.mu.RUnlock()
	v := View{
		ID:        j.ID,
		Status:    j.Status,
		Logs:      append([]string(nil), j.Logs...),
		Progress:  j.Progress,
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
	}
	if j.Result != nil {
		r := *j.Result
		v.Result = &r
	}
	return v
}

// Store keeps jobs in memory for status polling.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	wg   sync.WaitGroup
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job, nil
}

// Start registers a job and runs fn in the background. A returned error or a
// panic marks the job failed.
func (s *Store) Start(fn func(job *Job) (*Result, error)) *Job {
	job := newJob()

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("job_id", job.ID).Interface("panic", r).Msg("job panicked")
				job.fail(fmt.Sprintf("Panic: %v", r))
			}
		}()

		res, err := fn(job)
		if err != nil {
			job.fail(err.Error())
			return
		}
		job.complete(res)
	}()
	return job
}

// Wait blocks until every started job has finished.
func (s *Store) Wait() {
	s.wg.Wait()
}
