package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one user's reminder schedule. FireHour/FireMinute are the
// user-local time; TZOffsetMin converts it to UTC.
type Job struct {
	UserID      uint
	FireHour    int
	FireMinute  int
	TZOffsetMin int
	Adaptive    bool

	entryID cron.EntryID
	firing  bool
}

// NextFire returns the next UTC instant the job fires after now.
func (j *Job) NextFire(now time.Time) time.Time {
	local := now.UTC().Add(time.Duration(j.TZOffsetMin) * time.Minute)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), j.FireHour, j.FireMinute, 0, 0, time.UTC)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate.Add(-time.Duration(j.TZOffsetMin) * time.Minute)
}

// Registry holds at most one reminder job per user. Mutations must be
// serialized by the caller (the Scheduler holds a mutex across the
// replace-then-install sequence); reads take a shared lock and may be
// stale by at most one mutation.
type Registry struct {
	mu   sync.RWMutex
	jobs map[uint]*Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[uint]*Job)}
}

// Put installs a job, returning the prior one for the same user if any.
// The prior job's firing mark carries over so a replacement cannot
// reopen the per-user guard while the old firing is still in flight.
func (r *Registry) Put(job *Job) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.jobs[job.UserID]
	if prev != nil {
		job.firing = prev.firing
	}
	r.jobs[job.UserID] = job
	return prev
}

// Remove drops the user's job and reports it; a missing job is not an
// error.
func (r *Registry) Remove(userID uint) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[userID]
	if ok {
		delete(r.jobs, userID)
	}
	return job, ok
}

func (r *Registry) Get(userID uint) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[userID]
	return job, ok
}

// Count reports the number of active jobs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// BeginFire marks the job as firing; it reports false when the job is
// gone or already firing, so a firing never overlaps itself for the
// same user.
func (r *Registry) BeginFire(userID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[userID]
	if !ok || job.firing {
		return false
	}
	job.firing = true
	return true
}

// EndFire clears the firing mark set by BeginFire.
func (r *Registry) EndFire(userID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[userID]; ok {
		job.firing = false
	}
}
