package status

import (
	"context"

	"github.com/teranos/batchwatch/batch"
)

// JobLoader loads a job definition.
type JobLoader interface {
	GetJob(ctx context.Context, id int64) (*batch.Job, error)
}

// JobCache memoizes job definitions for a single report run. It is not
// safe for concurrent use and is dropped when the run ends.
type JobCache struct {
	loader JobLoader
	jobs   map[int64]*batch.Job
}

// NewJobCache creates an empty cache over loader.
func NewJobCache(loader JobLoader) *JobCache {
	return &JobCache{loader: loader, jobs: make(map[int64]*batch.Job)}
}

// Get returns the job with id, loading it on first use. Failed lookups are
// not cached.
func (c *JobCache) Get(ctx context.Context, id int64) (*batch.Job, error) {
	if j, ok := c.jobs[id]; ok {
		return j, nil
	}
	j, err := c.loader.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	c.jobs[id] = j
	return j, nil
}

// Len returns the number of cached jobs.
func (c *JobCache) Len() int {
	return len(c.jobs)
}
