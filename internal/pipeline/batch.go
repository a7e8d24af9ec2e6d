package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"plexprep/internal/model"
)

// JobOutcome pairs a file job with its result.
type JobOutcome struct {
	Job    model.FileJob
	Result Result
	Err    error
}

// NewFileJobs assigns a job ID to every path, keeping input order.
func NewFileJobs(paths []string) []model.FileJob {
	jobs := make([]model.FileJob, 0, len(paths))
	for _, p := range paths {
		jobs = append(jobs, model.FileJob{ID: NewJobID(), Path: p})
	}
	return jobs
}

// RunBatch runs every job with at most limit files in flight. A failing
// file does not stop the others; outcomes come back in input order.
func RunBatch(ctx context.Context, jobs []model.FileJob, limit int, newService func(model.FileJob) *Service) []JobOutcome {
	if limit <= 0 {
		limit = 1
	}
	out := make([]JobOutcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, job := range jobs {
		g.Go(func() error {
			res, err := newService(job).RunJob(gctx, job.Path)
			out[i] = JobOutcome{Job: job, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
