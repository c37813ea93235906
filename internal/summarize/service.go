package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/docstack/ragpipe/internal/apperr"
	"github.com/docstack/ragpipe/internal/registry"
)

// JobStatus is the lifecycle state of a batch summarization job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Outcome is the per-document result within a batch job. A failed
// document carries its error and an empty summary.
type Outcome struct {
	DocumentID string
	Summary    string
	Error      string
}

// Job tracks one batch summarization run.
type Job struct {
	ID        string
	Status    JobStatus
	Total     int
	Completed int
	Outcomes  []Outcome
	CreatedAt time.Time
	UpdatedAt time.Time
}

// summarizer is the chain surface the service needs.
type summarizer interface {
	Summarize(ctx context.Context, text string, length Length, docType DocType) (*Result, error)
}

// Service summarizes registered documents and runs batch jobs.
type Service struct {
	chain       summarizer
	registry    registry.Registry
	concurrency int

	mu   sync.RWMutex
	jobs map[string]*Job

	logger *slog.Logger
}

// NewService creates a summarization service. concurrency bounds how
// many documents a batch job processes at once; 0 uses the default.
func NewService(chain summarizer, reg registry.Registry, concurrency int, logger *slog.Logger) *Service {
	if concurrency <= 0 {
		concurrency = defaultMapConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		chain:       chain,
		registry:    reg,
		concurrency: concurrency,
		jobs:        make(map[string]*Job),
		logger:      logger,
	}
}

// SummarizeDocument summarizes a registered document using its stored
// normalized text.
func (s *Service) SummarizeDocument(ctx context.Context, documentID string, length Length, docType DocType) (*Result, error) {
	doc, err := s.registry.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: document %s", apperr.ErrNotFound, documentID)
	}
	if doc.Text == "" {
		return nil, fmt.Errorf("%w: document %s has no stored text", apperr.ErrValidation, documentID)
	}
	return s.chain.Summarize(ctx, doc.Text, length, docType)
}

// BatchSummarize starts a background job summarizing the given
// documents and returns its id immediately. A document's failure is
// recorded in its outcome and does not stop the others; the job fails
// only when every document fails.
func (s *Service) BatchSummarize(ctx context.Context, documentIDs []string, length Length, docType DocType) (string, error) {
	if len(documentIDs) == 0 {
		return "", fmt.Errorf("%w: no document ids", apperr.ErrValidation)
	}
	if err := validate(length, docType); err != nil {
		return "", err
	}

	job := &Job{
		ID:        uuid.New().String(),
		Status:    JobPending,
		Total:     len(documentIDs),
		Outcomes:  make([]Outcome, len(documentIDs)),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	for i, id := range documentIDs {
		job.Outcomes[i].DocumentID = id
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	go s.runJob(context.WithoutCancel(ctx), job.ID, documentIDs, length, docType)

	s.logger.Info("created batch summarization job", "job_id", job.ID, "documents", len(documentIDs))
	return job.ID, nil
}

func (s *Service) runJob(ctx context.Context, jobID string, documentIDs []string, length Length, docType DocType) {
	s.updateJob(jobID, func(j *Job) { j.Status = JobProcessing })

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range documentIDs {
		g.Go(func() error {
			result, err := s.SummarizeDocument(gctx, id, length, docType)
			s.updateJob(jobID, func(j *Job) {
				if err != nil {
					j.Outcomes[i].Error = err.Error()
				} else {
					j.Outcomes[i].Summary = result.Summary
				}
				j.Completed++
			})
			// Per-document failures are recorded, not propagated, so
			// the remaining documents still run.
			return nil
		})
	}
	g.Wait()

	s.updateJob(jobID, func(j *Job) {
		failed := 0
		for _, o := range j.Outcomes {
			if o.Error != "" {
				failed++
			}
		}
		if failed == j.Total {
			j.Status = JobFailed
		} else {
			j.Status = JobCompleted
		}
	})
	s.logger.Info("batch summarization job finished", "job_id", jobID)
}

// JobStatus returns a snapshot of a batch job.
func (s *Service) JobStatus(jobID string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, fmt.Errorf("%w: job %s", apperr.ErrNotFound, jobID)
	}
	snapshot := *job
	snapshot.Outcomes = make([]Outcome, len(job.Outcomes))
	copy(snapshot.Outcomes, job.Outcomes)
	return snapshot, nil
}

func (s *Service) updateJob(jobID string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobID]; ok {
		fn(job)
		job.UpdatedAt = time.Now().UTC()
	}
}
