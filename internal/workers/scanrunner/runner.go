package scanrunner

import (
	"context"
	"log"
	"time"

	"threatlens/internal/domain"
	"threatlens/internal/ports"
	"threatlens/internal/signals"
)

// ScanProcessor performs the scan work for a job's scan id.
type ScanProcessor interface {
	Process(ctx context.Context, scanID string) error
}

// Runner is the part of the scan pipeline a processor needs.
type Runner interface {
	Run(ctx context.Context, s signals.Subject) (domain.ScanResult, error)
}

// PipelineProcessor loads the request, runs every producer and stores the
// result, which the repository links back to the request.
type PipelineProcessor struct {
	Scans    ports.ScanRepository
	Results  ports.ResultRepository
	Repo     ports.JobRepository
	Pipeline Runner
	// Subject rebuilds producer input from a stored request.
	Subject func(domain.ScanRequest) (signals.Subject, error)
}

func (p PipelineProcessor) Process(ctx context.Context, scanID string) error {
	req, err := p.Scans.Get(ctx, scanID)
	if err != nil {
		return err
	}
	subject, err := p.Subject(req)
	if err != nil {
		return err
	}
	if err := p.Repo.UpdateScanProgress(ctx, scanID, 0.1); err != nil {
		return err
	}
	res, err := p.Pipeline.Run(ctx, subject)
	if err != nil {
		return err
	}
	res.RequestID = scanID
	if err := p.Repo.UpdateScanProgress(ctx, scanID, 0.9); err != nil {
		return err
	}
	if err := p.Results.SaveResult(ctx, res); err != nil {
		return err
	}
	log.Printf("scan %s: %s score=%d details=%d", scanID, res.Verdict, res.RiskScore, len(res.Details))
	return nil
}

// Run starts worker goroutines that claim jobs and process them.
func Run(ctx context.Context, repo ports.JobRepository, processor ScanProcessor, concurrency int, pollInterval time.Duration) {
	if concurrency < 1 {
		return
	}
	jobsCh := make(chan ports.ScanJob, concurrency)

	// dispatcher loop
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		defer close(jobsCh)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNext(ctx)
					if err != nil {
						if ctx.Err() == nil {
							log.Printf("job claim error: %v", err)
						}
						break
					}
					if !found {
						break
					}
					select {
					case jobsCh <- job:
					case <-ctx.Done():
						_ = repo.MarkFailed(context.WithoutCancel(ctx), job.ID, "shutdown before start")
						return
					}
				}
			}
		}
	}()

	// workers
	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for job := range jobsCh {
				runJob(ctx, repo, processor, job, idx)
			}
		}(i)
	}
}

func runJob(ctx context.Context, repo ports.JobRepository, processor ScanProcessor, job ports.ScanJob, idx int) {
	if err := processor.Process(ctx, job.ScanID); err != nil {
		if ferr := repo.MarkFailed(context.WithoutCancel(ctx), job.ID, err.Error()); ferr != nil {
			log.Printf("worker %d: mark failed err: %v", idx, ferr)
		}
		log.Printf("worker %d: job %s failed: %v", idx, job.ID, err)
		return
	}
	if err := repo.MarkCompleted(ctx, job.ID); err != nil {
		log.Printf("worker %d: complete err: %v", idx, err)
	}
}

// ProcessInline starts and processes a specific scan synchronously using the same processor logic
// as the background workers. It marks the job as running, calls processor.Process, and completes or fails.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor ScanProcessor, scanID string) error {
	jobID, err := repo.StartJobForScan(ctx, scanID)
	if err != nil {
		return err
	}
	if err := processor.Process(ctx, scanID); err != nil {
		_ = repo.MarkFailed(context.WithoutCancel(ctx), jobID, err.Error())
		return err
	}
	return repo.MarkCompleted(ctx, jobID)
}
