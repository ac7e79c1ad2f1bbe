package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/fundilink/FundiLink/internal/pkg/cache"
)

const (
	// Redis key prefixes
	JobKeyPrefix     = "job:"
	JobQueueKey      = "job_queue"
	JobProcessingKey = "job_processing"

	// Job settings
	DefaultMaxRetries = 3
	JobTTL            = 24 * time.Hour // Jobs expire after 24 hours

	jobTimeout = 60 * time.Second
)

// Processor executes one job. A returned error triggers a retry until the
// job's MaxRetries is exhausted.
type Processor func(ctx context.Context, job *Job) error

// Queue manages background jobs using Redis
type Queue struct {
	client    *redis.Client
	workers   int
	processor Processor
	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// NewQueue creates a new job queue
func NewQueue(workers int, processor Processor) *Queue {
	if workers <= 0 {
		workers = 2
	}
	return &Queue{
		client:    cache.GetClient(),
		workers:   workers,
		processor: processor,
		stopCh:    make(chan struct{}),
	}
}

// Enqueue persists the job and pushes its ID onto the queue
func (q *Queue) Enqueue(job *Job) error {
	ctx := context.Background()
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL).Err(); err != nil {
		return err
	}
	return q.client.LPush(ctx, JobQueueKey, job.ID).Err()
}

// Start starts the job queue workers
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}
	q.running = true
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Stop stops the job queue workers and waits for in-flight jobs
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}
	log.Info("[JobQueue] Stopping workers...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		jobID, err := q.client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, 2*time.Second).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Errorf("[JobQueue] Worker %d pop error: %v", id, err)
				time.Sleep(time.Second)
			}
			continue
		}

		q.handle(ctx, jobID)
		q.client.LRem(ctx, JobProcessingKey, 1, jobID)
	}
}

func (q *Queue) handle(ctx context.Context, jobID string) {
	data, err := q.client.Get(ctx, JobKeyPrefix+jobID).Result()
	if err != nil {
		log.Errorf("[JobQueue] Job %s payload missing: %v", jobID, err)
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		log.Errorf("[JobQueue] Job %s payload corrupt: %v", jobID, err)
		return
	}

	job.Status = JobStatusProcessing
	job.Attempts++
	q.save(ctx, &job)

	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	err = q.processor(jobCtx, &job)
	cancel()

	if err == nil {
		job.Status = JobStatusCompleted
		job.LastError = ""
		q.save(ctx, &job)
		return
	}

	job.LastError = err.Error()
	if job.Attempts <= job.MaxRetries {
		log.Warnf("[JobQueue] Job %s (%s) failed attempt %d/%d: %v", job.ID, job.Type, job.Attempts, job.MaxRetries+1, err)
		job.Status = JobStatusPending
		q.save(ctx, &job)
		q.client.LPush(ctx, JobQueueKey, job.ID)
		return
	}

	log.Errorf("[JobQueue] Job %s (%s) failed permanently: %v", job.ID, job.Type, err)
	job.Status = JobStatusFailed
	q.save(ctx, &job)
}

func (q *Queue) save(ctx context.Context, job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Job %s save error: %v", job.ID, err)
	}
}
