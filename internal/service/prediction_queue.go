package service

import (
	"bitwise74/kidney-api/internal/apperr"
	"bitwise74/kidney-api/internal/model"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrQueueFull    = errors.New("prediction queue full")
	ErrQueueStopped = errors.New("prediction queue stopped")
)

type predictionJob struct {
	ctx   context.Context
	image []byte
	done  chan predictionResult
}

type predictionResult struct {
	prediction model.Prediction
	err        error
}

type QueueConfig struct {
	Workers int
	Backlog int
	Timeout time.Duration
}

// PredictionQueue bounds how many classifications run at once. Jobs that
// don't fit in the backlog are refused instead of piling up.
type PredictionQueue struct {
	classifier Classifier
	jobs       chan *predictionJob
	running    atomic.Int32
	workers    int
	timeout    time.Duration

	// Guards stopped and the close of jobs against concurrent sends
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewPredictionQueue initializes a new queue in front of c. Workers are
// started with StartWorkerPool.
func NewPredictionQueue(c Classifier, cfg QueueConfig) *PredictionQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Backlog < 0 {
		cfg.Backlog = 0
	}

	zap.L().Debug("Initializing prediction queue",
		zap.Int("workers", cfg.Workers),
		zap.Int("backlog", cfg.Backlog))

	return &PredictionQueue{
		classifier: c,
		jobs:       make(chan *predictionJob, cfg.Backlog),
		workers:    cfg.Workers,
		timeout:    cfg.Timeout,
	}
}

func (q *PredictionQueue) StartWorkerPool() {
	for range q.workers {
		q.wg.Add(1)
		go q.worker()
	}
}

func (q *PredictionQueue) worker() {
	defer q.wg.Done()

	for job := range q.jobs {
		// The caller may have given up while the job was waiting
		if err := job.ctx.Err(); err != nil {
			job.done <- predictionResult{err: err}
			q.running.Add(-1)
			continue
		}

		p, err := q.classifier.Classify(job.ctx, job.image)
		job.done <- predictionResult{prediction: p, err: err}

		q.running.Add(-1)

		if err != nil {
			zap.L().Warn("Prediction finished with an error", zap.Error(err))
		} else {
			zap.L().Debug("Prediction finished", zap.String("label", p.Label))
		}
	}
}

func (q *PredictionQueue) enqueue(job *predictionJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.stopped {
		return ErrQueueStopped
	}

	select {
	case q.jobs <- job:
		q.running.Add(1)
		zap.L().Debug("New prediction enqueued", zap.Int32("enqueued", q.running.Load()))
		return nil
	default:
		return ErrQueueFull
	}
}

// Predict classifies image on one of the workers and waits for the result.
// A full queue is reported as a busy error, a timeout or classifier failure
// as a prediction error.
func (q *PredictionQueue) Predict(ctx context.Context, image []byte) (model.Prediction, error) {
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	job := &predictionJob{
		ctx:   ctx,
		image: image,
		done:  make(chan predictionResult, 1),
	}

	if err := q.enqueue(job); err != nil {
		if errors.Is(err, ErrQueueStopped) {
			return model.Prediction{}, apperr.Busy("Prediction service is shutting down")
		}

		return model.Prediction{}, apperr.Busy("Prediction service is busy, try again later")
	}

	select {
	case res := <-job.done:
		if res.err != nil {
			return model.Prediction{}, apperr.Prediction("Prediction failed", res.err)
		}

		return res.prediction, nil
	case <-ctx.Done():
		return model.Prediction{}, apperr.Prediction("Prediction failed", fmt.Errorf("waiting for result, %w", ctx.Err()))
	}
}

// Running is the number of jobs waiting or being classified
func (q *PredictionQueue) Running() int {
	return int(q.running.Load())
}

// Stop closes the queue and waits for the workers to drain it. Predict
// calls made afterwards are refused as busy.
func (q *PredictionQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}
