package service

import (
	"bitwise74/kidney-api/internal/apperr"
	"bitwise74/kidney-api/internal/model"
	"context"
	"errors"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingClassifier waits until release is closed
type blockingClassifier struct {
	release chan struct{}
	err     error
}

func (b *blockingClassifier) Classify(ctx context.Context, _ []byte) (model.Prediction, error) {
	select {
	case <-ctx.Done():
		return model.Prediction{}, ctx.Err()
	case <-b.release:
	}

	if b.err != nil {
		return model.Prediction{}, b.err
	}

	return model.Prediction{Label: LabelStone, Confidence: 0.8}, nil
}

func TestRandomClassifierShape(t *testing.T) {
	c := RandomClassifier{}

	for range 200 {
		p, err := c.Classify(context.Background(), nil)
		require.NoError(t, err)

		assert.Contains(t, []string{LabelStone, LabelNonStone}, p.Label)
		assert.GreaterOrEqual(t, p.Confidence, 0.7)
		assert.LessOrEqual(t, p.Confidence, 1.0)
		assert.InDelta(t, p.Confidence, math.Round(p.Confidence*10000)/10000, 1e-12)
	}
}

func TestRandomClassifierHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RandomClassifier{Delay: time.Hour}.Classify(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueuePredict(t *testing.T) {
	q := NewPredictionQueue(RandomClassifier{Delay: time.Millisecond}, QueueConfig{Workers: 2, Backlog: 4, Timeout: time.Second})
	q.StartWorkerPool()
	defer q.Stop()

	p, err := q.Predict(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.NotEmpty(t, p.Label)
	assert.Eventually(t, func() bool { return q.Running() == 0 }, time.Second, 5*time.Millisecond)
}

func TestQueueFullIsBusy(t *testing.T) {
	c := &blockingClassifier{release: make(chan struct{})}
	q := NewPredictionQueue(c, QueueConfig{Workers: 1, Backlog: 0, Timeout: 5 * time.Second})
	q.StartWorkerPool()
	defer q.Stop()

	first := make(chan error, 1)
	go func() {
		_, err := q.Predict(context.Background(), nil)
		first <- err
	}()

	// Wait for the only worker to pick up the first job
	require.Eventually(t, func() bool { return q.Running() == 1 }, time.Second, 5*time.Millisecond)

	_, err := q.Predict(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBusy))
	assert.Equal(t, http.StatusServiceUnavailable, apperr.Status(err))

	close(c.release)
	assert.NoError(t, <-first)
}

func TestQueueStoppedIsBusy(t *testing.T) {
	q := NewPredictionQueue(RandomClassifier{}, QueueConfig{Workers: 1, Backlog: 1})
	q.StartWorkerPool()
	q.Stop()
	q.Stop()

	_, err := q.Predict(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBusy))
}

func TestQueueStopWhilePredicting(t *testing.T) {
	q := NewPredictionQueue(RandomClassifier{}, QueueConfig{Workers: 2, Backlog: 4, Timeout: time.Second})
	q.StartWorkerPool()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for range 20 {
				_, err := q.Predict(context.Background(), nil)
				if err != nil && !apperr.Is(err, apperr.KindBusy) {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}()
	}

	q.Stop()
	wg.Wait()
}

func TestQueueTimeout(t *testing.T) {
	c := &blockingClassifier{release: make(chan struct{})}
	defer close(c.release)

	q := NewPredictionQueue(c, QueueConfig{Workers: 1, Backlog: 1, Timeout: 20 * time.Millisecond})
	q.StartWorkerPool()
	defer q.Stop()

	_, err := q.Predict(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPrediction))
	assert.Equal(t, http.StatusInternalServerError, apperr.Status(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueClassifierError(t *testing.T) {
	c := &blockingClassifier{release: make(chan struct{}), err: errors.New("model exploded")}
	close(c.release)

	q := NewPredictionQueue(c, QueueConfig{Workers: 1, Backlog: 1})
	q.StartWorkerPool()
	defer q.Stop()

	_, err := q.Predict(context.Background(), nil)
	assert.True(t, apperr.Is(err, apperr.KindPrediction))
	assert.Equal(t, "Prediction failed", apperr.Detail(err))
}

func TestPredictionsRun(t *testing.T) {
	dir := t.TempDir()
	k, err := NewUploadKeeper(dir)
	require.NoError(t, err)

	q := NewPredictionQueue(RandomClassifier{}, QueueConfig{Workers: 1, Backlog: 1, Timeout: time.Second})
	q.StartWorkerPool()
	defer q.Stop()

	res, err := NewPredictions(q, k).Run(context.Background(), "scan.png", []byte("not really a png"))
	require.NoError(t, err)

	assert.Regexp(t, `^[0-9a-f-]{36}\.png$`, res.Filename)
	assert.FileExists(t, filepath.Join(dir, res.Filename))

	data, err := os.ReadFile(filepath.Join(dir, res.Filename))
	require.NoError(t, err)
	assert.Equal(t, "not really a png", string(data))
}
