package service

import (
	"bitwise74/kidney-api/internal/model"
	"context"
	"math"
	"math/rand/v2"
	"time"
)

const (
	LabelStone    = "stone"
	LabelNonStone = "non-stone"
)

// Classifier labels an uploaded image. Implementations must honor ctx.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (model.Prediction, error)
}

// RandomClassifier stands in for a real model. It waits Delay and then picks
// a label at random with a confidence between 0.7 and 1.0.
type RandomClassifier struct {
	Delay time.Duration
}

func (r RandomClassifier) Classify(ctx context.Context, _ []byte) (model.Prediction, error) {
	if r.Delay > 0 {
		t := time.NewTimer(r.Delay)
		defer t.Stop()

		select {
		case <-ctx.Done():
			return model.Prediction{}, ctx.Err()
		case <-t.C:
		}
	}

	label := LabelNonStone
	if rand.Float64() > 0.5 {
		label = LabelStone
	}

	confidence := 0.7 + rand.Float64()*0.3

	return model.Prediction{
		Label:      label,
		Confidence: math.Round(confidence*10000) / 10000,
	}, nil
}
