package service

import (
	"bitwise74/kidney-api/internal/model"
	"context"
)

type PredictionResult struct {
	Filename   string           `json:"filename"`
	Prediction model.Prediction `json:"prediction"`
}

// Predictions keeps an uploaded image and classifies it
type Predictions struct {
	queue  *PredictionQueue
	keeper *UploadKeeper
}

func NewPredictions(q *PredictionQueue, k *UploadKeeper) *Predictions {
	return &Predictions{queue: q, keeper: k}
}

func (p *Predictions) Run(ctx context.Context, originalName string, image []byte) (*PredictionResult, error) {
	name, err := p.keeper.Save(ctx, originalName, image)
	if err != nil {
		return nil, err
	}

	pred, err := p.queue.Predict(ctx, image)
	if err != nil {
		return nil, err
	}

	return &PredictionResult{
		Filename:   name,
		Prediction: pred,
	}, nil
}
