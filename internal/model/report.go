package model

import "encoding/json"

type Report struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Prediction json.RawMessage `json:"prediction"` // Opaque to the store
	CreatedAt  string          `json:"createdAt"`  // Supplied by the client as is
}

type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}
