package service

import (
	"bitwise74/kidney-api/internal/apperr"
	"bitwise74/kidney-api/internal/model"
	"bitwise74/kidney-api/internal/store"
	"bitwise74/kidney-api/pkg/validators"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/google/uuid"
)

const (
	MsgReportAdded   = "Report added"
	MsgReportDeleted = "Report deleted"
)

type NewReport struct {
	Name       string          `json:"name" validate:"required"`
	Prediction json.RawMessage `json:"prediction" validate:"required"`
	CreatedAt  string          `json:"createdAt" validate:"required"`
}

// Reports manages the report list of each user
type Reports struct {
	store *store.ReportStore
	newID func() string
}

func NewReports(s *store.ReportStore) *Reports {
	return &Reports{
		store: s,
		newID: uuid.NewString,
	}
}

// List returns the reports of owner in the order they were added. An owner
// without reports gets an empty, non-nil slice.
func (r *Reports) List(ctx context.Context, owner string) ([]model.Report, error) {
	doc, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	list := doc[owner]
	if list == nil {
		return []model.Report{}, nil
	}

	return list, nil
}

// Add appends a report to the list of owner and returns its new id
func (r *Reports) Add(ctx context.Context, owner string, in NewReport) (string, error) {
	if err := validators.Struct(in); err != nil {
		return "", validationError(err)
	}

	if !isObject(in.Prediction) {
		return "", apperr.Validation("invalid fields: prediction")
	}

	report := model.Report{
		ID:         r.newID(),
		Name:       in.Name,
		Prediction: in.Prediction,
		CreatedAt:  in.CreatedAt,
	}

	err := r.store.Update(ctx, func(doc map[string][]model.Report) error {
		doc[owner] = append(doc[owner], report)
		return nil
	})
	if err != nil {
		return "", err
	}

	return report.ID, nil
}

// Remove deletes the report with id from the list of owner. Unknown owners
// and ids are not an error.
func (r *Reports) Remove(ctx context.Context, owner, id string) error {
	return r.store.Update(ctx, func(doc map[string][]model.Report) error {
		list, ok := doc[owner]
		if !ok {
			return store.ErrNoChange
		}

		kept := slices.DeleteFunc(slices.Clone(list), func(rep model.Report) bool {
			return rep.ID == id
		})
		if len(kept) == len(list) {
			return store.ErrNoChange
		}

		doc[owner] = kept
		return nil
	})
}

// Get returns a single report of owner
func (r *Reports) Get(ctx context.Context, owner, id string) (model.Report, error) {
	doc, err := r.store.Load(ctx)
	if err != nil {
		return model.Report{}, err
	}

	i := slices.IndexFunc(doc[owner], func(rep model.Report) bool {
		return rep.ID == id
	})
	if i < 0 {
		return model.Report{}, apperr.NotFound("Report not found").WithStatus(http.StatusNotFound)
	}

	return doc[owner][i], nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{' && json.Valid(raw)
}
