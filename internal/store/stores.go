package store

import "bitwise74/kidney-api/internal/model"

// UserStore maps email to the account registered with it
type UserStore = Document[model.User]

// ReportStore maps email to the reports of that user in insertion order
type ReportStore = Document[[]model.Report]

func NewUserStore(m Medium) *UserStore {
	return NewDocument[model.User](m)
}

func NewReportStore(m Medium) *ReportStore {
	return NewDocument[[]model.Report](m)
}
