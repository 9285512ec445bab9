package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/lsocheck/internal/model"
)

// ExportAllSubmissions builds the export document from every stored
// submission and its delivery history.
func (s *Store) ExportAllSubmissions() (model.SubmissionExport, error) {
	exp := model.SubmissionExport{ExportedAt: time.Now().UTC()}

	fp, err := s.CatalogFingerprint()
	if err != nil {
		return exp, fmt.Errorf("read catalog fingerprint: %w", err)
	}
	exp.CatalogFingerprint = fp

	subs, err := s.ListSubmissions()
	if err != nil {
		return exp, fmt.Errorf("list submissions: %w", err)
	}

	exp.Results = make([]model.SubmissionResult, 0, len(subs))
	for _, sub := range subs {
		deliveries, err := s.ListDeliveries(sub.ID)
		if err != nil {
			return exp, fmt.Errorf("list deliveries for %s: %w", sub.ID, err)
		}
		if sub.Eligible {
			exp.Eligible++
		}
		exp.Results = append(exp.Results, model.SubmissionResult{
			Submission: sub,
			Deliveries: deliveries,
		})
	}
	exp.Total = len(exp.Results)
	return exp, nil
}
