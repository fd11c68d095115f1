package session

import (
	"fjacquet/statement-import/internal/models"

	"github.com/google/uuid"
)

// ReviewItem is one draft record as shown to the reviewer.
type ReviewItem struct {
	ID             uuid.UUID                         `json:"id"`
	Index          int                               `json:"index"`
	Record         models.ExtractedTransactionRecord `json:"record"`
	Classification models.Classification             `json:"classification"`
}

// Review is the read-only review view of a session.
type Review struct {
	Session *models.ImportSession `json:"session"`
	Summary models.ImportSummary  `json:"summary"`
	Items   []ReviewItem          `json:"items"`
	// Preselected holds the indices of reliable records. Nothing is discarded
	// automatically; the reviewer decides on the rest.
	Preselected []int `json:"preselected"`
}

// SelectedIDs returns the draft ids for the given indices.
func (r *Review) SelectedIDs(indices []int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(r.Items) {
			ids = append(ids, r.Items[i].ID)
		}
	}
	return ids
}

func (m *Manager) buildReview(s *models.ImportSession) *Review {
	records := s.Records()
	review := &Review{
		Session:     s.Clone(),
		Summary:     m.deps.Calculator.Summarize(records, nil),
		Items:       make([]ReviewItem, len(s.Drafts)),
		Preselected: make([]int, 0, len(s.Drafts)),
	}
	for i, d := range s.Drafts {
		class := m.deps.Validator.Classify(d.Record)
		review.Items[i] = ReviewItem{ID: d.ID, Index: i, Record: d.Record, Classification: class}
		if class == models.ClassReliable {
			review.Preselected = append(review.Preselected, i)
		}
	}
	return review
}
