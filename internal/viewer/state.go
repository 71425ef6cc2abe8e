package viewer

import "github.com/bilgisen/feedviewer/internal/models"

// ViewState is everything the page needs to render one viewer.
type ViewState struct {
	URL          string            `json:"url"`
	Items        []models.FeedItem `json:"items"`
	IsLoading    bool              `json:"is_loading"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

// HasError reports whether the error region should be shown.
func (s ViewState) HasError() bool {
	return s.ErrorMessage != ""
}

func (s ViewState) clone() ViewState {
	if s.Items != nil {
		items := make([]models.FeedItem, len(s.Items))
		copy(items, s.Items)
		s.Items = items
	}
	return s
}

// Snapshot is the serialisable form of a Viewer.
type Snapshot struct {
	State ViewState `json:"state"`
	// Seq is the id of the most recent fetch request.
	Seq uint64 `json:"seq"`
	// Version increases with every state transition.
	Version uint64 `json:"version"`
}
