package domain

import "time"

// Document is one ingestion input: an identifier and its extracted text.
type Document struct {
	ID   string
	Text string
}

// Record is a stored document together with its embedding.
type Record struct {
	ID        string
	Text      string
	Embedding []float32
}

// Hit is one entry of a query result.
type Hit struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Rank     int     `json:"rank"`
	Distance float64 `json:"distance"`
}

// QueryResult is ordered by ascending distance, most similar first.
type QueryResult []Hit

// IDs returns the hit identifiers in rank order.
func (r QueryResult) IDs() []string {
	ids := make([]string, len(r))
	for i, h := range r {
		ids[i] = h.ID
	}
	return ids
}

// DocumentFailure records why one document was not stored during a run that
// continues past errors.
type DocumentFailure struct {
	ID  string
	Err error
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Skipped    bool
	Ingested   int
	Existing   int
	// Duplicates counts documents dropped because an earlier document in the
	// same source had the same id.
	Duplicates int
	Failed     []DocumentFailure
	Duration   time.Duration
}

// CollectionInfo describes a store collection: its backend, record count and
// the embedding model and dimension it was built with.
type CollectionInfo struct {
	Backend   string `json:"backend"`
	Name      string `json:"name"`
	Count     int    `json:"count"`
	Model     string `json:"model,omitempty"`
	Dimension int    `json:"dimension"`
}
