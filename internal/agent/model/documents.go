package model

// RetrievedDocument is one search hit from the knowledge index. The struct is
// also the field allow-list the tool layer exposes to the model: anything the
// backend returns beyond these fields is dropped on decode. ContentID is the
// deduplication key; only content ids survive into the conversation state.
type RetrievedDocument struct {
	Domain        string  `json:"domain"`
	Source        string  `json:"source"`
	DocumentID    string  `json:"id_document"`
	ContentID     string  `json:"id_content"`
	Score         float64 `json:"@search.score"`
	RerankerScore float64 `json:"@search.reranker_score"`
	Content       string  `json:"content"`
}

// ContentIDs projects a result list down to its content ids, in order.
func ContentIDs(docs []RetrievedDocument) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ContentID)
	}
	return ids
}
