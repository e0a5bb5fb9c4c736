package model

// Page is one unit of extracted text from an uploaded file, tagged with
// the fingerprint of the file generation it came from.
type Page struct {
	Content     string `json:"content"`
	Source      string `json:"source"`
	Page        int    `json:"page"`
	Fingerprint string `json:"fingerprint"`
}

// ParentDocument is a coarse split stored for context assembly. Child
// chunks point back to it; retrieval returns parents, not children.
type ParentDocument struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	Source      string `json:"source"`
	Fingerprint string `json:"fingerprint"`
	Page        int    `json:"page"`
}

// ChildChunk is the fine-grained embedded unit used to locate parents.
type ChildChunk struct {
	ParentID    string    `json:"parent_id"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"embedding"`
	Source      string    `json:"source"`
	Fingerprint string    `json:"fingerprint"`
	Page        int       `json:"page"`
}

// RetrievedChunk is a parent-level retrieval result. Score is transient,
// assigned during reranking.
type RetrievedChunk struct {
	ParentID    string  `json:"parent_id"`
	Content     string  `json:"content"`
	Source      string  `json:"source"`
	Fingerprint string  `json:"fingerprint"`
	Page        int     `json:"page"`
	Score       float64 `json:"score"`
}
