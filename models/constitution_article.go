package models

import (
	"github.com/google/uuid"
)

// ConstitutionArticle represents an indexed article of the Constitution of India
type ConstitutionArticle struct {
	ID             uuid.UUID `json:"id"`
	ArticleNumber  string    `json:"article"`
	Title          string    `json:"title"`
	Part           string    `json:"part,omitempty"` // e.g. "Part III - Fundamental Rights"
	Content        string    `json:"content"`
	SourceDocument string    `json:"source_document,omitempty"`
	Embedding      []float32 `json:"-"`
	Distance       float64   `json:"distance,omitempty"` // Vector similarity distance
}

// Passage converts an article row into the passage shape consumed by the retriever
func (a ConstitutionArticle) Passage() SourcePassage {
	return SourcePassage{
		ID:      a.ID.String(),
		Article: a.ArticleNumber,
		Title:   a.Title,
		Content: a.Content,
		Score:   1 - a.Distance,
	}
}
