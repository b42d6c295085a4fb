package models

import "time"

// NewsInput is one news or event item handed to the pipeline.
// Headline exists only for display; it is never sent to a model.
type NewsInput struct {
	ID          string     `json:"id"`
	Headline    string     `json:"headline,omitempty"`
	Body        string     `json:"body"`
	Source      string     `json:"source,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Tickers     []string   `json:"tickers,omitempty"`
}
