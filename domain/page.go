package domain

import "math"

// PageQuery asks for one page of the conversation between UserA and UserB.
// Page numbers start at 1.
type PageQuery struct {
	UserA string `validate:"required"`
	UserB string `validate:"required"`
	Page  int    `validate:"min=1"`
	Size  int    `validate:"min=1"`
}

// InRange reports whether Skip can be computed without overflowing.
func (q PageQuery) InRange() bool {
	return q.Size > 0 && q.Page > 0 && q.Page-1 <= math.MaxInt/q.Size
}

// Skip is the number of newer messages preceding the page.
func (q PageQuery) Skip() int {
	return (q.Page - 1) * q.Size
}

// Page holds messages ordered oldest to newest, plus pagination metadata.
type Page struct {
	Messages    []Message `json:"messages"`
	CurrentPage int       `json:"currentPage"`
	TotalPages  int       `json:"totalPages"`
	TotalCount  int       `json:"totalMessages"`
	HasMore     bool      `json:"hasMore"`
}

func NewPage(q PageQuery, messages []Message, total int) Page {
	if messages == nil {
		messages = []Message{}
	}
	totalPages := (total + q.Size - 1) / q.Size
	return Page{
		Messages:    messages,
		CurrentPage: q.Page,
		TotalPages:  totalPages,
		TotalCount:  total,
		// Same as total > Page*Size, without the product
		HasMore: q.Page < totalPages,
	}
}
