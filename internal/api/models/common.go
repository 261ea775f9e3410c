// Package models defines request and response types for the pdnsadmin
// REST API. All types are JSON-serializable and carry binding tags where
// input is validated by gin.
package models

// SuccessResponse wraps every successful API response.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// StatusResponse represents a simple status response.
type StatusResponse struct {
	Status string `json:"status"`
}

// Pagination describes a page of a larger result set.
type Pagination struct {
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// NewPagination derives the 1-based page number from offset and limit.
func NewPagination(total, offset, limit int) Pagination {
	page := 1
	if limit > 0 {
		page = offset/limit + 1
	}
	return Pagination{Total: total, Page: page, PerPage: limit}
}
