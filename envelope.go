package instakit

import "encoding/json"

// Meta is the status block every response carries.
type Meta struct {
	Code         int    `json:"code"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Pagination links the next page of a list endpoint.
type Pagination struct {
	NextURL   string `json:"next_url,omitempty"`
	NextMaxID string `json:"next_max_id,omitempty"`
}

// Envelope wraps every endpoint's payload.
type Envelope[T any] struct {
	Data       *T          `json:"data,omitempty"`
	Meta       Meta        `json:"meta"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// rawEnvelope defers decoding of data until the meta block is checked.
type rawEnvelope = Envelope[json.RawMessage]
