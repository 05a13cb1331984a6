// Package application defines the types describing one fulfillment request:
// an uploaded candidate document plus the postings it should be sent to.
// These types form the queue job payload contract.
package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Document references the uploaded candidate document on local storage.
type Document struct {
	Path         string `json:"path"`
	MimeType     string `json:"mime_type"`
	OriginalName string `json:"original_name"`
}

// Ext returns the document file extension without the leading dot, preferring
// the original upload name over the storage path.
func (d Document) Ext() string {
	name := d.OriginalName
	if name == "" {
		name = d.Path
	}
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		ext = "pdf"
	}
	return ext
}

// TargetPosting is a read-only reference to a posting from the external
// catalog. The pipeline never mutates it.
type TargetPosting struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Company          string `json:"company"`
	Location         string `json:"location,omitempty"`
	RecipientContact string `json:"recipient_contact"`
	Salary           string `json:"salary,omitempty"`
}

// Request is one unit of work: a submitted document and the ordered list of
// target postings. Immutable once accepted into the pipeline.
type Request struct {
	ID        string          `json:"request_id"`
	Requester string          `json:"requester"`
	Document  Document        `json:"document"`
	Targets   []TargetPosting `json:"targets"`
}

// Validate checks the structural invariants of an incoming payload before it
// is accepted onto the queue.
func (r *Request) Validate() error {
	if r == nil {
		return errors.New("request is nil")
	}
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("request id is required")
	}
	if strings.TrimSpace(r.Requester) == "" {
		return errors.New("requester identifier is required")
	}
	if strings.TrimSpace(r.Document.Path) == "" {
		return errors.New("document path is required")
	}
	if len(r.Targets) == 0 {
		return errors.New("at least one target posting is required")
	}
	seen := make(map[string]struct{}, len(r.Targets))
	for i, t := range r.Targets {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("target %d: posting id is required", i)
		}
		if _, ok := seen[t.ID]; ok {
			return fmt.Errorf("target %d: duplicate posting id %s", i, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}

// Encode serializes the request into the queue payload format.
func (r *Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Decode parses a queue payload back into a Request and validates it.
func Decode(payload []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode request payload: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request payload: %w", err)
	}
	return &req, nil
}
