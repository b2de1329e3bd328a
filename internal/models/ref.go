package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Ref is a relationship value. Depending on the read depth the API and
// older exports deliver it either as a bare id string or as an expanded
// document; only the id is retained either way.
type Ref struct {
	id string
}

func NewRef(id string) Ref {
	return Ref{id: id}
}

// ID returns the referenced document id, empty when unset.
func (r Ref) ID() string {
	return r.id
}

func (r Ref) IsZero() bool {
	return r.id == ""
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.id == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.id)
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		r.id = ""
		return nil
	}

	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		r.id = id
		return nil
	}

	var doc struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("relationship value is neither an id nor a document: %w", err)
	}
	r.id = doc.ID
	return nil
}

// Value stores the ref as plain text.
func (r Ref) Value() (driver.Value, error) {
	if r.id == "" {
		return nil, nil
	}
	return r.id, nil
}

func (r *Ref) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		r.id = ""
	case string:
		r.id = v
	case []byte:
		r.id = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Ref", src)
	}
	return nil
}
