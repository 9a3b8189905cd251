package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Modality is the access pattern a dataset currently supports.
type Modality int

const (
	ModalityEmpty Modality = iota
	ModalityTabular
	ModalityFileBased
	ModalityError
)

func (m Modality) String() string {
	switch m {
	case ModalityTabular:
		return "tabular"
	case ModalityFileBased:
		return "file_based"
	case ModalityEmpty:
		return "empty"
	case ModalityError:
		return "error"
	default:
		return fmt.Sprintf("modality(%d)", int(m))
	}
}

func ParseModality(s string) (Modality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tabular":
		return ModalityTabular, nil
	case "file_based", "filebased", "files":
		return ModalityFileBased, nil
	case "empty":
		return ModalityEmpty, nil
	case "error":
		return ModalityError, nil
	}
	return ModalityEmpty, fmt.Errorf("unknown modality: %q", s)
}

func (m Modality) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Modality) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseModality(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Column describes one column of a tabular dataset.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableSchema is what a schema fetch returns for a tabular dataset.
// RowCountEstimate is nil when the backend does not report one.
type TableSchema struct {
	Columns          []Column
	RowCountEstimate *int64
}

type FileDescriptor struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	ModifiedAt  time.Time `json:"modified_at,omitempty"`
	ETag        string    `json:"etag,omitempty"`
}

// ProbeResult is the outcome of classifying a dataset handle.
//
// Schema and RowCountEstimate are only set for ModalityTabular, FileCount only
// for ModalityFileBased and Reason only for ModalityError.
type ProbeResult struct {
	Handle           string    `json:"handle"`
	Modality         Modality  `json:"modality"`
	Schema           []Column  `json:"schema,omitempty"`
	RowCountEstimate *int64    `json:"row_count_estimate,omitempty"`
	FileCount        *int      `json:"file_count,omitempty"`
	ProbedAt         time.Time `json:"probed_at"`
	Reason           string    `json:"reason,omitempty"`
}

func (r *ProbeResult) Column(name string) (Column, bool) {
	for _, c := range r.Schema {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
