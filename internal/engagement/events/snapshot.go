package events

import (
	"time"
)

// CompanySnapshot is the canonical projection of a company published to the
// index. It is built field by field from store queries; the live entity
// graph is cyclic (project -> engagement -> company -> project) and is
// never serialized directly.
type CompanySnapshot struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Verified    bool              `json:"verified"`
	Employees   int               `json:"employees"`
	FoundedYear int               `json:"founded_year"`
	Rating      float64           `json:"rating"`
	Services    []string          `json:"services"`
	Projects    []ProjectSnapshot `json:"projects"`
	Products    []string          `json:"products"`
	Reviews     []ReviewSnapshot  `json:"reviews"`
}

// ProjectSnapshot is a simplified project record with no back-references.
type ProjectSnapshot struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	ClientName     string     `json:"client_name"`
	ProviderName   string     `json:"provider_name"`
	Completed      bool       `json:"completed"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
}

// ReviewSnapshot carries a review without its navigation fields.
type ReviewSnapshot struct {
	ProjectID string `json:"project_id"`
	Rating    int    `json:"rating"`
	Text      string `json:"text"`
}
