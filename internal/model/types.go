package model

import "time"

// JobSummary is one row of the job list. URL is the canonical key; JobID
// formatting varies between server versions.
type JobSummary struct {
	JobID         string  `json:"job_id"`
	URL           string  `json:"url"`
	Tool          *string `json:"tool,omitempty"`
	JobStage      *string `json:"job_stage,omitempty"`
	Failed        bool    `json:"failed"`
	DateSubmitted *string `json:"date_submitted,omitempty"`
	DateCompleted *string `json:"date_completed,omitempty"`
}

// JobDetails is fetched on demand for a single job and never cached.
type JobDetails struct {
	JobID         string  `json:"job_id"`
	JobStage      string  `json:"job_stage"`
	Failed        bool    `json:"failed"`
	DateSubmitted *string `json:"date_submitted,omitempty"`
	SelfURI       string  `json:"self_uri"`
	ResultsURI    *string `json:"results_uri,omitempty"`
}

type DownloadProgressEvent struct {
	Filename   string `json:"filename"`
	Downloaded int64  `json:"downloaded"`
	Total      int64  `json:"total"`
}

// UpdateInfo describes an available release. A nil *UpdateInfo means no update.
type UpdateInfo struct {
	Version string `json:"version"`
	Date    string `json:"date,omitempty"`
	Body    string `json:"body,omitempty"`
}

const (
	StatusFilterAll    = "all"
	StatusFilterFailed = "failed"
)

type SortField string

const (
	SortJobID         SortField = "job_id"
	SortTool          SortField = "tool"
	SortDateSubmitted SortField = "date_submitted"
	SortDateCompleted SortField = "date_completed"
	SortJobStage      SortField = "job_stage"
)

var SortFields = []SortField{SortJobID, SortTool, SortDateSubmitted, SortDateCompleted, SortJobStage}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ViewCriteria is UI state only; it never touches the cached job list.
// StatusFilter is StatusFilterAll, StatusFilterFailed or an exact stage name.
type ViewCriteria struct {
	SearchQuery   string        `json:"search_query,omitempty"`
	StatusFilter  string        `json:"status_filter"`
	SortField     SortField     `json:"sort_field"`
	SortDirection SortDirection `json:"sort_direction"`
}

func DefaultViewCriteria() ViewCriteria {
	return ViewCriteria{
		StatusFilter:  StatusFilterAll,
		SortField:     SortDateSubmitted,
		SortDirection: SortDesc,
	}
}

func IsKnownSortField(f SortField) bool {
	for _, known := range SortFields {
		if known == f {
			return true
		}
	}
	return false
}

type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
	ToastInfo    ToastKind = "info"
)

type ToastMessage struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	Kind    ToastKind `json:"kind"`
	Expiry  time.Time `json:"expiry"`
}

// StringPtr returns nil for blank values so optional fields stay absent.
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	s := v
	return &s
}

func StringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
