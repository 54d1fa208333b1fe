// Package jobview derives the ordered, filtered job list shown to the user
// from the cached job set and the current view criteria.
package jobview

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"nsg-job-manager/internal/model"
)

// Options tunes projection. The zero value collates with English rules.
type Options struct {
	Language language.Tag
}

// Project filters and sorts jobs according to c. The input slice is never
// modified; the result is a fresh slice.
func Project(jobs []model.JobSummary, c model.ViewCriteria) []model.JobSummary {
	return ProjectWith(jobs, c, Options{})
}

func ProjectWith(jobs []model.JobSummary, c model.ViewCriteria, opts Options) []model.JobSummary {
	c = normalizeCriteria(c)
	query := strings.ToLower(c.SearchQuery)

	out := make([]model.JobSummary, 0, len(jobs))
	for _, job := range jobs {
		if !matchesStatus(job, c.StatusFilter) {
			continue
		}
		if !matchesSearch(job, query) {
			continue
		}
		out = append(out, job)
	}

	tag := opts.Language
	if tag == language.Und {
		tag = language.English
	}
	col := collate.New(tag)
	desc := c.SortDirection == model.SortDesc

	sort.SliceStable(out, func(i, j int) bool {
		cmp, decided := compareField(col, out[i], out[j], c.SortField, desc)
		if decided {
			return cmp < 0
		}
		return out[i].URL < out[j].URL
	})
	return out
}

func normalizeCriteria(c model.ViewCriteria) model.ViewCriteria {
	if strings.TrimSpace(c.StatusFilter) == "" {
		c.StatusFilter = model.StatusFilterAll
	}
	if !model.IsKnownSortField(c.SortField) {
		c.SortField = model.SortDateSubmitted
	}
	if c.SortDirection != model.SortAsc && c.SortDirection != model.SortDesc {
		c.SortDirection = model.SortDesc
	}
	return c
}

func matchesStatus(job model.JobSummary, filter string) bool {
	switch filter {
	case model.StatusFilterAll:
		return true
	case model.StatusFilterFailed:
		return job.Failed
	default:
		return job.JobStage != nil && *job.JobStage == filter
	}
}

func matchesSearch(job model.JobSummary, query string) bool {
	if query == "" {
		return true
	}
	candidates := []*string{&job.JobID, &job.URL, job.Tool, job.JobStage, job.DateSubmitted, job.DateCompleted}
	for _, v := range candidates {
		if v == nil {
			continue
		}
		if strings.Contains(strings.ToLower(*v), query) {
			return true
		}
	}
	return false
}

// compareField returns the ordering of a and b for field. decided is false
// when the two are equal under the field's rule and a tie-break is needed.
// Missing values always go last, independent of desc.
func compareField(col *collate.Collator, a, b model.JobSummary, field model.SortField, desc bool) (int, bool) {
	switch field {
	case model.SortDateSubmitted, model.SortDateCompleted:
		av, bv := dateValue(a, field), dateValue(b, field)
		if nilOrder, ok := compareMissing(av == nil, bv == nil); ok {
			return nilOrder, nilOrder != 0
		}
		cmp := av.Compare(*bv)
		if desc {
			cmp = -cmp
		}
		return cmp, cmp != 0
	default:
		av, bv := textValue(a, field), textValue(b, field)
		if nilOrder, ok := compareMissing(av == nil, bv == nil); ok {
			return nilOrder, nilOrder != 0
		}
		cmp := col.CompareString(*av, *bv)
		if desc {
			cmp = -cmp
		}
		return cmp, cmp != 0
	}
}

func compareMissing(aNil, bNil bool) (int, bool) {
	switch {
	case aNil && bNil:
		return 0, true
	case aNil:
		return 1, true
	case bNil:
		return -1, true
	default:
		return 0, false
	}
}

func textValue(job model.JobSummary, field model.SortField) *string {
	switch field {
	case model.SortJobID:
		return &job.JobID
	case model.SortTool:
		return job.Tool
	case model.SortJobStage:
		return job.JobStage
	}
	return nil
}

func dateValue(job model.JobSummary, field model.SortField) *time.Time {
	var raw *string
	if field == model.SortDateCompleted {
		raw = job.DateCompleted
	} else {
		raw = job.DateSubmitted
	}
	if raw == nil {
		return nil
	}
	ts, ok := ParseTimestamp(*raw)
	if !ok {
		return nil
	}
	return &ts
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts the ISO-8601 shapes the job service emits.
func ParseTimestamp(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// StageOptions lists the distinct stage names present, for the status filter.
func StageOptions(jobs []model.JobSummary) []string {
	seen := map[string]bool{}
	out := make([]string, 0)
	for _, job := range jobs {
		if job.JobStage == nil || seen[*job.JobStage] {
			continue
		}
		seen[*job.JobStage] = true
		out = append(out, *job.JobStage)
	}
	sort.Strings(out)
	return out
}
