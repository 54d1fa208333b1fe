package nsg

import (
	"os"
	"strings"
	"sync"

	"nsg-job-manager/internal/model"
)

const (
	showcaseUser   = "demo_user"
	showcasePrefix = "NGBW-JOB-"
	base36Digits   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

func ShowcaseEnabled() bool {
	return strings.TrimSpace(os.Getenv("SHOWCASE_MODE")) == "1"
}

// Showcase replaces user names and job identifiers in displayed values for
// screenshots and demos. Credentials sent to the service are never changed.
// Anonymized URLs handed out are remembered so they can be resolved back.
type Showcase struct {
	mu      sync.Mutex
	reverse map[string]string
}

func NewShowcase() *Showcase {
	return &Showcase{reverse: map[string]string{}}
}

func (s *Showcase) Username(string) string { return showcaseUser }

func (s *Showcase) AppKey(string) string {
	return "DEMO-APP-KEY-" + strings.Repeat("X", 32)
}

// JobID maps an id to a stable NGBW-JOB-<12 base36 chars> value.
func (s *Showcase) JobID(jobID string) string {
	var hash uint64
	for i := 0; i < len(jobID); i++ {
		hash = hash*31 + uint64(jobID[i])
	}
	var b strings.Builder
	b.WriteString(showcasePrefix)
	h := hash
	for i := 0; i < 12; i++ {
		b.WriteByte(base36Digits[h%36])
		h /= 36
	}
	return b.String()
}

// URL rewrites the last two path segments (user and job id).
func (s *Showcase) URL(raw string) string {
	if raw == "" {
		return raw
	}
	parts := strings.Split(raw, "/")
	if len(parts) < 2 {
		return raw
	}
	parts[len(parts)-2] = showcaseUser
	parts[len(parts)-1] = s.JobID(parts[len(parts)-1])
	display := strings.Join(parts, "/")

	s.mu.Lock()
	s.reverse[display] = raw
	s.mu.Unlock()
	return display
}

// Resolve returns the real URL behind a displayed one.
func (s *Showcase) Resolve(display string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if original, ok := s.reverse[display]; ok {
		return original
	}
	return display
}

func (s *Showcase) Summary(j model.JobSummary) model.JobSummary {
	j.JobID = s.JobID(j.JobID)
	j.URL = s.URL(j.URL)
	return j
}

func (s *Showcase) Details(d model.JobDetails) model.JobDetails {
	d.JobID = s.JobID(d.JobID)
	d.SelfURI = s.URL(d.SelfURI)
	if d.ResultsURI != nil {
		u := s.URL(*d.ResultsURI)
		d.ResultsURI = &u
	}
	return d
}
