package nsg

import (
	"encoding/xml"
	"sort"
	"strings"

	"nsg-job-manager/internal/model"
)

type xmlLink struct {
	URL   string `xml:"url"`
	Rel   string `xml:"rel"`
	Title string `xml:"title"`
}

type xmlEntry struct {
	Key   string `xml:"key"`
	Value string `xml:"value"`
}

type xmlMessage struct {
	Timestamp string `xml:"timestamp"`
	Stage     string `xml:"stage"`
	Text      string `xml:"text"`
}

type xmlJobStatus struct {
	XMLName       xml.Name     `xml:"jobstatus"`
	SelfURI       xmlLink      `xml:"selfUri"`
	JobHandle     string       `xml:"jobHandle"`
	JobStage      string       `xml:"jobStage"`
	TerminalStage bool         `xml:"terminalStage"`
	Failed        bool         `xml:"failed"`
	DateSubmitted string       `xml:"dateSubmitted"`
	ResultsURI    *xmlLink     `xml:"resultsUri"`
	Metadata      []xmlEntry   `xml:"metadata>entry"`
	Messages      []xmlMessage `xml:"messages>message"`
}

type xmlJobList struct {
	XMLName xml.Name       `xml:"joblist"`
	Jobs    []xmlJobStatus `xml:"jobs>jobstatus"`
}

type xmlJobFile struct {
	DownloadURI xmlLink `xml:"downloadUri"`
	Filename    string  `xml:"filename"`
	Length      int64   `xml:"length"`
}

type xmlResults struct {
	XMLName xml.Name     `xml:"results"`
	Files   []xmlJobFile `xml:"jobfiles>jobfile"`
}

type xmlError struct {
	XMLName        xml.Name `xml:"error"`
	DisplayMessage string   `xml:"displayMessage"`
	Message        string   `xml:"message"`
	Code           int      `xml:"code"`
}

func (s xmlJobStatus) jobID() string {
	if id := strings.TrimSpace(s.JobHandle); id != "" {
		return id
	}
	if t := strings.TrimSpace(s.SelfURI.Title); t != "" {
		return t
	}
	return lastSegment(s.SelfURI.URL)
}

func (s xmlJobStatus) metadata(key string) string {
	for _, e := range s.Metadata {
		if strings.EqualFold(e.Key, key) {
			return strings.TrimSpace(e.Value)
		}
	}
	return ""
}

// dateCompleted is the newest message timestamp once the job is terminal.
func (s xmlJobStatus) dateCompleted() string {
	if !s.TerminalStage || len(s.Messages) == 0 {
		return ""
	}
	stamps := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		if ts := strings.TrimSpace(m.Timestamp); ts != "" {
			stamps = append(stamps, ts)
		}
	}
	if len(stamps) == 0 {
		return ""
	}
	sort.Strings(stamps)
	return stamps[len(stamps)-1]
}

func (s xmlJobStatus) summary() model.JobSummary {
	return model.JobSummary{
		JobID:         s.jobID(),
		URL:           strings.TrimSpace(s.SelfURI.URL),
		Tool:          model.StringPtr(s.metadata("tool")),
		JobStage:      model.StringPtr(strings.TrimSpace(s.JobStage)),
		Failed:        s.Failed,
		DateSubmitted: model.StringPtr(strings.TrimSpace(s.DateSubmitted)),
		DateCompleted: model.StringPtr(s.dateCompleted()),
	}
}

func (s xmlJobStatus) details() model.JobDetails {
	d := model.JobDetails{
		JobID:         s.jobID(),
		JobStage:      strings.TrimSpace(s.JobStage),
		Failed:        s.Failed,
		DateSubmitted: model.StringPtr(strings.TrimSpace(s.DateSubmitted)),
		SelfURI:       strings.TrimSpace(s.SelfURI.URL),
	}
	if s.ResultsURI != nil {
		d.ResultsURI = model.StringPtr(strings.TrimSpace(s.ResultsURI.URL))
	}
	return d
}

func lastSegment(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		return raw[i+1:]
	}
	return raw
}
