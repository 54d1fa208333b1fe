package nsg

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"nsg-job-manager/internal/model"
)

var ErrAuthentication = errors.New("authentication failed")

type ClientOptions struct {
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
	// Showcase anonymizes displayed values; nil disables it.
	Showcase *Showcase
}

// Client is a CIPRES REST client bound to one set of credentials.
type Client struct {
	creds    Credentials
	baseURL  string
	http     *http.Client
	logger   logrus.FieldLogger
	showcase *Showcase
}

func NewClient(creds Credentials, opts ClientOptions) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		creds:    creds,
		baseURL:  creds.baseURL(),
		http:     opts.HTTPClient,
		logger:   opts.Logger,
		showcase: opts.Showcase,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 5 * time.Minute}
	}
	if c.logger == nil {
		c.logger = logrus.StandardLogger()
	}
	return c, nil
}

// DisplayUsername is the user name as shown in the UI.
func (c *Client) DisplayUsername() string {
	if c.showcase != nil {
		return c.showcase.Username(c.creds.Username)
	}
	return c.creds.Username
}

func (c *Client) userJobsURL() string {
	return c.baseURL + "/job/" + url.PathEscape(c.creds.Username)
}

func (c *Client) resolve(displayURL string) string {
	if c.showcase != nil {
		return c.showcase.Resolve(displayURL)
	}
	return displayURL
}

// Connect verifies the credentials against the service.
func (c *Client) Connect(ctx context.Context) (string, error) {
	var list xmlJobList
	if err := c.getXML(ctx, c.userJobsURL(), &list); err != nil {
		return "", fmt.Errorf("connection test failed: %w", err)
	}
	c.logger.WithField("jobs", len(list.Jobs)).Info("connected to job service")
	return fmt.Sprintf("Connected as %s", c.DisplayUsername()), nil
}

func (c *Client) ListJobs(ctx context.Context) ([]model.JobSummary, error) {
	var list xmlJobList
	if err := c.getXML(ctx, c.userJobsURL()+"?expand=true", &list); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	out := make([]model.JobSummary, 0, len(list.Jobs))
	for _, j := range list.Jobs {
		s := j.summary()
		if c.showcase != nil {
			s = c.showcase.Summary(s)
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) JobStatus(ctx context.Context, jobURL string) (model.JobDetails, error) {
	status, err := c.jobStatus(ctx, jobURL)
	if err != nil {
		return model.JobDetails{}, fmt.Errorf("failed to get job status: %w", err)
	}
	d := status.details()
	if c.showcase != nil {
		d = c.showcase.Details(d)
	}
	return d, nil
}

func (c *Client) jobStatus(ctx context.Context, jobURL string) (xmlJobStatus, error) {
	target := strings.TrimSpace(c.resolve(jobURL))
	if target == "" {
		return xmlJobStatus{}, errors.New("job url is required")
	}
	var status xmlJobStatus
	if err := c.getXML(ctx, target, &status); err != nil {
		return xmlJobStatus{}, err
	}
	return status, nil
}

// SubmitJob uploads filePath as the job input for tool and returns the new
// job id.
func (c *Client) SubmitJob(ctx context.Context, filePath, tool string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to submit job: open input: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("tool", tool); err != nil {
		return "", err
	}
	if err := w.WriteField("metadata.statusEmail", "false"); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("input.infile_", filepath.Base(filePath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to submit job: read input: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.userJobsURL(), &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var status xmlJobStatus
	if err := c.doXML(req, &status); err != nil {
		return "", fmt.Errorf("failed to submit job: %w", err)
	}
	jobID := status.jobID()
	c.logger.WithFields(logrus.Fields{"tool": tool, "job_id": jobID}).Info("job submitted")
	if c.showcase != nil {
		jobID = c.showcase.JobID(jobID)
	}
	return jobID, nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.creds.Username, c.creds.Password)
	req.Header.Set("cipres-appkey", c.creds.AppKey)
	req.Header.Set("Accept", "application/xml")
	return req, nil
}

func (c *Client) getXML(ctx context.Context, target string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.doXML(req, out)
}

func (c *Client) doXML(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// checkStatus turns a non-2xx response into an error, preferring the
// service's own error message.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	msg := strings.TrimSpace(string(raw))
	var e xmlError
	if xml.Unmarshal(raw, &e) == nil {
		if m := strings.TrimSpace(e.DisplayMessage); m != "" {
			msg = m
		} else if m := strings.TrimSpace(e.Message); m != "" {
			msg = m
		}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if msg == "" {
			return ErrAuthentication
		}
		return fmt.Errorf("%w: %s", ErrAuthentication, msg)
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("service returned %d: %s", resp.StatusCode, msg)
}
