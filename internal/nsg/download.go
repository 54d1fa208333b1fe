package nsg

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"nsg-job-manager/internal/filestore"
	"nsg-job-manager/internal/progress"
)

// JobIDFromURL returns the last path segment of a job URL.
func JobIDFromURL(jobURL string) (string, error) {
	id := lastSegment(jobURL)
	if id == "" {
		return "", errors.New("invalid job URL")
	}
	return id, nil
}

// ResultsArchiveName is the zip file name produced for a job.
func ResultsArchiveName(jobID string) string {
	return fmt.Sprintf("nsg_results_%s.zip", jobID)
}

// DownloadResults fetches every result file of the job into a temporary
// directory, reporting cumulative per-file progress, then packs them into
// <outputDir>/nsg_results_<id>.zip and returns that path.
func (c *Client) DownloadResults(ctx context.Context, jobURL, outputDir string, onProgress progress.Func) (string, error) {
	jobID, err := JobIDFromURL(jobURL)
	if err != nil {
		return "", err
	}
	log := c.logger.WithField("job_id", jobID)

	status, err := c.jobStatus(ctx, jobURL)
	if err != nil {
		return "", fmt.Errorf("failed to download results: %w", err)
	}
	if status.ResultsURI == nil || strings.TrimSpace(status.ResultsURI.URL) == "" {
		return "", fmt.Errorf("failed to download results: job %s has no results yet (stage %s)", jobID, status.JobStage)
	}

	var results xmlResults
	if err := c.getXML(ctx, strings.TrimSpace(status.ResultsURI.URL), &results); err != nil {
		return "", fmt.Errorf("failed to download results: list files: %w", err)
	}

	tempDir := filepath.Join(os.TempDir(), "nsg_download_"+jobID)
	if err := filestore.Mkdir(tempDir); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	files := make([]string, 0, len(results.Files))
	for _, f := range results.Files {
		name := safeFileName(f.Filename, f.DownloadURI.Title)
		if name == "" {
			continue
		}
		dst := filepath.Join(tempDir, name)
		if err := c.downloadFile(ctx, f.DownloadURI.URL, dst, name, f.Length, onProgress); err != nil {
			return "", fmt.Errorf("failed to download results: %s: %w", name, err)
		}
		files = append(files, dst)
	}

	if err := filestore.Mkdir(outputDir); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	zipPath := filepath.Join(outputDir, ResultsArchiveName(jobID))
	if err := writeZip(zipPath, files); err != nil {
		return "", err
	}
	log.WithFields(logrus.Fields{"files": len(files), "path": zipPath}).Info("results downloaded")
	return zipPath, nil
}

func safeFileName(candidates ...string) string {
	for _, c := range candidates {
		name := filepath.Base(strings.TrimSpace(c))
		if name != "" && name != "." && name != ".." && name != string(filepath.Separator) {
			return name
		}
	}
	return ""
}

type progressWriter struct {
	label string
	done  int64
	total int64
	emit  progress.Func
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.done += int64(len(p))
	w.emit.Emit(progress.Event{Label: w.label, Done: w.done, Total: w.total})
	return len(p), nil
}

func (c *Client) downloadFile(ctx context.Context, fileURL, dst, label string, length int64, onProgress progress.Func) error {
	req, err := c.newRequest(ctx, http.MethodGet, strings.TrimSpace(fileURL), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "*/*")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}

	total := length
	if total <= 0 && resp.ContentLength > 0 {
		total = resp.ContentLength
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	pw := &progressWriter{label: label, total: total, emit: onProgress}
	pw.emit.Emit(progress.Event{Label: label, Done: 0, Total: total})
	if _, err := io.Copy(io.MultiWriter(out, pw), resp.Body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// writeZip deflates files into zipPath via a temp file and rename.
func writeZip(zipPath string, files []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(zipPath), ".nsg_results-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create zip file: %w", err)
	}
	tmpPath := tmp.Name()
	zw := zip.NewWriter(tmp)

	fail := func(err error) error {
		_ = zw.Close()
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	for _, p := range files {
		if err := addZipEntry(zw, p); err != nil {
			return fail(err)
		}
	}
	if err := zw.Close(); err != nil {
		return fail(fmt.Errorf("failed to finalize zip: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize zip: %w", err)
	}
	if err := os.Rename(tmpPath, zipPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move zip into place: %w", err)
	}
	return nil
}

func addZipEntry(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filepath.Base(path), err)
	}
	defer src.Close()

	hdr := &zip.FileHeader{Name: filepath.Base(path), Method: zip.Deflate}
	hdr.SetMode(0o755)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to add file to zip: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to write file to zip: %w", err)
	}
	return nil
}
