package updater

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"nsg-job-manager/internal/model"
)

const (
	DefaultRepo    = "nsgportal/nsg-job-manager"
	BinaryName     = "nsg-job-manager"
	defaultAPIBase = "https://api.github.com"
	userAgent      = "nsg-job-manager-updater"
)

type githubRelease struct {
	TagName     string `json:"tag_name"`
	Body        string `json:"body"`
	PublishedAt string `json:"published_at"`
	Assets      []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// GitHubBackend installs release archives published on GitHub. Each release
// carries one archive per platform and a "<binary>_<tag>_checksums.txt".
type GitHubBackend struct {
	Repo           string // owner/name
	CurrentVersion string
	APIBase        string
	HTTPClient     *http.Client
	// TargetPath is the binary to replace; defaults to the running executable.
	TargetPath string
	Logger     logrus.FieldLogger
	// BeforeRelaunch runs right before the process image is replaced, e.g.
	// to restore the terminal and release the instance lock.
	BeforeRelaunch func()

	installed string
}

func (b *GitHubBackend) client() *http.Client {
	if b.HTTPClient != nil {
		return b.HTTPClient
	}
	return &http.Client{Timeout: 2 * time.Minute}
}

func (b *GitHubBackend) logger() logrus.FieldLogger {
	if b.Logger != nil {
		return b.Logger
	}
	return logrus.StandardLogger()
}

func (b *GitHubBackend) repo() string {
	if r := strings.Trim(strings.TrimSpace(b.Repo), "/"); r != "" {
		return r
	}
	return DefaultRepo
}

func (b *GitHubBackend) apiBase() string {
	if base := strings.TrimRight(strings.TrimSpace(b.APIBase), "/"); base != "" {
		return base
	}
	return defaultAPIBase
}

// LatestTag returns the tag of the latest stable release.
func (b *GitHubBackend) LatestTag(ctx context.Context) (string, error) {
	rel, err := b.fetchLatest(ctx)
	if err != nil {
		return "", err
	}
	return NormalizeVersionTag(rel.TagName), nil
}

func (b *GitHubBackend) Check(ctx context.Context) (*model.UpdateInfo, error) {
	rel, err := b.fetchLatest(ctx)
	if err != nil {
		return nil, err
	}
	latest := NormalizeVersionTag(rel.TagName)
	current := NormalizeVersionTag(b.CurrentVersion)
	newer, err := IsNewerVersion(latest, current)
	if err != nil {
		return nil, fmt.Errorf("compare versions %s and %s: %w", latest, current, err)
	}
	if !newer {
		return nil, nil
	}
	return &model.UpdateInfo{Version: latest, Date: rel.PublishedAt, Body: strings.TrimSpace(rel.Body)}, nil
}

func (b *GitHubBackend) fetchLatest(ctx context.Context) (githubRelease, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/releases/latest", b.apiBase(), b.repo())
	var rel githubRelease
	if err := b.getJSON(ctx, endpoint, &rel); err != nil {
		return githubRelease{}, err
	}
	if strings.TrimSpace(rel.TagName) == "" {
		return githubRelease{}, errors.New("release response did not include tag_name")
	}
	return rel, nil
}

func (b *GitHubBackend) fetchTag(ctx context.Context, tag string) (githubRelease, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/releases/tags/%s", b.apiBase(), b.repo(), tag)
	var rel githubRelease
	if err := b.getJSON(ctx, endpoint, &rel); err != nil {
		return githubRelease{}, err
	}
	return rel, nil
}

func (b *GitHubBackend) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := b.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("github api request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// DownloadAndInstall fetches the platform archive for info.Version,
// verifies it against the release checksums, and atomically replaces the
// target binary. Archive download progress is reported through onPhase.
func (b *GitHubBackend) DownloadAndInstall(ctx context.Context, info model.UpdateInfo, onPhase func(Phase)) error {
	tag := NormalizeVersionTag(info.Version)
	rel, err := b.fetchTag(ctx, tag)
	if err != nil {
		return err
	}
	assetName, binaryName, err := ReleaseAssetForRuntime(tag)
	if err != nil {
		return err
	}
	archiveURL, ok := releaseAssetURL(rel, assetName)
	if !ok {
		return fmt.Errorf("release %s does not contain expected asset %q", tag, assetName)
	}
	checksumAsset := fmt.Sprintf("%s_%s_checksums.txt", BinaryName, tag)
	checksumURL, ok := releaseAssetURL(rel, checksumAsset)
	if !ok {
		return fmt.Errorf("release %s does not contain checksum asset %q", tag, checksumAsset)
	}

	targetExe := strings.TrimSpace(b.TargetPath)
	if targetExe == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate running executable: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		targetExe = exe
	}

	workdir, err := os.MkdirTemp("", "nsg-job-manager-update-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workdir)

	archivePath := filepath.Join(workdir, assetName)
	checksumPath := filepath.Join(workdir, "checksums.txt")
	if err := b.downloadFile(ctx, archiveURL, archivePath, onPhase); err != nil {
		return err
	}
	if err := b.downloadFile(ctx, checksumURL, checksumPath, nil); err != nil {
		return err
	}

	expectedHash, err := expectedChecksumForAsset(checksumPath, assetName)
	if err != nil {
		return err
	}
	actualHash, err := sha256File(archivePath)
	if err != nil {
		return err
	}
	if !strings.EqualFold(expectedHash, actualHash) {
		return fmt.Errorf("checksum mismatch for %s (expected %s, got %s)", assetName, expectedHash, actualHash)
	}

	extracted := filepath.Join(workdir, "extracted-"+binaryName)
	if err := extractBinary(archivePath, binaryName, extracted); err != nil {
		return err
	}
	if err := installBinary(extracted, targetExe); err != nil {
		return err
	}
	b.installed = targetExe
	b.logger().WithFields(logrus.Fields{"tag": tag, "path": targetExe}).Info("update installed")
	return nil
}

// Relaunch replaces the current process with the installed binary.
func (b *GitHubBackend) Relaunch() error {
	target := b.installed
	if target == "" {
		exe, err := os.Executable()
		if err != nil {
			return err
		}
		target = exe
	}
	if b.BeforeRelaunch != nil {
		b.BeforeRelaunch()
	}
	return relaunch(target, os.Args[1:])
}

// countingWriter reports each write as a Progress phase.
type countingWriter struct {
	onPhase func(Phase)
}

func (w countingWriter) Write(p []byte) (int, error) {
	if w.onPhase != nil && len(p) > 0 {
		w.onPhase(Phase{Kind: PhaseProgress, ChunkLength: int64(len(p))})
	}
	return len(p), nil
}

func (b *GitHubBackend) downloadFile(ctx context.Context, fileURL, targetPath string, onPhase func(Phase)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := b.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("download failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	out, err := os.Create(targetPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if onPhase != nil {
		length := resp.ContentLength
		if length < 0 {
			length = 0
		}
		onPhase(Phase{Kind: PhaseStarted, ContentLength: length})
	}
	var dst io.Writer = out
	if onPhase != nil {
		dst = io.MultiWriter(out, countingWriter{onPhase: onPhase})
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return err
	}
	if onPhase != nil {
		onPhase(Phase{Kind: PhaseFinished})
	}
	return nil
}

func ReleaseAssetForRuntime(tag string) (archiveName string, binaryName string, err error) {
	switch runtime.GOOS + "/" + runtime.GOARCH {
	case "windows/amd64":
		return fmt.Sprintf("%s_%s_windows_amd64.zip", BinaryName, tag), BinaryName + ".exe", nil
	case "darwin/amd64":
		return fmt.Sprintf("%s_%s_darwin_amd64.tar.gz", BinaryName, tag), BinaryName, nil
	case "darwin/arm64":
		return fmt.Sprintf("%s_%s_darwin_arm64.tar.gz", BinaryName, tag), BinaryName, nil
	case "linux/amd64":
		return fmt.Sprintf("%s_%s_linux_amd64.tar.gz", BinaryName, tag), BinaryName, nil
	case "linux/arm64":
		return fmt.Sprintf("%s_%s_linux_arm64.tar.gz", BinaryName, tag), BinaryName, nil
	default:
		return "", "", fmt.Errorf("self-update is not supported on %s/%s", runtime.GOOS, runtime.GOARCH)
	}
}

func releaseAssetURL(rel githubRelease, assetName string) (string, bool) {
	for _, a := range rel.Assets {
		if a.Name == assetName && strings.TrimSpace(a.BrowserDownloadURL) != "" {
			return a.BrowserDownloadURL, true
		}
	}
	return "", false
}

func expectedChecksumForAsset(checksumPath, assetName string) (string, error) {
	content, err := os.ReadFile(checksumPath)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(content), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimLeft(fields[1], "*")
		if name == assetName {
			return fields[0], nil
		}
	}
	return "", fmt.Errorf("checksum for %s not found in checksums file", assetName)
}

func sha256File(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func extractBinary(archivePath, targetName, dstPath string) error {
	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		return extractBinaryFromZip(archivePath, targetName, dstPath)
	case strings.HasSuffix(archivePath, ".tar.gz"):
		return extractBinaryFromTarGz(archivePath, targetName, dstPath)
	default:
		return fmt.Errorf("unsupported archive format: %s", archivePath)
	}
}

func extractBinaryFromZip(archivePath, targetName, dstPath string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, f := range reader.File {
		if path.Base(f.Name) != targetName {
			continue
		}
		src, err := f.Open()
		if err != nil {
			return err
		}
		defer src.Close()
		return writeFileFrom(dstPath, src)
	}
	return fmt.Errorf("binary %s not found in %s", targetName, archivePath)
}

func extractBinaryFromTarGz(archivePath, targetName, dstPath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if hdr.FileInfo().IsDir() || path.Base(hdr.Name) != targetName {
			continue
		}
		return writeFileFrom(dstPath, tr)
	}
	return fmt.Errorf("binary %s not found in %s", targetName, archivePath)
}

func writeFileFrom(dstPath string, src io.Reader) error {
	out, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func installBinary(srcPath, targetPath string) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return err
	}
	tmpPath := targetPath + ".tmp"
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()
	if err := writeFileFrom(tmpPath, src); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0o755); err != nil {
			return err
		}
	}
	if runtime.GOOS == "windows" {
		// a running .exe cannot be replaced, only renamed away
		_ = os.Remove(targetPath + ".old")
		_ = os.Rename(targetPath, targetPath+".old")
	}
	if err := os.Rename(tmpPath, targetPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
