package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"nsg-job-manager/internal/filestore"
)

const logFileName = "client.log"

// newLogger builds the process logger. The interactive UI owns the
// terminal, so it logs to a file under the user cache directory; one-shot
// commands log warnings and above to stderr.
func newLogger(interactive bool) (*logrus.Logger, func()) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if interactive {
		logger.SetLevel(logrus.InfoLevel)
	}
	if raw := strings.TrimSpace(os.Getenv("NSGJM_LOG_LEVEL")); raw != "" {
		if lvl, err := logrus.ParseLevel(raw); err == nil {
			logger.SetLevel(lvl)
		}
	}
	if !interactive {
		return logger, func() {}
	}

	path, err := logFilePath()
	if err != nil {
		logger.SetOutput(io.Discard)
		return logger, func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.SetOutput(io.Discard)
		return logger, func() {}
	}
	logger.SetOutput(f)
	return logger, func() { _ = f.Close() }
}

func logFilePath() (string, error) {
	dir, err := cacheDir()
	if err != nil {
		return "", err
	}
	if err := filestore.Mkdir(dir); err != nil {
		return "", err
	}
	return filepath.Join(dir, logFileName), nil
}

func cacheDir() (string, error) {
	root, err := os.UserCacheDir()
	if err != nil || strings.TrimSpace(root) == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", homeErr
		}
		root = filepath.Join(home, ".cache")
	}
	return filepath.Join(root, "nsg-job-manager"), nil
}
