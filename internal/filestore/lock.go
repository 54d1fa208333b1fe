package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

const (
	instanceLockDirName   = ".instance.lock"
	instanceLockOwnerFile = "owner.json"
)

// InstanceLock keeps two client processes from writing the same
// preferences directory. A lock left behind by a dead process on this host
// is taken over.
type InstanceLock struct {
	lockDir string
}

type instanceLockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

func AcquireInstanceLock(dir string) (InstanceLock, error) {
	target := strings.TrimSpace(dir)
	if target == "" {
		return InstanceLock{}, fmt.Errorf("lock directory is required")
	}
	if err := Mkdir(target); err != nil {
		return InstanceLock{}, err
	}

	lockDir := filepath.Join(target, instanceLockDirName)
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if !os.IsExist(err) {
			return InstanceLock{}, fmt.Errorf("acquire instance lock for %s: %w", target, err)
		}
		ownerPath := filepath.Join(lockDir, instanceLockOwnerFile)
		var owner instanceLockOwner
		readErr := ReadJSON(ownerPath, &owner)
		if readErr == nil && owner.PID > 0 && !isStaleOwner(owner) {
			return InstanceLock{}, fmt.Errorf(
				"another instance is running: %s (pid=%d created_at=%s host=%s)",
				target, owner.PID, owner.CreatedAt, owner.Hostname,
			)
		}
		if readErr != nil && !IsNotExist(readErr) {
			return InstanceLock{}, fmt.Errorf("instance lock is held: %s", target)
		}
		// stale or ownerless: reuse the directory
	}

	owner := instanceLockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	ownerPath := filepath.Join(lockDir, instanceLockOwnerFile)
	if err := WriteJSON(ownerPath, owner); err != nil {
		_ = os.Remove(lockDir)
		return InstanceLock{}, fmt.Errorf("write instance lock owner for %s: %w", target, err)
	}

	return InstanceLock{lockDir: lockDir}, nil
}

func (l InstanceLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, instanceLockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release instance lock %s: %w", l.lockDir, err)
	}
	return nil
}

func isStaleOwner(owner instanceLockOwner) bool {
	if owner.Hostname != hostnameOrUnknown() {
		return false
	}
	if owner.PID == os.Getpid() {
		return true
	}
	return !processAlive(owner.PID)
}

func processAlive(pid int) bool {
	alive, err := process.PidExists(int32(pid))
	if err != nil {
		return true
	}
	return alive
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
