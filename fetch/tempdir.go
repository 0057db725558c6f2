package fetch

import "os"

// shmCandidates are the mount points RAMDir considers, in preference
// order. Only /dev/shm (Linux tmpfs) is ever returned; /tmp is listed
// but skipped, since it is not a shared-memory filesystem by itself.
var shmCandidates = []string{"/dev/shm", "/tmp"}

// RAMDir resolves the parent tempdir for ram_fetch mode (spec §4.3:
// "a shared-memory filesystem at a well-known path ... otherwise the
// OS temp is used"). It returns the first writable candidate, or
// os.TempDir() if none qualify.
func RAMDir() string {
	for _, cand := range shmCandidates {
		if cand == "/tmp" {
			continue // not a shared-memory fs by itself; fall through to os.TempDir
		}
		if info, err := os.Stat(cand); err == nil && info.IsDir() && writable(cand) {
			return cand
		}
	}
	return os.TempDir()
}

func writable(dir string) bool {
	f, err := os.CreateTemp(dir, ".bgpstream-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}

// NewTempDir creates a fresh subdirectory under parent (RAMDir() or an
// explicit cache_dir) to hold one chunk's downloaded files.
func NewTempDir(parent string) (string, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", err
	}
	return os.MkdirTemp(parent, "bgpstream-chunk-")
}

// Reclaim removes dir and everything under it, implementing the
// cache_dir-unset branch of the spec §4.3/§4.4 cache policy: "the
// entire tempdir is removed at chunk boundary".
func Reclaim(dir string) error {
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}
