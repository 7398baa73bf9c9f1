package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
)

// VolumeInfo describes the resolved persistent volume. Populating it is a
// startup gate: an unwritable or ephemeral-looking volume must abort boot,
// because a pick store on a tmpfs silently loses every pick on restart.
type VolumeInfo struct {
	BaseDir      string `json:"resolved_base_dir"`
	IsMountpoint bool   `json:"is_mountpoint"`
	IsEphemeral  bool   `json:"is_ephemeral"`
	Writable     bool   `json:"writable"`
}

// ResolveVolume validates the configured volume path and logs it exactly
// once. strict mode (production) returns an error on any durability doubt;
// tests pass strict=false to run against t.TempDir.
func ResolveVolume(path string, strict bool) (*VolumeInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve volume path %q: %w", path, err)
	}

	info := &VolumeInfo{
		BaseDir:      abs,
		IsMountpoint: isMountpoint(abs),
		IsEphemeral:  looksEphemeral(abs),
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("volume %s not creatable: %w", abs, err)
	}
	probe := filepath.Join(abs, ".write_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		info.Writable = false
		return info, fmt.Errorf("volume %s not writable: %w", abs, err)
	}
	_ = os.Remove(probe)
	info.Writable = true

	if strict {
		if info.IsEphemeral {
			return info, fmt.Errorf("volume %s appears ephemeral; refusing to store picks there", abs)
		}
		if !info.IsMountpoint {
			return info, fmt.Errorf("volume %s is not a mountpoint; persistent volume required", abs)
		}
	}

	log.Info().
		Str("base_dir", info.BaseDir).
		Bool("mountpoint", info.IsMountpoint).
		Bool("ephemeral", info.IsEphemeral).
		Msg("persistent volume resolved")
	return info, nil
}

// isMountpoint compares the device id of the directory with its parent.
func isMountpoint(path string) bool {
	var st, parent syscall.Stat_t
	if err := syscall.Stat(path, &st); err != nil {
		return false
	}
	if err := syscall.Stat(filepath.Dir(path), &parent); err != nil {
		return false
	}
	return st.Dev != parent.Dev
}

// looksEphemeral flags paths that are almost certainly wiped on restart.
func looksEphemeral(path string) bool {
	for _, prefix := range []string{"/tmp", "/var/tmp", "/dev/shm", "/run"} {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
