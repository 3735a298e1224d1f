package common

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Version variables injected at build time via ldflags
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// BuildInfo is the build identity reported by /api/version and `tickle version`.
type BuildInfo struct {
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit"`
}

// CurrentBuild returns the build identity after ldflags and any .version file.
func CurrentBuild() BuildInfo {
	return BuildInfo{Version: Version, Build: Build, Commit: GitCommit}
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", b.Version, b.Build, b.Commit)
}

// LoadVersionFromFile reads a .version file next to the binary. A missing
// file leaves the ldflags values untouched.
func LoadVersionFromFile() {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	f, err := os.Open(filepath.Join(filepath.Dir(exe), ".version"))
	if err != nil {
		return
	}
	defer f.Close()
	applyVersionFile(f)
}

// applyVersionFile parses "key: value" lines. Values only fill in fields still
// at their defaults, so ldflags always win.
func applyVersionFile(r io.Reader) {
	fields := map[string]struct {
		target *string
		unset  string
	}{
		"version": {&Version, "dev"},
		"build":   {&Build, "unknown"},
		"commit":  {&GitCommit, "unknown"},
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		f, known := fields[strings.ToLower(strings.TrimSpace(key))]
		if known && *f.target == f.unset {
			*f.target = strings.TrimSpace(val)
		}
	}
}
