package snapshot

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// Check is the outcome of one preflight phase.
type Check struct {
	Name     string   `json:"name" yaml:"name"`
	OK       bool     `json:"ok" yaml:"ok"`
	Required bool     `json:"required" yaml:"required"`
	Detail   string   `json:"detail,omitempty" yaml:"detail,omitempty"`
	Missing  []string `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// Report collects the preflight checks for one release in one directory.
type Report struct {
	Version   string        `json:"version" yaml:"version"`
	Dir       string        `json:"dir" yaml:"dir"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Checks    []Check       `json:"checks" yaml:"checks"`
}

// Ready reports whether every required check passed.
func (r *Report) Ready() bool {
	for _, c := range r.Checks {
		if c.Required && !c.OK {
			return false
		}
	}
	return true
}

// Missing lists every file some check could not find.
func (r *Report) Missing() []string {
	var out []string
	for _, c := range r.Checks {
		out = append(out, c.Missing...)
	}
	return out
}

// Preflight inspects dir for the artifacts of version. storePath is the
// sqlite snapshot the loader writes; when it exists the raw release files
// are no longer required.
func Preflight(dir, version, storePath string, logger *slog.Logger) *Report {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	r := &Report{Version: version, Dir: dir}

	// Phase 1: release name
	r.add(Check{
		Name:   "version",
		OK:     IsKnown(version),
		Detail: versionDetail(version),
	})

	// Phase 2: imported store
	store := Check{Name: "store"}
	if info, err := os.Stat(storePath); err == nil {
		store.OK = true
		store.Detail = fmt.Sprintf("%s (%s)", storePath, humanize.Bytes(uint64(info.Size())))
	} else {
		store.Detail = storePath + " not found"
	}
	r.add(store)

	// Phase 3: downloaded release files
	ok, missing := CheckArtifacts(dir, version)
	r.add(Check{
		Name:     "artifacts",
		OK:       ok,
		Required: !store.OK,
		Missing:  missing,
		Detail:   fmt.Sprintf("%d of %d present", len(RequiredFiles(version))-len(missing), len(RequiredFiles(version))),
	})

	// Phase 4: locally built offsets
	ok, missing = CheckOffsets(dir, version)
	r.add(Check{
		Name:    "offsets",
		OK:      ok,
		Missing: missing,
	})

	r.Timestamp = time.Now()
	r.Duration = time.Since(start)

	for _, c := range r.Checks {
		logger.Debug("preflight check", "check", c.Name, "ok", c.OK, "detail", c.Detail)
	}
	logger.Info("preflight complete", "version", version, "dir", dir, "ready", r.Ready(), "duration", r.Duration)
	return r
}

func (r *Report) add(c Check) {
	r.Checks = append(r.Checks, c)
}

func versionDetail(version string) string {
	if IsKnown(version) {
		return "published release"
	}
	return "not a known release; files are checked by name only"
}
