package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"stemforge/internal/config"
)

// Requirement defines an external tool stemforge relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Requirements lists the binaries the configured pipeline invokes.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{
		{Name: "yt-dlp", Command: cfg.Acquire.YtDlpBinary, Description: "Searches and downloads source audio"},
		{Name: "Python", Command: cfg.Separate.PythonBinary, Description: "Runs the Demucs separation model"},
	}
}

// CheckAll reports every binary requirement plus ffmpeg and the Demucs module.
func CheckAll(ctx context.Context, cfg *config.Config) []Status {
	results := CheckBinaries(Requirements(cfg))
	if cfg == nil {
		return results
	}
	results = append(results, CheckFFmpegForYtDlp(cfg.Acquire.YtDlpBinary))
	return append(results, CheckPythonModule(ctx, cfg.Separate.PythonBinary, "demucs"))
}

// Missing returns the names of required dependencies that are unavailable.
func Missing(statuses []Status) []string {
	var names []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			names = append(names, status.Name)
		}
	}
	return names
}
