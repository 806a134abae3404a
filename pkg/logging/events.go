// pkg/logging/events.go - structured run events and the session summary.

package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry status values used in events and the session summary.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// EntryResult is the outcome of one manifest entry in a batch.
type EntryResult struct {
	Name     string        `yaml:"name"`
	Action   string        `yaml:"action"` // install, uninstall, post_install, archive, copy
	Status   string        `yaml:"status"`
	Error    string        `yaml:"error,omitempty"`
	Duration time.Duration `yaml:"duration"`
}

// SessionSummary is written to session.yaml when a run ends.
type SessionSummary struct {
	RunType   string        `yaml:"run_type"` // install, uninstall
	StartTime time.Time     `yaml:"start_time"`
	EndTime   time.Time     `yaml:"end_time"`
	Duration  time.Duration `yaml:"duration"`
	ExitCode  int           `yaml:"exit_code"`
	Successes int           `yaml:"successes"`
	Failures  int           `yaml:"failures"`
	Skipped   int           `yaml:"skipped"`
	LogFile   string        `yaml:"log_file,omitempty"`
	Entries   []EntryResult `yaml:"entries"`
}

// Add appends a result and updates the counters.
func (s *SessionSummary) Add(results ...EntryResult) {
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			s.Successes++
		case StatusFailed:
			s.Failures++
		case StatusSkipped:
			s.Skipped++
		}
		s.Entries = append(s.Entries, r)
	}
}

// SessionStart returns when the current logger was opened, or the zero time
// before Init.
func SessionStart() time.Time {
	if instance == nil {
		return time.Time{}
	}
	return instance.sessionStart
}

// EndSession fills in the timing fields of summary and writes it as
// session.yaml into the logs directory.
func EndSession(summary *SessionSummary) error {
	dir := LogDir()
	if dir == "" {
		return fmt.Errorf("logger not initialised")
	}
	if summary.StartTime.IsZero() {
		summary.StartTime = SessionStart()
	}
	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(summary.StartTime).Round(time.Millisecond)
	if summary.LogFile == "" {
		summary.LogFile = LogFile()
	}

	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal session summary: %w", err)
	}
	path := filepath.Join(dir, "session.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session summary: %w", err)
	}

	Info("Session finished",
		"event_type", "session",
		"run_type", summary.RunType,
		"exit_code", summary.ExitCode,
		"successes", summary.Successes,
		"failures", summary.Failures,
		"skipped", summary.Skipped,
		"duration", summary.Duration.String(),
	)
	return nil
}

// LogInstallStart logs the start of an installation.
func LogInstallStart(name, version string) {
	Info("Installing software",
		"event_type", "install", "action", "start",
		"software", name, "version", version)
}

// LogInstallComplete logs a successful installation.
func LogInstallComplete(name, version string, duration time.Duration) {
	Info("Installation completed",
		"event_type", "install", "action", "complete", "status", StatusSuccess,
		"software", name, "version", version, "duration", duration.String())
}

// LogInstallFailed logs a failed installation together with the log file
// the operator should look at.
func LogInstallFailed(name, version string, err error) {
	Error("Installation failed",
		"event_type", "install", "action", "complete", "status", StatusFailed,
		"software", name, "version", version, "error", errString(err), "log_file", LogFile())
}

// LogUninstallStart logs the start of an uninstallation.
func LogUninstallStart(name string) {
	Info("Uninstalling software",
		"event_type", "uninstall", "action", "start", "software", name)
}

// LogUninstallComplete logs a successful uninstallation.
func LogUninstallComplete(name string, duration time.Duration) {
	Info("Uninstallation completed",
		"event_type", "uninstall", "action", "complete", "status", StatusSuccess,
		"software", name, "duration", duration.String())
}

// LogUninstallFailed logs a failed uninstallation.
func LogUninstallFailed(name string, err error) {
	Error("Uninstallation failed",
		"event_type", "uninstall", "action", "complete", "status", StatusFailed,
		"software", name, "error", errString(err), "log_file", LogFile())
}

// LogDownloadStart logs the start of a download.
func LogDownloadStart(url, dest string) {
	Info("Downloading",
		"event_type", "download", "action", "start", "url", url, "destination", dest)
}

// LogDownloadComplete logs a finished download.
func LogDownloadComplete(url string, bytes int64, duration time.Duration) {
	Info("Download completed",
		"event_type", "download", "action", "complete", "status", StatusSuccess,
		"url", url, "bytes", bytes, "duration", duration.String())
}

// LogDownloadFailed logs a failed download attempt.
func LogDownloadFailed(url string, err error) {
	Error("Download failed",
		"event_type", "download", "action", "complete", "status", StatusFailed,
		"url", url, "error", errString(err))
}

// LogBlockingEvent logs an entry skipped because applications it lists are running.
func LogBlockingEvent(name string, running []string) {
	Warn("Blocking applications are running",
		"event_type", "blocking", "software", name, "running", running)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
