// pkg/process/batch.go - batch drivers folding per-entry outcomes into one exit code.

package process

import (
	"context"
	"time"

	"github.com/windowsadmins/provision/pkg/extract"
	"github.com/windowsadmins/provision/pkg/logging"
	"github.com/windowsadmins/provision/pkg/manifest"
)

// This abstraction allows us to override when testing
var (
	extractSkipTopDir = extract.UnzipSkipTopDir
	extractPreserve   = extract.Unzip
)

// result converts one entry outcome into an EntryResult.
func result(name, action string, start time.Time, changed bool, err error) logging.EntryResult {
	r := logging.EntryResult{
		Name:     name,
		Action:   action,
		Status:   logging.StatusSuccess,
		Duration: time.Since(start).Round(time.Millisecond),
	}
	switch {
	case err != nil:
		r.Status = logging.StatusFailed
		r.Error = err.Error()
	case !changed:
		r.Status = logging.StatusSkipped
	}
	return r
}

// fold returns 1 if any result failed.
func fold(results []logging.EntryResult) int {
	for _, r := range results {
		if r.Status == logging.StatusFailed {
			return 1
		}
	}
	return 0
}

// interrupted records the entries left when the context is cancelled.
func interrupted(names []string, action string, err error) []logging.EntryResult {
	var out []logging.EntryResult
	for _, n := range names {
		out = append(out, logging.EntryResult{Name: n, Action: action, Status: logging.StatusFailed, Error: err.Error()})
	}
	return out
}

func remaining(sws []manifest.Software, from int) []string {
	var names []string
	for _, sw := range sws[from:] {
		names = append(names, sw.Name)
	}
	return names
}

// Installs installs every entry in order and returns 0 if all succeeded or
// were already present, 1 otherwise. A failing entry never stops the batch.
func (b *Batch) Installs(ctx context.Context, sws []manifest.Software) (int, []logging.EntryResult) {
	var results []logging.EntryResult
	for i, sw := range sws {
		if err := ctx.Err(); err != nil {
			results = append(results, interrupted(remaining(sws, i), "install", err)...)
			break
		}
		start := time.Now()
		changed, err := b.NewSoftwareInstall(sw).Install(ctx)
		if err != nil {
			logging.Error("Install failed", "software", sw.Name, "error", err)
		}
		results = append(results, result(sw.Name, "install", start, changed, err))
	}
	return fold(results), results
}

// Uninstalls removes every entry in order, then deletes files below
// deleteBase. The code is 1 if any entry or the deletion failed.
func (b *Batch) Uninstalls(ctx context.Context, sws []manifest.Software, deleteBase string, deleteFiles []string) (int, []logging.EntryResult) {
	var results []logging.EntryResult
	for i, sw := range sws {
		if err := ctx.Err(); err != nil {
			results = append(results, interrupted(remaining(sws, i), "uninstall", err)...)
			return fold(results), results
		}
		start := time.Now()
		changed, err := b.NewSoftwareUninstall(sw).Uninstall(ctx)
		if err != nil {
			logging.Error("Uninstall failed", "software", sw.Name, "error", err)
		}
		results = append(results, result(sw.Name, "uninstall", start, changed, err))
	}

	if len(deleteFiles) > 0 {
		start := time.Now()
		err := DeleteFiles(deleteBase, deleteFiles)
		if err != nil {
			logging.Error("Error occurred while deleting files", "base", deleteBase, "error", err)
		}
		results = append(results, result("delete_files", "delete", start, true, err))
	}
	return fold(results), results
}

// PostInstalls runs only the post-install hooks of every entry.
func (b *Batch) PostInstalls(ctx context.Context, sws []manifest.Software) (int, []logging.EntryResult) {
	var results []logging.EntryResult
	for i, sw := range sws {
		if err := ctx.Err(); err != nil {
			results = append(results, interrupted(remaining(sws, i), "post_install", err)...)
			break
		}
		start := time.Now()
		err := b.NewSoftwareInstall(sw).PostProcess(ctx)
		results = append(results, result(sw.Name, "post_install", start, len(sw.PostInstall) > 0, err))
	}
	return fold(results), results
}

// Archives extracts every archive below installationDir.
func (b *Batch) Archives(ctx context.Context, archives []manifest.Archive, installationDir string) (int, []logging.EntryResult) {
	var results []logging.EntryResult
	for _, ar := range archives {
		if err := ctx.Err(); err != nil {
			results = append(results, logging.EntryResult{Name: ar.Name, Action: "archive", Status: logging.StatusFailed, Error: err.Error()})
			continue
		}
		start := time.Now()
		err := b.NewArchiveInstall(ar, installationDir).Unarchive(ctx)
		results = append(results, result(ar.Name, "archive", start, true, err))
	}
	return fold(results), results
}
