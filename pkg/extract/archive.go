// pkg/extract/archive.go - unpacking zip archives into installation directories.

package extract

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/windowsadmins/provision/pkg/logging"
	"github.com/windowsadmins/provision/pkg/manifest"
)

// planned maps one archive entry to a path relative to the destination.
type planned struct {
	file *zip.File
	dest string
}

// Unzip extracts src into dest keeping the archive layout. With members only
// the named entries are extracted; a member ending in "/" selects every entry
// below it. force removes dest before extracting.
func Unzip(src, dest string, members []string, force bool) error {
	logging.Info("Unzipping", "archive", src, "destination", dest)
	r, err := open(src, dest, force)
	if err != nil {
		return err
	}
	defer r.Close()

	index := indexFiles(r.File)
	var plan []planned
	if len(members) == 0 {
		for _, f := range r.File {
			plan = append(plan, planned{file: f, dest: f.Name})
		}
	}
	seen := map[string]struct{}{}
	for _, m := range members {
		names, err := expand(r.File, index, m)
		if err != nil {
			return err
		}
		for _, name := range names {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			plan = append(plan, planned{file: index[name], dest: name})
		}
	}

	if err := extractAll(plan, dest); err != nil {
		return err
	}
	logging.Info("Successfully unzipped", "destination", dest, "entries", len(plan))
	return nil
}

// UnzipSkipTopDir extracts src into dest dropping the archive's top-level
// directory. Without members every entry is remapped; otherwise each member
// is remapped on its own, and keep_only_base also drops the member's parent
// directories. Entries that map to the destination itself are skipped.
func UnzipSkipTopDir(src, dest string, members []manifest.ArchiveMember, force bool) error {
	logging.Info("Unzipping without top directory", "archive", src, "destination", dest)
	r, err := open(src, dest, force)
	if err != nil {
		return err
	}
	defer r.Close()

	plan, err := flattenPlan(r.File, members)
	if err != nil {
		return err
	}
	if err := extractAll(plan, dest); err != nil {
		return err
	}
	logging.Info("Successfully unzipped", "destination", dest, "entries", len(plan))
	return nil
}

func open(src, dest string, force bool) (*zip.ReadCloser, error) {
	if force {
		if err := os.RemoveAll(dest); err != nil {
			return nil, fmt.Errorf("failed to clear %s: %w", dest, err)
		}
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", src, err)
	}
	return r, nil
}

func indexFiles(files []*zip.File) map[string]*zip.File {
	index := make(map[string]*zip.File, len(files))
	for _, f := range files {
		index[f.Name] = f
	}
	return index
}

// expand resolves a member to entry names: a directory member selects every
// entry with that prefix, anything else must name an entry exactly.
func expand(files []*zip.File, index map[string]*zip.File, member string) ([]string, error) {
	if strings.HasSuffix(member, "/") {
		var names []string
		for _, f := range files {
			if strings.HasPrefix(f.Name, member) {
				names = append(names, f.Name)
			}
		}
		return names, nil
	}
	if _, ok := index[member]; !ok {
		return nil, fmt.Errorf("archive has no member %q", member)
	}
	return []string{member}, nil
}

// topDir is the first path segment of the first entry, with a trailing slash.
func topDir(files []*zip.File) string {
	if len(files) == 0 {
		return ""
	}
	first, _, found := strings.Cut(files[0].Name, "/")
	if !found {
		return ""
	}
	return first + "/"
}

func flattenPlan(files []*zip.File, members []manifest.ArchiveMember) ([]planned, error) {
	top := topDir(files)
	if len(members) == 0 {
		var plan []planned
		for _, f := range files {
			plan = append(plan, planned{file: f, dest: strings.TrimPrefix(f.Name, top)})
		}
		return plan, nil
	}

	index := indexFiles(files)
	var plan []planned
	for _, m := range members {
		prefix := top
		if m.KeepOnlyBase {
			parent := filepath.ToSlash(filepath.Dir(strings.TrimRight(m.Path, "/")))
			prefix = ""
			if parent != "." {
				prefix = parent + "/"
			}
		}
		names, err := expand(files, index, m.Path)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			plan = append(plan, planned{file: index[name], dest: strings.TrimPrefix(name, prefix)})
		}
	}
	return plan, nil
}

func extractAll(plan []planned, root string) error {
	for _, p := range plan {
		if p.dest == "" || p.dest == "/" {
			continue
		}
		if err := writeEntry(p.file, root, p.dest); err != nil {
			logging.Error("Failed to unzip the file", "entry", p.file.Name, "error", err)
			return err
		}
	}
	return nil
}

// writeEntry writes f to root/rel, refusing paths that escape root.
func writeEntry(f *zip.File, root, rel string) error {
	target := filepath.Join(root, filepath.FromSlash(rel))
	within, err := filepath.Rel(root, target)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return fmt.Errorf("archive entry %q escapes %s", f.Name, root)
	}

	if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
		return os.MkdirAll(target, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	in, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	defer in.Close()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return out.Close()
}
