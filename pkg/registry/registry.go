// pkg/registry/registry.go - read-only access to the Windows registry and the
// installed-program index built from the Uninstall keys.

package registry

import (
	"errors"
	"sort"
	"strings"

	"github.com/windowsadmins/provision/pkg/logging"
)

// UninstallPath is the key whose subkeys describe installed programs.
const UninstallPath = `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`

// Hive selects a registry root.
type Hive int

const (
	LocalMachine Hive = iota
	CurrentUser
)

func (h Hive) String() string {
	if h == CurrentUser {
		return "HKCU"
	}
	return "HKLM"
}

// View selects the 64-bit or the 32-bit (WOW6432Node) registry view.
type View int

const (
	View64 View = iota
	View32
)

func (v View) String() string {
	if v == View32 {
		return "32-bit"
	}
	return "64-bit"
}

// Views lists both views in scan order.
var Views = []View{View64, View32}

// Reader is the narrow registry surface the prechecks and resolvers need.
// Missing keys and values are reported as ErrNotExist, never as a panic.
type Reader interface {
	// Values returns the named values of a key rendered as strings. With no
	// names, every value of the key is returned.
	Values(hive Hive, view View, path string, names ...string) (map[string]string, error)
	// SubKeys returns the names of the direct subkeys of a key.
	SubKeys(hive Hive, view View, path string) ([]string, error)
}

// ErrNotExist is returned by readers for keys that do not exist.
var ErrNotExist = errors.New("registry key does not exist")

// KeyValues reads value name from path under HKLM in both views and returns
// the distinct non-empty results, 64-bit view first.
func KeyValues(r Reader, path, name string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, view := range Views {
		vals, err := r.Values(LocalMachine, view, path, name)
		if err != nil {
			continue
		}
		v := vals[name]
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Entry is one installed-program record from an Uninstall subkey.
type Entry struct {
	Hive   Hive
	View   View
	Key    string // full subkey path below the hive
	Values map[string]string
}

// Value returns a value of the entry, "" when absent.
func (e Entry) Value(name string) string {
	return e.Values[name]
}

// Snapshot is the installed-program index for one run. It is built once and
// never refreshed, so every decision in a batch sees the same picture even
// after installers have changed the registry.
type Snapshot struct {
	entries map[string][]Entry
}

// NewSnapshot indexes entries by normalized DisplayName. Entries without a
// DisplayName or DisplayVersion are dropped.
func NewSnapshot(entries []Entry) *Snapshot {
	s := &Snapshot{entries: map[string][]Entry{}}
	for _, e := range entries {
		name, version := e.Value("DisplayName"), e.Value("DisplayVersion")
		if name == "" || version == "" {
			continue
		}
		key := NormalizeName(name)
		s.entries[key] = append(s.entries[key], e)
	}
	return s
}

// BuildSnapshot scans the Uninstall key of HKLM and HKCU in both views. A
// subkey seen in both views of the same hive is recorded once, with the
// values from the 32-bit view.
func BuildSnapshot(r Reader) *Snapshot {
	var entries []Entry
	for _, hive := range []Hive{LocalMachine, CurrentUser} {
		byKey := map[string]Entry{}
		var order []string
		for _, view := range Views {
			subKeys, err := r.SubKeys(hive, view, UninstallPath)
			if err != nil {
				logging.Debug("Uninstall key not readable", "hive", hive.String(), "view", view.String(), "error", err)
				continue
			}
			for _, sub := range subKeys {
				path := UninstallPath + `\` + sub
				vals, err := r.Values(hive, view, path)
				if err != nil || len(vals) == 0 {
					continue
				}
				if _, ok := byKey[path]; !ok {
					order = append(order, path)
				}
				byKey[path] = Entry{Hive: hive, View: view, Key: path, Values: vals}
			}
		}
		for _, path := range order {
			entries = append(entries, byKey[path])
		}
	}
	s := NewSnapshot(entries)
	logging.Debug("Installed-program index built", "programs", s.Len())
	return s
}

// Lookup returns the entries whose normalized DisplayName equals name and
// whose values equal every filter.
func (s *Snapshot) Lookup(name string, filters map[string]string) []Entry {
	if s == nil {
		return nil
	}
	var out []Entry
	for _, e := range s.entries[NormalizeName(name)] {
		if matches(e, filters) {
			out = append(out, e)
		}
	}
	return out
}

func matches(e Entry, filters map[string]string) bool {
	for k, v := range filters {
		if e.Values[k] != v {
			return false
		}
	}
	return true
}

// Len returns the number of indexed records.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, list := range s.entries {
		n += len(list)
	}
	return n
}

// Names returns the normalized names in the index, sorted.
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.entries))
	for n := range s.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NormalizeName drops characters outside printable ASCII, folds case and
// trims surrounding whitespace.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 0x20 && r < 0x7f) || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(strings.ToLower(b.String()))
}
