// pkg/filter/filter.go - Package for restricting a run to named manifest entries

package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	perrors "github.com/windowsadmins/provision/pkg/errors"
	"github.com/windowsadmins/provision/pkg/logging"
	"github.com/windowsadmins/provision/pkg/manifest"
)

// SoftwareFilter holds the --only-software selection.
type SoftwareFilter struct {
	names []string
}

// New creates an empty SoftwareFilter.
func New() *SoftwareFilter {
	return &SoftwareFilter{}
}

// RegisterFlags registers --only-software on fs.
func (f *SoftwareFilter) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringSliceVar(
		&f.names,
		"only-software",
		nil,
		"Process only the named software entries. "+
			"Can be repeated or given as a comma-separated list.",
	)
}

// SetNames allows setting the selection programmatically
func (f *SoftwareFilter) SetNames(names []string) {
	f.names = names
}

// Names returns the current selection.
func (f *SoftwareFilter) Names() []string {
	return f.names
}

// HasFilter returns true if any names are selected
func (f *SoftwareFilter) HasFilter() bool {
	return len(f.names) > 0
}

// Apply returns the selected entries in manifest order. Without a selection
// every entry is returned. Names are matched case-insensitively; a name that
// is not in the manifest is a configuration error.
func (f *SoftwareFilter) Apply(m *manifest.Manifest) ([]manifest.Software, error) {
	if !f.HasFilter() {
		return m.Software, nil
	}

	want := make(map[string]string, len(f.names))
	for _, n := range f.names {
		key := strings.ToLower(strings.TrimSpace(n))
		if key != "" {
			want[key] = n
		}
	}

	var unknown []string
	for key, n := range want {
		if _, ok := m.ByName(key); !ok {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, perrors.NewConfigError("only-software",
			fmt.Sprintf("not in manifest: %s", strings.Join(unknown, ", ")), nil)
	}

	var selected []manifest.Software
	for _, sw := range m.Software {
		if _, ok := want[strings.ToLower(strings.TrimSpace(sw.Name))]; ok {
			selected = append(selected, sw)
		}
	}
	logging.Info("Filtered manifest via --only-software", "selected", len(selected), "total", len(m.Software))
	return selected, nil
}
