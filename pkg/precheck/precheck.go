// pkg/precheck/precheck.go - answering "which versions of this software are
// present?" from pluggable evidence sources.

package precheck

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/windowsadmins/provision/pkg/logging"
	"github.com/windowsadmins/provision/pkg/manifest"
	"github.com/windowsadmins/provision/pkg/registry"
	"github.com/windowsadmins/provision/pkg/runner"
	"github.com/windowsadmins/provision/pkg/version"
)

// Environment is the machine state a run decides against. Installed is
// built once at the start of the run and shared by every entry.
type Environment struct {
	Installed      *registry.Snapshot
	Registry       registry.Reader
	Runner         runner.Runner
	VersionTimeout time.Duration
	Exists         func(path string) bool // os.Stat based when nil
}

func (e *Environment) exists(path string) bool {
	if e.Exists != nil {
		return e.Exists(path)
	}
	_, err := os.Stat(path)
	return err == nil
}

// Precheck is one evidence source for one software entry.
type Precheck interface {
	// Kind is the manifest key of the check, e.g. "command_check".
	Kind() string
	// Enabled is true when the check has the parameters it needs to run.
	Enabled() bool
	// VersionsFound returns whether the desired version is present according
	// to this source, and the versions the source observed.
	VersionsFound(ctx context.Context) (bool, []string)
}

// target is the part every check shares.
type target struct {
	name    string
	desired string
	exact   bool
}

func (t target) satisfied(observed []string) bool {
	return version.DesiredSatisfied(t.desired, observed, t.exact)
}

// Result is the aggregate outcome for one entry.
type Result struct {
	Satisfied bool     // every enabled check agreed
	Versions  []string // union of observed versions, sorted, unique
	Enabled   int      // number of checks that ran
}

// Set holds every supported check for one entry.
type Set struct {
	name   string
	checks []Precheck
}

// NewSet instantiates every check kind from the entry's descriptor. A nil
// exactOverride keeps each check's own exact_match; otherwise it replaces it.
func NewSet(name, desired string, checks manifest.Prechecks, env *Environment, exactOverride *bool) *Set {
	exact := func(own bool) target {
		t := target{name: name, desired: desired, exact: own}
		if exactOverride != nil {
			t.exact = *exactOverride
		}
		return t
	}

	s := &Set{name: name}
	if c := checks.Registry; c != nil {
		s.checks = append(s.checks, &Registry{target: exact(c.ExactMatch), check: *c, env: env})
	}
	if c := checks.Command; c != nil {
		s.checks = append(s.checks, &Command{target: exact(c.ExactMatch), check: *c, env: env})
	}
	if c := checks.Directory; c != nil {
		s.checks = append(s.checks, &Directory{target: exact(c.ExactMatch), check: *c, env: env})
	}
	if c := checks.RegistryDir; c != nil {
		s.checks = append(s.checks, &RegistryDir{target: exact(c.ExactMatch), check: *c, env: env})
	}
	if c := checks.RegistryCmd; c != nil {
		s.checks = append(s.checks, &RegistryCmd{target: exact(c.ExactMatch), check: *c, env: env})
	}
	return s
}

// Checks returns the instantiated checks, enabled or not.
func (s *Set) Checks() []Precheck { return s.checks }

// VersionsFound runs the enabled checks. The entry is satisfied only if every
// enabled check is satisfied; observed versions are unioned regardless. With
// no enabled check the entry counts as satisfied, so only a forced run
// installs it.
func (s *Set) VersionsFound(ctx context.Context) Result {
	res := Result{Satisfied: true}
	seen := map[string]struct{}{}
	for _, c := range s.checks {
		if !c.Enabled() {
			continue
		}
		res.Enabled++
		ok, versions := c.VersionsFound(ctx)
		logging.Debug("Precheck evaluated", "software", s.name, "kind", c.Kind(), "satisfied", ok, "versions", versions)
		res.Satisfied = res.Satisfied && ok
		for _, v := range versions {
			if _, dup := seen[v]; !dup {
				seen[v] = struct{}{}
				res.Versions = append(res.Versions, v)
			}
		}
	}
	sort.Strings(res.Versions)
	return res
}
