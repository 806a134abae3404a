package precheck

import (
	"context"

	"github.com/windowsadmins/provision/pkg/manifest"
	"github.com/windowsadmins/provision/pkg/utils"
)

// presentMarker stands in for a version when a path check succeeds for an
// entry that names no target version.
const presentMarker = "present"

// Directory treats the existence of paths as evidence of exactly the desired
// version. It never reads a real version.
type Directory struct {
	target
	check manifest.DirectoryCheck
	env   *Environment
}

// Kind implements Precheck.
func (d *Directory) Kind() string { return "directory_check" }

// Enabled implements Precheck.
func (d *Directory) Enabled() bool { return len(d.check.FilePaths) > 0 }

// Exists applies the any/all rule to the configured paths.
func (d *Directory) Exists() bool {
	if len(d.check.FilePaths) == 0 {
		return false
	}
	for _, p := range d.check.FilePaths {
		ok := d.env.exists(utils.ExpandEnv(p))
		if d.check.AnyPath && ok {
			return true
		}
		if !d.check.AnyPath && !ok {
			return false
		}
	}
	return !d.check.AnyPath
}

// VersionsFound implements Precheck.
func (d *Directory) VersionsFound(context.Context) (bool, []string) {
	if !d.Exists() {
		return false, nil
	}
	marker := d.desired
	if marker == "" {
		marker = presentMarker
	}
	found := []string{marker}
	return d.satisfied(found), found
}
