// pkg/preflight/preflight.go - checks that must pass before any entry is processed.

package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	perrors "github.com/windowsadmins/provision/pkg/errors"
	"github.com/windowsadmins/provision/pkg/logging"
	"github.com/windowsadmins/provision/pkg/manifest"
	"github.com/windowsadmins/provision/pkg/utils"
)

// RequireAdmin fails unless the process runs elevated.
func RequireAdmin() error {
	if IsAdmin() {
		return nil
	}
	logging.Warn("This installer should be executed with admin privilege")
	return fmt.Errorf("administrator privileges are required")
}

// ValidateInputs checks the paths an offline run depends on: the workspace
// must be an existing absolute directory, and the installers and samples
// directories the manifest names must exist below it.
func ValidateInputs(workspace string, paths manifest.DefaultPaths) error {
	if !filepath.IsAbs(workspace) || !isDir(workspace) {
		return perrors.NewConfigError("workspace",
			fmt.Sprintf("%s is not an existing absolute directory", workspace), nil)
	}

	installers := utils.AbsolutePath(workspace, utils.ExpandEnv(paths.LocalInstallersPath))
	if !isDir(installers) {
		return perrors.NewConfigError("default_paths.local_installers_path",
			fmt.Sprintf("the installer path %s does not exist", installers), nil)
	}
	if paths.SamplesDir != "" {
		samples := utils.AbsolutePath(workspace, utils.ExpandEnv(paths.SamplesDir))
		if !isDir(samples) {
			return perrors.NewConfigError("default_paths.samples_dir",
				fmt.Sprintf("the samples directory %s does not exist", samples), nil)
		}
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
