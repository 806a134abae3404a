//go:build windows

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/windowsadmins/provision/pkg/logging"
	"golang.org/x/sys/windows/registry"
)

// loadFromPolicy overlays values found under HKLM\registryPath onto config.
func loadFromPolicy(registryPath string, config *Configuration) error {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, registryPath, registry.READ)
	if err != nil {
		if err == registry.ErrNotExist {
			return errNoPolicy
		}
		return fmt.Errorf("failed to open policy registry key %s: %w", registryPath, err)
	}
	defer key.Close()

	loadStringFromRegistry(key, "ManifestPath", &config.ManifestPath)
	loadStringFromRegistry(key, "Workspace", &config.Workspace)
	loadStringFromRegistry(key, "InstallationDir", &config.InstallationDir)
	loadStringFromRegistry(key, "LogLevel", &config.LogLevel)

	loadIntFromRegistry(key, "InstallerTimeoutMinutes", &config.InstallerTimeoutMinutes)
	loadIntFromRegistry(key, "DownloadTimeoutMinutes", &config.DownloadTimeoutMinutes)
	loadIntFromRegistry(key, "DownloadRetries", &config.DownloadRetries)
	loadIntFromRegistry(key, "VersionTimeoutSeconds", &config.VersionTimeoutSeconds)

	loadBoolFromRegistry(key, "Online", &config.Online)
	loadBoolFromRegistry(key, "Silent", &config.Silent)
	loadBoolFromRegistry(key, "EventsJSON", &config.EventsJSON)
	loadBoolFromRegistry(key, "AllowInsecureDownloads", &config.AllowInsecureDownloads)

	logging.Debug("Loaded policy configuration", "path", `HKLM\`+registryPath)
	return nil
}

// loadStringFromRegistry loads a string value from registry if it exists.
func loadStringFromRegistry(key registry.Key, valueName string, target *string) {
	if val, _, err := key.GetStringValue(valueName); err == nil && strings.TrimSpace(val) != "" {
		*target = strings.TrimSpace(val)
	}
}

// loadBoolFromRegistry loads a boolean value from registry if it exists.
// Accepts "true"/"false", "1"/"0" and DWORD 1/0.
func loadBoolFromRegistry(key registry.Key, valueName string, target *bool) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.ParseBool(val); parseErr == nil {
			*target = parsed
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = val != 0
	}
}

// loadIntFromRegistry loads an integer value from registry if it exists.
func loadIntFromRegistry(key registry.Key, valueName string, target *int) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.Atoi(val); parseErr == nil {
			*target = parsed
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = int(val)
	}
}
