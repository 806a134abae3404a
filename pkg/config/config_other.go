//go:build !windows

package config

// loadFromPolicy has no policy store outside Windows.
func loadFromPolicy(string, *Configuration) error {
	return errNoPolicy
}
