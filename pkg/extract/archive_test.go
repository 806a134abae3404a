package extract

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/provision/pkg/manifest"
)

// makeZip writes an archive whose entries are added in the given order.
// Names ending in "/" become directory entries.
func makeZip(t *testing.T, entries ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for _, name := range entries {
		fw, err := w.Create(name)
		require.NoError(t, err)
		if name[len(name)-1] != '/' {
			_, err = fw.Write([]byte("content of " + name))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func assertFile(t *testing.T, path, entry string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, path)
	assert.Equal(t, "content of "+entry, string(data))
}

var pkgroot = []string{
	"pkgroot/",
	"pkgroot/bin/",
	"pkgroot/bin/tool.exe",
	"pkgroot/lib/",
	"pkgroot/lib/core.dll",
	"pkgroot/README.txt",
}

func TestUnzipSkipTopDirFlattens(t *testing.T) {
	src := makeZip(t, pkgroot...)
	dest := filepath.Join(t.TempDir(), "out")

	require.NoError(t, UnzipSkipTopDir(src, dest, nil, false))
	assertFile(t, filepath.Join(dest, "bin", "tool.exe"), "pkgroot/bin/tool.exe")
	assertFile(t, filepath.Join(dest, "lib", "core.dll"), "pkgroot/lib/core.dll")
	assertFile(t, filepath.Join(dest, "README.txt"), "pkgroot/README.txt")
	assert.NoDirExists(t, filepath.Join(dest, "pkgroot"))
}

func TestUnzipSkipTopDirWithoutDirectoryEntries(t *testing.T) {
	src := makeZip(t, "pkgroot/bin/tool.exe", "pkgroot/README.txt")
	dest := t.TempDir()
	require.NoError(t, UnzipSkipTopDir(src, dest, nil, false))
	assertFile(t, filepath.Join(dest, "bin", "tool.exe"), "pkgroot/bin/tool.exe")
}

func TestUnzipSkipTopDirMembers(t *testing.T) {
	src := makeZip(t, pkgroot...)
	dest := t.TempDir()

	members := []manifest.ArchiveMember{
		{Path: "pkgroot/lib/"},
		{Path: "pkgroot/bin/tool.exe", KeepOnlyBase: true},
	}
	require.NoError(t, UnzipSkipTopDir(src, dest, members, false))
	assertFile(t, filepath.Join(dest, "lib", "core.dll"), "pkgroot/lib/core.dll")
	assertFile(t, filepath.Join(dest, "tool.exe"), "pkgroot/bin/tool.exe")
	assert.NoFileExists(t, filepath.Join(dest, "README.txt"))
	assert.NoDirExists(t, filepath.Join(dest, "bin"))
}

func TestUnzipSkipTopDirUnknownMember(t *testing.T) {
	src := makeZip(t, pkgroot...)
	err := UnzipSkipTopDir(src, t.TempDir(), []manifest.ArchiveMember{{Path: "pkgroot/missing.exe"}}, false)
	assert.Error(t, err)
}

func TestUnzipPreservesLayout(t *testing.T) {
	src := makeZip(t, pkgroot...)
	dest := t.TempDir()
	require.NoError(t, Unzip(src, dest, nil, false))
	assertFile(t, filepath.Join(dest, "pkgroot", "bin", "tool.exe"), "pkgroot/bin/tool.exe")
}

func TestUnzipMembers(t *testing.T) {
	src := makeZip(t, pkgroot...)
	dest := t.TempDir()
	require.NoError(t, Unzip(src, dest, []string{"pkgroot/lib/", "pkgroot/README.txt", "pkgroot/lib/core.dll"}, false))
	assertFile(t, filepath.Join(dest, "pkgroot", "lib", "core.dll"), "pkgroot/lib/core.dll")
	assertFile(t, filepath.Join(dest, "pkgroot", "README.txt"), "pkgroot/README.txt")
	assert.NoDirExists(t, filepath.Join(dest, "pkgroot", "bin"))
}

func TestUnzipForceClearsDestination(t *testing.T) {
	src := makeZip(t, pkgroot...)
	dest := t.TempDir()
	stale := filepath.Join(dest, "stale.txt")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))

	require.NoError(t, Unzip(src, dest, nil, false))
	assert.FileExists(t, stale)

	require.NoError(t, Unzip(src, dest, nil, true))
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(dest, "pkgroot", "README.txt"))
}

func TestUnzipRejectsTraversal(t *testing.T) {
	src := makeZip(t, "../evil.txt")
	dest := filepath.Join(t.TempDir(), "out")
	err := Unzip(src, dest, nil, false)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dest), "evil.txt"))
}

func TestUnzipMissingArchive(t *testing.T) {
	assert.Error(t, Unzip(filepath.Join(t.TempDir(), "none.zip"), t.TempDir(), nil, false))
}
