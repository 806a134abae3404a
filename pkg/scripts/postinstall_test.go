package scripts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/windowsadmins/provision/pkg/errors"
	"github.com/windowsadmins/provision/pkg/manifest"
	"github.com/windowsadmins/provision/pkg/runner"
)

// failing returns a fake that fails every command whose first argument is in bad.
func failing(bad ...string) *runner.Fake {
	set := map[string]bool{}
	for _, b := range bad {
		set[b] = true
	}
	return &runner.Fake{Handler: func(c runner.Command) (runner.Result, error) {
		if set[c.Args[0]] {
			return runner.Result{ExitCode: 1}, &perrors.ExitError{Args: c.Args, Code: 1}
		}
		return runner.Result{Stdout: "ok\n"}, nil
	}}
}

func argsOf(f *runner.Fake) [][]string {
	var out [][]string
	for _, c := range f.Calls {
		out = append(out, c.Args)
	}
	return out
}

func TestHookRunsCommandInWorkspace(t *testing.T) {
	ws := t.TempDir()
	f := failing()
	h := &Hook{PostInstall: manifest.PostInstall{Command: []string{"setx", "PATH", "x"}}, Workspace: ws, Runner: f}

	require.NoError(t, h.Run(context.Background()))
	require.Equal(t, 1, f.Count())
	assert.Equal(t, ws, f.Calls[0].Dir)
}

func TestHookFallback(t *testing.T) {
	f := failing("primary")
	h := &Hook{PostInstall: manifest.PostInstall{
		Command:         []string{"primary", "--a"},
		FallbackCommand: []string{"fallback", "--b"},
	}, Workspace: t.TempDir(), Runner: f}
	require.NoError(t, h.Run(context.Background()))
	assert.Equal(t, [][]string{{"primary", "--a"}, {"fallback", "--b"}}, argsOf(f))

	f = failing("primary", "fallback")
	h.Runner = f
	err := h.Run(context.Background())
	assert.ErrorIs(t, err, perrors.ErrProcessFailed)

	h.FallbackCommand = nil
	f = failing("primary")
	h.Runner = f
	assert.Error(t, h.Run(context.Background()))
	assert.Equal(t, 1, f.Count())
}

func TestHookRunOnFileContents(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "wheels"), 0755))
	for _, name := range []string{"a.whl", "b.whl"} {
		require.NoError(t, os.WriteFile(filepath.Join(ws, "wheels", name), []byte("x"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(ws, "wheels.json"),
		[]byte(`["wheels/a.whl", "  ", "wheels/missing.whl", "wheels/b.whl"]`), 0644))

	f := failing()
	h := &Hook{PostInstall: manifest.PostInstall{
		Command:           []string{"pip", "install"},
		RunOnFileContents: "wheels.json",
	}, Workspace: ws, Runner: f}

	err := h.Run(context.Background())
	require.Error(t, err, "a missing line fails the hook")
	assert.ErrorIs(t, err, perrors.ErrNotFound)
	assert.Equal(t, [][]string{
		{"pip", "install", filepath.Join(ws, "wheels", "a.whl")},
		{"pip", "install", filepath.Join(ws, "wheels", "b.whl")},
	}, argsOf(f), "remaining lines still run")
}

func TestHookMissingContentsFile(t *testing.T) {
	f := failing()
	h := &Hook{PostInstall: manifest.PostInstall{Command: []string{"x"}, RunOnFileContents: "none.json"},
		Workspace: t.TempDir(), Runner: f}
	assert.ErrorIs(t, h.Run(context.Background()), perrors.ErrNotFound)
	assert.Zero(t, f.Count())
}

func TestHookRejectsNonListContents(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "list.json"), []byte(`{"a": 1}`), 0644))
	h := &Hook{PostInstall: manifest.PostInstall{Command: []string{"x"}, RunOnFileContents: "list.json"},
		Workspace: ws, Runner: failing()}
	assert.Error(t, h.Run(context.Background()))
}

func TestRunAllContinuesPastFailures(t *testing.T) {
	f := failing("bad")
	ws := t.TempDir()
	hooks := []*Hook{
		{PostInstall: manifest.PostInstall{Command: []string{"bad"}}, Workspace: ws, Runner: f},
		{PostInstall: manifest.PostInstall{Command: []string{"good"}}, Workspace: ws, Runner: f},
	}
	assert.Error(t, RunAll(context.Background(), hooks))
	assert.Equal(t, 2, f.Count())

	assert.NoError(t, RunAll(context.Background(), hooks[1:]))
}
