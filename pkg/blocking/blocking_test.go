package blocking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func staticList(procs ...Proc) Lister {
	return func() ([]Proc, error) { return procs, nil }
}

func TestMatches(t *testing.T) {
	p := Proc{Name: "Code.exe", Exe: `C:\Program Files\Microsoft VS Code\Code.exe`}
	tests := []struct {
		app  string
		want bool
	}{
		{"code.exe", true},
		{"Code", true},
		{"cod", false},
		{"code.EXE ", true},
		{`c:\program files\microsoft vs code\code.exe`, true},
		{`C:\Other\Code.exe`, false},
	}
	for _, tt := range tests {
		t.Run(tt.app, func(t *testing.T) {
			assert.Equal(t, tt.want, matches(tt.app, p))
		})
	}
}

func TestRunningApps(t *testing.T) {
	c := &Checker{List: staticList(
		Proc{Name: "explorer.exe"},
		Proc{Name: "7zFM.exe", Exe: `C:\Program Files\7-Zip\7zFM.exe`},
		Proc{Name: "python.exe"},
	)}
	assert.Equal(t, []string{"7zFM.exe", "python"}, c.RunningApps("7-Zip", []string{"7zFM.exe", "notepad", "python"}))
	assert.Empty(t, c.RunningApps("7-Zip", []string{"notepad.exe"}))
	assert.Nil(t, c.RunningApps("7-Zip", nil))
}

func TestRunningAppsListFailure(t *testing.T) {
	c := &Checker{List: func() ([]Proc, error) { return nil, errors.New("access denied") }}
	assert.Empty(t, c.RunningApps("Git", []string{"git.exe"}))
}
