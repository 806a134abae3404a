package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareOrdersNumericSegments(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.10", "1.2.9", 1},
		{"1.2.9", "1.2.10", -1},
		{"1.2", "1.2.0", 0},
		{"2.47.1.1", "2.47.1", 1},
		{"1.0.0-beta", "1.0.0", -1},
		{"1.0.0-alpha", "1.0.0-beta", -1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareIsTotalForParsableVersions(t *testing.T) {
	versions := []string{"1", "1.0.1", "1.2.9", "1.2.10", "3.0.0-rc1", "3.0.0", "10.4"}
	for _, a := range versions {
		for _, b := range versions {
			ab, err := Compare(a, b)
			require.NoError(t, err)
			ba, err := Compare(b, a)
			require.NoError(t, err)
			assert.Equal(t, -ab, ba, "%s vs %s", a, b)
		}
	}
}

func TestCompareRejectsGarbage(t *testing.T) {
	_, err := Compare("not a version", "1.0")
	assert.Error(t, err)
}

func TestDesiredSatisfied(t *testing.T) {
	tests := []struct {
		name     string
		desired  string
		observed []string
		exact    bool
		want     bool
	}{
		{"exact present", "1.2.3", []string{"1.2.3"}, true, true},
		{"exact padded", "1.2", []string{"1.2.0"}, true, true},
		{"exact absent", "1.2.3", []string{"1.2.4"}, true, false},
		{"higher accepted", "1.2.3", []string{"1.2.4"}, false, true},
		{"one of many higher", "1.2.3", []string{"0.9", "garbage", "2.0"}, false, true},
		{"all lower", "1.2.3", []string{"1.2.2", "1.1"}, false, false},
		{"empty observed exact", "1.2.3", nil, true, false},
		{"empty observed", "1.2.3", []string{}, false, false},
		{"unparsable observed", "1.2.3", []string{"latest"}, false, false},
		{"unparsable desired", "whatever", []string{"1.0"}, false, false},
		{"empty desired means any", "", []string{"0.1"}, true, true},
		{"empty desired with blank evidence", "", []string{" "}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DesiredSatisfied(tt.desired, tt.observed, tt.exact))
		})
	}
}

func TestAllOlder(t *testing.T) {
	assert.True(t, AllOlder([]string{"1.0", "1.1"}, "2.0"))
	assert.False(t, AllOlder([]string{"1.0", "2.0"}, "2.0"))
	assert.False(t, AllOlder(nil, "2.0"))
	assert.False(t, AllOlder([]string{"1.0", "junk"}, "2.0"))
}
