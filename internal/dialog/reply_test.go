package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildKeyboard(t *testing.T) {
	tests := []struct {
		name        string
		options     []string
		itemsPerRow int
		backLabel   string
		want        [][]string
	}{
		{
			name:        "five options one per row with back",
			options:     []string{"a", "b", "c", "d", "e"},
			itemsPerRow: 1,
			backLabel:   "Back",
			want:        [][]string{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}, {"Back"}},
		},
		{
			name:        "two per row uneven tail",
			options:     []string{"a", "b", "c"},
			itemsPerRow: 2,
			want:        [][]string{{"a", "b"}, {"c"}},
		},
		{
			name:        "no back label adds no row",
			options:     []string{"a"},
			itemsPerRow: 1,
			want:        [][]string{{"a"}},
		},
		{
			name:      "only back label",
			backLabel: "Cancel",
			want:      [][]string{{"Cancel"}},
		},
		{
			name:        "zero items per row treated as one",
			options:     []string{"a", "b"},
			itemsPerRow: 0,
			want:        [][]string{{"a"}, {"b"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := BuildKeyboard(tc.options, tc.itemsPerRow, tc.backLabel)
			assert.Equal(t, tc.want, got)

			if tc.backLabel != "" {
				assert.Equal(t, []string{tc.backLabel}, got[len(got)-1])
			}
		})
	}
}
