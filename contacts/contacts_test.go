package contacts

import (
	"testing"

	"github.com/d1nch8g/dialcoach/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	list, err := Load()
	require.NoError(t, err)
	require.Len(t, list, 6)

	counts := map[agent.Difficulty]int{}
	for _, c := range list {
		counts[c.Difficulty]++
		assert.NotEmpty(t, c.Name)
		assert.Len(t, c.Objectives, 3)
	}
	assert.Equal(t, map[agent.Difficulty]int{agent.Easy: 2, agent.Medium: 2, agent.Hard: 2}, counts)
}

func TestFind(t *testing.T) {
	c, err := Find("3")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Emily Chen", c.Name)
	assert.Equal(t, agent.Hard, c.Difficulty)

	_, err = Find("42")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseRejectsBadRosters(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", "contacts: [\n"},
		{"missing id", "contacts:\n  - name: A\n    difficulty: easy\n"},
		{"duplicate id", "contacts:\n  - id: a\n    difficulty: easy\n  - id: a\n    difficulty: hard\n"},
		{"bad difficulty", "contacts:\n  - id: a\n    difficulty: brutal\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}
