package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(v float64) *float64 { return &v }

func fullComponents(f, c, l, g, p float64) Components {
	return Components{
		Fluency:       score(f),
		Coherence:     score(c),
		Lexical:       score(l),
		Grammar:       score(g),
		Pronunciation: score(p),
	}
}

func TestOverallIsRoundedMean(t *testing.T) {
	tests := []struct {
		name string
		c    Components
		want float64
	}{
		{"example", fullComponents(7, 7, 6.5, 7, 7.5), 7.0},
		{"half steps", fullComponents(6, 6, 6, 6, 6.5), 6.1},
		{"rounds up", fullComponents(7, 7, 7, 7, 6.8), 7.0},
		{"rounds down", fullComponents(6, 6, 6, 6, 6.2), 6.0},
		{"zeros", fullComponents(0, 0, 0, 0, 0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			overall := tt.c.Overall()
			require.NotNil(t, overall)
			assert.InDelta(t, tt.want, *overall, 1e-9)
		})
	}
}

func TestOverallNilWhenIncomplete(t *testing.T) {
	c := Components{Fluency: score(7), Grammar: score(6)}

	assert.Nil(t, c.Overall())
	assert.False(t, c.Complete())
	assert.Equal(t, []string{"coherence", "lexical", "pronunciation"}, c.Missing())
}

func TestSetComponentsRecomputesOverall(t *testing.T) {
	a := &Assessment{}
	a.SetComponents(fullComponents(7, 7, 6.5, 7, 7.5))
	require.NotNil(t, a.Overall)
	assert.InDelta(t, 7.0, *a.Overall, 1e-9)

	a.SetComponents(a.Components.Merge(Components{Fluency: score(9)}))
	require.NotNil(t, a.Overall)
	assert.InDelta(t, 7.4, *a.Overall, 1e-9)
}

func TestMergeKeepsUnsetValues(t *testing.T) {
	base := Components{Fluency: score(5), Lexical: score(6)}
	merged := base.Merge(Components{Lexical: score(8), Grammar: score(4)})

	assert.Equal(t, 5.0, *merged.Fluency)
	assert.Equal(t, 8.0, *merged.Lexical)
	assert.Equal(t, 4.0, *merged.Grammar)
	assert.Nil(t, merged.Coherence)
}

func TestComponentsValidate(t *testing.T) {
	assert.NoError(t, fullComponents(0, 9, 4.5, 3, 1).Validate())
	assert.Error(t, Components{Fluency: score(9.5)}.Validate())
	assert.Error(t, Components{Grammar: score(-1)}.Validate())
}
