package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Title string  `json:"title"`
	Score float64 `json:"score"`
	Tags  []int32 `json:"tags"`
}

func TestRoundtrip(t *testing.T) {
	in := sample{Title: "Dune", Score: 0.75, Tags: []int32{1, 2, 3}}

	for _, name := range []string{"json", "go-json"} {
		t.Run(name, func(t *testing.T) {
			c, ok := ByName(name)
			require.True(t, ok)
			assert.Equal(t, name, c.Name())

			data, err := c.Marshal(in)
			require.NoError(t, err)

			var out sample
			require.NoError(t, c.Unmarshal(data, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestCodecsAreWireCompatible(t *testing.T) {
	// Artifacts written by one JSON codec must load under the other, since
	// deployments may switch the configured codec between runs.
	in := sample{Title: "Emma", Score: 1}

	a, _ := ByName("json")
	b, _ := ByName("go-json")

	data, err := a.Marshal(in)
	require.NoError(t, err)
	var out sample
	require.NoError(t, b.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestByNameUnknown(t *testing.T) {
	_, ok := ByName("msgpack")
	assert.False(t, ok)
}
