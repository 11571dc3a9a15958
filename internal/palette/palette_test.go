package palette

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHueIsStable(t *testing.T) {
	assert.Equal(t, 0, Hue(""))
	assert.Equal(t, 97, Hue("a"))
	assert.Equal(t, (97*31+98)%360, Hue("ab"))

	for _, name := range []string{"Food", "Transport", "Salário", strings.Repeat("long category ", 20)} {
		h := Hue(name)
		assert.GreaterOrEqual(t, h, 0, name)
		assert.Less(t, h, 360, name)
		assert.Equal(t, h, Hue(name), "hue must be deterministic for %q", name)
	}
}

func TestPaletteCachesColors(t *testing.T) {
	p := New()
	c := p.For("Food")
	require.True(t, strings.HasPrefix(c, "hsl("))
	assert.Contains(t, c, "70%, 60%)")
	assert.Equal(t, c, p.For("Food"))
	assert.Len(t, p.colors, 1)

	m := p.Map([]string{"Food", "Rent"})
	assert.Len(t, m, 2)
	assert.Equal(t, c, m["Food"])
}

func TestHex(t *testing.T) {
	assert.Equal(t, "e05252", Hex(""))
	assert.Len(t, Hex("Food"), 6)
	assert.Equal(t, Hex("Food"), Hex("Food"))
}
