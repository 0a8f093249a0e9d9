package countries

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistry(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)

	for _, c := range reg.All() {
		assert.NotEmpty(t, c.Name)
		assert.True(t, strings.HasPrefix(c.URL, "https://"), "country %s url %q", c.Name, c.URL)
		assert.NotEmpty(t, c.RegisterOptions, "country %s", c.Name)
	}

	madrid, err := reg.Get(4)
	require.NoError(t, err)
	assert.Equal(t, "madrid", madrid.Name)
	assert.True(t, madrid.DarkCaptcha)

	telaviv, err := reg.Get(12)
	require.NoError(t, err)
	assert.False(t, telaviv.DarkCaptcha)

	_, err = reg.Get(999)
	assert.Error(t, err)
	assert.False(t, reg.Has(999))
	assert.True(t, reg.Has(4))
}

func TestCountryURLs(t *testing.T) {
	c := Country{URL: "https://telaviv.kdmid.ru"}
	assert.Equal(t, "https://telaviv.kdmid.ru/queue/orderinfo.aspx", c.OrderInfoURL())
	assert.Equal(t, "https://telaviv.kdmid.ru/queue/", c.RegisterURL())
}

func TestRegisterOption(t *testing.T) {
	r := rand.New(rand.NewSource(3))

	single := Country{RegisterOptions: []int{5}}
	assert.Equal(t, 5, single.RegisterOption(r))

	none := Country{}
	assert.Equal(t, 1, none.RegisterOption(r))

	multi := Country{RegisterOptions: []int{8, 9}}
	for i := 0; i < 20; i++ {
		assert.Contains(t, multi.RegisterOptions, multi.RegisterOption(r))
	}
}

func TestMatchURL(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)

	c, ok := reg.MatchURL("https://madrid.kdmid.ru/queue/orderinfo.aspx?id=1&cd=X")
	require.True(t, ok)
	assert.Equal(t, "madrid", c.Name)

	_, ok = reg.MatchURL("https://unknown.example/queue/")
	assert.False(t, ok)
}
