package data

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergePrecedence(t *testing.T) {
	a := Mapping{"title": "Site", "lang": "en"}
	b := Mapping{"title": "Page", "url": "/"}

	got := Merge(a, b)
	require.Equal(t, "Page", got["title"], "overlay wins on collision")
	require.Equal(t, "en", got["lang"], "base-only keys survive")
	require.Equal(t, "/", got["url"])
}

func TestMergeIdentities(t *testing.T) {
	a := Mapping{"k": 1}
	require.Equal(t, a, Merge(Mapping{}, a))
	require.Equal(t, a, Merge(a, Mapping{}))
	require.Equal(t, a, Merge(nil, a))
	require.Equal(t, a, Merge(a, nil))
	require.Equal(t, Mapping{}, Merge(nil, nil))
}

func TestMergeIsShallow(t *testing.T) {
	a := Mapping{"nav": Mapping{"home": "/", "blog": "/blog"}}
	b := Mapping{"nav": Mapping{"about": "/about"}}

	got := Merge(a, b)
	require.Equal(t, Mapping{"about": "/about"}, got["nav"], "nested mappings are replaced wholesale")
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	a := Mapping{"x": 1}
	b := Mapping{"x": 2, "y": 3}

	got := Merge(a, b)
	got["z"] = 4

	require.Equal(t, Mapping{"x": 1}, a)
	require.Equal(t, Mapping{"x": 2, "y": 3}, b)
}
