package pipeline

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	siteerrors "git.home.luguber.info/inful/pagesmith/internal/errors"
)

func TestAbortKindsMatchFatalErrors(t *testing.T) {
	fatal := map[FailureKind]error{
		FailDuplicateURL:    siteerrors.DuplicateURL("/a", "a.yml"),
		FailMissingTemplate: siteerrors.MissingTemplate("a.yml"),
		FailWidgetCompile:   siteerrors.WidgetCompile("w", errors.New("bad")),
	}
	for kind, err := range fatal {
		require.Equal(t, ActionAbort, ActionFor(kind), kind)
		require.True(t, siteerrors.IsFatal(err), kind)
	}

	require.False(t, siteerrors.IsFatal(siteerrors.RenderFailed("a.yml", errors.New("x"))))
	require.Equal(t, ActionContinue, ActionFor(FailRender))
	require.Equal(t, ActionSkipPage, ActionFor(FailMissingURL))
	require.Equal(t, ActionAbort, ActionFor("something_new"))
}

func TestParsePolicy(t *testing.T) {
	got, err := ParsePolicy(map[string]string{"render": "abort", "unknown_widget": "continue"})
	require.NoError(t, err)
	require.Equal(t, map[FailureKind]Action{FailRender: ActionAbort, FailUnknownWidget: ActionContinue}, got)

	got, err = ParsePolicy(nil)
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = ParsePolicy(map[string]string{"nonsense": "abort"})
	require.True(t, siteerrors.IsCategory(err, siteerrors.CategoryValidation))

	_, err = ParsePolicy(map[string]string{"render": "ignore"})
	require.True(t, siteerrors.IsCategory(err, siteerrors.CategoryValidation))
}

func TestOutputPath(t *testing.T) {
	root := filepath.FromSlash("/srv/dist")
	cases := map[string]string{
		"/":           "/srv/dist/index.html",
		"":            "/srv/dist/index.html",
		"/about":      "/srv/dist/about/index.html",
		"about":       "/srv/dist/about/index.html",
		"//docs/api/": "/srv/dist/docs/api/index.html",
	}
	for url, want := range cases {
		got, err := OutputPath(root, url)
		require.NoError(t, err, url)
		require.Equal(t, filepath.FromSlash(want), got, url)
	}

	for _, url := range []string{"/../etc", "../x", "/a/../../b"} {
		_, err := OutputPath(root, url)
		require.ErrorIs(t, err, ErrOutsideExport, url)
	}
}

func TestPagesDirs(t *testing.T) {
	require.Nil(t, pagesDirs(nil))
	require.Equal(t, []string{"pages"}, pagesDirs("pages"))
	require.Equal(t, []string{"a", "b"}, pagesDirs([]any{"a", nil, "b"}))
	require.Nil(t, pagesDirs(map[string]any{"x": 1}))
}

func TestNewPage(t *testing.T) {
	p := NewPage("a.yml", map[string]any{"url": "/a", "template": "home", "content_sections": []any{}})
	require.Equal(t, "/a", p.URL)
	require.Equal(t, "home", p.Template)
	require.True(t, p.HasSections())
	require.Equal(t, StateParsed, p.State)

	empty := NewPage("b.yml", nil)
	require.Empty(t, empty.URL)
	require.False(t, empty.HasSections())
}

func TestPageTitle(t *testing.T) {
	require.Equal(t, "Hello", pageTitle("<html><head><title>Hello</title></head></html>"))
	require.Equal(t, "", pageTitle("<p>no title</p>"))
}
