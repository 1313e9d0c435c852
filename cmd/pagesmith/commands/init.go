package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"git.home.luguber.info/inful/pagesmith/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force    bool `help:"Overwrite existing configuration file"`
	Scaffold bool `help:"Also create an example config, widget, template and page under src/." default:"true" negatable:""`

	out io.Writer `kong:"-"`
}

// scaffoldFiles is the example project written by init.
var scaffoldFiles = map[string]string{
	filepath.Join(config.DefaultConfigPath, "site.yml"): `title: My Site
tagline: Built with pagesmith
`,
	filepath.Join(config.DefaultWidgetsPath, "hero.html"): `<section class="hero">
  <h1>{{ .heading | default .title }}</h1>
  <p>{{ .tagline }}</p>
</section>
`,
	filepath.Join(config.DefaultTemplatesPath, "home.html"): `<!doctype html>
<html>
<head><title>{{ .title }}</title></head>
<body>
{{ .sections_content }}
</body>
</html>
`,
	filepath.Join("src", "pages", "index.yml"): `url: /
template: home
content_sections:
  - widget: hero
    data:
      heading: Welcome
  - markdown: |
      Edit the files under **src/** and run ` + "`pagesmith build`" + `.
`,
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	out := i.out
	if out == nil {
		out = os.Stdout
	}
	_, _ = fmt.Fprintf(out, "Writing configuration to %s\n", root.Config)
	if err := config.Init(root.Config, i.Force); err != nil {
		return err
	}
	if i.Scaffold {
		created, err := scaffold(".")
		if err != nil {
			return err
		}
		for _, path := range created {
			_, _ = fmt.Fprintf(out, "Created %s\n", path)
		}
	}
	_, _ = fmt.Fprintln(out, "initialized successfully")
	return nil
}

// scaffold writes the example project under dir. Existing files are left
// untouched.
func scaffold(dir string) ([]string, error) {
	var created []string
	for _, rel := range sortedScaffold() {
		path := filepath.Join(dir, rel)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return created, fmt.Errorf("stat %s: %w", path, err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return created, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
		}
		// #nosec G306 -- project sources are not secret
		if err := os.WriteFile(path, []byte(scaffoldFiles[rel]), 0o644); err != nil {
			return created, fmt.Errorf("write %s: %w", path, err)
		}
		created = append(created, rel)
	}
	return created, nil
}

func sortedScaffold() []string {
	return slices.Sorted(maps.Keys(scaffoldFiles))
}
