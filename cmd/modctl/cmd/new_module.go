package cmd

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/nfrund/modfinder/internal/module"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var scaffoldWith []string

// Scaffold parts, in the order the loader consumes them.
var scaffoldParts = []string{"configs", "helper", "factories", "migrations", "views", "routes", "providers", "di"}

var defaultScaffold = []string{"configs", "helper", "factories", "migrations", "views", "routes", "di"}

// newModuleCmd represents the new command
var newModuleCmd = &cobra.Command{
	Use:   "new <Name>",
	Short: "Scaffold a new module",
	Long: `Creates a module directory under the module root with starter files for the
selected parts. Parts: configs, helper, factories, migrations, views, routes,
providers, di. The providers part lists a provider id the host must Provide.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := scaffoldModule(fsys, rootPath, args[0], scaffoldWith)
		if err != nil {
			return err
		}
		printNextSteps(cmd.OutOrStdout(), args[0], dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(newModuleCmd)
	newModuleCmd.Flags().StringSliceVarP(&scaffoldWith, "with", "w", defaultScaffold, "parts to generate")
}

type scaffoldData struct {
	Name      string
	Namespace string
}

type scaffoldFile struct {
	part string
	path string
	tmpl string
}

// Templates use [[ ]] delimiters so {{ }} survives for views and factory placeholders.
var scaffoldFiles = []scaffoldFile{
	{"configs", "configs/general.yaml", `# [[.Name]] settings, read as [[.Namespace]].general.<key>
enabled: true
per_page: 20
`},
	{"helper", module.HelperFile, `// Globals defined here are shared with every helper loaded after this one.
[[.Namespace]]_title := "[[.Name]]"
`},
	{"factories", "factories/[[.Namespace]].yaml", `name: [[.Namespace]]
table: [[.Namespace]]
attributes:
  id: "{{uuid}}"
  title: "[[.Name]] {{seq}}"
`},
	{"migrations", "migrations/0001_create_[[.Namespace]].surql", `DEFINE TABLE [[.Namespace]] SCHEMALESS;
DEFINE FIELD title ON TABLE [[.Namespace]] TYPE string;
`},
	{"views", "views/index.html", `<h1>{{ helper "[[.Namespace]]_title" }}</h1>
<p>Showing {{ config "[[.Namespace]].general.per_page" }} per page.</p>
`},
	{"routes", "routes.yaml", `prefix: /[[.Namespace]]
routes:
  - method: GET
    path: /
    handler: [[.Namespace]].index
    name: [[.Namespace]].index
`},
	{"providers", "etc/providers.yaml", `- [[.Namespace]]
`},
	{"di", "etc/di.yaml", `# Map abstract ids to concrete ids registered by a provider.
bind: {}
singleton: {}
`},
}

func validateModuleName(name string) error {
	if err := validator.New().Var(name, "required,alphanum"); err != nil {
		return fmt.Errorf("module name %q must be alphanumeric", name)
	}
	if !unicode.IsLetter(rune(name[0])) {
		return fmt.Errorf("module name %q must start with a letter", name)
	}
	return nil
}

func scaffoldModule(fs afero.Fs, root, name string, parts []string) (string, error) {
	if err := validateModuleName(name); err != nil {
		return "", err
	}

	selected := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if !contains(scaffoldParts, p) {
			return "", fmt.Errorf("unknown part %q, expected one of %s", p, strings.Join(scaffoldParts, ", "))
		}
		selected[p] = true
	}

	caser := cases.Title(language.English, cases.NoLower)
	data := scaffoldData{
		Name:      caser.String(name),
		Namespace: module.Namespace(name),
	}

	dir := filepath.Join(root, data.Name)
	exists, err := afero.Exists(fs, dir)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("module directory %s already exists", dir)
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create module directory: %w", err)
	}

	for _, f := range scaffoldFiles {
		if !selected[f.part] {
			continue
		}
		rel, err := render(f.path, data)
		if err != nil {
			return "", err
		}
		content, err := render(f.tmpl, data)
		if err != nil {
			return "", err
		}
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
		}
		if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return dir, nil
}

func render(tmpl string, data scaffoldData) (string, error) {
	t, err := template.New("").Delims("[[", "]]").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func printNextSteps(out io.Writer, name, dir string) {
	ns := module.Namespace(name)
	fmt.Fprintf(out, "Created module %s in %s\n", name, dir)
	fmt.Fprintln(out, "-----------------------------------------------------------------")
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Register a handler named %q with the router from a service provider.\n", ns+".index")
	fmt.Fprintf(out, "  2. If you generated etc/providers.yaml, Provide %q in the server before loading modules.\n", ns)
	fmt.Fprintln(out, "  3. Run 'modctl inspect' to check what the module registers.")
}
