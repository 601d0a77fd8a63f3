package server

import (
	"fmt"
	"strings"

	"github.com/nfrund/modfinder/internal/container"
	"github.com/nfrund/modfinder/internal/module"
	"github.com/nfrund/modfinder/internal/registry"
	"github.com/nfrund/modfinder/internal/router"
	cmp "maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	g "maragu.dev/gomponents/html"
)

type moduleStatus struct {
	Module    module.Module
	Resources module.Resources
}

// statusPage renders the loaded modules, their resources, routes and bindings.
// The body polls itself through htmx so it follows provider changes at runtime.
func statusPage(modules []moduleStatus, reg *registry.Registry) cmp.Node {
	return g.Doctype(
		g.HTML(
			g.Lang("en"),
			g.Head(
				g.Meta(g.Charset("utf-8")),
				g.TitleEl(cmp.Text("Modules")),
				g.Script(g.Src("https://unpkg.com/htmx.org@2.0.4")),
			),
			g.Body(
				g.Class("container mx-auto p-8"),
				g.H1(g.Class("text-2xl font-bold mb-4"), cmp.Text("Modules")),
				g.Div(
					g.ID("modules-status"),
					hx.Get("/_modules"),
					hx.Trigger("every 10s"),
					hx.Swap("innerHTML"),
					statusBody(modules, reg),
				),
			),
		),
	)
}

func statusBody(modules []moduleStatus, reg *registry.Registry) cmp.Node {
	return cmp.Group{
		g.Table(
			g.Class("table-auto mb-8"),
			g.THead(g.Tr(
				g.Th(cmp.Text("Module")),
				g.Th(cmp.Text("Path")),
				g.Th(cmp.Text("Resources")),
			)),
			g.TBody(cmp.Map(modules, func(s moduleStatus) cmp.Node {
				return g.Tr(
					g.Td(cmp.Text(s.Module.Name)),
					g.Td(g.Code(cmp.Text(s.Module.Path))),
					g.Td(cmp.Text(describe(s.Resources))),
				)
			})),
		),
		g.H2(g.Class("text-xl font-bold mb-2"), cmp.Text("Routes")),
		g.Ul(cmp.Map(reg.Router.Routes(), func(r router.Route) cmp.Node {
			return g.Li(g.Code(cmp.Textf("%s %s", r.Method, r.Path)), cmp.Text(" → "+r.Handler))
		})),
		g.H2(g.Class("text-xl font-bold mb-2"), cmp.Text("Bindings")),
		g.Ul(cmp.Map(reg.Container.Bindings(), func(b container.Binding) cmp.Node {
			kind := "bind"
			if b.Shared {
				kind = "singleton"
			}
			return g.Li(g.Code(cmp.Textf("%s → %s", b.Abstract, b.Concrete)), cmp.Text(" ("+kind+")"))
		})),
	}
}

func describe(r module.Resources) string {
	if r.Empty() {
		return "none"
	}
	var parts []string
	if r.Configs > 0 {
		parts = append(parts, fmt.Sprintf("configs(%d)", r.Configs))
	}
	for _, p := range []struct {
		name string
		ok   bool
	}{
		{"helper", r.Helper},
		{"factories", r.Factories},
		{"migrations", r.Migrations},
		{"views", r.Views},
		{"routes", r.Routes != ""},
		{"providers", r.Providers != ""},
		{"di", r.DI != ""},
	} {
		if p.ok {
			parts = append(parts, p.name)
		}
	}
	return strings.Join(parts, ", ")
}
