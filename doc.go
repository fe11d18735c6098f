// Package ftl is a FreeMarker Template Language engine for Go.
//
// # Quick Start
//
//	cfg := ftl.NewConfiguration()
//	cfg.AddTemplate("hello.ftl", "Hello ${name}!")
//	tmpl, _ := cfg.GetTemplate("hello.ftl")
//	out, _ := tmpl.Render(map[string]any{"name": "World"})
//	fmt.Println(out) // Hello World!
//
// # Template Syntax
//
//   - Interpolations: ${user.name}
//   - Directives: <#if cond>...<#elseif other>...<#else>...</#if>
//   - Macro calls: <@card title="x">body</@card>
//   - Comments: <#-- ignored -->
//   - Built-ins: ${name?upper_case}, ${items?size}
//   - Defaults: ${missing!"fallback"}, <#if user.email??>
//
// Lines that hold nothing but directives and white-space are removed from
// the output together with their line break.
//
// # Configuration
//
// A Configuration holds the template loader, the shared variables and the
// Settings every render starts with:
//
//	cfg := ftl.NewConfiguration(
//	    ftl.WithLoader(ftl.FileSystemLoader(os.DirFS("templates"))),
//	    ftl.WithLogger(slog.Default()),
//	)
//	cfg.SetSharedVariable("site", "example.org")
//
// Templates named *.ftlh and *.ftlx are auto-escaped as HTML and XML.
//
// # Data Model
//
// Renders accept maps, slices, structs and scalars. ParseDataModel reads a
// YAML or JSON document into a hash that keeps the document's key order.
// XML documents parsed with the xmlnode package can be walked with
// <#visit> and <#recurse>.
//
// # Environments
//
// Template.CreateEnvironment gives access to a single render: settings
// and globals can be changed before Process runs, macros can be called
// from Go and libraries imported.
//
// # Error Handling
//
// All failures are *Error values with an ErrorKind:
//
//	if _, err := tmpl.Render(data); err != nil {
//	    if ftl.IsKind(err, ftl.ErrInvalidReference) {
//	        // a variable was missing
//	    }
//	    fmt.Printf("%+v\n", err) // source snippet, macro stack, variables
//	}
package ftl
