package errors

import (
	goerrors "errors"
	"fmt"
	"io"
	"maps"
	"path"
	"slices"
	"strings"
)

const (
	ruleWidth     = 79
	contextLines  = 3
	sourceHeading = "Template Source"
)

// DebugInfo is a snapshot of debug information captured during rendering.
type DebugInfo struct {
	TemplateSource string
	// ReferencedVars maps names used near the failing node to the printable
	// form of their value.
	ReferencedVars map[string]string
	// MacroStack lists the active macro calls, innermost first.
	MacroStack []string
}

// writeDetailed prints err followed by the failing expression, a source
// excerpt and the debug info. The causes follow when chain is set.
func writeDetailed(w io.Writer, err *Error, chain bool) {
	io.WriteString(w, err.Error())
	if err.Expr != "" {
		io.WriteString(w, "\n==> "+err.Expr)
	}
	if info := err.DebugInfo; info != nil {
		if info.TemplateSource != "" {
			io.WriteString(w, "\n")
			writeExcerpt(w, err, info.TemplateSource)
		}
		io.WriteString(w, "\n")
		writeMacroStack(w, info.MacroStack)
		writeReferencedVars(w, info.ReferencedVars)
		io.WriteString(w, strings.Repeat("-", ruleWidth))
	}
	if !chain {
		return
	}
	for cause := goerrors.Unwrap(err); cause != nil; cause = goerrors.Unwrap(cause) {
		io.WriteString(w, "\n\ncaused by: ")
		if next, ok := cause.(*Error); ok {
			writeDetailed(w, next, false)
		} else {
			io.WriteString(w, cause.Error())
		}
	}
}

// writeExcerpt prints the failing line of src with a few lines around it
// and marks the span with carets when it fits on one line.
func writeExcerpt(w io.Writer, err *Error, src string) {
	fmt.Fprintln(w, banner(" "+baseName(err.Name)+" "))

	lines := strings.Split(src, "\n")
	at := 0
	if sp := err.Span; sp != nil && sp.StartLine > 0 {
		at = min(int(sp.StartLine)-1, len(lines)-1)
	}
	first := max(at-contextLines, 0)
	last := min(at+contextLines, len(lines)-1)
	for i := first; i <= last; i++ {
		marker := '|'
		if i == at {
			marker = '>'
		}
		fmt.Fprintf(w, "%4d %c %s\n", i+1, marker, lines[i])
		if i == at && err.Span != nil && err.Span.StartLine == err.Span.EndLine {
			width := 1
			if err.Span.EndCol > err.Span.StartCol {
				width = int(err.Span.EndCol - err.Span.StartCol)
			}
			fmt.Fprintf(w, "     i %*s%s %s\n", int(err.Span.StartCol), "", strings.Repeat("^", width), err.Kind)
		}
	}
	io.WriteString(w, strings.Repeat("~", ruleWidth))
}

func writeMacroStack(w io.Writer, stack []string) {
	if len(stack) == 0 {
		return
	}
	io.WriteString(w, "Macro stack:\n")
	for _, frame := range stack {
		io.WriteString(w, "    - "+frame+"\n")
	}
}

func writeReferencedVars(w io.Writer, vars map[string]string) {
	if len(vars) == 0 {
		io.WriteString(w, "No referenced variables\n")
		return
	}
	io.WriteString(w, "Referenced variables:\n")
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		io.WriteString(w, "    "+name+": "+vars[name]+"\n")
	}
}

func baseName(name string) string {
	name = strings.TrimRight(strings.ReplaceAll(name, "\\", "/"), "/")
	if name == "" {
		return sourceHeading
	}
	return path.Base(name)
}

// banner centers title in a rule of dashes.
func banner(title string) string {
	pad := ruleWidth - len(title)
	if pad <= 0 {
		return title
	}
	return strings.Repeat("-", pad/2) + title + strings.Repeat("-", pad-pad/2)
}
