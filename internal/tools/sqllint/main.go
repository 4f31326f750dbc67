// Command sqllint checks that every SQL constant carries a unique
// "--sql <uuid>" marker so infra.SQLRunner can attribute its log lines.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlPrefix     = regexp.MustCompile(`(?i)^\s*(--sql\b|select|insert|update|delete|with|create|alter|drop)\b`)
	markerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

func (v violation) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", v.file, v.line, v.message, v.name)
}

// linter remembers markers across files so reuse anywhere in the tree is caught.
type linter struct {
	fset    *token.FileSet
	markers map[string]string
	found   []violation
}

func newLinter() *linter {
	return &linter{fset: token.NewFileSet(), markers: map[string]string{}}
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}

	l := newLinter()
	for _, target := range targets {
		if err := l.walk(target); err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(1)
		}
	}
	if len(l.found) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "sqllint: invalid SQL markers")
	for _, v := range l.found {
		fmt.Fprintf(os.Stderr, "  %s\n", v)
	}
	os.Exit(1)
}

func (l *linter) walk(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		return l.lint(path, nil)
	})
}

// lint parses one file (src overrides reading path, as in parser.ParseFile)
// and records violations for its SQL constants.
func (l *linter) lint(path string, src any) error {
	file, err := parser.ParseFile(l.fset, path, src, 0)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		spec, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for _, value := range spec.Values {
			lit, ok := value.(*ast.BasicLit)
			if !ok || lit.Kind != token.STRING {
				continue
			}
			l.check(path, names(spec.Names), lit)
		}
		return true
	})
	return nil
}

func (l *linter) check(path, name string, lit *ast.BasicLit) {
	text, err := strconv.Unquote(lit.Value)
	if err != nil || !sqlPrefix.MatchString(text) {
		return
	}
	report := func(msg string) {
		l.found = append(l.found, violation{file: path, name: name, line: l.fset.Position(lit.Pos()).Line, message: msg})
	}
	marker := firstLine(text)
	if !markerPattern.MatchString(marker) {
		report("missing or invalid --sql <uuid> marker")
		return
	}
	if prev, seen := l.markers[marker]; seen {
		report("marker already used by " + prev)
		return
	}
	l.markers[marker] = name
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func names(idents []*ast.Ident) string {
	out := make([]string, 0, len(idents))
	for _, ident := range idents {
		out = append(out, ident.Name)
	}
	return strings.Join(out, ",")
}
