package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLintFlagsMissingAndReusedMarkers(t *testing.T) {
	src := "package q\n\n" +
		"const QOk = `--sql 6ec4a469-1444-41f5-a523-087bb63da944\nselect 1;`\n\n" +
		"const QMissing = `select token from api_credentials;`\n\n" +
		"const QDDL = `create table t (id int);`\n\n" +
		"const QDup = `--sql 6ec4a469-1444-41f5-a523-087bb63da944\ndelete from t;`\n\n" +
		"const Plain = \"hello world\"\n"

	l := newLinter()
	if err := l.lint("q.go", src); err != nil {
		t.Fatalf("lint returned error: %v", err)
	}
	got := map[string]string{}
	for _, v := range l.found {
		got[v.name] = v.message
	}
	if len(got) != 3 {
		t.Fatalf("violations = %+v, want 3", l.found)
	}
	for _, name := range []string{"QMissing", "QDDL", "QDup"} {
		if _, ok := got[name]; !ok {
			t.Fatalf("expected violation for %s, got %+v", name, l.found)
		}
	}
	if got["QDup"] != "marker already used by QOk" {
		t.Fatalf("QDup message = %q", got["QDup"])
	}
}

func TestWalkSkipsTestsAndHiddenDirs(t *testing.T) {
	root := t.TempDir()
	bad := "package q\n\nconst Q = `select 1;`\n"
	write := func(rel string) {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("q.go")
	write("q_test.go")
	write(".cache/q.go")
	write("_examples/q.go")

	l := newLinter()
	if err := l.walk(root); err != nil {
		t.Fatalf("walk returned error: %v", err)
	}
	if len(l.found) != 1 || filepath.Base(l.found[0].file) != "q.go" {
		t.Fatalf("violations = %+v, want one in q.go", l.found)
	}
}
