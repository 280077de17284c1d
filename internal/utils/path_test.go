package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePath(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	type tc struct {
		name    string
		input   string
		want    string
		wantErr bool
	}
	absSource := filepath.Join(t.TempDir(), "source")
	tests := []tc{
		{name: "empty argument", input: "", wantErr: true},
		{name: "replica dir relative to cwd", input: "data/replica", want: filepath.Join(cwd, "data", "replica")},
		{name: "absolute source dir", input: absSource, want: absSource},
		{name: "log path with parent hops", input: "staging/../current/mirror.log", want: filepath.Join(cwd, "current", "mirror.log")},
	}
	if home, err := os.UserHomeDir(); err == nil {
		tests = append(tests, tc{name: "home anchored path", input: "~/mirror", want: filepath.Join(home, "mirror")})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePath(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ResolvePath(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolvePath(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ResolvePath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEnsureDir(t *testing.T) {
	root := t.TempDir()

	nested := filepath.Join(root, "a", "b", "c")
	if err := EnsureDir(nested); err != nil {
		t.Fatalf("EnsureDir(%q) error = %v", nested, err)
	}
	if !DirExists(nested) {
		t.Fatalf("EnsureDir(%q) did not create the directory", nested)
	}

	// idempotent on an existing directory
	if err := EnsureDir(nested); err != nil {
		t.Errorf("EnsureDir(%q) on existing dir error = %v", nested, err)
	}

	// refuses a path occupied by a regular file
	file := filepath.Join(root, "occupied")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDir(file); err == nil {
		t.Errorf("EnsureDir(%q) on a file, want error", file)
	}
}

func TestEnsureParent(t *testing.T) {
	root := t.TempDir()

	path := filepath.Join(root, "logs", "run.log")
	if err := EnsureParent(path); err != nil {
		t.Fatalf("EnsureParent(%q) error = %v", path, err)
	}
	if !DirExists(filepath.Join(root, "logs")) {
		t.Fatalf("EnsureParent(%q) did not create the parent directory", path)
	}
}

func TestDirExists(t *testing.T) {
	root := t.TempDir()

	file := filepath.Join(root, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !DirExists(root) {
		t.Errorf("DirExists(%q) = false, want true", root)
	}
	if DirExists(file) {
		t.Errorf("DirExists(%q) = true, want false", file)
	}
	if DirExists(filepath.Join(root, "missing")) {
		t.Errorf("DirExists on missing path = true, want false")
	}
}
