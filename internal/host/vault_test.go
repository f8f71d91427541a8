package host

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVaultWriteAndMkdir(t *testing.T) {
	root := t.TempDir()
	v, err := NewVault(root)
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	if err := v.MkdirAll("Zoro/Export"); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := v.WriteFile("Zoro/Export/out.csv", []byte("a,b\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "Zoro", "Export", "out.csv"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "a,b\n" {
		t.Errorf("content = %q", data)
	}
}

func TestVaultCreatesParents(t *testing.T) {
	v, err := NewVault(t.TempDir())
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	if err := v.WriteFile("deep/nested/file.txt", []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestVaultRejectsEscapes(t *testing.T) {
	v, err := NewVault(t.TempDir())
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	for _, path := range []string{
		"",
		"/etc/passwd",
		"..",
		"../outside.txt",
		"a/../../outside.txt",
	} {
		if err := v.WriteFile(path, []byte("x")); err == nil {
			t.Errorf("WriteFile(%q) accepted an escaping path", path)
		}
	}
}

func TestVaultCleansInsideTraversal(t *testing.T) {
	v, err := NewVault(t.TempDir())
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	// dot segments that stay inside the root are fine
	if err := v.WriteFile("a/../b.txt", []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := os.Stat(filepath.Join(v.Root(), "b.txt")); err != nil {
		t.Errorf("cleaned file missing: %v", err)
	}
}
