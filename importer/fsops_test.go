package importer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/production_backend/utils"
)

func TestValidatePathWithinBase(t *testing.T) {
	base := t.TempDir()

	if err := ValidatePathWithinBase(base, filepath.Join(base, "kw35")); err != nil {
		t.Fatalf("subfolder should be allowed: %v", err)
	}
	if err := ValidatePathWithinBase(base, base); err != nil {
		t.Fatalf("root itself should be allowed: %v", err)
	}

	err := ValidatePathWithinBase(base, filepath.Join(base, "..", "etc"))
	if err == nil {
		t.Fatal("expected traversal to be rejected")
	}
	ve, ok := utils.IsValidation(err)
	if !ok || ve.Code != "folder_outside_root" {
		t.Fatalf("expected folder_outside_root validation error, got %v", err)
	}
}

func TestValidateDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := ValidateDirectory(dir); err != nil {
		t.Fatalf("existing directory: %v", err)
	}

	if err := ValidateDirectory(filepath.Join(dir, "missing")); !utils.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}

	file := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := utils.IsValidation(ValidateDirectory(file)); !ok {
		t.Fatal("expected validation error for a plain file")
	}
}

func TestFindCandidateFilesRespectsDepthAndExtension(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel string) {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("KOPF;1001;X\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite("1001-a.txt")
	mustWrite("sub/1002.dat")
	mustWrite("sub/readme.md")
	mustWrite("a/b/c/d/too-deep.txt")

	files, err := FindCandidateFiles(root, 2)
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %v", len(files), files)
	}
}

func TestMoveFolderToArchiveSuffixesOnCollision(t *testing.T) {
	work := t.TempDir()
	archive := filepath.Join(work, "archive")

	makeFolder := func() string {
		src := filepath.Join(work, "staging", "kw35")
		if err := os.MkdirAll(src, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(src, "1001.txt"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		return src
	}

	first, err := MoveFolderToArchive(makeFolder(), archive)
	if err != nil {
		t.Fatalf("first archive: %v", err)
	}
	second, err := MoveFolderToArchive(makeFolder(), archive)
	if err != nil {
		t.Fatalf("second archive: %v", err)
	}
	if first == second {
		t.Fatalf("expected a suffixed target on collision, both were %s", first)
	}
	if _, err := os.Stat(filepath.Join(first, "1001.txt")); err != nil {
		t.Fatalf("archived content missing: %v", err)
	}
}

func TestCopyFileCreatesNestedTarget(t *testing.T) {
	work := t.TempDir()
	src := filepath.Join(work, "1001.txt")
	if err := os.WriteFile(src, []byte("KOPF;1001;X\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(work, "storage", "deep", "1001.txt")
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("copy: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "KOPF;1001;X\n" {
		t.Fatalf("copied content wrong: %q, %v", data, err)
	}

	if err := CopyFile(filepath.Join(work, "missing.txt"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestDeleteDirectoryRemovesTree(t *testing.T) {
	work := t.TempDir()
	dir := filepath.Join(work, "kw35")
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "1001.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := DeleteDirectory(dir); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("directory should be gone")
	}
	if err := DeleteDirectory(dir); err != nil {
		t.Fatalf("deleting an absent directory must be a no-op: %v", err)
	}
}

func TestCopyTreePreservesLayout(t *testing.T) {
	work := t.TempDir()
	src := filepath.Join(work, "src")
	if err := os.MkdirAll(filepath.Join(src, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "sub", "b.txt"), []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(work, "dst")
	if err := copyTree(src, dst); err != nil {
		t.Fatalf("copy tree: %v", err)
	}
	for _, rel := range []string{"a.txt", filepath.Join("sub", "b.txt")} {
		if _, err := os.Stat(filepath.Join(dst, rel)); err != nil {
			t.Fatalf("%s missing in copy: %v", rel, err)
		}
	}
}

func TestExtractDateFromFolderName(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"KW35_2026-08-31_Nord", "2026-08-31"},
		{"Lieferung_31.08.2026", "2026-08-31"},
		{"20260831_sued", "2026-08-31"},
		{"kw35_nord", ""},
	}
	for _, tc := range cases {
		got := ExtractDateFromFolderName(tc.name)
		if tc.want == "" {
			if got != nil {
				t.Fatalf("%s: expected no date, got %v", tc.name, got)
			}
			continue
		}
		want, _ := time.Parse("2006-01-02", tc.want)
		if got == nil || !got.Equal(want) {
			t.Fatalf("%s: expected %s, got %v", tc.name, tc.want, got)
		}
	}
}
