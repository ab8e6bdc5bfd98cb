package importer

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/production_backend/utils"
)

// Filesystem collaborators of the import core. All of these treat invalid
// paths as errors, never as silent no-ops.

func ValidateDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return utils.NewNotFoundError("folder", path)
		}
		return err
	}
	if !info.IsDir() {
		return utils.NewValidationError("not_a_directory", fmt.Sprintf("%s is not a directory", path), nil)
	}
	return nil
}

// ValidatePathWithinBase rejects paths escaping the configured import root,
// including "..", symlink-free lexical traversal.
func ValidatePathWithinBase(base string, path string) error {
	absBase, err := filepath.Abs(filepath.Clean(base))
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return utils.NewValidationError("folder_outside_root",
			fmt.Sprintf("%s lies outside the import root %s", path, base), nil)
	}
	return nil
}

func CopyFile(src string, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// MoveFolderToArchive moves the whole source folder under archiveDir,
// suffixing the target name when a previous archive of the same folder exists.
func MoveFolderToArchive(folderPath string, archiveDir string) (string, error) {
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", err
	}
	target := filepath.Join(archiveDir, filepath.Base(filepath.Clean(folderPath)))
	if _, err := os.Stat(target); err == nil {
		target = fmt.Sprintf("%s_%s", target, time.Now().Format("20060102_150405"))
	}
	if err := os.Rename(folderPath, target); err != nil {
		// The archive dir may live on another filesystem; rename cannot
		// cross it, so fall back to copying the tree and deleting the source.
		if cerr := copyTree(folderPath, target); cerr != nil {
			return "", cerr
		}
		if derr := DeleteDirectory(folderPath); derr != nil {
			return "", derr
		}
	}
	return target, nil
}

func copyTree(src string, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(src, path)
		if rerr != nil {
			return rerr
		}
		if d.IsDir() {
			return os.MkdirAll(filepath.Join(dst, rel), 0o755)
		}
		return CopyFile(path, filepath.Join(dst, rel))
	})
}

func DeleteDirectory(path string) error {
	return os.RemoveAll(path)
}

var candidateExtensions = map[string]bool{
	".txt":  true,
	".csv":  true,
	".dat":  true,
	".xlsx": true,
}

// FindCandidateFiles walks the folder up to maxDepth levels deep and returns
// importable files sorted by path (stable batch order).
func FindCandidateFiles(folderPath string, maxDepth int) ([]string, error) {
	root := filepath.Clean(folderPath)
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			rel, rerr := filepath.Rel(root, path)
			if rerr != nil {
				return rerr
			}
			if rel != "." && strings.Count(rel, string(filepath.Separator))+1 > maxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if candidateExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

var folderDatePatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`), "2006-01-02"},
	{regexp.MustCompile(`(\d{2}\.\d{2}\.\d{4})`), "02.01.2006"},
	{regexp.MustCompile(`(\d{8})`), "20060102"},
}

// ExtractDateFromFolderName pulls a delivery date out of folder names like
// "KW35_2026-08-31_Nord" or "Lieferung_31.08.2026". Returns nil when the name
// carries no recognizable date.
func ExtractDateFromFolderName(name string) *time.Time {
	for _, p := range folderDatePatterns {
		match := p.re.FindString(name)
		if match == "" {
			continue
		}
		t, err := time.Parse(p.layout, match)
		if err != nil {
			continue
		}
		return &t
	}
	return nil
}
