package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	securejoin "github.com/cyphar/filepath-securejoin"
)

var (
	// ErrNotFound is returned when the requested file does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidPath is returned when a path would escape the branch root.
	ErrInvalidPath = errors.New("invalid file path")
)

// Store materializes per-project, per-branch file trees on local disk.
// Layout: <root>/<projectID>/<branch>/<path>. It is the only component
// that touches branch files; the review state machine and the merge
// coordinator call into it, the presence layer never does.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute storage root directory.
func (s *Store) Root() string { return s.root }

// BranchDir returns the directory holding a branch's file tree.
func (s *Store) BranchDir(projectID uint, branch string) (string, error) {
	if branch == "" {
		return "", ErrInvalidPath
	}
	dir, err := securejoin.SecureJoin(s.projectDir(projectID), branch)
	if err != nil {
		return "", ErrInvalidPath
	}
	return dir, nil
}

func (s *Store) projectDir(projectID uint) string {
	return filepath.Join(s.root, strconv.FormatUint(uint64(projectID), 10))
}

// resolve maps a repository-relative path onto disk, rejecting traversal
// outside the branch root.
func (s *Store) resolve(projectID uint, branch, path string) (string, error) {
	dir, err := s.BranchDir(projectID, branch)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", ErrInvalidPath
	}
	full, err := securejoin.SecureJoin(dir, path)
	if err != nil {
		return "", ErrInvalidPath
	}
	return full, nil
}

// EnsureBranchDir creates the branch directory if it does not exist.
func (s *Store) EnsureBranchDir(projectID uint, branch string) error {
	dir, err := s.BranchDir(projectID, branch)
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// Read returns the content of a file, or ErrNotFound.
func (s *Store) Read(projectID uint, branch, path string) ([]byte, error) {
	full, err := s.resolve(projectID, branch, path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Write stores content at path, creating intermediate directories and
// overwriting any existing file.
func (s *Store) Write(projectID uint, branch, path string, content []byte) error {
	full, err := s.resolve(projectID, branch, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, content, 0o644)
}

// Delete removes a file, or a directory recursively. Deleting a missing
// path returns ErrNotFound.
func (s *Store) Delete(projectID uint, branch, path string) error {
	full, err := s.resolve(projectID, branch, path)
	if err != nil {
		return err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	if info.IsDir() {
		return os.RemoveAll(full)
	}
	return os.Remove(full)
}

// Rename moves a file from oldPath to newPath within the same branch,
// creating intermediate directories for the destination.
func (s *Store) Rename(projectID uint, branch, oldPath, newPath string) error {
	src, err := s.resolve(projectID, branch, oldPath)
	if err != nil {
		return err
	}
	dst, err := s.resolve(projectID, branch, newPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

// Exists reports whether a file or directory exists at path.
func (s *Store) Exists(projectID uint, branch, path string) bool {
	full, err := s.resolve(projectID, branch, path)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

// CopyTree recursively duplicates every file from srcBranch to dstBranch,
// overwriting on path collision. A missing source tree is treated as empty:
// a freshly created branch may have no base content yet. Used both for
// branch creation and for merging.
func (s *Store) CopyTree(projectID uint, srcBranch, dstBranch string) error {
	srcDir, err := s.BranchDir(projectID, srcBranch)
	if err != nil {
		return err
	}
	dstDir, err := s.BranchDir(projectID, dstBranch)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return err
	}

	if _, err := os.Stat(srcDir); os.IsNotExist(err) {
		return nil
	}

	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dstDir, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

// TreeEntry is one node of a branch's file tree listing.
type TreeEntry struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Type     string      `json:"type"` // file, directory
	Size     int64       `json:"size,omitempty"`
	Children []TreeEntry `json:"children,omitempty"`
}

// Tree lists a branch's file tree. Hidden entries (dot-prefixed) are
// skipped. A missing branch directory yields an empty tree.
func (s *Store) Tree(projectID uint, branch string) ([]TreeEntry, error) {
	dir, err := s.BranchDir(projectID, branch)
	if err != nil {
		return nil, err
	}
	return buildTree(dir, "")
}

func buildTree(dir, relBase string) ([]TreeEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []TreeEntry{}, nil
		}
		return nil, err
	}

	tree := make([]TreeEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Name()[0] == '.' {
			continue
		}
		rel := filepath.Join(relBase, entry.Name())
		full := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			children, err := buildTree(full, rel)
			if err != nil {
				return nil, err
			}
			tree = append(tree, TreeEntry{
				Name:     entry.Name(),
				Path:     rel,
				Type:     "directory",
				Children: children,
			})
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		tree = append(tree, TreeEntry{
			Name: entry.Name(),
			Path: rel,
			Type: "file",
			Size: info.Size(),
		})
	}
	return tree, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
