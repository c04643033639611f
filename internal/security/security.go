package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vinodismyname/mfgstats/config"
)

// Manager enforces the filesystem allow-list for dataset reads and export
// writes. Roots are stored as canonical absolute paths.
type Manager struct {
	allowedDirs []string
	allowedExts map[string]struct{}
	exportExts  map[string]struct{}
}

// ErrNotAllowed indicates the requested path is outside the allow-list roots.
var ErrNotAllowed = errors.New("security: path not allowed")

// ErrUnsupportedExtension indicates the requested file extension is not supported.
var ErrUnsupportedExtension = errors.New("security: unsupported file extension")

// ErrNotFound indicates the requested file does not exist or is not accessible.
var ErrNotFound = errors.New("security: file not found")

// ErrExists indicates an export target already exists.
var ErrExists = errors.New("security: file already exists")

// DefaultReadExtensions lists the workbook formats datasets can be loaded from.
var DefaultReadExtensions = []string{".xlsx", ".xlsm", ".xltx", ".xltm"}

// DefaultExportExtensions lists the formats exports may be written as.
var DefaultExportExtensions = []string{".csv", ".json", ".xlsx"}

// NewManager constructs a security manager given an allow-list of directories
// and a list of readable file extensions (case-insensitive, with leading dot).
// Directories are canonicalized (absolute + EvalSymlinks) and validated.
func NewManager(allowDirs []string, allowedExtensions []string) (*Manager, error) {
	if len(allowedExtensions) == 0 {
		allowedExtensions = DefaultReadExtensions
	}
	exts, err := extensionSet(allowedExtensions)
	if err != nil {
		return nil, err
	}
	exportExts, err := extensionSet(DefaultExportExtensions)
	if err != nil {
		return nil, err
	}

	canonical := make([]string, 0, len(allowDirs))
	for _, d := range allowDirs {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		real, err := canonicalDir(d)
		if err != nil {
			return nil, err
		}
		canonical = append(canonical, real)
	}

	return &Manager{allowedDirs: canonical, allowedExts: exts, exportExts: exportExts}, nil
}

// NewManagerFromConfig builds a Manager from MFGSTATS_ALLOWED_DIRS. An empty
// list yields a deny-by-default manager.
func NewManagerFromConfig(cfg *config.Config) (*Manager, error) {
	return NewManager(cfg.AllowedDirs, nil)
}

func extensionSet(list []string) (map[string]struct{}, error) {
	exts := make(map[string]struct{}, len(list))
	for _, e := range list {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || !strings.HasPrefix(e, ".") {
			return nil, fmt.Errorf("security: invalid extension: %q", e)
		}
		exts[e] = struct{}{}
	}
	return exts, nil
}

func canonicalDir(d string) (string, error) {
	abs, err := filepath.Abs(d)
	if err != nil {
		return "", fmt.Errorf("security: resolve abs for %q: %w", d, err)
	}
	// EvalSymlinks so that symlinked roots cannot be used to escape later.
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("security: eval symlinks for %q: %w", abs, err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return "", fmt.Errorf("security: stat %q: %w", real, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("security: allow-list entry is not a directory: %q", real)
	}
	return filepath.Clean(real), nil
}

// AllowedDirectories returns the canonical allow-list roots.
func (m *Manager) AllowedDirectories() []string {
	out := make([]string, len(m.allowedDirs))
	copy(out, m.allowedDirs)
	return out
}

// ValidateConfig returns an error when no allow-list entries are configured.
// File operations stay disabled until an operator provides directories.
func (m *Manager) ValidateConfig() error {
	if len(m.allowedDirs) == 0 {
		return errors.New("security: no allowed directories configured")
	}
	return nil
}

// ValidateOpenPath ensures the input path refers to an existing file with an
// allowed extension inside one of the configured allow-list directories.
// It returns the canonical absolute path suitable for opening.
func (m *Manager) ValidateOpenPath(input string) (string, error) {
	if input == "" {
		return "", ErrNotAllowed
	}
	ext := strings.ToLower(filepath.Ext(input))
	if _, ok := m.allowedExts[ext]; !ok {
		return "", ErrUnsupportedExtension
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("security: abs path: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("security: eval symlinks: %w", err)
	}

	info, err := os.Stat(real)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("security: stat: %w", err)
	}
	if info.IsDir() {
		return "", ErrNotAllowed
	}
	if !m.contained(real) {
		return "", ErrNotAllowed
	}
	return real, nil
}

// ValidateCreatePath checks an export destination: the extension must be an
// export format, the parent directory must exist inside an allow-list root
// and the file itself must not exist yet. It returns the canonical path.
func (m *Manager) ValidateCreatePath(input string) (string, error) {
	if input == "" {
		return "", ErrNotAllowed
	}
	ext := strings.ToLower(filepath.Ext(input))
	if _, ok := m.exportExts[ext]; !ok {
		return "", ErrUnsupportedExtension
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("security: abs path: %w", err)
	}
	parent, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("security: eval symlinks: %w", err)
	}
	target := filepath.Join(parent, filepath.Base(abs))
	if _, err := os.Lstat(target); err == nil {
		return "", ErrExists
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("security: stat: %w", err)
	}
	if !m.contained(target) {
		return "", ErrNotAllowed
	}
	return target, nil
}

// contained reports whether real lies strictly below one of the roots.
func (m *Manager) contained(real string) bool {
	for _, root := range m.allowedDirs {
		rel, err := filepath.Rel(root, real)
		if err != nil || rel == "." || rel == "" {
			continue
		}
		if !strings.HasPrefix(filepath.Clean(rel), "..") {
			return true
		}
	}
	return false
}
