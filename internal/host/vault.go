package host

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Vault is a filesystem rooted at a fixed directory. Relative
// slash-separated paths are resolved under the root; anything that
// would escape it is rejected.
type Vault struct {
	root string
}

func NewVault(root string) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("host: resolve vault root: %w", err)
	}
	return &Vault{root: abs}, nil
}

// Root returns the absolute vault root directory
func (v *Vault) Root() string { return v.root }

func (v *Vault) MkdirAll(relPath string) error {
	abs, err := v.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("host: create %s: %w", relPath, err)
	}
	return nil
}

func (v *Vault) WriteFile(relPath string, data []byte) error {
	abs, err := v.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("host: create parent of %s: %w", relPath, err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("host: write %s: %w", relPath, err)
	}
	return nil
}

// resolve maps a vault-relative path to an absolute one, rejecting
// absolute inputs and traversal out of the root
func (v *Vault) resolve(relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("host: empty vault path")
	}
	if filepath.IsAbs(relPath) || strings.HasPrefix(relPath, "/") {
		return "", fmt.Errorf("host: absolute path %q not allowed in vault", relPath)
	}
	cleaned := filepath.Clean(filepath.FromSlash(relPath))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("host: path %q escapes the vault", relPath)
	}
	return filepath.Join(v.root, cleaned), nil
}
