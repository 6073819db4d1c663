package local

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vitorbmulford/bsf-api/pkg/config"
)

// Client persists uploaded files on the local filesystem and maps them to
// public URLs served by the static file route.
type Client struct {
	dir        string
	publicBase string
}

// New prepares the upload directory and returns a storage client.
func New(cfg config.UploadsConfig) (*Client, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("uploads dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads dir: %w", err)
	}
	base := strings.TrimRight(cfg.PublicBase, "/")
	if base == "" {
		base = "/uploads"
	}
	return &Client{dir: cfg.Dir, publicBase: base}, nil
}

// Dir returns the filesystem root served as static uploads.
func (c *Client) Dir() string {
	return c.dir
}

// Save writes the reader under folder with a random name and returns the
// public URL. The original filename only contributes its extension.
func (c *Client) Save(folder, originalName string, contents io.Reader) (string, error) {
	folder = sanitizeFolder(folder)
	target := filepath.Join(c.dir, folder)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("creating folder %q: %w", folder, err)
	}

	name := uuid.NewString() + sanitizeExt(originalName)
	fullPath := filepath.Join(target, name)

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, contents); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("writing file: %w", err)
	}

	if folder == "" {
		return fmt.Sprintf("%s/%s", c.publicBase, name), nil
	}
	return fmt.Sprintf("%s/%s/%s", c.publicBase, folder, name), nil
}

// Remove deletes the file referenced by a public URL previously returned by
// Save. Unknown URLs are ignored.
func (c *Client) Remove(publicURL string) error {
	rel, ok := strings.CutPrefix(publicURL, c.publicBase+"/")
	if !ok {
		return nil
	}
	rel = filepath.Clean("/" + rel)
	return removeIgnoreMissing(filepath.Join(c.dir, rel))
}

func removeIgnoreMissing(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func sanitizeFolder(folder string) string {
	folder = strings.Trim(filepath.Clean("/"+folder), "/")
	if folder == "." {
		return ""
	}
	return folder
}

func sanitizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 10 {
		return ""
	}
	for _, r := range ext {
		if r != '.' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
