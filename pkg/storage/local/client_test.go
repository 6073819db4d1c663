package local

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitorbmulford/bsf-api/pkg/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(config.UploadsConfig{
		Dir:        t.TempDir(),
		PublicBase: "/uploads",
	})
	require.NoError(t, err)
	return client
}

func TestSaveReturnsPublicURL(t *testing.T) {
	client := newTestClient(t)

	url, err := client.Save("avatars", "photo.PNG", strings.NewReader("img-bytes"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "/uploads/avatars/"), "unexpected url %s", url)
	assert.True(t, strings.HasSuffix(url, ".png"), "extension should be preserved lowercase: %s", url)

	rel := strings.TrimPrefix(url, "/uploads/")
	data, err := os.ReadFile(filepath.Join(client.Dir(), rel))
	require.NoError(t, err)
	assert.Equal(t, "img-bytes", string(data))
}

func TestSaveDropsSuspiciousExtension(t *testing.T) {
	client := newTestClient(t)

	url, err := client.Save("avatars", "../../etc/passwd%00.sh$", strings.NewReader("x"))
	require.NoError(t, err)
	assert.False(t, strings.Contains(url, ".."), "path traversal must not survive: %s", url)
	assert.False(t, strings.HasSuffix(url, "$"), "unexpected extension kept: %s", url)
}

func TestRemoveDeletesStoredFile(t *testing.T) {
	client := newTestClient(t)

	url, err := client.Save("avatars", "a.jpg", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, client.Remove(url))

	rel := strings.TrimPrefix(url, "/uploads/")
	_, statErr := os.Stat(filepath.Join(client.Dir(), rel))
	assert.True(t, os.IsNotExist(statErr), "file should be gone")

	// Unknown and already-removed URLs are no-ops.
	assert.NoError(t, client.Remove(url))
	assert.NoError(t, client.Remove("https://elsewhere/file.png"))
}
