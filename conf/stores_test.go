package conf

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stores.toml")
	assert.NoError(t, ioutil.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadStores(t *testing.T) {
	path := writeManifest(t, `
[[store]]
name = "swapfile0"
type = "file"
path = "/var/lib/xswap/swapfile0"
size_mb = 256
priority = 10
label = "primary"

[[store]]
name = "zram0"
type = "ram"
size_mb = 64
priority = 100
discard = true
`)

	manifest, err := LoadStores(path)
	assert.NoError(t, err)
	assert.Len(t, manifest.Store, 2)

	assert.Equal(t, "swapfile0", manifest.Store[0].Name)
	assert.Equal(t, "file", manifest.Store[0].Type)
	assert.Equal(t, "identity", manifest.Store[0].Mapper)
	assert.Equal(t, int64(256), manifest.Store[0].SizeMB)

	assert.Equal(t, "ram", manifest.Store[1].Type)
	assert.True(t, manifest.Store[1].Discard)
	assert.Equal(t, 100, manifest.Store[1].Priority)
}

func TestLoadStoresRejectsBadDefs(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing name", "[[store]]\ntype = \"ram\"\nsize_mb = 1\n"},
		{"duplicate name", "[[store]]\nname = \"a\"\ntype = \"ram\"\nsize_mb = 1\n[[store]]\nname = \"a\"\ntype = \"ram\"\nsize_mb = 1\n"},
		{"file without path", "[[store]]\nname = \"a\"\ntype = \"file\"\n"},
		{"ram without size", "[[store]]\nname = \"a\"\ntype = \"ram\"\n"},
		{"unknown type", "[[store]]\nname = \"a\"\ntype = \"nvme\"\n"},
		{"unknown mapper", "[[store]]\nname = \"a\"\ntype = \"ram\"\nsize_mb = 1\nmapper = \"fiemap\"\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadStores(writeManifest(t, tc.body))
			assert.True(t, errors.IsNotValid(err), "expected not-valid, got %v", err)
		})
	}
}

func TestLoadStoresMissingFile(t *testing.T) {
	_, err := LoadStores(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
