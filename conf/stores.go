package conf

import (
	"io/ioutil"
	"strings"

	"github.com/juju/errors"
	"github.com/pelletier/go-toml"
)

// StoreDef describes one backing store in the stores manifest.
//
// type = "file" stores swap slots in a preallocated file. type = "ram"
// keeps them in an in-memory device, the way compressed ram disks are
// used as first-priority swap targets.
type StoreDef struct {
	Name     string `toml:"name"`
	Type     string `toml:"type"`
	Path     string `toml:"path"`
	SizeMB   int64  `toml:"size_mb"`
	Priority int    `toml:"priority"`
	Mapper   string `toml:"mapper"`
	Label    string `toml:"label"`
	Discard  bool   `toml:"discard"`
}

// StoresManifest 后备存储清单
type StoresManifest struct {
	Store []StoreDef `toml:"store"`
}

// LoadStores reads and validates the TOML stores manifest.
func LoadStores(path string) (*StoresManifest, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "read stores manifest %s", path)
	}

	var manifest StoresManifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Annotatef(err, "parse stores manifest %s", path)
	}

	seen := make(map[string]bool)
	for i := range manifest.Store {
		def := &manifest.Store[i]
		if def.Name == "" {
			return nil, errors.NotValidf("store #%d without name", i)
		}
		if seen[def.Name] {
			return nil, errors.NotValidf("duplicate store name %q", def.Name)
		}
		seen[def.Name] = true

		def.Type = strings.ToLower(def.Type)
		switch def.Type {
		case "file":
			if def.Path == "" {
				return nil, errors.NotValidf("file store %q without path", def.Name)
			}
		case "ram":
			if def.SizeMB <= 0 {
				return nil, errors.NotValidf("ram store %q without size_mb", def.Name)
			}
		default:
			return nil, errors.NotValidf("store %q type %q", def.Name, def.Type)
		}

		if def.Mapper == "" {
			def.Mapper = "identity"
		}
		def.Mapper = strings.ToLower(def.Mapper)
		if def.Mapper != "identity" && def.Mapper != "fibmap" {
			return nil, errors.NotValidf("store %q mapper %q", def.Name, def.Mapper)
		}
	}

	return &manifest, nil
}
