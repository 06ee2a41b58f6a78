package bootstrap

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/internal/constants"
	"github.com/almatool/alma/pkg/schema"
	"github.com/pelletier/go-toml/v2"
)

// WriteManifest encodes m as TOML and writes it to
// rootDir/etc/alma/manifest.toml.
func WriteManifest(rootDir string, m schema.Manifest) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return err
	}
	path := filepath.Join(rootDir, constants.ManifestPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadManifest reads and strictly decodes the manifest at
// rootDir/etc/alma/manifest.toml, used by `alma install` to replay a
// `create` invocation against a new target.
func ReadManifest(rootDir string) (schema.Manifest, error) {
	path := filepath.Join(rootDir, constants.ManifestPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.Manifest{}, &alma.ManifestRead{Path: path, Err: err}
	}

	var m schema.Manifest
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return schema.Manifest{}, &alma.ManifestRead{Path: path, Err: err}
	}
	if m.Schema != constants.ManifestSchema {
		return schema.Manifest{}, &alma.ManifestRead{Path: path, Err: &unsupportedSchemaError{m.Schema}}
	}
	return m, nil
}

type unsupportedSchemaError struct {
	got int
}

func (e *unsupportedSchemaError) Error() string {
	return fmt.Sprintf("unsupported manifest schema version %d", e.got)
}
