package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/calehm/vexil/feature"
)

// Catalog descriptor file format:
//
//	{"features": [{"key": "feature::checkout::darkMode", "type": "BOOLEAN"}]}
//
// The descriptor is trusted input, the file-based equivalent of the feature
// declarations an embedding application compiles in. It is NOT the snapshot
// format: it declares what may exist, not what is configured.

type catalogFile struct {
	Features []catalogEntry `json:"features"`
}

type catalogEntry struct {
	Key  string `json:"key"`
	Type string `json:"type"`
}

// LoadCatalog reads a catalog descriptor file and builds the trusted
// catalog from it.
func LoadCatalog(path string) (*feature.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(file.Features) == 0 {
		return nil, fmt.Errorf("catalog %s declares no features", path)
	}

	catalog := feature.NewCatalog()
	for _, entry := range file.Features {
		namespace, key, err := splitWireKey(entry.Key)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", path, err)
		}
		if _, err := catalog.Register(namespace, key, feature.Kind(entry.Type)); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", path, err)
		}
	}
	return catalog, nil
}

func splitWireKey(wireKey string) (namespace, key string, err error) {
	parts := strings.Split(wireKey, "::")
	if len(parts) != 3 || parts[0] != "feature" {
		return "", "", fmt.Errorf("key %q is not of the form feature::<namespace>::<key>", wireKey)
	}
	return parts[1], parts[2], nil
}
