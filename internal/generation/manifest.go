package generation

import (
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"
)

// Manifest 是有序、不可变的预缓存路径列表，每项均以 "/" 开头。
type Manifest []string

// manifestFile 允许清单文件写成纯列表或 {paths: [...]} 两种形式。
type manifestFile struct {
	Paths []string `json:"paths"`
}

// LoadManifest 合并内联配置与清单文件：内联在前，重复项保留首次出现。
func LoadManifest(inline []string, file string) (Manifest, error) {
	entries := append([]string(nil), inline...)

	if strings.TrimSpace(file) != "" {
		fromFile, err := readManifestFile(file)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fromFile...)
	}

	seen := make(map[string]struct{}, len(entries))
	manifest := make(Manifest, 0, len(entries))
	for i, raw := range entries {
		entry := strings.TrimSpace(raw)
		if !strings.HasPrefix(entry, "/") {
			return nil, fmt.Errorf("manifest entry %d (%q) must start with /", i, raw)
		}
		if _, ok := seen[entry]; ok {
			continue
		}
		seen[entry] = struct{}{}
		manifest = append(manifest, entry)
	}
	return manifest, nil
}

func readManifestFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapped manifestFile
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return wrapped.Paths, nil
}

// Len 返回清单条目数。
func (m Manifest) Len() int {
	return len(m)
}
