package generation

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadManifestMergesInlineAndFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "precache.yaml")
	content := "- /static/site.css\n- /audio/intro.mp3\n- /\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	manifest, err := LoadManifest([]string{"/", "/static/app.js"}, file)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	want := Manifest{"/", "/static/app.js", "/static/site.css", "/audio/intro.mp3"}
	if !reflect.DeepEqual(manifest, want) {
		t.Fatalf("unexpected manifest %v", manifest)
	}
}

func TestLoadManifestAcceptsWrappedJSON(t *testing.T) {
	file := filepath.Join(t.TempDir(), "precache.json")
	if err := os.WriteFile(file, []byte(`{"paths": ["/", "/static/site.css"]}`), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	manifest, err := LoadManifest(nil, file)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if manifest.Len() != 2 {
		t.Fatalf("expected 2 entries, got %v", manifest)
	}
}

func TestLoadManifestRejectsRelativeEntry(t *testing.T) {
	if _, err := LoadManifest([]string{"static/site.css"}, ""); err == nil {
		t.Fatalf("relative entries must be rejected")
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	if _, err := LoadManifest(nil, filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("missing manifest file should fail")
	}
}
