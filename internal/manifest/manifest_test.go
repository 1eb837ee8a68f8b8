package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuildTypesAndDigests(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"trace.mdcap":       "capture bytes",
		"events.jsonl":      "{}\n",
		"report.json":       "{}",
		"report.pdf":        "%PDF-1.4",
		"hash.png":          "\x89PNG",
		"notes.unsupported": "x",
	}
	paths := make([]string, 0, len(files))
	for name, body := range files {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		paths = append(paths, p)
	}

	m, err := Build(paths)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if m.ShaAlgo != "sha256" || len(m.Items) != len(files) {
		t.Fatalf("manifest = %+v", m)
	}
	types := make(map[string]string, len(m.Items))
	for _, item := range m.Items {
		if len(item.Sha256) != 64 {
			t.Fatalf("item %s digest %q", item.Path, item.Sha256)
		}
		if item.Size == 0 {
			t.Fatalf("item %s has zero size", item.Path)
		}
		types[filepath.Base(item.Path)] = item.Type
	}
	want := map[string]string{
		"trace.mdcap":       "mdcap",
		"events.jsonl":      "jsonl",
		"report.json":       "json",
		"report.pdf":        "pdf",
		"hash.png":          "png",
		"notes.unsupported": "other",
	}
	for name, typ := range want {
		if types[name] != typ {
			t.Fatalf("%s type = %q, want %q", name, types[name], typ)
		}
	}
}

func TestBuildMissingFile(t *testing.T) {
	if _, err := Build([]string{filepath.Join(t.TempDir(), "gone.mdcap")}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.json")
	if err := os.WriteFile(src, []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	m, err := Build([]string{src})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	out := filepath.Join(dir, "manifest.json")
	if err := Save(m, out); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
}
