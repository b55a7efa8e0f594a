package snapshot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func touch(t *testing.T, dir string, files ...string) {
	t.Helper()
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0644); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}
}

func TestRequiredFiles(t *testing.T) {
	files := RequiredFiles(DefaultVersion)
	if len(files) != 6 {
		t.Fatalf("RequiredFiles() returned %d files, want 6", len(files))
	}
	for _, f := range files {
		if !strings.HasPrefix(f, DefaultVersion+"-domain") {
			t.Errorf("file %q lacks version prefix", f)
		}
	}
	if got := len(OffsetFiles(DefaultVersion)); got != 2 {
		t.Errorf("OffsetFiles() returned %d files, want 2", got)
	}
}

func TestKnownVersions(t *testing.T) {
	versions := KnownVersions()
	if versions[0] != "cc-main-2024-nov-dec-jan" {
		t.Errorf("newest version = %s", versions[0])
	}
	if !IsKnown(DefaultVersion) {
		t.Error("default version should be known")
	}
	if IsKnown("cc-main-1999") {
		t.Error("unexpected known version")
	}

	versions[0] = "mutated"
	if KnownVersions()[0] == "mutated" {
		t.Error("KnownVersions should return a copy")
	}
}

func TestDownloadURL(t *testing.T) {
	want := "https://data.commoncrawl.org/projects/hyperlinkgraph/cc-main-2024-feb-apr-may/domain/cc-main-2024-feb-apr-may-domain.graph"
	if got := DownloadURL(DefaultVersion, DefaultVersion+"-domain.graph"); got != want {
		t.Errorf("DownloadURL() = %s, want %s", got, want)
	}
	if got := GraphBase("/data", "v"); got != filepath.Join("/data", "v-domain") {
		t.Errorf("GraphBase() = %s", got)
	}
}

func TestCheckArtifacts(t *testing.T) {
	dir := t.TempDir()
	files := RequiredFiles(DefaultVersion)
	touch(t, dir, files[:4]...)

	ok, missing := CheckArtifacts(dir, DefaultVersion)
	if ok {
		t.Error("CheckArtifacts should fail with missing files")
	}
	if len(missing) != 2 || missing[0] != files[4] {
		t.Errorf("missing = %v, want %v", missing, files[4:])
	}

	touch(t, dir, files[4:]...)
	ok, missing = CheckArtifacts(dir, DefaultVersion)
	if !ok || len(missing) != 0 {
		t.Errorf("CheckArtifacts() = %v, %v after all files written", ok, missing)
	}

	ok, _ = CheckOffsets(dir, DefaultVersion)
	if ok {
		t.Error("offsets should be missing")
	}
}

func TestPreflight(t *testing.T) {
	dir := t.TempDir()
	storePath := DefaultStorePath(dir, DefaultVersion)

	r := Preflight(dir, DefaultVersion, storePath, nil)
	if r.Ready() {
		t.Error("empty dir should not be ready")
	}
	if len(r.Missing()) != 8 {
		t.Errorf("Missing() = %d files, want 8", len(r.Missing()))
	}

	// An imported store is enough on its own
	touch(t, dir, filepath.Base(storePath))
	r = Preflight(dir, DefaultVersion, storePath, nil)
	if !r.Ready() {
		t.Errorf("store present should be ready: %+v", r.Checks)
	}
}

func TestFetchSkipsExisting(t *testing.T) {
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	files := RequiredFiles("v1")
	touch(t, dir, files[0])

	f := &Fetcher{URL: func(version, file string) string { return srv.URL + "/" + file }}
	if err := f.Fetch(context.Background(), dir, "v1"); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if len(requested) != 5 {
		t.Errorf("requested %d files, want 5", len(requested))
	}
	ok, missing := CheckArtifacts(dir, "v1")
	if !ok {
		t.Errorf("missing after fetch: %v", missing)
	}
	data, _ := os.ReadFile(filepath.Join(dir, files[1]))
	if string(data) != "payload" {
		t.Errorf("content = %q", data)
	}
}

func TestFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dir := t.TempDir()
	f := &Fetcher{URL: func(version, file string) string { return srv.URL + "/" + file }}
	if err := f.Fetch(context.Background(), dir, "v1"); err == nil {
		t.Fatal("Fetch() should fail on 404")
	}
	if _, err := os.Stat(filepath.Join(dir, RequiredFiles("v1")[0]+".part")); !os.IsNotExist(err) {
		t.Error("partial file should not be left behind")
	}
}
