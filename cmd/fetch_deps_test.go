package cmd

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/schollz/progressbar/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalConditions(t *testing.T) {
	vars := map[string]string{
		"linux":   "true",
		"VERSION": "1.2.3",
	}

	meta := depSpec{
		URL:       "https://example.org/tool-{VERSION}.zip",
		Condition: "linux",
	}
	assert.True(t, evalConditions(&meta, vars))
	assert.Equal(t, "https://example.org/tool-1.2.3.zip", meta.URL)

	meta = depSpec{Condition: "windows"}
	assert.False(t, evalConditions(&meta, vars))

	meta = depSpec{Rejections: "linux"}
	assert.False(t, evalConditions(&meta, vars))

	meta = depSpec{Condition: "linux", Rejections: "windows"}
	assert.True(t, evalConditions(&meta, vars))

	// unknown placeholders resolve to an empty string
	meta = depSpec{URL: "https://example.org/{MISSING}.zip"}
	assert.True(t, evalConditions(&meta, vars))
	assert.Equal(t, "https://example.org/.zip", meta.URL)
}

func TestApplyChecksumChanges(t *testing.T) {
	cfgData := `deps:
  ninja:
    url: https://example.org/ninja.zip
    sha256: aaaa
  upx:
    url: https://example.org/upx.tar.xz
`
	cfg := depConfig{Deps: map[string]depSpec{
		"ninja": {Sha256: "aaaa"},
		"upx":   {},
	}}

	generated, err := applyChecksumChanges(cfgData, cfg, map[string]string{"ninja": "bbbb"})
	require.NoError(t, err)
	assert.Contains(t, generated, "sha256: bbbb")
	assert.NotContains(t, generated, "sha256: aaaa")

	// entries without a checksum get one inserted right below their name
	generated, err = applyChecksumChanges(cfgData, cfg, map[string]string{"upx": "cccc"})
	require.NoError(t, err)
	assert.Contains(t, generated, "upx:\n    sha256: cccc\n")

	_, err = applyChecksumChanges(cfgData, cfg, map[string]string{"ghost": "dddd"})
	require.Error(t, err)
}

func TestGetExtractor(t *testing.T) {
	for _, url := range []string{"a.zip", "a.tar.gz", "a.tar.bz2", "a.tar.xz"} {
		extractor, err := getExtractor(url)
		require.NoErrorf(t, err, "extractor for %s", url)
		assert.NotNil(t, extractor)
	}

	_, err := getExtractor("a.rar")
	require.Error(t, err)
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "DEPS.yml")
	stampPath := filepath.Join(dir, "DEPS.stamps")

	manifest := `vars:
  VERSION: "1.0"

deps:
  tool:
    url: https://example.org/tool-{VERSION}.zip
    dest: third_party/tool
    sha256: ffff
`
	require.NoError(t, ioutil.WriteFile(manifestPath, []byte(manifest), 0600))

	cfg, cfgData, stamps, err := loadManifest(manifestPath, stampPath)
	require.NoError(t, err)
	assert.Equal(t, manifest, cfgData)
	assert.Equal(t, "1.0", cfg.Vars["VERSION"])
	require.Contains(t, cfg.Deps, "tool")
	assert.Equal(t, "third_party/tool", cfg.Deps["tool"].Dest)
	assert.Empty(t, stamps)

	require.NoError(t, ioutil.WriteFile(stampPath, []byte(`{"tool":"a#b"}`), 0600))

	_, _, stamps, err = loadManifest(manifestPath, stampPath)
	require.NoError(t, err)
	assert.Equal(t, "a#b", stamps["tool"])
}

func buildTarArchive(t *testing.T, dir string) *os.File {
	t.Helper()

	hdl, err := ioutil.TempFile(dir, "archive")
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, hdl.Close())
	})

	writer := tar.NewWriter(hdl)
	content := []byte("#!/bin/sh\n")
	require.NoError(t, writer.WriteHeader(&tar.Header{Name: "pkg/app", Mode: 0755, Size: int64(len(content))}))
	_, err = writer.Write(content)
	require.NoError(t, err)

	require.NoError(t, writer.WriteHeader(&tar.Header{Name: "pkg/link", Typeflag: tar.TypeSymlink, Linkname: "app"}))
	require.NoError(t, writer.WriteHeader(&tar.Header{Name: "pkg/null", Typeflag: tar.TypeChar}))
	require.NoError(t, writer.Close())

	_, err = hdl.Seek(0, io.SeekStart)
	require.NoError(t, err)
	return hdl
}

func TestExtractTarEntryTypes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs elevated permissions on Windows")
	}

	root := t.TempDir()
	hdl := buildTarArchive(t, root)

	stat, err := hdl.Stat()
	require.NoError(t, err)

	bar := progressbar.NewOptions64(stat.Size(), progressbar.OptionSetVisibility(false))
	require.NoError(t, extractTar(hdl, hdl, bar, root, depSpec{Dest: "third_party/pkg", Strip: 1}))

	dest := filepath.Join(root, "third_party", "pkg")
	content, err := ioutil.ReadFile(filepath.Join(dest, "app"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(content))

	info, err := os.Lstat(filepath.Join(dest, "link"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink)

	// entry types are plain enum values; a character device shares bits with
	// the symlink flag but has to come out as an ordinary file
	info, err = os.Lstat(filepath.Join(dest, "null"))
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())
}

func TestOpenExtractorDestRejectsTraversal(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "third_party", "tool")

	_, _, err := openExtractorDest(dest, "../../evil.txt", depSpec{})
	require.Error(t, err)

	// stripping leading elements must not expose later .. segments either
	_, _, err = openExtractorDest(dest, "../../evil.txt", depSpec{Strip: 1})
	require.Error(t, err)

	hdl, path, err := openExtractorDest(dest, "pkg/safe.txt", depSpec{})
	require.NoError(t, err)
	require.NotNil(t, hdl)
	assert.NoError(t, hdl.Close())
	assert.Equal(t, filepath.Join(dest, "pkg", "safe.txt"), path)
}

func buildToolZip(t *testing.T) []byte {
	t.Helper()

	payload := bytes.Buffer{}
	writer := zip.NewWriter(&payload)
	entry, err := writer.Create("bin/tool")
	require.NoError(t, err)
	_, err = entry.Write([]byte("#!/bin/sh\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return payload.Bytes()
}

func TestDownloadAndExtract(t *testing.T) {
	root := t.TempDir()
	archive := buildToolZip(t)
	digest := sha256.Sum256(archive)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write(archive)
		assert.NoError(t, err)
	}))
	defer server.Close()

	url := server.URL + "/tool.zip"
	cfg := depConfig{
		Vars: map[string]string{},
		Deps: map[string]depSpec{
			"tool": {
				URL:      url,
				Dest:     "third_party/tool",
				Sha256:   hex.EncodeToString(digest[:]),
				Strip:    1,
				MarkExec: []string{"tool"},
			},
		},
	}

	stamps := map[string]string{}
	manifestPath := filepath.Join(root, "DEPS.yml")
	require.NoError(t, downloadAndExtract(cfg, "", stamps, root, manifestPath, false))

	extracted := filepath.Join(root, "third_party", "tool", "tool")
	content, err := ioutil.ReadFile(extracted)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(content))
	assert.Equal(t, url+"#"+cfg.Deps["tool"].Sha256, stamps["tool"])

	if runtime.GOOS != "windows" {
		info, err := os.Stat(extracted)
		require.NoError(t, err)
		assert.NotZero(t, info.Mode()&0100)
	}

	bad := depConfig{
		Vars: map[string]string{},
		Deps: map[string]depSpec{
			"tool": {URL: url, Dest: "third_party/tool2", Sha256: "00"},
		},
	}
	err = downloadAndExtract(bad, "", map[string]string{}, root, manifestPath, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Checksum mismatch")

	// entries with a matching stamp and an existing destination are skipped,
	// so a second run succeeds even once the server is gone
	server.Close()
	require.NoError(t, downloadAndExtract(cfg, "", stamps, root, manifestPath, false))
}

func TestFetchArchiveBadStatus(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, _, err := fetchArchive(&http.Client{}, server.URL+"/missing.zip")
	require.Error(t, err)
}
