package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/farxc/ensu_insecurity/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipBytes(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFileName(t *testing.T) {
	name, err := FileName("https://example.org/datos/conjunto_de_datos_ensu_2025_2t_csv.zip?x=1")
	require.NoError(t, err)
	assert.Equal(t, "conjunto_de_datos_ensu_2025_2t_csv.zip", name)

	_, err = FileName("https://example.org/datos/index.html")
	assert.Error(t, err)
}

func TestFetchAll(t *testing.T) {
	archive := zipBytes(t, map[string]string{
		"conjunto_de_datos/conjunto_de_datos_ensu_cb_0625.csv": "NOM_ENT,NOM_MUN,BP1_1\nYUCATAN,MERIDA,1\n",
		"diccionario_de_datos/diccionario_ensu_cb_0625.csv":    "x\n",
	})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/ensu_2025_2t.zip":
			w.Write(archive)
		case "/ensu_cb_0925.csv":
			w.Write([]byte("NOM_ENT,NOM_MUN,BP1_1\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	root := t.TempDir()
	cache := t.TempDir()
	urls := []string{srv.URL + "/ensu_2025_2t.zip", srv.URL + "/ensu_cb_0925.csv", srv.URL + "/missing.zip"}

	paths, failed := FetchAll(context.Background(), srv.Client(), urls, cache, root, logger.Discard())
	assert.Equal(t, 1, failed)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, DownloadDir, "ensu_2025_2t", "conjunto_de_datos_ensu_cb_0625.csv"),
		filepath.Join(root, DownloadDir, "ensu_cb_0925.csv"),
	}, paths)

	_, err := os.Stat(filepath.Join(cache, "ensu_2025_2t.zip"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, DownloadDir, "ensu_2025_2t.zip"))
	assert.True(t, os.IsNotExist(err))

	// A second pass reuses what is on disk.
	before := hits.Load()
	_, failed = FetchAll(context.Background(), srv.Client(), urls[:2], cache, root, logger.Discard())
	assert.Equal(t, 0, failed)
	assert.Equal(t, before, hits.Load())
}

func TestFetchDataLeavesNoPartialFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	res := FetchData(context.Background(), srv.Client(), srv.URL+"/ensu_cb_0625.csv", dir, logger.Discard())
	assert.False(t, res.Success)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
