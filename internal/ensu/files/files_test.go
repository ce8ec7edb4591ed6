package files

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"github.com/farxc/ensu_insecurity/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func touch(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, content := range members {
		mw, err := w.Create(name)
		require.NoError(t, err)
		_, err = mw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestDiscoverMatchesConventionsAndSorts(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "2025", "conjunto_de_datos_ensu_cb_0625.csv"), "x")
	touch(t, filepath.Join(root, "2022", "conjunto_de_datos_ensu_cb_0322.csv"), "x")
	touch(t, filepath.Join(root, "2022", "diccionario_de_datos_ensu_cb_0322.csv"), "x")
	touch(t, filepath.Join(root, "2022", "notes.txt"), "x")
	touch(t, filepath.Join(root, "other", "random.csv"), "x")
	touch(t, filepath.Join(root, "conjunto_de_datos_cb", "data.csv"), "x")
	touch(t, filepath.Join(root, "out", "procesado_2022_Q1_conjunto_de_datos_ensu_cb_0322.csv"), "x")

	got, err := Discover(root, DiscoverOptions{SkipDirs: []string{filepath.Join(root, "out")}}, logger.Discard())
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "2022", "conjunto_de_datos_ensu_cb_0322.csv"),
		filepath.Join(root, "2025", "conjunto_de_datos_ensu_cb_0625.csv"),
		filepath.Join(root, "conjunto_de_datos_cb", "data.csv"),
	}, got)
}

func TestDiscoverMissingRoot(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), DiscoverOptions{}, logger.Discard())
	assert.True(t, errors.Is(err, types.ErrRootNotFound))
}

func TestExpandArchives(t *testing.T) {
	root := t.TempDir()
	zipPath := filepath.Join(root, "ensu_cb_0924.zip")
	writeZip(t, zipPath, map[string]string{
		"conjunto_de_datos/conjunto_de_datos_ensu_cb_0924.csv": "NOM_ENT,NOM_MUN,BP1_1\n",
		"diccionario_de_datos/diccionario.csv":                  "x",
		"metadatos/readme.txt":                                  "x",
	})
	plain := filepath.Join(root, "a_cb_.csv")
	touch(t, plain, "x")

	dest := filepath.Join(root, "tmp")
	got := ExpandArchives([]string{zipPath, plain}, dest, logger.Discard())

	assert.Equal(t, []string{
		plain,
		filepath.Join(dest, "ensu_cb_0924", "conjunto_de_datos_ensu_cb_0924.csv"),
	}, got)
}

func TestUnzipRejectsZipSlip(t *testing.T) {
	root := t.TempDir()
	zipPath := filepath.Join(root, "evil.zip")
	writeZip(t, zipPath, map[string]string{"../../escape.csv": "x"})

	res := UnzipFile(zipPath, filepath.Join(root, "dest"), logger.Discard())
	assert.False(t, res.Success)
	_, err := os.Stat(filepath.Join(root, "escape.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestOpenFileAndDecodeUTF8WithBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utf8.csv")
	touch(t, path, "\ufeffNOM_ENT,NOM_MUN,BP1_1\nYucatán,Mérida,1\nYucatán,,2\n")

	df, err := OpenFileAndDecode(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"NOM_ENT", "NOM_MUN", "BP1_1"}, df.Names())
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, "Mérida", df.Col("NOM_MUN").Elem(0).String())
	assert.True(t, df.Col("NOM_MUN").Elem(1).IsNA())
}

func TestOpenFileAndDecodeLatinFallbackAndSemicolons(t *testing.T) {
	encoded, err := charmap.Windows1252.NewEncoder().String("NOM_ENT;NOM_MUN;BP1_1\nYUCATÁN;MÉRIDA;2\n")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "latin.csv")
	touch(t, path, encoded)

	df, err := OpenFileAndDecode(path, charmap.Windows1252)
	require.NoError(t, err)
	assert.Equal(t, "YUCATÁN", df.Col("NOM_ENT").Elem(0).String())
	assert.Equal(t, "MÉRIDA", df.Col("NOM_MUN").Elem(0).String())
}

func TestOpenFileAndDecodeEmptyIsUnreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	touch(t, path, "  \n")

	_, err := OpenFileAndDecode(path, nil)
	assert.True(t, errors.Is(err, types.ErrFileUnreadable))

	_, err = OpenFileAndDecode(filepath.Join(t.TempDir(), "missing.csv"), nil)
	assert.True(t, errors.Is(err, types.ErrFileUnreadable))
}

func TestOpenFileAndDecodeHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "header.csv")
	touch(t, path, "NOM_ENT;NOM_MUN;BP1_1\n")

	df, err := OpenFileAndDecode(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"NOM_ENT", "NOM_MUN", "BP1_1"}, df.Names())
	assert.Equal(t, 0, df.Nrow())
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ';', DetectDelimiter([]byte("A;B;C\n1;2,5;3\n")))
	assert.Equal(t, ',', DetectDelimiter([]byte("A,B,C\n1,2,3\n")))
}

func TestFallbackEncoding(t *testing.T) {
	enc, err := FallbackEncoding("latin1")
	require.NoError(t, err)
	assert.Equal(t, charmap.ISO8859_1, enc)

	_, err = FallbackEncoding("ebcdic")
	assert.Error(t, err)
}

func TestChecksumIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.csv")
	touch(t, path, "NOM_ENT,NOM_MUN,BP1_1\n")

	a, err := Checksum(path)
	require.NoError(t, err)
	b, err := Checksum(path)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}
