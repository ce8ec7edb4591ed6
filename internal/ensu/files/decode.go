package files

import (
	"bytes"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var naValues = []string{"NA", "NaN", "<nil>", ""}

// FallbackEncoding maps a configuration name to the Latin-family decoder tried when a
// file is not valid UTF-8.
func FallbackEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "", "windows-1252", "cp1252", "latin1-windows":
		return charmap.Windows1252, nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15, nil
	default:
		return nil, fmt.Errorf("unsupported fallback encoding %q", name)
	}
}

// Decode returns raw as UTF-8 without a byte order mark. Valid UTF-8 is used as is,
// anything else goes through the fallback decoder.
func Decode(raw []byte, fallback encoding.Encoding) ([]byte, error) {
	if utf8.Valid(raw) {
		out, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), raw)
		return out, err
	}
	if fallback == nil {
		fallback = charmap.Windows1252
	}
	out, _, err := transform.Bytes(fallback.NewDecoder(), raw)
	return out, err
}

// DetectDelimiter picks ';' or ',' by counting both in the first two lines.
func DetectDelimiter(content []byte) rune {
	lines := bytes.SplitN(content, []byte("\n"), 3)
	if len(lines) > 2 {
		lines = lines[:2]
	}
	sample := bytes.Join(lines, nil)
	if bytes.Count(sample, []byte(";")) > bytes.Count(sample, []byte(",")) {
		return ';'
	}
	return ','
}

// OpenFileAndDecode loads a survey CSV with every column as string. Decoding or parse
// failures wrap types.ErrFileUnreadable.
func OpenFileAndDecode(path string, fallback encoding.Encoding) (dataframe.DataFrame, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: failed to open file %s: %v", types.ErrFileUnreadable, path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("%w: file %s is empty", types.ErrFileUnreadable, path)
	}

	decoded, err := Decode(raw, fallback)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: failed to decode %s: %v", types.ErrFileUnreadable, path, err)
	}

	delimiter := DetectDelimiter(decoded)
	header, hasRows, err := readHeader(decoded, delimiter)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: failed to parse %s: %v", types.ErrFileUnreadable, path, err)
	}
	if !hasRows {
		// gota rejects a header without records; the file still has a schema to check.
		return emptyFrame(header), nil
	}

	df := dataframe.ReadCSV(
		bytes.NewReader(decoded),
		dataframe.WithDelimiter(delimiter),
		dataframe.WithLazyQuotes(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(naValues),
	)
	if df.Error() != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: failed to parse %s: %v", types.ErrFileUnreadable, path, df.Error())
	}

	return df, nil
}

// readHeader returns the first record and whether any record follows it.
func readHeader(content []byte, delimiter rune) ([]string, bool, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, false, err
	}
	if _, err := r.Read(); err == io.EOF {
		return header, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return header, true, nil
}

func emptyFrame(header []string) dataframe.DataFrame {
	columns := make([]series.Series, 0, len(header))
	for _, name := range header {
		columns = append(columns, series.New([]string{}, series.String, name))
	}
	return dataframe.New(columns...)
}

// Checksum returns the hex xxhash64 digest of the file.
func Checksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to hash file %s: %w", filePath, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
