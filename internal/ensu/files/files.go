package files

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"github.com/farxc/ensu_insecurity/internal/logger"
)

// DefaultPattern matches the naming conventions the survey data sets have used.
const DefaultPattern = `(_cb_|_cb\.|conjunto_de_datos_cb|ensu_cb|cb_ensu)`

type ExtractionResult struct {
	Success   bool
	Files     []string
	OutputDir string
}

type DiscoverOptions struct {
	Pattern *regexp.Regexp
	// SkipDirs are pruned from the walk, typically the output directory when it lives under root.
	SkipDirs []string
}

func isDictionary(name string) bool {
	return strings.Contains(strings.ToLower(name), "diccionario")
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// Discover walks root and returns the .csv and .zip files whose lowercase relative path
// matches the pattern, sorted lexicographically. Data dictionaries are skipped.
func Discover(root string, opts DiscoverOptions, appLogger *logger.Logger) ([]string, error) {
	const component = "Discoverer"

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", types.ErrRootNotFound, root)
	}

	pattern := opts.Pattern
	if pattern == nil {
		pattern = regexp.MustCompile(DefaultPattern)
	}

	var found []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			appLogger.Warn(component, "Cannot access path, skipping: path=%s error=%v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			for _, skip := range opts.SkipDirs {
				if path != root && samePath(path, skip) {
					return filepath.SkipDir
				}
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".csv" && ext != ".zip" {
			return nil
		}
		if isDictionary(d.Name()) {
			appLogger.Debug(component, "Skipping data dictionary: path=%s", path)
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if pattern.MatchString(strings.ToLower(filepath.ToSlash(rel))) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(found)
	appLogger.Info(component, "Discovery completed: root=%s files=%d", root, len(found))
	return found, nil
}

// ExpandArchives replaces every .zip in paths with the CSV members extracted under destRoot.
// A broken archive is logged and dropped. The result is sorted.
func ExpandArchives(paths []string, destRoot string, appLogger *logger.Logger) []string {
	const component = "Archives"

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.ToLower(filepath.Ext(p)) != ".zip" {
			out = append(out, p)
			continue
		}
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		extraction := UnzipFile(p, filepath.Join(destRoot, stem), appLogger)
		if !extraction.Success {
			appLogger.Warn(component, "Archive skipped: path=%s", p)
			continue
		}
		out = append(out, extraction.Files...)
	}

	sort.Strings(out)
	return out
}

// UnzipFile extracts the CSV members of zipPath into destDir, skipping dictionaries.
// Member directories are flattened; a member escaping destDir aborts the extraction.
func UnzipFile(zipPath string, destDir string, appLogger *logger.Logger) ExtractionResult {
	const component = "Unzipper"

	appLogger.Debug(component, "Starting extraction: zipPath=%s destDir=%s", zipPath, destDir)

	err := os.MkdirAll(destDir, os.ModePerm)
	if err != nil {
		appLogger.Error(component, "Failed to create directory: destDir=%s error=%v", destDir, err)
		return ExtractionResult{Success: false}
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		appLogger.Error(component, "Failed to open zip file: zipPath=%s error=%v", zipPath, err)
		return ExtractionResult{Success: false}
	}
	defer r.Close()

	var extracted []string
	skippedCount := 0

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		filePath := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(filePath, filepath.Clean(destDir)+string(os.PathSeparator)) {
			appLogger.Error(component, "Invalid file path detected (possible zip slip): file=%s", f.Name)
			return ExtractionResult{Success: false}
		}

		name := filepath.Base(f.Name)
		if strings.ToLower(filepath.Ext(name)) != ".csv" || isDictionary(f.Name) {
			skippedCount++
			appLogger.Debug(component, "Skipping unused member: file=%s", f.Name)
			continue
		}

		target := filepath.Join(destDir, name)
		if err := extractMember(f, target); err != nil {
			appLogger.Error(component, "Failed to extract file: file=%s error=%v", f.Name, err)
			return ExtractionResult{Success: false}
		}
		extracted = append(extracted, target)
	}

	appLogger.Info(component, "Extraction completed: destDir=%s extractedFiles=%d skippedFiles=%d", destDir, len(extracted), skippedCount)
	return ExtractionResult{Success: true, Files: extracted, OutputDir: destDir}
}

func extractMember(f *zip.File, target string) error {
	destFile, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer destFile.Close()

	zippedFile, err := f.Open()
	if err != nil {
		return err
	}
	defer zippedFile.Close()

	_, err = io.Copy(destFile, zippedFile)
	return err
}
