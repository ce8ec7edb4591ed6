package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/farxc/ensu_insecurity/internal/ensu/files"
	"github.com/farxc/ensu_insecurity/internal/logger"
)

// DownloadDir is where fetched archives land under the survey root.
const DownloadDir = "descargas"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"

type DownloadResult struct {
	Success    bool
	Cached     bool
	OutputPath string
}

var DefaultClient = &http.Client{Timeout: 10 * time.Minute}

// FileName is the local name for a download URL. Only .zip and .csv targets are accepted.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	switch strings.ToLower(path.Ext(name)) {
	case ".zip", ".csv":
		return name, nil
	default:
		return "", fmt.Errorf("unsupported download %q: expected a .zip or .csv file", rawURL)
	}
}

// FetchData downloads rawURL into destDir unless a file with the same name is already there.
// Partial downloads are written to a temporary name and never left behind as the final file.
func FetchData(ctx context.Context, client *http.Client, rawURL, destDir string, logger *logger.Logger) DownloadResult {
	const component = "Downloader"

	name, err := FileName(rawURL)
	if err != nil {
		logger.Error(component, "Skipping download: url=%s error=%v", rawURL, err)
		return DownloadResult{Success: false}
	}
	outputPath := filepath.Join(destDir, name)

	if _, err := os.Stat(outputPath); err == nil {
		logger.Info(component, "File already downloaded: path=%s", outputPath)
		return DownloadResult{Success: true, Cached: true, OutputPath: outputPath}
	}

	if err := os.MkdirAll(destDir, os.ModePerm); err != nil {
		logger.Error(component, "Failed to create directory: dir=%s error=%v", destDir, err)
		return DownloadResult{Success: false}
	}

	logger.Debug(component, "Starting download: url=%s", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		logger.Error(component, "Failed to create HTTP request: url=%s error=%v", rawURL, err)
		return DownloadResult{Success: false}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		logger.Error(component, "HTTP request failed: url=%s error=%v", rawURL, err)
		return DownloadResult{Success: false}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn(component, "Non-OK HTTP response: url=%s status=%s statusCode=%d", rawURL, resp.Status, resp.StatusCode)
		return DownloadResult{Success: false}
	}

	partial := outputPath + ".part"
	out, err := os.Create(partial)
	if err != nil {
		logger.Error(component, "Failed to create output file: path=%s error=%v", partial, err)
		return DownloadResult{Success: false}
	}

	bytesWritten, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(partial)
		logger.Error(component, "Failed to write response body: url=%s error=%v", rawURL, err)
		return DownloadResult{Success: false}
	}
	if err := os.Rename(partial, outputPath); err != nil {
		os.Remove(partial)
		logger.Error(component, "Failed to finalize download: path=%s error=%v", outputPath, err)
		return DownloadResult{Success: false}
	}

	logger.Info(component, "Download completed: path=%s bytes=%d", outputPath, bytesWritten)
	return DownloadResult{Success: true, OutputPath: outputPath}
}

// FetchAll downloads every URL. Archives are cached in cacheDir and their CSV members are
// unpacked into <root>/descargas, so the normal discovery walk finds them; plain CSVs are
// downloaded there directly. It returns the paths now available and the number of URLs
// that failed.
func FetchAll(ctx context.Context, client *http.Client, urls []string, cacheDir, root string, logger *logger.Logger) ([]string, int) {
	const component = "Fetcher"

	destDir := filepath.Join(root, DownloadDir)
	var available []string
	failed := 0
	for _, u := range urls {
		if ctx.Err() != nil {
			failed++
			continue
		}

		name, err := FileName(u)
		if err != nil {
			logger.Error(component, "Skipping download: url=%s error=%v", u, err)
			failed++
			continue
		}
		target := destDir
		if strings.ToLower(filepath.Ext(name)) == ".zip" {
			target = cacheDir
		}

		download := FetchData(ctx, client, u, target, logger)
		if !download.Success {
			failed++
			continue
		}
		if target == destDir {
			available = append(available, download.OutputPath)
			continue
		}

		stem := strings.TrimSuffix(name, filepath.Ext(name))
		extraction := files.UnzipFile(download.OutputPath, filepath.Join(destDir, stem), logger)
		if !extraction.Success {
			logger.Warn(component, "Extraction failed: path=%s", download.OutputPath)
			failed++
			continue
		}
		available = append(available, extraction.Files...)
	}

	logger.Info(component, "Fetch completed: urls=%d available=%d failed=%d", len(urls), len(available), failed)
	return available, failed
}
