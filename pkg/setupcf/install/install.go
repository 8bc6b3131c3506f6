// Package install downloads the cf CLI release archive for a version and
// keeps the extracted binary in a tool cache laid out like the Actions
// runner's: <cache>/cf/<version>/<arch>, with a <arch>.complete marker.
package install

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/vchrisb/setup-cf/pkg/metrics"
)

const (
	// DownloadURL serves release archives selected by query parameters.
	DownloadURL = "https://packages.cloudfoundry.org/stable"
	release     = "linux64-binary"
	source      = "github-rel"
	toolName    = "cf"

	// EnvToolCache is set by GitHub hosted and self-hosted runners.
	EnvToolCache = "RUNNER_TOOL_CACHE"
)

// binaryNames are the executables shipped by v6, v7 and v8 archives, in order
// of preference.
var binaryNames = []string{"cf8", "cf7", "cf"}

// Installer installs a cf CLI version into CacheDir.
type Installer struct {
	CacheDir string
	BaseURL  string
	Arch     string
	Client   *resty.Client
	Log      *zap.SugaredLogger
	// AddPath publishes the install directory to later workflow steps.
	AddPath func(dir string) error
}

// DefaultCacheDir returns $RUNNER_TOOL_CACHE, or a directory below the system
// temp dir outside of a runner.
func DefaultCacheDir() string {
	if dir := os.Getenv(EnvToolCache); dir != "" {
		return dir
	}
	return filepath.Join(os.TempDir(), "setup-cf", "tool-cache")
}

// Install makes version available and returns the path of its cf binary. The
// install directory is prepended to PATH.
func (i *Installer) Install(ctx context.Context, version string) (string, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return "", fmt.Errorf("invalid cf CLI version %q: %w", version, err)
	}
	log := i.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	dir := i.installDir(v.String())

	if i.cached(dir) {
		metrics.InstallCacheLookups.WithLabelValues("hit").Inc()
		log.Infow("Found cf CLI in tool cache", "version", v.String(), "path", dir)
	} else {
		metrics.InstallCacheLookups.WithLabelValues("miss").Inc()
		log.Infow("Downloading cf CLI", "version", v.String())
		if err := i.download(ctx, v.String(), dir); err != nil {
			return "", err
		}
	}

	if err := i.publish(dir); err != nil {
		return "", err
	}
	return filepath.Join(dir, toolName), nil
}

func (i *Installer) installDir(version string) string {
	arch := i.Arch
	if arch == "" {
		arch = runtime.GOARCH
	}
	cacheDir := i.CacheDir
	if cacheDir == "" {
		cacheDir = DefaultCacheDir()
	}
	return filepath.Join(cacheDir, toolName, version, arch)
}

func markerPath(dir string) string {
	return dir + ".complete"
}

func (i *Installer) cached(dir string) bool {
	if _, err := os.Stat(markerPath(dir)); err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, toolName))
	return err == nil && !info.IsDir()
}

func (i *Installer) download(ctx context.Context, version, dir string) error {
	client := i.Client
	if client == nil {
		client = resty.New()
	}
	baseURL := i.BaseURL
	if baseURL == "" {
		baseURL = DownloadURL
	}

	resp, err := client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetQueryParams(map[string]string{
			"release": release,
			"version": version,
			"source":  source,
		}).
		Get(baseURL)
	if err != nil {
		return fmt.Errorf("download cf CLI %s: %w", version, err)
	}
	body := resp.RawBody()
	defer func() {
		_ = body.Close()
	}()
	if resp.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(body, 4096))
		return fmt.Errorf("download cf CLI %s failed (%d): %s", version, resp.StatusCode(), strings.TrimSpace(string(msg)))
	}

	// A half-written directory from an interrupted run is discarded.
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	_ = os.Remove(markerPath(dir))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := extractTarGz(body, dir); err != nil {
		return fmt.Errorf("extract cf CLI %s: %w", version, err)
	}
	return os.WriteFile(markerPath(dir), nil, 0o644)
}

func (i *Installer) publish(dir string) error {
	path := os.Getenv("PATH")
	if !containsPath(path, dir) {
		if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+path); err != nil {
			return err
		}
	}
	if i.AddPath != nil {
		return i.AddPath(dir)
	}
	return nil
}

func containsPath(pathList, dir string) bool {
	for _, p := range filepath.SplitList(pathList) {
		if p == dir {
			return true
		}
	}
	return false
}

// extractTarGz writes the cf executables found in r to destDir and makes sure
// destDir/cf exists, linking it to the newest binary when the archive has no
// plain "cf" file.
func extractTarGz(r io.Reader, destDir string) error {
	reader, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer func() {
		_ = reader.Close()
	}()

	found := map[string]bool{}
	tarReader := tar.NewReader(reader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		// Sanitize archive entry name to prevent path traversal attacks
		safeName := filepath.Base(header.Name)
		if !isBinaryName(safeName) {
			continue
		}
		if err := writeExecutable(filepath.Join(destDir, safeName), tarReader); err != nil {
			return err
		}
		found[safeName] = true
	}

	if found[toolName] {
		return nil
	}
	for _, name := range binaryNames {
		if found[name] {
			return os.Symlink(name, filepath.Join(destDir, toolName))
		}
	}
	return errors.New("cf binary not found in archive")
}

func isBinaryName(name string) bool {
	for _, n := range binaryNames {
		if name == n {
			return true
		}
	}
	return false
}

func writeExecutable(path string, r io.Reader) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
