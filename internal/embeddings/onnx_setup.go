package embeddings

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragstore/internal/logging"
)

// DefaultONNXRuntimeVersion is the ONNX runtime version fastembed-go is built against.
const DefaultONNXRuntimeVersion = "1.16.0"

// ErrUnsupportedPlatform indicates the current OS/arch is not supported.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// platformArchMap maps GOOS/GOARCH to ONNX release archive names.
var platformArchMap = map[string]map[string]string{
	"linux": {
		"amd64": "linux-x64",
		"arm64": "linux-aarch64",
	},
	"darwin": {
		"amd64": "osx-x86_64",
		"arm64": "osx-arm64",
	},
}

var libraryNames = map[string]string{
	"linux":  "libonnxruntime.so",
	"darwin": "libonnxruntime.dylib",
}

func getPlatformArchive(goos, goarch string) (string, error) {
	archMap, ok := platformArchMap[goos]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
	arch, ok := archMap[goarch]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
	return arch, nil
}

func getLibraryName(goos string) string {
	if name, ok := libraryNames[goos]; ok {
		return name
	}
	return "libonnxruntime.so"
}

// onnxInstallDir is where a downloaded runtime is unpacked.
var onnxInstallDir = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "ragstore", "lib")
}

// GetONNXLibraryPath returns the path to the ONNX runtime library, checking
// ONNX_PATH first and then the managed install directory. It returns "" when
// neither exists.
func GetONNXLibraryPath() string {
	if envPath := os.Getenv("ONNX_PATH"); envPath != "" {
		return envPath
	}
	managed := filepath.Join(onnxInstallDir(), getLibraryName(runtime.GOOS))
	if _, err := os.Stat(managed); err == nil {
		return managed
	}
	return ""
}

var onnxReleaseURLTemplate = "https://github.com/microsoft/onnxruntime/releases/download/v%s/onnxruntime-%s-%s.tgz"

func buildDownloadURL(version, platform string) string {
	return fmt.Sprintf(onnxReleaseURLTemplate, version, platform, version)
}

// RuntimeOptions controls EnsureONNXRuntime.
type RuntimeOptions struct {
	// Version defaults to DefaultONNXRuntimeVersion.
	Version string
	// ShowProgress draws a download progress bar on stderr.
	ShowProgress bool
	Logger       *logging.Logger
}

// EnsureONNXRuntime makes sure an ONNX runtime library is available,
// downloading it into the managed directory when needed, and points
// ONNX_PATH at it. It returns the library path.
func EnsureONNXRuntime(ctx context.Context, opts RuntimeOptions) (string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if path := GetONNXLibraryPath(); path != "" {
		return path, setONNXPathEnv(path)
	}

	version := opts.Version
	if version == "" {
		version = DefaultONNXRuntimeVersion
	}
	platform, err := getPlatformArchive(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}

	destDir := onnxInstallDir()
	logger.Info(ctx, "onnx runtime not found, downloading",
		zap.String("version", version),
		zap.String("platform", platform),
		zap.String("dir", destDir),
	)
	if err := downloadONNXRuntime(ctx, buildDownloadURL(version, platform), destDir, version, platform, opts.ShowProgress); err != nil {
		return "", fmt.Errorf("downloading ONNX runtime (set ONNX_PATH to use an existing install): %w", err)
	}

	path := GetONNXLibraryPath()
	if path == "" {
		return "", errors.New("ONNX runtime download completed but library not found")
	}
	logger.Info(ctx, "onnx runtime installed", zap.String("path", path))
	return path, setONNXPathEnv(path)
}

// setONNXPathEnv points fastembed-go at the library.
var setONNXPathEnv = func(path string) error {
	return os.Setenv("ONNX_PATH", path)
}

func downloadONNXRuntime(ctx context.Context, url, destDir, version, platform string, showProgress bool) error {
	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if showProgress {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("onnxruntime "+version),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(os.Stderr)
			}),
		)
		body = io.TeeReader(resp.Body, bar)
	}

	if err := extractTarGz(body, destDir, version, platform, getLibraryName(runtime.GOOS)); err != nil {
		return fmt.Errorf("extracting archive: %w", err)
	}
	return nil
}

// extractTarGz unpacks the lib/ directory of an ONNX runtime release,
// symlinks included.
func extractTarGz(r io.Reader, destDir, version, platform, libName string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	prefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", platform, version)
	var foundMainLib bool

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		name := strings.TrimPrefix(header.Name, "./")
		if !strings.HasPrefix(name, prefix) || header.Typeflag == tar.TypeDir {
			continue
		}

		filename := filepath.Base(name)
		destPath := filepath.Join(destDir, filename)
		isMain := filename == libName || strings.HasPrefix(filename, libName+".")

		if header.Typeflag == tar.TypeSymlink {
			_ = os.Remove(destPath)
			if err := os.Symlink(header.Linkname, destPath); err != nil {
				continue
			}
			foundMainLib = foundMainLib || isMain
			continue
		}

		if err := writeFile(destPath, tr); err != nil {
			return fmt.Errorf("writing file %s: %w", filename, err)
		}
		foundMainLib = foundMainLib || isMain
	}

	if !foundMainLib {
		return fmt.Errorf("library %s not found in archive", libName)
	}
	return nil
}

func writeFile(path string, r io.Reader) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
