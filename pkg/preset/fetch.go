package preset

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/pkg/resource"
	"github.com/avast/retry-go"
	"github.com/cavaliergopher/grab"
	"github.com/go-git/go-git/v5"
)

// Acquire resolves one --presets argument into a local directory or file
// path, classifying it by prefix/suffix per the acquisition rules: local
// paths are used directly; zip/tar.gz archives are downloaded and
// extracted into a scoped temp dir; git-hosted sources are shallow-cloned.
// Archive/clone temp directories are pushed onto the resource stack for
// deletion.
func Acquire(ctx context.Context, stack *resource.Stack, source string) (string, error) {
	switch {
	case isLocal(source):
		return source, nil
	case strings.HasSuffix(source, ".zip"):
		return acquireWithRetry(ctx, func() (string, error) { return fetchZip(ctx, stack, source) })
	case strings.HasSuffix(source, ".tar.gz") || strings.HasSuffix(source, ".tgz"):
		return acquireWithRetry(ctx, func() (string, error) { return fetchTarGz(ctx, stack, source) })
	case strings.HasSuffix(source, ".git") || looksLikeGitRemote(source):
		return acquireWithRetry(ctx, func() (string, error) { return fetchGit(ctx, stack, source) })
	default:
		return "", &alma.PresetFetch{Source: source, Err: fmt.Errorf("unrecognized preset source")}
	}
}

func isLocal(source string) bool {
	return !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") && !strings.HasPrefix(source, "git@")
}

func looksLikeGitRemote(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	switch u.Host {
	case "github.com", "gitlab.com", "bitbucket.org", "codeberg.org":
		return true
	default:
		return false
	}
}

// acquireWithRetry runs fn once, and retries exactly one more time on
// failure — the single retry on transient network failure the design
// allows C6, no more.
func acquireWithRetry(ctx context.Context, fn func() (string, error)) (string, error) {
	var result string
	err := retry.Do(
		func() error {
			r, err := fn()
			if err != nil {
				return err
			}
			result = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.LastErrorOnly(true),
	)
	return result, err
}

func scopedTempDir(stack *resource.Stack, prefix string) (string, error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return "", err
	}
	stack.Push("tempdir:"+dir, func() error {
		return os.RemoveAll(dir)
	})
	return dir, nil
}

func fetchZip(ctx context.Context, stack *resource.Stack, source string) (string, error) {
	dir, err := scopedTempDir(stack, "alma-presets-zip-")
	if err != nil {
		return "", &alma.PresetFetch{Source: source, Err: err}
	}

	archivePath := filepath.Join(dir, "preset.zip")
	resp, err := grab.Get(archivePath, source)
	if err != nil {
		return "", &alma.PresetFetch{Source: source, Err: err}
	}

	r, err := zip.OpenReader(resp.Filename)
	if err != nil {
		return "", &alma.PresetFetch{Source: source, Err: err}
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractZipEntry(dir, f); err != nil {
			return "", &alma.PresetFetch{Source: source, Err: err}
		}
	}
	return dir, nil
}

func extractZipEntry(dir string, f *zip.File) error {
	destPath, err := safeJoin(dir, f.Name)
	if err != nil {
		return err
	}
	if f.FileInfo().IsDir() {
		return os.MkdirAll(destPath, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}

func fetchTarGz(ctx context.Context, stack *resource.Stack, source string) (string, error) {
	dir, err := scopedTempDir(stack, "alma-presets-tar-")
	if err != nil {
		return "", &alma.PresetFetch{Source: source, Err: err}
	}

	archivePath := filepath.Join(dir, "preset.tar.gz")
	if _, err := grab.Get(archivePath, source); err != nil {
		return "", &alma.PresetFetch{Source: source, Err: err}
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return "", &alma.PresetFetch{Source: source, Err: err}
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", &alma.PresetFetch{Source: source, Err: err}
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &alma.PresetFetch{Source: source, Err: err}
		}
		destPath, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return "", &alma.PresetFetch{Source: source, Err: err}
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0755); err != nil {
				return "", &alma.PresetFetch{Source: source, Err: err}
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
				return "", &alma.PresetFetch{Source: source, Err: err}
			}
			out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return "", &alma.PresetFetch{Source: source, Err: err}
			}
			_, err = io.Copy(out, tr)
			out.Close()
			if err != nil {
				return "", &alma.PresetFetch{Source: source, Err: err}
			}
		}
	}
	return dir, nil
}

func fetchGit(ctx context.Context, stack *resource.Stack, source string) (string, error) {
	dir, err := scopedTempDir(stack, "alma-presets-git-")
	if err != nil {
		return "", &alma.PresetFetch{Source: source, Err: err}
	}

	_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:   source,
		Depth: 1,
	})
	if err != nil {
		return "", &alma.PresetFetch{Source: source, Err: err}
	}
	return dir, nil
}

// safeJoin joins base and name, refusing to let an archive entry escape
// base via path traversal.
func safeJoin(base, name string) (string, error) {
	full := filepath.Join(base, name)
	if !strings.HasPrefix(full, filepath.Clean(base)+string(filepath.Separator)) && full != filepath.Clean(base) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}
	return full, nil
}
