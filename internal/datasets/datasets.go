// Package datasets downloads remote dataset files into a local cache directory.
package datasets

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
	"github.com/mohammed-shakir/mosquito-risk/internal/core/observability"
)

const (
	subdir = "datasets"

	maxDownload  = 512 << 20
	maxExtracted = 1 << 30
)

type Cache struct {
	Dir    string
	Client *http.Client
	Logger *slog.Logger
}

// Artifact is a prepared dataset: a file, or a directory for extracted archives.
type Artifact struct {
	Name string
	URL  string
	Path string
}

// Prepare downloads url and, for .zip archives, extracts it into <dir>/datasets/<name>/.
func (c *Cache) Prepare(ctx context.Context, name, rawURL string) (Artifact, error) {
	p, err := c.Download(ctx, rawURL)
	if err != nil {
		return Artifact{}, err
	}
	if strings.EqualFold(filepath.Ext(p), ".zip") {
		dir, err := c.Extract(p, name)
		if err != nil {
			return Artifact{}, err
		}
		return Artifact{Name: name, URL: rawURL, Path: dir}, nil
	}
	return Artifact{Name: name, URL: rawURL, Path: p}, nil
}

// FileName is the last URL path segment, or the sha256 of the URL when empty.
func FileName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		base := path.Base(u.Path)
		if base != "" && base != "." && base != "/" {
			return base
		}
	}
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// Download stores the file under <dir>/datasets/, skipping when a non-empty copy exists.
func (c *Cache) Download(ctx context.Context, rawURL string) (string, error) {
	dir := filepath.Join(c.Dir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", model.DataUnavailable("Failed to prepare dataset cache", err)
	}
	dest := filepath.Join(dir, FileName(rawURL))
	if fi, err := os.Stat(dest); err == nil && fi.Size() > 0 {
		return dest, nil
	}

	msg := "Failed to download dataset from " + rawURL
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", model.DataUnavailable(msg, err)
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()
	resp, err := client.Do(req)
	observability.ObserveUpstream("datasets", err, time.Since(start).Seconds())
	if err != nil {
		return "", model.DataUnavailable(msg, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", model.DataUnavailable(msg, fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	// partial downloads never reach dest
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", model.DataUnavailable(msg, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxDownload+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", model.DataUnavailable(msg, err)
	}
	if n > maxDownload {
		return "", model.DataUnavailable(msg, fmt.Errorf("dataset exceeds %d bytes", maxDownload))
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", model.DataUnavailable(msg, err)
	}
	if c.Logger != nil {
		c.Logger.Info("dataset downloaded", "url", rawURL, "bytes", n, "path", dest)
	}
	return dest, nil
}

// Extract unpacks zipPath into <dir>/datasets/<name>/. Entries that would land
// outside that directory are rejected.
func (c *Cache) Extract(zipPath, name string) (string, error) {
	msg := "Failed to extract zip " + filepath.Base(zipPath)
	out := filepath.Join(c.Dir, subdir, filepath.Base(name))
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", model.DataUnavailable(msg, err)
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", model.DataUnavailable(msg, err)
	}
	defer func() { _ = zr.Close() }()

	var total int64
	for _, f := range zr.File {
		target, err := safeJoin(out, f.Name)
		if err != nil {
			return "", model.DataUnavailable(msg, err)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return "", model.DataUnavailable(msg, err)
			}
			continue
		}
		n, err := extractFile(f, target, maxExtracted-total)
		if err != nil {
			return "", model.DataUnavailable(msg, err)
		}
		total += n
	}
	return out, nil
}

func safeJoin(root, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "", fmt.Errorf("absolute path in archive: %q", name)
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("illegal path in archive: %q", name)
	}
	return target, nil
}

func extractFile(f *zip.File, target string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	w, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, io.LimitReader(rc, budget+1))
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if n > budget {
		return n, fmt.Errorf("archive exceeds %d bytes uncompressed", int64(maxExtracted))
	}
	return n, nil
}
