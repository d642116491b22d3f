// Package modelhub downloads model snapshots and unpacks them next to the
// training data.
package modelhub

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/boristopalov/paperrl/internal/logging"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultURLTemplate is formatted with the model name.
const DefaultURLTemplate = "https://modelers.cn/models/%s/download"

var (
	ErrUnsafePath = goerr.New("archive entry escapes destination")
	ErrDownload   = goerr.New("model download failed")
)

type Downloader struct {
	client      *http.Client
	urlTemplate string
}

type Option func(*Downloader)

func WithHTTPClient(client *http.Client) Option {
	return func(d *Downloader) {
		d.client = client
	}
}

func WithURLTemplate(tmpl string) Option {
	return func(d *Downloader) {
		d.urlTemplate = tmpl
	}
}

func New(opts ...Option) *Downloader {
	d := &Downloader{
		client:      http.DefaultClient,
		urlTemplate: DefaultURLTemplate,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// URL returns the download location of modelName.
func (d *Downloader) URL(modelName string) string {
	return fmt.Sprintf(d.urlTemplate, modelName)
}

// Download fetches modelName into <dir>/<modelName>.tmp, unpacks zip and
// gzip-tar archives into <dir>/<modelName>, or moves any other payload there
// as a single file. It returns the extraction directory.
func (d *Downloader) Download(ctx context.Context, modelName, dir string) (string, error) {
	logger := logging.From(ctx)
	if modelName == "" {
		return "", goerr.New("model name is required")
	}

	extractPath := filepath.Join(dir, modelName)
	if !isWithin(dir, extractPath) {
		return "", goerr.Wrap(ErrUnsafePath, "model name escapes download dir", goerr.V("model", modelName))
	}
	if err := os.MkdirAll(extractPath, 0o755); err != nil {
		return "", goerr.Wrap(err, "failed to create extract dir", goerr.V("path", extractPath))
	}

	start := time.Now()
	src := d.URL(modelName)
	logger.Info("downloading model", slog.String("model", modelName), slog.String("url", src))

	tmpPath := extractPath + ".tmp"
	if err := d.fetch(ctx, src, tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	defer os.Remove(tmpPath)

	kind, err := detect(tmpPath)
	if err != nil {
		return "", err
	}
	switch kind {
	case kindZip:
		err = extractZip(ctx, tmpPath, extractPath)
	case kindTarGz:
		err = extractTarGz(ctx, tmpPath, extractPath)
	default:
		err = moveFile(tmpPath, filepath.Join(extractPath, filepath.Base(modelName)))
	}
	if err != nil {
		return "", err
	}

	logger.Info("model downloaded",
		slog.String("model", modelName),
		slog.String("path", extractPath),
		slog.String("format", kind.String()),
		slog.Duration("took", time.Since(start)),
	)
	return extractPath, nil
}

func (d *Downloader) fetch(ctx context.Context, src, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to create request", goerr.V("url", src))
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to download", goerr.V("url", src))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return goerr.Wrap(ErrDownload, "unexpected status",
			goerr.V("url", src),
			goerr.V("status", resp.StatusCode),
		)
	}

	f, err := os.Create(dst)
	if err != nil {
		return goerr.Wrap(err, "failed to create file", goerr.V("path", dst))
	}
	w := bufio.NewWriterSize(f, 1<<20)
	if _, err := io.Copy(w, resp.Body); err != nil {
		f.Close()
		return goerr.Wrap(err, "failed to write download", goerr.V("path", dst))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return goerr.Wrap(err, "failed to flush download", goerr.V("path", dst))
	}
	if err := f.Close(); err != nil {
		return goerr.Wrap(err, "failed to close download", goerr.V("path", dst))
	}
	return nil
}

type archiveKind int

const (
	kindFile archiveKind = iota
	kindZip
	kindTarGz
)

func (k archiveKind) String() string {
	switch k {
	case kindZip:
		return "zip"
	case kindTarGz:
		return "tar.gz"
	default:
		return "file"
	}
}

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
)

func detect(path string) (archiveKind, error) {
	f, err := os.Open(path)
	if err != nil {
		return kindFile, goerr.Wrap(err, "failed to open download", goerr.V("path", path))
	}
	defer f.Close()

	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return kindFile, goerr.Wrap(err, "failed to read download header", goerr.V("path", path))
	}
	head = head[:n]
	switch {
	case bytes.HasPrefix(head, zipMagic):
		return kindZip, nil
	case bytes.HasPrefix(head, gzipMagic):
		return kindTarGz, nil
	default:
		return kindFile, nil
	}
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return goerr.Wrap(err, "failed to move download", goerr.V("src", src), goerr.V("dst", dst))
	}
	return nil
}

// isWithin reports whether target lies inside root after cleaning.
func isWithin(root, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(target))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func safeJoin(root, name string) (string, error) {
	target := filepath.Join(root, name)
	if !isWithin(root, target) {
		return "", goerr.Wrap(ErrUnsafePath, "invalid archive entry", goerr.V("entry", name))
	}
	return target, nil
}
