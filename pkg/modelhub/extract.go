package modelhub

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/boristopalov/paperrl/internal/logging"
	"github.com/m-mizutani/goerr/v2"
)

func extractZip(ctx context.Context, src, dst string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return goerr.Wrap(err, "failed to open zip", goerr.V("path", src))
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := safeJoin(dst, zf.Name)
		if err != nil {
			return err
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return goerr.Wrap(err, "failed to create dir", goerr.V("path", target))
			}
			continue
		}

		rc, err := zf.Open()
		if err != nil {
			return goerr.Wrap(err, "failed to open zip entry", goerr.V("entry", zf.Name))
		}
		err = writeEntry(target, rc, zf.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTarGz(ctx context.Context, src, dst string) error {
	logger := logging.From(ctx)

	f, err := os.Open(src)
	if err != nil {
		return goerr.Wrap(err, "failed to open archive", goerr.V("path", src))
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return goerr.Wrap(err, "failed to open gzip stream", goerr.V("path", src))
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read tar entry", goerr.V("path", src))
		}

		target, err := safeJoin(dst, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return goerr.Wrap(err, "failed to create dir", goerr.V("path", target))
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		default:
			logger.Warn("skip unsupported tar entry", slog.String("entry", hdr.Name), slog.Int("type", int(hdr.Typeflag)))
		}
	}
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return goerr.Wrap(err, "failed to create dir", goerr.V("path", filepath.Dir(target)))
	}
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return goerr.Wrap(err, "failed to create file", goerr.V("path", target))
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return goerr.Wrap(err, "failed to extract file", goerr.V("path", target))
	}
	if err := out.Close(); err != nil {
		return goerr.Wrap(err, "failed to close file", goerr.V("path", target))
	}
	return nil
}
