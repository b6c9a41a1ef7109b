package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/brd-breakdown/internal/common"
	"github.com/joseph-ayodele/brd-breakdown/internal/services/generation"
)

// uploadFields lists the accepted multipart field names, in lookup order.
var uploadFields = []string{"document", "file"}

// handleUpload spools the multipart file to UploadDir and hands it to the
// generation service, which owns the temp file from then on.
func (s *Server) handleUpload(c echo.Context) error {
	ctx := c.Request().Context()
	log := common.LoggerFromContext(ctx, s.logger)

	fh, err := formFile(c)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return err
		}
		log.Info("upload.no_file", "error", err)
		return s.upload(c, generation.UploadRequest{})
	}
	defer func() {
		if form := c.Request().MultipartForm; form != nil {
			_ = form.RemoveAll()
		}
	}()

	filename := filepath.Base(strings.TrimSpace(fh.Filename))
	path, size, err := s.spool(fh)
	if err != nil {
		log.Error("upload.spool.failed", "filename", filename, "error", err)
		return NewInternalError("failed to store upload")
	}
	log.Info("upload.received", "filename", filename, "size", size)

	return s.upload(c, generation.UploadRequest{Filename: filename, Path: path, Size: size})
}

func (s *Server) upload(c echo.Context, req generation.UploadRequest) error {
	res, err := s.generations.Upload(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func formFile(c echo.Context) (*multipart.FileHeader, error) {
	for _, field := range uploadFields {
		fh, err := c.FormFile(field)
		switch {
		case err == nil:
			return fh, nil
		case errors.Is(err, http.ErrMissingFile):
			continue
		}
		var (
			maxErr  *http.MaxBytesError
			httpErr *echo.HTTPError
		)
		if errors.As(err, &maxErr) || (errors.As(err, &httpErr) && httpErr.Code == http.StatusRequestEntityTooLarge) {
			return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge)
		}
		return nil, err
	}
	return nil, http.ErrMissingFile
}

// spool copies at most MaxUploadBytes+1 bytes, so an oversized file is still
// reported with a size the service rejects.
func (s *Server) spool(fh *multipart.FileHeader) (string, int64, error) {
	src, err := fh.Open()
	if err != nil {
		return "", 0, fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = src.Close() }()

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create upload dir: %w", err)
	}
	dst, err := os.CreateTemp(s.cfg.UploadDir, "brd-*"+strings.ToLower(filepath.Ext(fh.Filename)))
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}

	n, err := io.Copy(dst, io.LimitReader(src, s.cfg.MaxUploadBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst.Name())
		return "", 0, fmt.Errorf("write temp file: %w", err)
	}
	return dst.Name(), n, nil
}
