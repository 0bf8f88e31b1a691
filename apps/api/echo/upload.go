package echoapi

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// uploadPolicy restricts what a form file may be.
type uploadPolicy struct {
	subfolder    string
	allowedTypes []string // lower-cased extensions; empty allows anything
	maxSize      int64
}

var assignmentUploads = uploadPolicy{
	subfolder:    "assignments",
	allowedTypes: []string{".pdf", ".doc", ".docx", ".txt"},
	maxSize:      10 << 20, // 10MB
}

func (p uploadPolicy) check(fh *multipart.FileHeader) error {
	if fh.Size > p.maxSize {
		return echo.NewHTTPError(http.StatusBadRequest, "file too large")
	}
	if len(p.allowedTypes) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	for _, allowed := range p.allowedTypes {
		if ext == allowed {
			return nil
		}
	}
	return echo.NewHTTPError(
		http.StatusBadRequest,
		fmt.Sprintf("only %s files are allowed", strings.Join(p.allowedTypes, ", ")),
	)
}

// saveUpload stores the form file under dir and returns its slash-separated path relative to dir.
func saveUpload(dir string, p uploadPolicy, fh *multipart.FileHeader) (string, error) {
	if err := p.check(fh); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Join(dir, p.subfolder), 0o755); err != nil {
		return "", errors.Wrap(err, "creating upload dir")
	}

	src, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "opening form file")
	}
	defer src.Close()

	name := path.Join(p.subfolder, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	dst, err := os.Create(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		return "", errors.Wrap(err, "creating upload")
	}
	defer dst.Close()

	if _, err = io.Copy(dst, src); err != nil {
		return "", errors.Wrap(err, "writing upload")
	}
	return name, nil
}
