package handlers

import (
	"io"
	"mime/multipart"

	"github.com/labstack/echo/v4"
)

// multipartFile is an uploaded form file opened for reading.
type multipartFile struct {
	filename    string
	contentType string
	body        io.ReadCloser
}

// openFormFile opens the named multipart field. Returns nil when the field
// is absent; the caller closes the body when non-nil.
func openFormFile(c echo.Context, field string) (*multipartFile, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		// Absent field or a non-multipart request both mean no upload
		return nil, nil
	}
	return openFileHeader(fh)
}

func openFileHeader(fh *multipart.FileHeader) (*multipartFile, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	return &multipartFile{
		filename:    fh.Filename,
		contentType: fh.Header.Get("Content-Type"),
		body:        f,
	}, nil
}

func (m *multipartFile) close() {
	if m != nil && m.body != nil {
		_ = m.body.Close()
	}
}
