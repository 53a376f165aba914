package validators

import (
	"errors"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNoFile              = errors.New("No file uploaded")
	ErrFileTooLarge        = errors.New("File too large")
	ErrFileTypeUnsupported = errors.New("Only image files are allowed!")
	ErrFileNameTooLong     = errors.New("file name is too long")
)

const maxFileNameSize = 255

// TypeAllowed reports whether mime type t matches one of allowed. Entries
// ending in "/*" match a whole top-level type.
func TypeAllowed(t string, allowed []string) bool {
	t, _, _ = strings.Cut(t, ";")
	t = strings.TrimSpace(strings.ToLower(t))

	for _, a := range allowed {
		a = strings.ToLower(a)

		if prefix, ok := strings.CutSuffix(a, "/*"); ok {
			if strings.HasPrefix(t, prefix+"/") {
				return true
			}
			continue
		}

		if t == a {
			return true
		}
	}

	return false
}

// ImageValidator checks an uploaded file against the size limit and the
// allowed types. The client supplied Content-Type is checked first since
// it's cheap, then the content itself is sniffed. On success the opened file
// is returned rewound to the start; the caller must close it.
func ImageValidator(fh *multipart.FileHeader, maxSize int64, allowed []string) (multipart.File, error) {
	if fh == nil {
		return nil, ErrNoFile
	}

	if !TypeAllowed(fh.Header.Get("Content-Type"), allowed) {
		return nil, ErrFileTypeUnsupported
	}

	if len(fh.Filename) > maxFileNameSize {
		return nil, ErrFileNameTooLong
	}

	if fh.Size > maxSize {
		return nil, ErrFileTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	if !TypeAllowed(mime.String(), allowed) {
		f.Close()
		return nil, ErrFileTypeUnsupported
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}
