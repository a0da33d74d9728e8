package executor

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
)

// MultipartFile encodes a single file under the given form field and
// returns the body with its Content-Type (including the boundary).
func MultipartFile(field, path, filename string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return "", "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return buf.String(), w.FormDataContentType(), nil
}
