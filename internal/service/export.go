package service

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ExportFileName is the name of the JSON entry inside an exported archive
const ExportFileName = "report.json"

// Export writes a zip archive holding the report as indented JSON to w
func (r *Reports) Export(ctx context.Context, owner, id string, w io.Writer) error {
	rep, err := r.Get(ctx, owner, id)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report, %w", err)
	}

	zw := zip.NewWriter(w)

	f, err := zw.CreateHeader(&zip.FileHeader{
		Name:     ExportFileName,
		Method:   zip.Deflate,
		Modified: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to create archive entry, %w", err)
	}

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write archive entry, %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive, %w", err)
	}

	return nil
}
