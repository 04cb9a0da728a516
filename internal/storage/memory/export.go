// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	v1 "github.com/pursuitlab/roadchase/internal/storage/memory/export/v1"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// export writes a run to disk; caller holds b.mu.
// An empty OutputDir disables export.
func (b *Backend) export(rec *RunRecord) error {
	if b.cfg.OutputDir == "" {
		return nil
	}
	data := v1.Build(&v1.RunData{
		Run:    rec.Run,
		Result: rec.Result,
		Frames: rec.Frames,
		Events: rec.Events,
	})

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, b.fileName(rec))
	if err := writeExport(outputPath, b.format(), b.cfg.CompressOutput, data); err != nil {
		return err
	}
	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) format() string {
	if b.cfg.Format == "" {
		return FormatJSON
	}
	return b.cfg.Format
}

// fileName is "<runID>_<start>.<format>[.gz]".
func (b *Backend) fileName(rec *RunRecord) string {
	id := strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(rec.Run.ID)
	name := fmt.Sprintf("%s_%s.%s", id, rec.Run.StartTime.Format("20060102_150405"), b.format())
	if b.cfg.CompressOutput {
		name += ".gz"
	}
	return name
}

func writeExport(path, format string, compress bool, data v1.Export) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	var w io.Writer = f
	if compress {
		gw := gzip.NewWriter(f)
		defer func() {
			if cerr := gw.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close gzip writer: %w", cerr)
			}
		}()
		w = gw
	}
	return encode(w, format, data)
}

func encode(w io.Writer, format string, data v1.Export) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	default:
		if err := json.NewEncoder(w).Encode(data); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	}
}

// WriteExport encodes data to path. Compression and format are inferred from
// the file name the same way ReadExport does.
func WriteExport(path string, data v1.Export) error {
	name := strings.TrimSuffix(path, ".gz")
	format := FormatJSON
	if strings.HasSuffix(name, "."+FormatYAML) || strings.HasSuffix(name, ".yml") {
		format = FormatYAML
	}
	return writeExport(path, format, name != path, data)
}

// ReadExport decodes an export file written by this backend. Compression and
// format are inferred from the file name.
func ReadExport(path string) (v1.Export, error) {
	var out v1.Export
	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer f.Close()

	var r io.Reader = f
	name := path
	if strings.HasSuffix(name, ".gz") {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return out, fmt.Errorf("failed to open gzip reader: %w", err)
		}
		defer gr.Close()
		r = gr
		name = strings.TrimSuffix(name, ".gz")
	}

	if strings.HasSuffix(name, "."+FormatYAML) || strings.HasSuffix(name, ".yml") {
		err = yaml.NewDecoder(r).Decode(&out)
	} else {
		err = json.NewDecoder(r).Decode(&out)
	}
	if err != nil {
		return out, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return out, nil
}
