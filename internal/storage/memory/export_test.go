// internal/storage/memory/export_test.go
package memory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pursuitlab/roadchase/internal/config"
	"github.com/pursuitlab/roadchase/pkg/core"
)

func recordSampleRun(t *testing.T, b *Backend) {
	t.Helper()
	run := testRun("run:1")
	if err := b.StartRun(run); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	for i := uint64(1); i <= 3; i++ {
		s := &core.FrameSample{
			RunID:   run.ID,
			Frame:   i,
			Vehicle: core.Pose{Position: core.Vec2{X: 1.5, Z: -float64(i)}},
			Speed:   20,
			Score:   int(i),
		}
		if err := b.RecordFrame(s); err != nil {
			t.Fatalf("RecordFrame: %v", err)
		}
	}
	_ = b.RecordEvent(run.ID, &core.FrameEvent{Frame: 2, Time: 0.125, Kind: core.EventPursuerActivated, Slot: 1})

	result := &core.RunResult{
		RunID:    run.ID,
		EndTime:  run.StartTime.Add(10 * time.Second),
		Frames:   3,
		Score:    3,
		GameOver: true,
		Reason:   "caught",
		Track:    []core.Vec2{{X: 0, Z: 0}, {X: 1.5, Z: -3}},
	}
	if err := b.EndRun(result); err != nil {
		t.Fatalf("EndRun: %v", err)
	}
}

func TestExport_FileNames(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		compress bool
		want     string
	}{
		{"json", "", false, "run_1_20260301_120000.json"},
		{"json gz", FormatJSON, true, "run_1_20260301_120000.json.gz"},
		{"yaml", FormatYAML, false, "run_1_20260301_120000.yaml"},
		{"yaml gz", FormatYAML, true, "run_1_20260301_120000.yaml.gz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: tt.compress, Format: tt.format})
			recordSampleRun(t, b)

			want := filepath.Join(dir, tt.want)
			if b.ExportedFilePath() != want {
				t.Errorf("ExportedFilePath = %s, want %s", b.ExportedFilePath(), want)
			}
			if _, err := os.Stat(want); err != nil {
				t.Errorf("export file missing: %v", err)
			}
		})
	}
}

func TestExport_RoundTrip(t *testing.T) {
	for _, tc := range []struct {
		format   string
		compress bool
	}{
		{FormatJSON, false},
		{FormatJSON, true},
		{FormatYAML, false},
		{FormatYAML, true},
	} {
		t.Run(tc.format, func(t *testing.T) {
			b := New(config.MemoryConfig{OutputDir: t.TempDir(), CompressOutput: tc.compress, Format: tc.format})
			recordSampleRun(t, b)

			export, err := ReadExport(b.ExportedFilePath())
			if err != nil {
				t.Fatalf("ReadExport: %v", err)
			}
			if export.Version != 1 {
				t.Errorf("Version = %d, want 1", export.Version)
			}
			if export.RunID != "run:1" {
				t.Errorf("RunID = %s", export.RunID)
			}
			if export.Seed != 42 {
				t.Errorf("Seed = %d, want 42", export.Seed)
			}
			if len(export.Frames) != 3 {
				t.Errorf("len(Frames) = %d, want 3", len(export.Frames))
			}
			if len(export.Events) != 1 {
				t.Errorf("len(Events) = %d, want 1", len(export.Events))
			}
			if export.Result == nil || export.Result.Reason != "caught" || !export.Result.Caught {
				t.Errorf("unexpected result: %+v", export.Result)
			}
			if len(export.Track) != 2 || export.Track[1][1] != -3 {
				t.Errorf("unexpected track: %v", export.Track)
			}
		})
	}
}

func TestExport_JSONIsCompact(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	recordSampleRun(t, b)

	raw, err := os.ReadFile(b.ExportedFilePath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"frames":[[1,1.5,-1,0,20,1,0,0,0]`) {
		t.Errorf("frames not written as positional arrays: %s", raw)
	}
}

func TestClose_ExportsOpenRun(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	_ = b.StartRun(testRun("open"))
	_ = b.RecordFrame(&core.FrameSample{RunID: "open", Frame: 1})

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if b.ExportedFilePath() == "" {
		t.Fatal("open run was not exported on Close")
	}
	export, err := ReadExport(b.ExportedFilePath())
	if err != nil {
		t.Fatal(err)
	}
	if export.Result != nil {
		t.Error("open run should export without a result")
	}
}

func TestReadExport_Missing(t *testing.T) {
	if _, err := ReadExport(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWriteExport_ConvertsByName(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	recordSampleRun(t, b)
	export, err := ReadExport(b.ExportedFilePath())
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "converted.yaml.gz")
	if err := WriteExport(out, export); err != nil {
		t.Fatalf("WriteExport: %v", err)
	}
	back, err := ReadExport(out)
	if err != nil {
		t.Fatalf("ReadExport: %v", err)
	}
	if back.RunID != export.RunID || len(back.Frames) != len(export.Frames) {
		t.Errorf("converted export differs: %+v", back)
	}
	if back.Result == nil || back.Result.Reason != "caught" {
		t.Errorf("unexpected result: %+v", back.Result)
	}
}
