package commitexec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRecorderWritesOneLinePerInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latencies.csv")
	rec, err := NewRecorder(path)
	if err != nil {
		t.Fatal(err)
	}

	id := InstanceId{Log: 1, Seq: 7}
	commit := time.Unix(100, 0)
	rec.RecordCommit(id, commit)
	rec.RecordCommit(id, commit.Add(time.Second)) // ignored
	rec.RecordExecution(id, commit.Add(3*time.Millisecond))
	rec.RecordExecution(id, commit.Add(time.Minute)) // ignored

	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), data)
	}
	fields := strings.Split(lines[0], ", ")
	if len(fields) != 5 {
		t.Fatalf("got %d fields, want 5: %q", len(fields), lines[0])
	}
	if fields[0] != "1" || fields[1] != "7" {
		t.Errorf("instance id fields = %s, %s, want 1, 7", fields[0], fields[1])
	}
	if fields[4] != "3000" {
		t.Errorf("latency field = %s, want 3000 microseconds", fields[4])
	}
}

func TestRecorderPanicsOnExecutionWithoutCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latencies.csv")
	rec, err := NewRecorder(path)
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Close()

	defer func() {
		if recover() == nil {
			t.Error("expected panic when execution is recorded first")
		}
	}()
	rec.RecordExecution(InstanceId{Log: 0, Seq: 0}, time.Now())
}
