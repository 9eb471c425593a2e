// Package commitexec records, per instance, the gap between commit and
// execution, for offline latency analysis.
package commitexec

import (
	"fmt"
	"os"
	"time"
)

// InstanceId names an instance as a (log, sequence) pair.
type InstanceId struct {
	Log int32
	Seq int32
}

type timePair struct {
	commit  time.Time
	execute time.Time
}

// Recorder accumulates commit and execution timestamps and appends one
// CSV line per instance once both are known.
type Recorder struct {
	out   *os.File
	times map[InstanceId]timePair
}

func NewRecorder(outputLoc string) (*Recorder, error) {
	f, err := os.Create(outputLoc)
	if err != nil {
		return nil, err
	}
	return &Recorder{
		out:   f,
		times: make(map[InstanceId]timePair),
	}, nil
}

// RecordCommit notes when an instance committed. Later calls for the
// same instance are ignored.
func (rec *Recorder) RecordCommit(id InstanceId, at time.Time) {
	if !rec.times[id].commit.IsZero() {
		return
	}
	rec.times[id] = timePair{commit: at}
}

// RecordExecution notes when an instance executed and writes out the
// instance's line. Commit must have been recorded first.
func (rec *Recorder) RecordExecution(id InstanceId, at time.Time) {
	pair, exists := rec.times[id]
	if !exists {
		panic("execution recorded before commit")
	}
	if !pair.execute.IsZero() {
		return
	}
	pair.execute = at
	rec.times[id] = pair
	rec.output(id)
}

func (rec *Recorder) output(id InstanceId) {
	pair := rec.times[id]
	diff := pair.execute.Sub(pair.commit)
	fmt.Fprintf(rec.out, "%d, %d, %d, %d, %d\n", id.Log, id.Seq, pair.commit.UnixNano(), pair.execute.UnixNano(), diff.Microseconds())
}

func (rec *Recorder) Close() error {
	return rec.out.Close()
}
