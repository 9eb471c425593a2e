package epaxosproto

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/Brian-1402/EPaxos-reactor/state"
)

func TestPreAcceptRoundTrip(t *testing.T) {
	orig := PreAccept{
		LeaderId: 2,
		Replica:  2,
		Instance: 7,
		Ballot:   0,
		Command:  state.Command{Op: state.PUT, K: "key_4", V: "value_x_9"},
		Seq:      3,
		Deps:     []InstanceId{{0, 5}, {1, 2}, {2, 6}},
	}
	var buf bytes.Buffer
	orig.Marshal(&buf)

	var got PreAccept
	if err := got.Unmarshal(&buf); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, orig) {
		t.Errorf("got %+v, want %+v", got, orig)
	}
}

func TestPrepareReplyRoundTrip(t *testing.T) {
	orig := PrepareReply{
		AcceptorId: 1,
		Replica:    0,
		Instance:   4,
		OK:         1,
		Ballot:     (1 << 4) | 1,
		Status:     ACCEPTED,
		Command:    state.Command{Op: state.GET, K: "key_0"},
		Seq:        11,
		Deps:       []InstanceId{{2, 1}},
	}
	var buf bytes.Buffer
	orig.Marshal(&buf)

	var got PrepareReply
	if err := got.Unmarshal(&buf); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, orig) {
		t.Errorf("got %+v, want %+v", got, orig)
	}
}

func TestEmptyDepsRoundTrip(t *testing.T) {
	orig := Commit{
		LeaderId: 0,
		Replica:  0,
		Instance: 0,
		Command:  state.Command{Op: state.PUT, K: "key_1", V: "v"},
		Seq:      1,
		Deps:     []InstanceId{},
	}
	var buf bytes.Buffer
	orig.Marshal(&buf)

	var got Commit
	if err := got.Unmarshal(&buf); err != nil {
		t.Fatal(err)
	}
	if got.Instance != 0 || len(got.Deps) != 0 || got.Command != orig.Command {
		t.Errorf("got %+v, want %+v", got, orig)
	}
}
