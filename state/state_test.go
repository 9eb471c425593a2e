package state

import (
	"bytes"
	"testing"
)

func TestConflict(t *testing.T) {
	cases := []struct {
		name     string
		a, b     Command
		conflict bool
	}{
		{"put-put same key", Command{PUT, "x", "1"}, Command{PUT, "x", "2"}, true},
		{"put-get same key", Command{PUT, "x", "1"}, Command{GET, "x", ""}, true},
		{"get-put same key", Command{GET, "x", ""}, Command{PUT, "x", "1"}, true},
		{"get-get same key", Command{GET, "x", ""}, Command{GET, "x", ""}, false},
		{"put-put different keys", Command{PUT, "x", "1"}, Command{PUT, "y", "1"}, false},
		{"noop never conflicts", Command{NONE, "", ""}, Command{PUT, "", "1"}, false},
	}
	for _, c := range cases {
		if got := Conflict(&c.a, &c.b); got != c.conflict {
			t.Errorf("%s: Conflict(%v, %v) = %v, want %v", c.name, c.a, c.b, got, c.conflict)
		}
		if got := Conflict(&c.b, &c.a); got != c.conflict {
			t.Errorf("%s (reversed): Conflict(%v, %v) = %v, want %v", c.name, c.b, c.a, got, c.conflict)
		}
	}
}

func TestExecute(t *testing.T) {
	st := InitState()

	put := Command{PUT, "key_1", "value_a_1"}
	if v := put.Execute(st); v != "value_a_1" {
		t.Errorf("put returned %q, want %q", v, "value_a_1")
	}

	get := Command{GET, "key_1", ""}
	if v := get.Execute(st); v != "value_a_1" {
		t.Errorf("get returned %q, want %q", v, "value_a_1")
	}

	miss := Command{GET, "key_2", ""}
	if v := miss.Execute(st); v != NIL {
		t.Errorf("get on missing key returned %q, want NIL", v)
	}

	noop := Command{NONE, "", ""}
	if v := noop.Execute(st); v != NIL {
		t.Errorf("noop returned %q, want NIL", v)
	}
	if len(st.Store) != 1 {
		t.Errorf("store has %d entries, want 1", len(st.Store))
	}
}

func TestCommandMarshalRoundTrip(t *testing.T) {
	cmds := []Command{
		{PUT, "key_3", "value_localhost:7070_12"},
		{GET, "key_0", ""},
	}
	for _, orig := range cmds {
		var buf bytes.Buffer
		orig.Marshal(&buf)
		var got Command
		if err := got.Unmarshal(&buf); err != nil {
			t.Fatalf("unmarshal %v: %v", orig, err)
		}
		if got != orig {
			t.Errorf("round trip: got %v, want %v", got, orig)
		}
	}
}
