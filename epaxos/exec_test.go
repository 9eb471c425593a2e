package epaxos

import (
	"bufio"
	"bytes"
	"sync"
	"testing"

	"github.com/Brian-1402/EPaxos-reactor/epaxosproto"
	"github.com/Brian-1402/EPaxos-reactor/genericsmr"
	"github.com/Brian-1402/EPaxos-reactor/genericsmrproto"
)

func id(q int32, i int32) epaxosproto.InstanceId {
	return epaxosproto.InstanceId{Replica: q, Instance: i}
}

func TestExecuteChainRunsDependenciesFirst(t *testing.T) {
	r := testReplica(t, 5)

	committedInstance(r, 0, 0, set("a", "first"), 0)
	committedInstance(r, 1, 0, set("a", "second"), 1, id(0, 0))

	if !r.exec.executeCommand(1, 0) {
		t.Fatal("chain with committed dependencies did not execute")
	}
	if got := r.InstanceSpace[0][0].Status; got != epaxosproto.EXECUTED {
		t.Errorf("dependency status = %d, want executed", got)
	}
	if got := r.State.Store["a"]; got != "second" {
		t.Errorf("store[a] = %q, want second (dependency order violated)", got)
	}
}

func TestExecuteCycleOrdersBySequence(t *testing.T) {
	r := testReplica(t, 5)

	// mutual dependencies form one component; lower seq runs first
	committedInstance(r, 0, 0, set("a", "high"), 2, id(1, 0))
	committedInstance(r, 1, 0, set("a", "low"), 1, id(0, 0))

	if !r.exec.executeCommand(0, 0) {
		t.Fatal("cycle did not execute")
	}
	if got := r.State.Store["a"]; got != "high" {
		t.Errorf("store[a] = %q, want high (seq order violated)", got)
	}
}

func TestExecuteSeqTiesBreakByInstanceId(t *testing.T) {
	r := testReplica(t, 5)

	committedInstance(r, 0, 0, set("a", "zero"), 1, id(1, 0))
	committedInstance(r, 1, 0, set("a", "one"), 1, id(0, 0))

	if !r.exec.executeCommand(1, 0) {
		t.Fatal("cycle did not execute")
	}
	if got := r.State.Store["a"]; got != "one" {
		t.Errorf("store[a] = %q, want one (replica 0 runs first on ties)", got)
	}
}

func TestExecuteDiamond(t *testing.T) {
	r := testReplica(t, 5)

	committedInstance(r, 0, 0, set("a", "1"), 0)
	committedInstance(r, 1, 0, set("a", "2"), 1, id(0, 0))
	committedInstance(r, 2, 0, set("a", "3"), 1, id(0, 0))
	committedInstance(r, 3, 0, set("a", "4"), 2, id(1, 0), id(2, 0))

	if !r.exec.executeCommand(3, 0) {
		t.Fatal("diamond did not execute")
	}
	for q := int32(0); q < 4; q++ {
		if got := r.InstanceSpace[q][0].Status; got != epaxosproto.EXECUTED {
			t.Errorf("instance %d.0 status = %d, want executed", q, got)
		}
	}
	if got := r.State.Store["a"]; got != "4" {
		t.Errorf("store[a] = %q, want 4", got)
	}
}

func TestExecuteAbortsOnUncommittedDependency(t *testing.T) {
	r := testReplica(t, 5)

	inst := committedInstance(r, 1, 0, set("a", "1"), 1, id(0, 0))

	// missing record
	if r.exec.executeCommand(1, 0) {
		t.Fatal("executed past a missing dependency")
	}
	if inst.Status != epaxosproto.COMMITTED {
		t.Errorf("abort changed status to %d", inst.Status)
	}

	// present but not yet committed
	r.InstanceSpace[0][0] = &Instance{Cmd: set("a", "0"), Status: epaxosproto.PREACCEPTED}
	r.updateCrtInstance(0, 0)
	if r.exec.executeCommand(1, 0) {
		t.Fatal("executed past an uncommitted dependency")
	}
	if _, ok := r.State.Store["a"]; ok {
		t.Error("abort left state changes behind")
	}
}

func TestExecutedDependencyTerminatesWalk(t *testing.T) {
	r := testReplica(t, 5)

	done := committedInstance(r, 0, 0, set("x", "stale"), 0)
	done.Status = epaxosproto.EXECUTED
	committedInstance(r, 1, 0, set("y", "fresh"), 1, id(0, 0))

	if !r.exec.executeCommand(1, 0) {
		t.Fatal("executed dependency blocked the walk")
	}
	if _, ok := r.State.Store["x"]; ok {
		t.Error("executed dependency ran again")
	}
	if got := r.State.Store["y"]; got != "fresh" {
		t.Errorf("store[y] = %q, want fresh", got)
	}
}

func TestReadRepliesAtExecution(t *testing.T) {
	r := testReplica(t, 5)
	r.State.Store["k"] = "v7"

	inst := committedInstance(r, 0, 0, get("k"), 0)
	buf := new(bytes.Buffer)
	inst.lb = &LeaderBookkeeping{clientProposal: &genericsmr.Propose{
		Propose: &genericsmrproto.Propose{CommandId: 3, ClientId: 8, Command: get("k"), Timestamp: 42},
		Reply:   bufio.NewWriter(buf),
		Mutex:   new(sync.Mutex),
	}}

	if !r.exec.executeCommand(0, 0) {
		t.Fatal("read did not execute")
	}

	var reply genericsmrproto.ProposeReplyTS
	if err := reply.Unmarshal(buf); err != nil {
		t.Fatalf("no reply written at execution: %v", err)
	}
	if reply.OK != genericsmr.TRUE || reply.CommandId != 3 || reply.ClientId != 8 || reply.Timestamp != 42 {
		t.Errorf("bad reply header: %+v", reply)
	}
	if reply.Value != "v7" {
		t.Errorf("reply value = %q, want v7", reply.Value)
	}
}
