package epaxos

import (
	"bufio"
	"bytes"
	"sync"
	"testing"

	"github.com/Brian-1402/EPaxos-reactor/epaxosproto"
	"github.com/Brian-1402/EPaxos-reactor/genericsmr"
	"github.com/Brian-1402/EPaxos-reactor/genericsmrproto"
	"github.com/Brian-1402/EPaxos-reactor/state"
)

func addrs(n int) []string {
	a := make([]string, n)
	for i := range a {
		a[i] = "127.0.0.1:0"
	}
	return a
}

// testReplica builds replica 0 of an n-replica group with execution on
// and no connections; outbound messages are dropped.
func testReplica(t *testing.T, n int) *Replica {
	t.Helper()
	return NewReplica(0, addrs(n), false, true, false, false, false, false, 0, n/2, t.TempDir(), 5000)
}

func set(k, v string) state.Command {
	return state.Command{Op: state.PUT, K: state.Key(k), V: state.Value(v)}
}

func get(k string) state.Command {
	return state.Command{Op: state.GET, K: state.Key(k)}
}

func clientProposal(id int32, cmd state.Command) (*genericsmr.Propose, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	return &genericsmr.Propose{
		Propose: &genericsmrproto.Propose{CommandId: id, ClientId: 100 + id, Command: cmd, Timestamp: int64(id)},
		Reply:   bufio.NewWriter(buf),
		Mutex:   new(sync.Mutex),
	}, buf
}

// okPreAcceptReply echoes the attributes the leader currently holds, the
// way an acceptor that learned nothing new would.
func okPreAcceptReply(from int32, inst *Instance, replica int32, instance int32) *epaxosproto.PreAcceptReply {
	return &epaxosproto.PreAcceptReply{
		AcceptorId: from,
		Replica:    replica,
		Instance:   instance,
		OK:         genericsmr.TRUE,
		Ballot:     inst.bal,
		Seq:        inst.Seq,
		Deps:       depsToSlice(inst.Deps),
	}
}

func committedInstance(r *Replica, q int32, i int32, cmd state.Command, seq int32, deps ...epaxosproto.InstanceId) *Instance {
	m := make(map[epaxosproto.InstanceId]struct{}, len(deps))
	for _, d := range deps {
		m[d] = struct{}{}
	}
	inst := &Instance{Cmd: cmd, Status: epaxosproto.COMMITTED, Seq: seq, Deps: m}
	r.InstanceSpace[q][i] = inst
	r.updateCrtInstance(q, i)
	return inst
}

func TestFastPathCommitExecutesAndReplies(t *testing.T) {
	r := testReplica(t, 7) // slow quorum 3 peer acks, fast quorum 5

	prop, buf := clientProposal(1, set("a", "1"))
	r.handlePropose(prop)

	inst := r.InstanceSpace[0][0]
	if inst == nil || inst.Status != epaxosproto.PREACCEPTED {
		t.Fatalf("propose did not preaccept instance 0.0: %+v", inst)
	}
	if r.crtInstance[0] != 1 {
		t.Fatalf("crtInstance[0] = %d, want 1", r.crtInstance[0])
	}

	for _, q := range []int32{1, 2, 3, 4} {
		r.handlePreAcceptReply(okPreAcceptReply(q, inst, 0, 0))
		if inst.Status != epaxosproto.PREACCEPTED {
			t.Fatalf("committed after %d acks, below the fast quorum", q)
		}
	}
	r.handlePreAcceptReply(okPreAcceptReply(5, inst, 0, 0))

	if inst.Status != epaxosproto.EXECUTED {
		t.Fatalf("status = %d, want executed", inst.Status)
	}
	if got := r.State.Store["a"]; got != "1" {
		t.Errorf("store[a] = %q, want 1", got)
	}
	if r.Stats.M["fastPathCommits"] != 1 {
		t.Errorf("fastPathCommits = %d, want 1", r.Stats.M["fastPathCommits"])
	}

	var reply genericsmrproto.ProposeReplyTS
	if err := reply.Unmarshal(buf); err != nil {
		t.Fatalf("no client reply after commit: %v", err)
	}
	if reply.OK != genericsmr.TRUE || reply.CommandId != 1 || reply.ClientId != 101 || reply.Value != "1" {
		t.Errorf("bad reply: %+v", reply)
	}
}

func TestUnsupportedOpRejectedAtIngress(t *testing.T) {
	r := testReplica(t, 5)

	prop, buf := clientProposal(9, state.Command{Op: state.NONE, K: "a"})
	r.handlePropose(prop)

	if r.crtInstance[0] != 0 || r.InstanceSpace[0][0] != nil {
		t.Fatal("unsupported command entered the instance log")
	}
	var reply genericsmrproto.ProposeReplyTS
	if err := reply.Unmarshal(buf); err != nil {
		t.Fatalf("no error reply: %v", err)
	}
	if reply.OK != genericsmr.FALSE || reply.CommandId != 9 {
		t.Errorf("bad rejection reply: %+v", reply)
	}
}

func TestDivergentReplyTakesSlowPath(t *testing.T) {
	r := testReplica(t, 7)

	prop, buf := clientProposal(2, set("b", "2"))
	r.handlePropose(prop)
	inst := r.InstanceSpace[0][0]

	dep := epaxosproto.InstanceId{Replica: 3, Instance: 0}
	r.handlePreAcceptReply(&epaxosproto.PreAcceptReply{
		AcceptorId: 1, Replica: 0, Instance: 0,
		OK: genericsmr.TRUE, Ballot: 0,
		Seq: 4, Deps: []epaxosproto.InstanceId{dep},
	})

	if inst.Status != epaxosproto.ACCEPTED {
		t.Fatalf("status = %d, want accepted after divergent reply", inst.Status)
	}
	if inst.Seq != 4 {
		t.Errorf("seq = %d, want merged max 4", inst.Seq)
	}
	if _, ok := inst.Deps[dep]; !ok {
		t.Error("replied dependency not merged")
	}

	r.handlePreAcceptReply(okPreAcceptReply(2, inst, 0, 0))
	r.handlePreAcceptReply(okPreAcceptReply(3, inst, 0, 0))
	if inst.lb.acceptTally == nil {
		t.Fatal("majority of preaccepts did not start the accept round")
	}

	// phase-one stragglers no longer move the attributes
	r.handlePreAcceptReply(&epaxosproto.PreAcceptReply{
		AcceptorId: 4, Replica: 0, Instance: 0,
		OK: genericsmr.TRUE, Ballot: 0, Seq: 9,
	})
	if inst.Seq != 4 {
		t.Errorf("straggler changed seq to %d", inst.Seq)
	}

	for _, q := range []int32{1, 2, 3} {
		r.handleAcceptReply(&epaxosproto.AcceptReply{
			AcceptorId: q, Replica: 0, Instance: 0, OK: genericsmr.TRUE, Ballot: 0,
		})
	}
	if inst.Status != epaxosproto.COMMITTED {
		t.Fatalf("status = %d, want committed (dependency still open)", inst.Status)
	}
	if r.Stats.M["slowPathCommits"] != 1 {
		t.Errorf("slowPathCommits = %d, want 1", r.Stats.M["slowPathCommits"])
	}

	// the write answers at commit even though execution is parked
	var reply genericsmrproto.ProposeReplyTS
	if err := reply.Unmarshal(buf); err != nil {
		t.Fatalf("no client reply at commit: %v", err)
	}
	if reply.Value != "2" {
		t.Errorf("reply value = %q, want 2", reply.Value)
	}

	// committing the dependency unblocks execution of both
	r.handleCommit(&epaxosproto.Commit{
		LeaderId: 3, Replica: 3, Instance: 0,
		Command: set("b", "0"), Seq: 0,
	})
	if got := r.InstanceSpace[3][0].Status; got != epaxosproto.EXECUTED {
		t.Fatalf("dependency status = %d, want executed", got)
	}
	if inst.Status != epaxosproto.EXECUTED {
		t.Fatalf("status = %d, want executed after dependency commit", inst.Status)
	}
	if got := r.State.Store["b"]; got != "2" {
		t.Errorf("store[b] = %q, want 2 (dependency must run first)", got)
	}
	if !r.pendingExec.Empty() {
		t.Error("pending set not drained")
	}
	if buf.Len() != 0 {
		t.Error("write answered twice")
	}
}

func TestEvenClusterQuorumSizes(t *testing.T) {
	r := testReplica(t, 4)
	if r.slowQuorumSize != 2 || r.fastQuorumSize != 2 {
		t.Errorf("N=4 quorums = %d/%d, want 2/2", r.slowQuorumSize, r.fastQuorumSize)
	}
	r = testReplica(t, 6)
	if r.slowQuorumSize != 3 || r.fastQuorumSize != 4 {
		t.Errorf("N=6 quorums = %d/%d, want 3/4", r.slowQuorumSize, r.fastQuorumSize)
	}
}

func TestEvenClusterSlowPathNeedsFullMajority(t *testing.T) {
	r := testReplica(t, 4)

	prop, _ := clientProposal(8, set("f", "6"))
	r.handlePropose(prop)
	inst := r.InstanceSpace[0][0]

	dep := epaxosproto.InstanceId{Replica: 2, Instance: 0}
	r.handlePreAcceptReply(&epaxosproto.PreAcceptReply{
		AcceptorId: 1, Replica: 0, Instance: 0,
		OK: genericsmr.TRUE, Ballot: 0,
		Seq: 3, Deps: []epaxosproto.InstanceId{dep},
	})
	if inst.lb.acceptTally != nil {
		t.Fatal("accept round started on a lone divergent ack")
	}
	r.handlePreAcceptReply(okPreAcceptReply(2, inst, 0, 0))
	if inst.lb.acceptTally == nil {
		t.Fatal("two of three peers did not reach the majority")
	}

	r.handleAcceptReply(&epaxosproto.AcceptReply{
		AcceptorId: 1, Replica: 0, Instance: 0, OK: genericsmr.TRUE, Ballot: 0,
	})
	if inst.Status >= epaxosproto.COMMITTED {
		t.Fatal("committed with only half the cluster")
	}
	r.handleAcceptReply(&epaxosproto.AcceptReply{
		AcceptorId: 2, Replica: 0, Instance: 0, OK: genericsmr.TRUE, Ballot: 0,
	})
	if inst.Status != epaxosproto.COMMITTED {
		t.Fatalf("status = %d, want committed at three of four replicas", inst.Status)
	}
}

func TestLateAcksAfterCommitAreNoOps(t *testing.T) {
	r := testReplica(t, 7)

	prop, _ := clientProposal(3, set("c", "3"))
	r.handlePropose(prop)
	inst := r.InstanceSpace[0][0]
	for _, q := range []int32{1, 2, 3, 4, 5} {
		r.handlePreAcceptReply(okPreAcceptReply(q, inst, 0, 0))
	}
	if inst.Status != epaxosproto.EXECUTED {
		t.Fatalf("fast path did not commit: status %d", inst.Status)
	}

	r.handlePreAcceptReply(okPreAcceptReply(6, inst, 0, 0))
	r.handlePreAcceptReply(&epaxosproto.PreAcceptReply{
		AcceptorId: 1, Replica: 0, Instance: 0,
		OK: genericsmr.TRUE, Ballot: 0, Seq: 9,
	})
	r.handleAcceptReply(&epaxosproto.AcceptReply{
		AcceptorId: 6, Replica: 0, Instance: 0, OK: genericsmr.TRUE, Ballot: 0,
	})

	if inst.Status != epaxosproto.EXECUTED || inst.Seq != 0 {
		t.Errorf("late acks changed a decided instance: status %d seq %d", inst.Status, inst.Seq)
	}
}

func TestPreAcceptNackRecordsBallot(t *testing.T) {
	r := testReplica(t, 5)

	prop, _ := clientProposal(4, set("d", "4"))
	r.handlePropose(prop)
	inst := r.InstanceSpace[0][0]

	r.handlePreAcceptReply(&epaxosproto.PreAcceptReply{
		AcceptorId: 1, Replica: 0, Instance: 0,
		OK: genericsmr.FALSE, Ballot: 33,
	})

	if inst.lb.maxRecvBallot != 33 {
		t.Errorf("maxRecvBallot = %d, want 33", inst.lb.maxRecvBallot)
	}
	if inst.Status != epaxosproto.PREACCEPTED {
		t.Errorf("nack changed status to %d", inst.Status)
	}
	if inst.lb.preAcceptTally.Count() != 0 {
		t.Error("nack counted as acknowledgement")
	}
}

func TestPreemptedPhaseOneIsAbandoned(t *testing.T) {
	r := testReplica(t, 5)

	prop, _ := clientProposal(10, set("g", "7"))
	r.handlePropose(prop)
	inst := r.InstanceSpace[0][0]

	nack := func(from int32) *epaxosproto.PreAcceptReply {
		return &epaxosproto.PreAcceptReply{
			AcceptorId: from, Replica: 0, Instance: 0,
			OK: genericsmr.FALSE, Ballot: 17,
		}
	}
	r.handlePreAcceptReply(nack(1))
	r.handlePreAcceptReply(nack(2))
	if inst.lb.preAcceptTally == nil {
		t.Fatal("round abandoned while a quorum was still possible")
	}
	r.handlePreAcceptReply(nack(3))
	if inst.lb.preAcceptTally != nil {
		t.Fatal("round kept alive with one acceptor left against a majority of two")
	}
	if inst.lb.maxRecvBallot != 17 {
		t.Errorf("maxRecvBallot = %d, want 17", inst.lb.maxRecvBallot)
	}

	// a straggling genuine ack cannot revive the dead round
	r.handlePreAcceptReply(okPreAcceptReply(4, inst, 0, 0))
	if inst.Status != epaxosproto.PREACCEPTED {
		t.Errorf("dead round moved the instance to %d", inst.Status)
	}
}

func TestDivergentAckAfterCleanFastQuorumPanics(t *testing.T) {
	r := testReplica(t, 7)

	prop, _ := clientProposal(5, set("e", "5"))
	r.handlePropose(prop)
	inst := r.InstanceSpace[0][0]
	for _, q := range []int32{1, 2, 3, 4} {
		r.handlePreAcceptReply(okPreAcceptReply(q, inst, 0, 0))
	}
	// push the tally past the fast bar by hand, leaving the instance
	// uncommitted; a divergent ack must now trip the intersection check
	inst.lb.preAcceptTally.Add(5)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on divergent ack after clean fast quorum")
		}
	}()
	r.handlePreAcceptReply(&epaxosproto.PreAcceptReply{
		AcceptorId: 6, Replica: 0, Instance: 0,
		OK: genericsmr.TRUE, Ballot: 0, Seq: 9,
	})
}

func TestPreAcceptMergesLocalAttributes(t *testing.T) {
	r := testReplica(t, 5)

	// replica 0 already leads a conflicting command at 0.0
	prop, _ := clientProposal(6, set("a", "9"))
	r.handlePropose(prop)

	r.handlePreAccept(&epaxosproto.PreAccept{
		LeaderId: 1, Replica: 1, Instance: 0, Ballot: 0,
		Command: set("a", "1"), Seq: 0,
	})

	got := r.InstanceSpace[1][0]
	if got == nil || got.Status != epaxosproto.PREACCEPTED {
		t.Fatalf("preaccept did not record instance 1.0: %+v", got)
	}
	if got.Seq != 1 {
		t.Errorf("seq = %d, want 1 (bumped above the local conflict)", got.Seq)
	}
	if _, ok := got.Deps[epaxosproto.InstanceId{Replica: 0, Instance: 0}]; !ok {
		t.Error("local conflict missing from dependencies")
	}
	if r.crtInstance[1] != 1 {
		t.Errorf("crtInstance[1] = %d, want 1", r.crtInstance[1])
	}
}

func TestPreAcceptLowerBallotLeavesSlotUntouched(t *testing.T) {
	r := testReplica(t, 5)

	r.handlePrepare(&epaxosproto.Prepare{LeaderId: 1, Replica: 2, Instance: 0, Ballot: 33})
	inst := r.InstanceSpace[2][0]
	if inst == nil || inst.bal != 33 {
		t.Fatalf("prepare did not raise the slot's ballot: %+v", inst)
	}

	r.handlePreAccept(&epaxosproto.PreAccept{
		LeaderId: 2, Replica: 2, Instance: 0, Ballot: 0,
		Command: set("a", "1"), Seq: 0,
	})

	if inst.Status != epaxosproto.NONE || inst.Cmd.Op != state.NONE {
		t.Errorf("low-ballot preaccept installed a command: %+v", inst)
	}
}

func TestPreAcceptConflictingOccupantPanics(t *testing.T) {
	r := testReplica(t, 5)

	r.handlePreAccept(&epaxosproto.PreAccept{
		LeaderId: 1, Replica: 1, Instance: 0, Ballot: 0,
		Command: set("a", "1"), Seq: 0,
	})

	defer func() {
		if recover() == nil {
			t.Error("expected panic when a different command claims an occupied slot")
		}
	}()
	r.handlePreAccept(&epaxosproto.PreAccept{
		LeaderId: 1, Replica: 1, Instance: 0, Ballot: 0,
		Command: set("z", "9"), Seq: 0,
	})
}

func TestDuplicateCommitIgnored(t *testing.T) {
	r := testReplica(t, 5)

	r.handleCommit(&epaxosproto.Commit{
		LeaderId: 2, Replica: 2, Instance: 0,
		Command: set("a", "1"), Seq: 0,
	})
	if got := r.InstanceSpace[2][0].Status; got != epaxosproto.EXECUTED {
		t.Fatalf("status = %d, want executed", got)
	}

	r.handleCommit(&epaxosproto.Commit{
		LeaderId: 2, Replica: 2, Instance: 0,
		Command: set("a", "5"), Seq: 0,
	})
	if got := r.State.Store["a"]; got != "1" {
		t.Errorf("duplicate commit re-executed: store[a] = %q", got)
	}
}

func TestDreplyDefersWriteReplyUntilExecution(t *testing.T) {
	r := NewReplica(0, addrs(7), false, true, true, false, false, false, 0, 3, t.TempDir(), 5000)

	// an open conflict the new proposal will depend on
	r.handlePreAccept(&epaxosproto.PreAccept{
		LeaderId: 1, Replica: 1, Instance: 0, Ballot: 0,
		Command: set("a", "0"), Seq: 0,
	})

	prop, buf := clientProposal(7, set("a", "1"))
	r.handlePropose(prop)
	inst := r.InstanceSpace[0][0]
	for _, q := range []int32{1, 2, 3, 4, 5} {
		r.handlePreAcceptReply(okPreAcceptReply(q, inst, 0, 0))
	}

	if inst.Status != epaxosproto.COMMITTED {
		t.Fatalf("status = %d, want committed with execution parked", inst.Status)
	}
	if buf.Len() != 0 {
		t.Fatal("write answered before execution")
	}

	r.handleCommit(&epaxosproto.Commit{
		LeaderId: 1, Replica: 1, Instance: 0,
		Command: set("a", "0"), Seq: 0,
	})

	if inst.Status != epaxosproto.EXECUTED {
		t.Fatalf("status = %d, want executed", inst.Status)
	}
	var reply genericsmrproto.ProposeReplyTS
	if err := reply.Unmarshal(buf); err != nil {
		t.Fatalf("no reply after execution: %v", err)
	}
	if reply.Value != "1" {
		t.Errorf("reply value = %q, want 1", reply.Value)
	}
	if got := r.State.Store["a"]; got != "1" {
		t.Errorf("store[a] = %q, want 1", got)
	}
}
