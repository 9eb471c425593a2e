package epaxos

import (
	"testing"
	"time"

	"github.com/Brian-1402/EPaxos-reactor/epaxosproto"
	"github.com/Brian-1402/EPaxos-reactor/genericsmr"
	"github.com/Brian-1402/EPaxos-reactor/state"
)

// recoveringReplica builds replica 0 of a five-replica group with an
// unfinished instance 1.0 on a peer the detector considers dead, and
// recovery already started for it.
func recoveringReplica(t *testing.T) (*Replica, *Instance) {
	t.Helper()
	r := testReplica(t, 5)
	r.crtInstance[1] = 1
	r.startTime = time.Now().Add(-RECOVERY_GRACE_PERIOD - time.Second)
	r.checkForFailures()
	inst := r.InstanceSpace[1][0]
	if inst == nil || inst.lb == nil || !inst.lb.preparing {
		t.Fatalf("recovery did not start: %+v", inst)
	}
	return r, inst
}

func prepareOK(from int32, ballot int32, status int8, cmd state.Command, seq int32) *epaxosproto.PrepareReply {
	return &epaxosproto.PrepareReply{
		AcceptorId: from,
		Replica:    1,
		Instance:   0,
		OK:         genericsmr.TRUE,
		Ballot:     ballot,
		Status:     status,
		Command:    cmd,
		Seq:        seq,
	}
}

func TestCheckForFailuresStartsRecovery(t *testing.T) {
	r := testReplica(t, 5)
	r.handlePreAccept(&epaxosproto.PreAccept{
		LeaderId: 1, Replica: 1, Instance: 0, Ballot: 0,
		Command: set("a", "1"), Seq: 0,
	})
	inst := r.InstanceSpace[1][0]

	r.checkForFailures()
	if inst.lb != nil {
		t.Fatal("recovery started inside the grace period")
	}

	r.startTime = time.Now().Add(-RECOVERY_GRACE_PERIOD - time.Second)
	r.checkForFailures()

	if inst.lb == nil || !inst.lb.preparing {
		t.Fatal("recovery not started for a stuck instance")
	}
	if inst.bal != 16 {
		t.Errorf("ballot = %d, want 16", inst.bal)
	}
	if len(inst.lb.prepareReplies) != 1 {
		t.Errorf("own evidence not seeded: %d replies", len(inst.lb.prepareReplies))
	}
	if r.Stats.M["recoveries"] != 1 {
		t.Errorf("recoveries = %d, want 1", r.Stats.M["recoveries"])
	}

	r.checkForFailures()
	if r.Stats.M["recoveries"] != 1 {
		t.Error("fresh attempt restarted too early")
	}
}

func TestRecoveryAdoptsCommittedValue(t *testing.T) {
	r, inst := recoveringReplica(t)
	lb := inst.lb

	r.handlePrepareReply(prepareOK(2, 16, epaxosproto.COMMITTED, set("a", "9"), 2))
	if !lb.preparing {
		t.Fatal("decided below the prepare quorum")
	}
	r.handlePrepareReply(prepareOK(3, 16, epaxosproto.NONE, state.Command{Op: state.NONE}, 0))

	if lb.preparing {
		t.Fatal("prepare quorum did not decide")
	}
	if inst.Status != epaxosproto.EXECUTED {
		t.Fatalf("status = %d, want executed", inst.Status)
	}
	if got := r.State.Store["a"]; got != "9" {
		t.Errorf("store[a] = %q, want 9", got)
	}

	// a straggling prepare ack lands on the decided instance
	r.handlePrepareReply(prepareOK(4, 16, epaxosproto.NONE, state.Command{Op: state.NONE}, 0))
	if inst.Status != epaxosproto.EXECUTED {
		t.Error("late prepare ack disturbed a decided instance")
	}
}

func TestRecoveryResumesAcceptedValue(t *testing.T) {
	r, inst := recoveringReplica(t)

	r.handlePrepareReply(prepareOK(2, 16, epaxosproto.ACCEPTED, set("k", "5"), 1))
	r.handlePrepareReply(prepareOK(3, 16, epaxosproto.NONE, state.Command{Op: state.NONE}, 0))

	if inst.Status != epaxosproto.ACCEPTED || inst.Cmd.V != "5" {
		t.Fatalf("accepted value not resumed: %+v", inst)
	}
	if inst.lb.acceptTally == nil {
		t.Fatal("no accept round started")
	}

	r.handleAcceptReply(&epaxosproto.AcceptReply{AcceptorId: 2, Replica: 1, Instance: 0, OK: genericsmr.TRUE, Ballot: 16})
	r.handleAcceptReply(&epaxosproto.AcceptReply{AcceptorId: 3, Replica: 1, Instance: 0, OK: genericsmr.TRUE, Ballot: 16})

	if inst.Status != epaxosproto.EXECUTED {
		t.Fatalf("status = %d, want executed", inst.Status)
	}
	if got := r.State.Store["k"]; got != "5" {
		t.Errorf("store[k] = %q, want 5", got)
	}
}

func TestRecoveryCommitsNoopForUnseenInstance(t *testing.T) {
	r, inst := recoveringReplica(t)

	r.handlePrepareReply(prepareOK(2, 16, epaxosproto.NONE, state.Command{Op: state.NONE}, 0))
	r.handlePrepareReply(prepareOK(3, 16, epaxosproto.NONE, state.Command{Op: state.NONE}, 0))

	if inst.Status != epaxosproto.ACCEPTED || inst.Cmd.Op != state.NONE {
		t.Fatalf("unseen instance not settled as no-op: %+v", inst)
	}
	if r.Stats.M["noopCommits"] != 1 {
		t.Errorf("noopCommits = %d, want 1", r.Stats.M["noopCommits"])
	}

	r.handleAcceptReply(&epaxosproto.AcceptReply{AcceptorId: 2, Replica: 1, Instance: 0, OK: genericsmr.TRUE, Ballot: 16})
	r.handleAcceptReply(&epaxosproto.AcceptReply{AcceptorId: 3, Replica: 1, Instance: 0, OK: genericsmr.TRUE, Ballot: 16})

	if inst.Status != epaxosproto.EXECUTED {
		t.Fatalf("status = %d, want executed", inst.Status)
	}
	if len(r.State.Store) != 0 {
		t.Error("no-op touched the store")
	}
}

func TestRecoverySettlesUniformPreaccepts(t *testing.T) {
	r, inst := recoveringReplica(t)

	// identical preaccepts from a majority, none from the failed leader
	r.handlePrepareReply(prepareOK(2, 16, epaxosproto.PREACCEPTED, set("a", "4"), 1))
	r.handlePrepareReply(prepareOK(3, 16, epaxosproto.PREACCEPTED, set("a", "4"), 1))

	if inst.Status != epaxosproto.ACCEPTED {
		t.Fatalf("status = %d, want accepted", inst.Status)
	}
	if inst.lb.preAcceptTally != nil {
		t.Error("phase one restarted unnecessarily")
	}
	if inst.lb.acceptTally == nil {
		t.Fatal("no accept round started")
	}
	if inst.Cmd.V != "4" || inst.Seq != 1 {
		t.Errorf("settled wrong attributes: %+v", inst)
	}
}

func TestRecoveryRestartsPhaseOneOnPartialPreaccepts(t *testing.T) {
	r, inst := recoveringReplica(t)

	r.handlePrepareReply(prepareOK(2, 16, epaxosproto.PREACCEPTED, set("a", "4"), 0))
	r.handlePrepareReply(prepareOK(3, 16, epaxosproto.NONE, state.Command{Op: state.NONE}, 0))

	if inst.Status != epaxosproto.PREACCEPTED {
		t.Fatalf("status = %d, want preaccepted restart", inst.Status)
	}
	if inst.lb.preAcceptTally == nil || inst.lb.acceptTally != nil {
		t.Fatal("phase one not restarted")
	}
	if inst.bal != 16 {
		t.Errorf("ballot = %d, want the recovery ballot 16", inst.bal)
	}

	// identical echoes at the higher ballot settle through the accept
	// round; no fast path above ballot zero
	r.handlePreAcceptReply(okPreAcceptReply(2, inst, 1, 0))
	r.handlePreAcceptReply(okPreAcceptReply(3, inst, 1, 0))

	if inst.Status != epaxosproto.ACCEPTED {
		t.Fatalf("status = %d, want accepted", inst.Status)
	}
	if inst.lb.acceptTally == nil {
		t.Fatal("no accept round started")
	}

	r.handleAcceptReply(&epaxosproto.AcceptReply{AcceptorId: 2, Replica: 1, Instance: 0, OK: genericsmr.TRUE, Ballot: 16})
	r.handleAcceptReply(&epaxosproto.AcceptReply{AcceptorId: 3, Replica: 1, Instance: 0, OK: genericsmr.TRUE, Ballot: 16})

	if inst.Status != epaxosproto.EXECUTED {
		t.Fatalf("status = %d, want executed", inst.Status)
	}
	if got := r.State.Store["a"]; got != "4" {
		t.Errorf("store[a] = %q, want 4", got)
	}
}

func TestPrepareNackConcedesAndRetriesHigher(t *testing.T) {
	r, inst := recoveringReplica(t)
	lb := inst.lb

	r.handlePrepareReply(&epaxosproto.PrepareReply{
		AcceptorId: 2, Replica: 1, Instance: 0,
		OK: genericsmr.FALSE, Ballot: 99,
	})

	if lb.preparing {
		t.Fatal("nack did not concede the attempt")
	}
	if lb.maxRecvBallot != 99 {
		t.Errorf("maxRecvBallot = %d, want 99", lb.maxRecvBallot)
	}

	lb.lastRecoveryAttempt = time.Now().Add(-RECOVERY_RESTART_TIMEOUT - time.Second)
	r.checkForFailures()

	if !lb.preparing {
		t.Fatal("stale attempt not retried")
	}
	if inst.bal != 112 {
		t.Errorf("ballot = %d, want 112 (above the observed 99)", inst.bal)
	}
}

func TestHandlePrepareTracksBallots(t *testing.T) {
	r := testReplica(t, 5)

	r.handlePrepare(&epaxosproto.Prepare{LeaderId: 1, Replica: 2, Instance: 0, Ballot: 33})
	inst := r.InstanceSpace[2][0]
	if inst == nil || inst.bal != 33 || inst.Status != epaxosproto.NONE {
		t.Fatalf("prepare on an unseen slot: %+v", inst)
	}
	if r.crtInstance[2] != 1 {
		t.Errorf("crtInstance[2] = %d, want 1", r.crtInstance[2])
	}

	r.handlePrepare(&epaxosproto.Prepare{LeaderId: 3, Replica: 2, Instance: 0, Ballot: 17})
	if inst.bal != 33 {
		t.Errorf("lower ballot overwrote the promise: %d", inst.bal)
	}

	r.handlePrepare(&epaxosproto.Prepare{LeaderId: 3, Replica: 2, Instance: 0, Ballot: 49})
	if inst.bal != 49 {
		t.Errorf("higher ballot not promised: %d", inst.bal)
	}
}
