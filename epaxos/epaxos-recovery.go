package epaxos

import (
	"fmt"
	"time"

	"github.com/Brian-1402/EPaxos-reactor/dlog"
	"github.com/Brian-1402/EPaxos-reactor/epaxosproto"
	"github.com/Brian-1402/EPaxos-reactor/genericsmr"
	"github.com/Brian-1402/EPaxos-reactor/quorum"
	"github.com/Brian-1402/EPaxos-reactor/state"
)

const RECOVERY_RESTART_TIMEOUT = 5 * time.Second

// checkForFailures scans the logs of peers the failure detector considers
// dead and starts recovery for any instance stuck short of commit.
func (r *Replica) checkForFailures() {
	if time.Since(r.startTime) < RECOVERY_GRACE_PERIOD {
		return
	}
	for q := int32(0); q < int32(r.N); q++ {
		if q == r.Id {
			continue
		}
		r.Mutex.Lock()
		alive := r.Alive[q]
		r.Mutex.Unlock()
		if alive {
			continue
		}
		for i := int32(0); i < r.crtInstance[q]; i++ {
			inst := r.InstanceSpace[q][i]
			if inst != nil && inst.Status >= epaxosproto.COMMITTED {
				continue
			}
			if inst == nil || inst.lb == nil || time.Since(inst.lb.lastRecoveryAttempt) > RECOVERY_RESTART_TIMEOUT {
				r.startRecoveryForInstance(q, i)
			}
		}
	}
}

func (r *Replica) startRecoveryForInstance(replica int32, instance int32) {
	inst := r.getInstance(replica, instance)
	if inst == nil {
		inst = &Instance{
			Cmd:    state.Command{Op: state.NONE},
			Status: epaxosproto.NONE,
			Deps:   make(map[epaxosproto.InstanceId]struct{}),
		}
		r.InstanceSpace[replica][instance] = inst
	}
	if inst.lb == nil {
		inst.lb = &LeaderBookkeeping{}
	}
	lb := inst.lb

	base := inst.bal
	if lb.maxRecvBallot > base {
		base = lb.maxRecvBallot
	}
	lb.ballot = r.makeBallotLargerThan(base)
	lb.preparing = true
	lb.preAcceptTally = nil
	lb.acceptTally = nil
	lb.prepareTally = quorum.NewCountingQuorumTally(r.slowQuorumSize)
	lb.prepareReplies = lb.prepareReplies[:0]
	lb.lastRecoveryAttempt = time.Now()

	// this replica's own knowledge counts as evidence, though not toward
	// the peer quorum
	lb.prepareReplies = append(lb.prepareReplies, &epaxosproto.PrepareReply{
		AcceptorId: r.Id,
		Replica:    replica,
		Instance:   instance,
		OK:         genericsmr.TRUE,
		Ballot:     inst.bal,
		Status:     inst.Status,
		Command:    inst.Cmd,
		Seq:        inst.Seq,
		Deps:       depsToSlice(inst.Deps),
	})

	inst.bal = lb.ballot
	r.bumpStat("recoveries")
	dlog.AgentPrintfN(r.Id, "preparing %d.%d at ballot %d", replica, instance, lb.ballot)
	r.bcastPrepare(replica, instance, lb.ballot)
}

func (r *Replica) handlePrepare(prepare *epaxosproto.Prepare) {
	r.updateCrtInstance(prepare.Replica, prepare.Instance)
	inst := r.getInstance(prepare.Replica, prepare.Instance)

	if inst == nil {
		inst = &Instance{
			Cmd:    state.Command{Op: state.NONE},
			bal:    prepare.Ballot,
			Status: epaxosproto.NONE,
			Deps:   make(map[epaxosproto.InstanceId]struct{}),
		}
		r.InstanceSpace[prepare.Replica][prepare.Instance] = inst
	} else {
		if prepare.Ballot < inst.bal {
			r.SendMsg(prepare.LeaderId, r.prepareReplyRPC, &epaxosproto.PrepareReply{
				AcceptorId: r.Id,
				Replica:    prepare.Replica,
				Instance:   prepare.Instance,
				OK:         genericsmr.FALSE,
				Ballot:     inst.bal,
			})
			return
		}
		inst.bal = prepare.Ballot
	}

	r.recordInstanceMetadata(inst)
	r.sync()

	dlog.Printf("Replica %d promised ballot %d for %d.%d\n", r.Id, prepare.Ballot, prepare.Replica, prepare.Instance)

	r.SendMsg(prepare.LeaderId, r.prepareReplyRPC, &epaxosproto.PrepareReply{
		AcceptorId: r.Id,
		Replica:    prepare.Replica,
		Instance:   prepare.Instance,
		OK:         genericsmr.TRUE,
		Ballot:     inst.bal,
		Status:     inst.Status,
		Command:    inst.Cmd,
		Seq:        inst.Seq,
		Deps:       depsToSlice(inst.Deps),
	})
}

func (r *Replica) handlePrepareReply(preply *epaxosproto.PrepareReply) {
	inst := r.getInstance(preply.Replica, preply.Instance)
	if inst == nil || inst.lb == nil || !inst.lb.preparing {
		dlog.Printf("Replica %d: stale Prepare ack for %d.%d\n", r.Id, preply.Replica, preply.Instance)
		return
	}
	lb := inst.lb

	if inst.Status >= epaxosproto.COMMITTED {
		lb.preparing = false
		return
	}
	if preply.OK == genericsmr.FALSE {
		// a higher ballot is out there; concede this attempt
		if preply.Ballot > lb.maxRecvBallot {
			lb.maxRecvBallot = preply.Ballot
		}
		lb.preparing = false
		return
	}
	if preply.Ballot != lb.ballot {
		return
	}
	if lb.prepareTally.Acknowledged(preply.AcceptorId) {
		return
	}
	lb.prepareTally.Add(preply.AcceptorId)
	lb.prepareReplies = append(lb.prepareReplies, preply)

	if lb.prepareTally.Reached() {
		r.decideAfterPrepare(preply.Replica, preply.Instance)
	}
}

func attrsKey(seq int32, deps []epaxosproto.InstanceId) string {
	return fmt.Sprintf("%d|%v", seq, deps)
}

// decideAfterPrepare enacts the selection rule once a majority of peers
// have answered the Prepare: adopt any commit, else the highest accepted
// value, else settle or restart from the preaccepted evidence, else
// close the slot with a no-op.
func (r *Replica) decideAfterPrepare(replica int32, instance int32) {
	inst := r.InstanceSpace[replica][instance]
	lb := inst.lb
	lb.preparing = false

	var best *epaxosproto.PrepareReply
	for _, pr := range lb.prepareReplies {
		if best == nil || pr.Status > best.Status {
			best = pr
		}
	}

	switch {
	case best.Status >= epaxosproto.COMMITTED:
		dlog.Printf("Replica %d recovery found %d.%d already decided\n", r.Id, replica, instance)
		inst.Cmd = best.Command
		inst.Seq = best.Seq
		inst.Deps = depsFromSlice(best.Deps)
		r.commitInstance(replica, instance)

	case best.Status == epaxosproto.ACCEPTED:
		dlog.Printf("Replica %d recovery resuming accepted %d.%d\n", r.Id, replica, instance)
		r.recoveryAccept(replica, instance, best.Command, best.Seq, depsFromSlice(best.Deps))

	case best.Status == epaxosproto.PREACCEPTED:
		// a majority of identical preaccepts, none involving the original
		// leader, could not have been part of a divergent fast commit
		groups := make(map[string][]*epaxosproto.PrepareReply)
		for _, pr := range lb.prepareReplies {
			if pr.Status != epaxosproto.PREACCEPTED {
				continue
			}
			groups[attrsKey(pr.Seq, pr.Deps)] = append(groups[attrsKey(pr.Seq, pr.Deps)], pr)
		}
		for _, group := range groups {
			fromLeader := false
			for _, pr := range group {
				if pr.AcceptorId == replica {
					fromLeader = true
					break
				}
			}
			if len(group) >= r.slowQuorumSize && !fromLeader {
				pr := group[0]
				dlog.Printf("Replica %d recovery settling preaccepted %d.%d\n", r.Id, replica, instance)
				r.recoveryAccept(replica, instance, pr.Command, pr.Seq, depsFromSlice(pr.Deps))
				return
			}
		}

		dlog.Printf("Replica %d recovery restarting phase one for %d.%d\n", r.Id, replica, instance)
		inst.Cmd = best.Command
		seq, deps := r.updateAttributes(&inst.Cmd, replica, instance)
		if best.Seq > seq {
			seq = best.Seq
		}
		mergeInto(deps, best.Deps)
		inst.Seq = seq
		inst.Deps = deps
		inst.Status = epaxosproto.PREACCEPTED
		lb.preAcceptTally = quorum.NewFastQuorumTally(r.slowQuorumSize, r.fastQuorumSize)
		lb.acceptTally = nil
		r.recordInstanceMetadata(inst)
		r.recordCommand(&inst.Cmd)
		r.sync()
		r.bcastPreAccept(replica, instance)

	default:
		// nobody has seen the instance: close the slot harmlessly
		dlog.Printf("Replica %d recovery committing no-op for %d.%d\n", r.Id, replica, instance)
		r.bumpStat("noopCommits")
		r.recoveryAccept(replica, instance, state.Command{Op: state.NONE}, 0, make(map[epaxosproto.InstanceId]struct{}))
	}
}

func (r *Replica) recoveryAccept(replica int32, instance int32, cmd state.Command, seq int32, deps map[epaxosproto.InstanceId]struct{}) {
	inst := r.InstanceSpace[replica][instance]
	lb := inst.lb

	inst.Cmd = cmd
	inst.Seq = seq
	inst.Deps = deps
	inst.Status = epaxosproto.ACCEPTED

	lb.preAcceptTally = nil
	lb.acceptTally = quorum.NewCountingQuorumTally(r.slowQuorumSize)

	r.recordInstanceMetadata(inst)
	r.recordCommand(&cmd)
	r.sync()

	dlog.Printf("Replica %d recovery accept round for %d.%d\n", r.Id, replica, instance)
	r.bcastAccept(replica, instance)
}
