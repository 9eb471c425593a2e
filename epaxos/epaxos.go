package epaxos

import (
	"sort"
	"time"

	"github.com/emirpasic/gods/sets/treeset"

	"github.com/Brian-1402/EPaxos-reactor/commitexec"
	"github.com/Brian-1402/EPaxos-reactor/dlog"
	"github.com/Brian-1402/EPaxos-reactor/epaxosproto"
	"github.com/Brian-1402/EPaxos-reactor/fastrpc"
	"github.com/Brian-1402/EPaxos-reactor/genericsmr"
	"github.com/Brian-1402/EPaxos-reactor/genericsmrproto"
	"github.com/Brian-1402/EPaxos-reactor/quorum"
	"github.com/Brian-1402/EPaxos-reactor/state"
)

const MAX_INSTANCE = 2 * 1024 * 1024

const RECOVERY_GRACE_PERIOD = 10 * time.Second

type Replica struct {
	*genericsmr.Replica

	preAcceptChan      chan fastrpc.Serializable
	preAcceptReplyChan chan fastrpc.Serializable
	acceptChan         chan fastrpc.Serializable
	acceptReplyChan    chan fastrpc.Serializable
	commitChan         chan fastrpc.Serializable
	prepareChan        chan fastrpc.Serializable
	prepareReplyChan   chan fastrpc.Serializable

	preAcceptRPC      uint8
	preAcceptReplyRPC uint8
	acceptRPC         uint8
	acceptReplyRPC    uint8
	commitRPC         uint8
	prepareRPC        uint8
	prepareReplyRPC   uint8

	InstanceSpace [][]*Instance
	crtInstance   []int32 // highest active instance number that this replica knows about, per log

	// CommittedOnly restricts the interference scan to records at status
	// Committed or later; by default uncommitted records are scanned too.
	CommittedOnly bool

	slowQuorumSize int // peer acks for the classic majority, leader excluded
	fastQuorumSize int // peer acks for the fast path, leader excluded

	exec        *Exec
	pendingExec *treeset.Set // committed instances whose dependencies are not yet all committed

	LatencyRecorder *commitexec.Recorder

	startTime time.Time
}

type Instance struct {
	Cmd    state.Command
	bal    int32
	Status int8
	Seq    int32
	Deps   map[epaxosproto.InstanceId]struct{}
	lb     *LeaderBookkeeping
}

type LeaderBookkeeping struct {
	clientProposal *genericsmr.Propose
	preAcceptTally *quorum.FastQuorumTally
	acceptTally    *quorum.CountingQuorumTally

	// recovery
	ballot              int32
	preparing           bool
	prepareTally        *quorum.CountingQuorumTally
	prepareReplies      []*epaxosproto.PrepareReply
	maxRecvBallot       int32
	lastRecoveryAttempt time.Time
}

func instanceIdComparator(a, b interface{}) int {
	x := a.(epaxosproto.InstanceId)
	y := b.(epaxosproto.InstanceId)
	if x.Replica != y.Replica {
		return int(x.Replica - y.Replica)
	}
	return int(x.Instance - y.Instance)
}

func NewReplica(id int, peerAddrList []string, thrifty bool, exec bool, dreply bool, beacon bool, durable bool, committedOnly bool, fastQuorumOverride int, failures int, storageParentDir string, deadTime int32) *Replica {
	r := &Replica{
		genericsmr.NewReplica(id, peerAddrList, thrifty, exec, dreply, durable, failures, storageParentDir, deadTime),
		make(chan fastrpc.Serializable, genericsmr.CHAN_BUFFER_SIZE),
		make(chan fastrpc.Serializable, genericsmr.CHAN_BUFFER_SIZE),
		make(chan fastrpc.Serializable, genericsmr.CHAN_BUFFER_SIZE),
		make(chan fastrpc.Serializable, genericsmr.CHAN_BUFFER_SIZE),
		make(chan fastrpc.Serializable, genericsmr.CHAN_BUFFER_SIZE),
		make(chan fastrpc.Serializable, genericsmr.CHAN_BUFFER_SIZE),
		make(chan fastrpc.Serializable, genericsmr.CHAN_BUFFER_SIZE),
		0, 0, 0, 0, 0, 0, 0,
		make([][]*Instance, len(peerAddrList)),
		make([]int32, len(peerAddrList)),
		committedOnly,
		0,
		0,
		nil,
		treeset.NewWith(instanceIdComparator),
		nil,
		time.Now(),
	}
	r.Beacon = beacon

	for i := 0; i < r.N; i++ {
		r.InstanceSpace[i] = make([]*Instance, MAX_INSTANCE)
		r.crtInstance[i] = 0
	}

	r.slowQuorumSize = quorum.Majority(r.N)
	if fastQuorumOverride > 0 {
		r.fastQuorumSize = fastQuorumOverride
	} else {
		r.fastQuorumSize = quorum.FastQuorum(r.N)
	}

	r.exec = &Exec{r}

	r.preAcceptRPC = r.RegisterRPC(new(epaxosproto.PreAccept), r.preAcceptChan)
	r.preAcceptReplyRPC = r.RegisterRPC(new(epaxosproto.PreAcceptReply), r.preAcceptReplyChan)
	r.acceptRPC = r.RegisterRPC(new(epaxosproto.Accept), r.acceptChan)
	r.acceptReplyRPC = r.RegisterRPC(new(epaxosproto.AcceptReply), r.acceptReplyChan)
	r.commitRPC = r.RegisterRPC(new(epaxosproto.Commit), r.commitChan)
	r.prepareRPC = r.RegisterRPC(new(epaxosproto.Prepare), r.prepareChan)
	r.prepareReplyRPC = r.RegisterRPC(new(epaxosproto.PrepareReply), r.prepareReplyChan)

	return r
}

/* Main event processing loop */

func (r *Replica) Run() {
	r.ConnectToPeers()
	r.RandomisePeerOrder()

	dlog.Println("Waiting for client connections")
	go r.WaitForClientConnections()

	recoveryTick := time.NewTicker(100 * time.Millisecond)
	if !r.Beacon {
		recoveryTick.Stop()
	}

	for !r.Shutdown {
		select {

		case propose := <-r.ProposeChan:
			r.handlePropose(propose)

		case preAcceptS := <-r.preAcceptChan:
			preAccept := preAcceptS.(*epaxosproto.PreAccept)
			r.handlePreAccept(preAccept)

		case preAcceptReplyS := <-r.preAcceptReplyChan:
			preAcceptReply := preAcceptReplyS.(*epaxosproto.PreAcceptReply)
			r.handlePreAcceptReply(preAcceptReply)

		case acceptS := <-r.acceptChan:
			accept := acceptS.(*epaxosproto.Accept)
			r.handleAccept(accept)

		case acceptReplyS := <-r.acceptReplyChan:
			acceptReply := acceptReplyS.(*epaxosproto.AcceptReply)
			r.handleAcceptReply(acceptReply)

		case commitS := <-r.commitChan:
			commit := commitS.(*epaxosproto.Commit)
			r.handleCommit(commit)

		case prepareS := <-r.prepareChan:
			prepare := prepareS.(*epaxosproto.Prepare)
			r.handlePrepare(prepare)

		case prepareReplyS := <-r.prepareReplyChan:
			prepareReply := prepareReplyS.(*epaxosproto.PrepareReply)
			r.handlePrepareReply(prepareReply)

		case <-recoveryTick.C:
			r.CalculateAlive()
			r.checkForFailures()
		}
	}
}

/* Ballots */

func (r *Replica) makeUniqueBallot(ballot int32) int32 {
	return (ballot << 4) | r.Id
}

func (r *Replica) makeBallotLargerThan(ballot int32) int32 {
	return r.makeUniqueBallot((ballot >> 4) + 1)
}

/* Attribute bookkeeping */

func (r *Replica) getInstance(replica int32, instance int32) *Instance {
	if replica < 0 || replica >= int32(r.N) || instance < 0 || instance >= MAX_INSTANCE {
		return nil
	}
	return r.InstanceSpace[replica][instance]
}

func (r *Replica) updateCrtInstance(replica int32, instance int32) {
	if instance >= r.crtInstance[replica] {
		r.crtInstance[replica] = instance + 1
	}
}

// updateAttributes computes the sequence number and dependency set of cmd
// against every record this replica knows about, skipping the slot the
// command itself will occupy.
func (r *Replica) updateAttributes(cmd *state.Command, replica int32, instance int32) (int32, map[epaxosproto.InstanceId]struct{}) {
	seq := int32(0)
	deps := make(map[epaxosproto.InstanceId]struct{})
	for q := int32(0); q < int32(r.N); q++ {
		for i := int32(0); i < r.crtInstance[q]; i++ {
			if q == replica && i == instance {
				continue
			}
			inst := r.InstanceSpace[q][i]
			if inst == nil {
				continue
			}
			if r.CommittedOnly && inst.Status < epaxosproto.COMMITTED {
				continue
			}
			if !state.Conflict(&inst.Cmd, cmd) {
				continue
			}
			deps[epaxosproto.InstanceId{Replica: q, Instance: i}] = struct{}{}
			if inst.Seq >= seq {
				seq = inst.Seq + 1
			}
		}
	}
	return seq, deps
}

func depsToSlice(deps map[epaxosproto.InstanceId]struct{}) []epaxosproto.InstanceId {
	out := make([]epaxosproto.InstanceId, 0, len(deps))
	for d := range deps {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Replica != out[j].Replica {
			return out[i].Replica < out[j].Replica
		}
		return out[i].Instance < out[j].Instance
	})
	return out
}

func depsFromSlice(deps []epaxosproto.InstanceId) map[epaxosproto.InstanceId]struct{} {
	out := make(map[epaxosproto.InstanceId]struct{}, len(deps))
	for _, d := range deps {
		out[d] = struct{}{}
	}
	return out
}

func depsEqual(stored map[epaxosproto.InstanceId]struct{}, replied []epaxosproto.InstanceId) bool {
	if len(stored) != len(replied) {
		return false
	}
	for _, d := range replied {
		if _, present := stored[d]; !present {
			return false
		}
	}
	return true
}

// mergeInto unions the replied dependencies into the stored set.
func mergeInto(stored map[epaxosproto.InstanceId]struct{}, replied []epaxosproto.InstanceId) {
	for _, d := range replied {
		stored[d] = struct{}{}
	}
}

func sameCommand(a *state.Command, b *state.Command) bool {
	return a.Op == b.Op && a.K == b.K && a.V == b.V
}

/* Durable logging */

func (r *Replica) recordInstanceMetadata(inst *Instance) {
	if !r.Durable {
		return
	}
	var b [9]byte
	b[0] = byte(inst.bal)
	b[1] = byte(inst.bal >> 8)
	b[2] = byte(inst.bal >> 16)
	b[3] = byte(inst.bal >> 24)
	b[4] = byte(inst.Status)
	b[5] = byte(inst.Seq)
	b[6] = byte(inst.Seq >> 8)
	b[7] = byte(inst.Seq >> 16)
	b[8] = byte(inst.Seq >> 24)
	r.StableStore.Write(b[:])
	for _, d := range depsToSlice(inst.Deps) {
		d.Marshal(r.StableStore)
	}
}

func (r *Replica) recordCommand(cmd *state.Command) {
	if !r.Durable {
		return
	}
	cmd.Marshal(r.StableStore)
}

func (r *Replica) sync() {
	if !r.Durable {
		return
	}
	r.StableStore.Sync()
}

/* Stats */

func (r *Replica) bumpStat(key string) {
	r.Mutex.Lock()
	r.Stats.M[key]++
	r.Mutex.Unlock()
}

/* Broadcasts */

func (r *Replica) bcastPreAccept(replica int32, instance int32) {
	defer func() {
		if err := recover(); err != nil {
			dlog.Println("PreAccept bcast failed:", err)
		}
	}()
	inst := r.InstanceSpace[replica][instance]
	pa := &epaxosproto.PreAccept{
		LeaderId: r.Id,
		Replica:  replica,
		Instance: instance,
		Ballot:   inst.bal,
		Command:  inst.Cmd,
		Seq:      inst.Seq,
		Deps:     depsToSlice(inst.Deps),
	}

	n := r.N - 1
	if r.Thrifty {
		n = r.fastQuorumSize
	}
	sent := 0
	for _, q := range r.PreferredPeerOrder {
		if q == r.Id || !r.Alive[q] {
			continue
		}
		r.SendMsg(q, r.preAcceptRPC, pa)
		sent++
		if sent >= n {
			break
		}
	}
}

func (r *Replica) bcastAccept(replica int32, instance int32) {
	defer func() {
		if err := recover(); err != nil {
			dlog.Println("Accept bcast failed:", err)
		}
	}()
	inst := r.InstanceSpace[replica][instance]
	a := &epaxosproto.Accept{
		LeaderId: r.Id,
		Replica:  replica,
		Instance: instance,
		Ballot:   inst.bal,
		Command:  inst.Cmd,
		Seq:      inst.Seq,
		Deps:     depsToSlice(inst.Deps),
	}

	n := r.N - 1
	if r.Thrifty {
		n = r.slowQuorumSize
	}
	sent := 0
	for _, q := range r.PreferredPeerOrder {
		if q == r.Id || !r.Alive[q] {
			continue
		}
		r.SendMsg(q, r.acceptRPC, a)
		sent++
		if sent >= n {
			break
		}
	}
}

func (r *Replica) bcastCommit(replica int32, instance int32) {
	defer func() {
		if err := recover(); err != nil {
			dlog.Println("Commit bcast failed:", err)
		}
	}()
	inst := r.InstanceSpace[replica][instance]
	c := &epaxosproto.Commit{
		LeaderId: r.Id,
		Replica:  replica,
		Instance: instance,
		Command:  inst.Cmd,
		Seq:      inst.Seq,
		Deps:     depsToSlice(inst.Deps),
	}

	for q := int32(0); q < int32(r.N); q++ {
		if q == r.Id || !r.Alive[q] {
			continue
		}
		r.SendMsg(q, r.commitRPC, c)
	}
}

func (r *Replica) bcastPrepare(replica int32, instance int32, ballot int32) {
	defer func() {
		if err := recover(); err != nil {
			dlog.Println("Prepare bcast failed:", err)
		}
	}()
	p := &epaxosproto.Prepare{
		LeaderId: r.Id,
		Replica:  replica,
		Instance: instance,
		Ballot:   ballot,
	}

	for q := int32(0); q < int32(r.N); q++ {
		if q == r.Id || !r.Alive[q] {
			continue
		}
		r.SendMsg(q, r.prepareRPC, p)
	}
}

/* Client request: this replica becomes the command leader */

func (r *Replica) handlePropose(propose *genericsmr.Propose) {
	if propose.Command.Op != state.PUT && propose.Command.Op != state.GET {
		// never enters the instance log
		r.ReplyProposeTS(&genericsmrproto.ProposeReplyTS{
			OK:        genericsmr.FALSE,
			CommandId: propose.CommandId,
			ClientId:  propose.ClientId,
			Value:     state.NIL,
			Timestamp: propose.Timestamp,
		}, propose.Reply, propose.Mutex)
		return
	}

	instNo := r.crtInstance[r.Id]
	r.crtInstance[r.Id]++

	cmd := propose.Command
	seq, deps := r.updateAttributes(&cmd, r.Id, instNo)

	inst := &Instance{
		Cmd:    cmd,
		bal:    0,
		Status: epaxosproto.PREACCEPTED,
		Seq:    seq,
		Deps:   deps,
		lb: &LeaderBookkeeping{
			clientProposal: propose,
			preAcceptTally: quorum.NewFastQuorumTally(r.slowQuorumSize, r.fastQuorumSize),
		},
	}
	r.InstanceSpace[r.Id][instNo] = inst

	r.recordInstanceMetadata(inst)
	r.recordCommand(&cmd)
	r.sync()

	r.bumpStat("proposals")
	dlog.Printf("Replica %d leading instance %d.%d: %s (seq %d, %d deps)\n", r.Id, r.Id, instNo, cmd.String(), seq, len(deps))

	r.bcastPreAccept(r.Id, instNo)
}

/* Phase one at an acceptor */

func (r *Replica) handlePreAccept(preAccept *epaxosproto.PreAccept) {
	r.updateCrtInstance(preAccept.Replica, preAccept.Instance)
	inst := r.getInstance(preAccept.Replica, preAccept.Instance)

	if inst != nil && preAccept.Ballot < inst.bal {
		r.replyPreAccept(preAccept.LeaderId, &epaxosproto.PreAcceptReply{
			AcceptorId: r.Id,
			Replica:    preAccept.Replica,
			Instance:   preAccept.Instance,
			OK:         genericsmr.FALSE,
			Ballot:     inst.bal,
		})
		return
	}

	if inst != nil && inst.Status >= epaxosproto.ACCEPTED {
		// phase one is over for this slot; report what we hold
		r.replyPreAccept(preAccept.LeaderId, &epaxosproto.PreAcceptReply{
			AcceptorId: r.Id,
			Replica:    preAccept.Replica,
			Instance:   preAccept.Instance,
			OK:         genericsmr.TRUE,
			Ballot:     inst.bal,
			Seq:        inst.Seq,
			Deps:       depsToSlice(inst.Deps),
		})
		return
	}

	if inst != nil && inst.Cmd.Op != state.NONE && preAccept.Ballot == inst.bal && !sameCommand(&inst.Cmd, &preAccept.Command) {
		panic("instance slot occupied by a different command")
	}

	// merge the leader's view with our own
	seq, deps := r.updateAttributes(&preAccept.Command, preAccept.Replica, preAccept.Instance)
	if preAccept.Seq > seq {
		seq = preAccept.Seq
	}
	mergeInto(deps, preAccept.Deps)

	if inst == nil {
		inst = &Instance{}
		r.InstanceSpace[preAccept.Replica][preAccept.Instance] = inst
	}
	inst.Cmd = preAccept.Command
	inst.bal = preAccept.Ballot
	inst.Status = epaxosproto.PREACCEPTED
	inst.Seq = seq
	inst.Deps = deps

	r.recordInstanceMetadata(inst)
	r.recordCommand(&preAccept.Command)
	r.sync()

	dlog.Printf("Replica %d preaccepted %d.%d (seq %d, %d deps)\n", r.Id, preAccept.Replica, preAccept.Instance, seq, len(deps))

	r.replyPreAccept(preAccept.LeaderId, &epaxosproto.PreAcceptReply{
		AcceptorId: r.Id,
		Replica:    preAccept.Replica,
		Instance:   preAccept.Instance,
		OK:         genericsmr.TRUE,
		Ballot:     preAccept.Ballot,
		Seq:        seq,
		Deps:       depsToSlice(deps),
	})
}

func (r *Replica) replyPreAccept(leaderId int32, reply *epaxosproto.PreAcceptReply) {
	r.SendMsg(leaderId, r.preAcceptReplyRPC, reply)
}

/* Phase one acknowledgements at the command leader */

func (r *Replica) handlePreAcceptReply(pareply *epaxosproto.PreAcceptReply) {
	inst := r.getInstance(pareply.Replica, pareply.Instance)
	if inst == nil || inst.lb == nil {
		dlog.Printf("Replica %d: stale PreAccept ack for %d.%d\n", r.Id, pareply.Replica, pareply.Instance)
		return
	}
	lb := inst.lb

	if inst.Status >= epaxosproto.COMMITTED {
		// late acknowledgement for a decided instance
		dlog.Printf("Replica %d: PreAccept ack for already committed %d.%d\n", r.Id, pareply.Replica, pareply.Instance)
		return
	}
	if lb.preAcceptTally == nil || lb.acceptTally != nil {
		// phase two has taken over; phase-one stragglers are moot
		return
	}
	if pareply.OK == genericsmr.FALSE {
		if pareply.Ballot > lb.maxRecvBallot {
			lb.maxRecvBallot = pareply.Ballot
		}
		lb.preAcceptTally.Nack(pareply.AcceptorId)
		if lb.preAcceptTally.Preempted(r.N - 1) {
			// enough promises went to a higher ballot that no quorum can
			// form here; whoever holds that ballot finishes the instance
			dlog.Printf("Replica %d: phase one preempted for %d.%d\n", r.Id, pareply.Replica, pareply.Instance)
			lb.preAcceptTally = nil
		}
		return
	}
	if pareply.Ballot != inst.bal {
		return
	}

	equal := pareply.Seq == inst.Seq && depsEqual(inst.Deps, pareply.Deps)
	if !equal {
		if inst.Status == epaxosproto.PREACCEPTED && lb.preAcceptTally.FastReached() && lb.preAcceptTally.Clean() {
			panic("Quorum intersection invariant violated")
		}
		if pareply.Seq > inst.Seq {
			inst.Seq = pareply.Seq
		}
		mergeInto(inst.Deps, pareply.Deps)
		inst.Status = epaxosproto.ACCEPTED
		lb.preAcceptTally.NoteConflict()
	}

	lb.preAcceptTally.Add(pareply.AcceptorId)

	if lb.preAcceptTally.SlowReached() && (inst.Status == epaxosproto.ACCEPTED || inst.bal > 0) {
		// attributes are now fixed; settle them with a second round.
		// Rounds above the initial ballot never take the fast path.
		inst.Status = epaxosproto.ACCEPTED
		lb.acceptTally = quorum.NewCountingQuorumTally(r.slowQuorumSize)
		r.recordInstanceMetadata(inst)
		r.sync()
		dlog.Printf("Replica %d taking slow path for %d.%d\n", r.Id, pareply.Replica, pareply.Instance)
		r.bcastAccept(pareply.Replica, pareply.Instance)
		return
	}

	if inst.bal == 0 && lb.preAcceptTally.FastReached() && inst.Status == epaxosproto.PREACCEPTED && lb.preAcceptTally.Clean() {
		dlog.Printf("Replica %d fast path commit for %d.%d\n", r.Id, pareply.Replica, pareply.Instance)
		r.bumpStat("fastPathCommits")
		r.commitInstance(pareply.Replica, pareply.Instance)
	}
}

/* Phase two at an acceptor */

func (r *Replica) handleAccept(accept *epaxosproto.Accept) {
	r.updateCrtInstance(accept.Replica, accept.Instance)
	inst := r.getInstance(accept.Replica, accept.Instance)

	if inst != nil && accept.Ballot < inst.bal {
		r.SendMsg(accept.LeaderId, r.acceptReplyRPC, &epaxosproto.AcceptReply{
			AcceptorId: r.Id,
			Replica:    accept.Replica,
			Instance:   accept.Instance,
			OK:         genericsmr.FALSE,
			Ballot:     inst.bal,
		})
		return
	}

	if inst != nil && inst.Status >= epaxosproto.COMMITTED {
		// the decision outran this Accept; acknowledge without regressing
		r.SendMsg(accept.LeaderId, r.acceptReplyRPC, &epaxosproto.AcceptReply{
			AcceptorId: r.Id,
			Replica:    accept.Replica,
			Instance:   accept.Instance,
			OK:         genericsmr.TRUE,
			Ballot:     accept.Ballot,
		})
		return
	}

	if inst == nil {
		inst = &Instance{}
		r.InstanceSpace[accept.Replica][accept.Instance] = inst
	}
	inst.Cmd = accept.Command
	inst.bal = accept.Ballot
	inst.Status = epaxosproto.ACCEPTED
	inst.Seq = accept.Seq
	inst.Deps = depsFromSlice(accept.Deps)

	r.recordInstanceMetadata(inst)
	r.sync()

	dlog.Printf("Replica %d accepted %d.%d\n", r.Id, accept.Replica, accept.Instance)

	r.SendMsg(accept.LeaderId, r.acceptReplyRPC, &epaxosproto.AcceptReply{
		AcceptorId: r.Id,
		Replica:    accept.Replica,
		Instance:   accept.Instance,
		OK:         genericsmr.TRUE,
		Ballot:     accept.Ballot,
	})
}

/* Phase two acknowledgements at the command leader */

func (r *Replica) handleAcceptReply(areply *epaxosproto.AcceptReply) {
	inst := r.getInstance(areply.Replica, areply.Instance)
	if inst == nil || inst.lb == nil {
		dlog.Printf("Replica %d: stale Accept ack for %d.%d\n", r.Id, areply.Replica, areply.Instance)
		return
	}
	lb := inst.lb

	if inst.Status >= epaxosproto.COMMITTED {
		return
	}
	if lb.acceptTally == nil {
		return
	}
	if areply.OK == genericsmr.FALSE {
		if areply.Ballot > lb.maxRecvBallot {
			lb.maxRecvBallot = areply.Ballot
		}
		lb.acceptTally.Nack(areply.AcceptorId)
		if lb.acceptTally.Preempted(r.N - 1) {
			dlog.Printf("Replica %d: accept round preempted for %d.%d\n", r.Id, areply.Replica, areply.Instance)
			lb.acceptTally = nil
		}
		return
	}
	if areply.Ballot != inst.bal {
		return
	}

	lb.acceptTally.Add(areply.AcceptorId)
	if lb.acceptTally.Reached() {
		r.bumpStat("slowPathCommits")
		r.commitInstance(areply.Replica, areply.Instance)
	}
}

/* Commit */

// commitInstance finalizes a decided instance at its leader (or recovery
// coordinator): mark Committed, answer a waiting write, tell everyone,
// and let the scheduler try to apply it.
func (r *Replica) commitInstance(replica int32, instance int32) {
	inst := r.InstanceSpace[replica][instance]
	inst.Status = epaxosproto.COMMITTED

	r.recordInstanceMetadata(inst)
	r.sync()
	r.bumpStat("committed")

	if r.LatencyRecorder != nil {
		r.LatencyRecorder.RecordCommit(commitexec.InstanceId{Log: replica, Seq: instance}, time.Now())
	}

	if lb := inst.lb; lb != nil && lb.clientProposal != nil && !r.Dreply && inst.Cmd.Op == state.PUT {
		r.ReplyProposeTS(&genericsmrproto.ProposeReplyTS{
			OK:        genericsmr.TRUE,
			CommandId: lb.clientProposal.CommandId,
			ClientId:  lb.clientProposal.ClientId,
			Value:     inst.Cmd.V,
			Timestamp: lb.clientProposal.Timestamp,
		}, lb.clientProposal.Reply, lb.clientProposal.Mutex)
	}

	r.bcastCommit(replica, instance)

	r.executeIfReady(replica, instance)
}

func (r *Replica) handleCommit(commit *epaxosproto.Commit) {
	r.updateCrtInstance(commit.Replica, commit.Instance)
	inst := r.getInstance(commit.Replica, commit.Instance)

	if inst != nil && inst.Status >= epaxosproto.COMMITTED {
		dlog.Printf("Replica %d: duplicate Commit for %d.%d\n", r.Id, commit.Replica, commit.Instance)
		return
	}

	if inst == nil {
		inst = &Instance{}
		r.InstanceSpace[commit.Replica][commit.Instance] = inst
	}
	inst.Cmd = commit.Command
	inst.Status = epaxosproto.COMMITTED
	inst.Seq = commit.Seq
	inst.Deps = depsFromSlice(commit.Deps)

	r.recordInstanceMetadata(inst)
	r.recordCommand(&commit.Command)

	dlog.Printf("Replica %d committed %d.%d\n", r.Id, commit.Replica, commit.Instance)

	if r.LatencyRecorder != nil {
		r.LatencyRecorder.RecordCommit(commitexec.InstanceId{Log: commit.Replica, Seq: commit.Instance}, time.Now())
	}

	// an instance this replica was still coordinating has been settled elsewhere
	if lb := inst.lb; lb != nil {
		if lb.clientProposal != nil && !r.Dreply && inst.Cmd.Op == state.PUT {
			r.ReplyProposeTS(&genericsmrproto.ProposeReplyTS{
				OK:        genericsmr.TRUE,
				CommandId: lb.clientProposal.CommandId,
				ClientId:  lb.clientProposal.ClientId,
				Value:     inst.Cmd.V,
				Timestamp: lb.clientProposal.Timestamp,
			}, lb.clientProposal.Reply, lb.clientProposal.Mutex)
		}
		lb.preparing = false
		lb.preAcceptTally = nil
		lb.acceptTally = nil
	}

	r.executeIfReady(commit.Replica, commit.Instance)
}

/* Execution entry points */

// executeIfReady runs the scheduler for a freshly committed instance and
// retries everything parked behind missing dependencies.
func (r *Replica) executeIfReady(replica int32, instance int32) {
	if !r.Exec {
		return
	}
	if !r.exec.executeCommand(replica, instance) {
		r.pendingExec.Add(epaxosproto.InstanceId{Replica: replica, Instance: instance})
	}
	r.retryPendingExec()
}

func (r *Replica) retryPendingExec() {
	for progress := true; progress && !r.pendingExec.Empty(); {
		progress = false
		for _, v := range r.pendingExec.Values() {
			id := v.(epaxosproto.InstanceId)
			if r.exec.executeCommand(id.Replica, id.Instance) {
				r.pendingExec.Remove(id)
				progress = true
			}
		}
	}
}
