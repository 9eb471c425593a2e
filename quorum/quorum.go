package quorum

// Majority is the slow-path threshold for a cluster of n replicas:
// acknowledgements needed from peers, not counting the command leader
// itself.
func Majority(n int) int {
	if m := n / 2; m > 1 {
		return m
	}
	return 1
}

// FastQuorum is the fast-path threshold over the same cluster. Below
// five replicas the two thresholds coincide and every commit can take
// the fast path.
func FastQuorum(n int) int {
	if f := n - 2; f > 1 {
		return f
	}
	return 1
}

type QuorumTally interface {
	Add(aid int32)
	Nack(aid int32)
	Reached() bool
	Acknowledged(aid int32) bool
	Count() int
}

// CountingQuorumTally reaches quorum once Threshold distinct acceptors
// have acknowledged. Used for accept and prepare rounds.
type CountingQuorumTally struct {
	ResponseHolder
	Threshold int
}

func NewCountingQuorumTally(threshold int) *CountingQuorumTally {
	qrm := &CountingQuorumTally{Threshold: threshold}
	qrm.clear()
	return qrm
}

func (qrm *CountingQuorumTally) Add(aid int32) {
	qrm.addAck(aid)
}

func (qrm *CountingQuorumTally) Nack(aid int32) {
	qrm.addNack(aid)
}

func (qrm *CountingQuorumTally) Reached() bool {
	return len(qrm.getAcks()) >= qrm.Threshold
}

// Preempted reports that so many acceptors have rejected this round's
// ballot that the threshold is out of reach.
func (qrm *CountingQuorumTally) Preempted(acceptors int) bool {
	return acceptors-len(qrm.getNacks()) < qrm.Threshold
}

func (qrm *CountingQuorumTally) Acknowledged(aid int32) bool {
	_, exists := qrm.getAcks()[aid]
	return exists
}

func (qrm *CountingQuorumTally) Count() int {
	return len(qrm.getAcks())
}

// FastQuorumTally tracks a preaccept round against two thresholds: Slow
// is the classic majority, Fast the larger bar for single-round commit.
// A reply whose attributes differ from what the leader proposed dirties
// the tally; only a clean fast quorum commits without a second round.
type FastQuorumTally struct {
	ResponseHolder
	Slow  int
	Fast  int
	dirty bool
}

func NewFastQuorumTally(slow int, fast int) *FastQuorumTally {
	qrm := &FastQuorumTally{Slow: slow, Fast: fast}
	qrm.clear()
	return qrm
}

func (qrm *FastQuorumTally) Add(aid int32) {
	qrm.addAck(aid)
}

func (qrm *FastQuorumTally) Nack(aid int32) {
	qrm.addNack(aid)
}

func (qrm *FastQuorumTally) NoteConflict() {
	qrm.dirty = true
}

func (qrm *FastQuorumTally) Clean() bool {
	return !qrm.dirty
}

func (qrm *FastQuorumTally) Reached() bool {
	return qrm.SlowReached()
}

func (qrm *FastQuorumTally) SlowReached() bool {
	return len(qrm.getAcks()) >= qrm.Slow
}

func (qrm *FastQuorumTally) FastReached() bool {
	return len(qrm.getAcks()) >= qrm.Fast
}

// Preempted is measured against the slow bar: once that is out of reach
// no path through this round remains.
func (qrm *FastQuorumTally) Preempted(acceptors int) bool {
	return acceptors-len(qrm.getNacks()) < qrm.Slow
}

func (qrm *FastQuorumTally) Acknowledged(aid int32) bool {
	_, exists := qrm.getAcks()[aid]
	return exists
}

func (qrm *FastQuorumTally) Count() int {
	return len(qrm.getAcks())
}
