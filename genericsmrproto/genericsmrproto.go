package genericsmrproto

import (
	"github.com/Brian-1402/EPaxos-reactor/state"
)

const (
	PROPOSE uint8 = iota
	PROPOSE_REPLY
	STATS
	GENERIC_SMR_BEACON
	GENERIC_SMR_BEACON_REPLY
)

type Propose struct {
	CommandId int32
	ClientId  int32
	Command   state.Command
	Timestamp int64
}

type ProposeReplyTS struct {
	OK        uint8
	CommandId int32
	ClientId  int32
	Value     state.Value
	Timestamp int64
}

// failure detection between replicas

type Beacon struct {
	Timestamp int64
}

type BeaconReply struct {
	Timestamp int64
}

// per-replica protocol counters, dumped as JSON on request

type Stats struct {
	M map[string]int
}
