package epaxosproto

import (
	"github.com/Brian-1402/EPaxos-reactor/state"
)

// instance status, strictly monotonic
const (
	NONE int8 = iota
	PREACCEPTED
	ACCEPTED
	COMMITTED
	EXECUTED
)

// InstanceId names one slot in one replica's log.
type InstanceId struct {
	Replica  int32
	Instance int32
}

type PreAccept struct {
	LeaderId int32
	Replica  int32
	Instance int32
	Ballot   int32
	Command  state.Command
	Seq      int32
	Deps     []InstanceId
}

type PreAcceptReply struct {
	AcceptorId int32
	Replica    int32
	Instance   int32
	OK         uint8
	Ballot     int32
	Seq        int32
	Deps       []InstanceId
}

type Accept struct {
	LeaderId int32
	Replica  int32
	Instance int32
	Ballot   int32
	Command  state.Command
	Seq      int32
	Deps     []InstanceId
}

type AcceptReply struct {
	AcceptorId int32
	Replica    int32
	Instance   int32
	OK         uint8
	Ballot     int32
}

type Commit struct {
	LeaderId int32
	Replica  int32
	Instance int32
	Command  state.Command
	Seq      int32
	Deps     []InstanceId
}

type Prepare struct {
	LeaderId int32
	Replica  int32
	Instance int32
	Ballot   int32
}

type PrepareReply struct {
	AcceptorId int32
	Replica    int32
	Instance   int32
	OK         uint8
	Ballot     int32
	Status     int8
	Command    state.Command
	Seq        int32
	Deps       []InstanceId
}
