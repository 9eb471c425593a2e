package genericsmr

import (
	"testing"

	"github.com/Brian-1402/EPaxos-reactor/epaxosproto"
	"github.com/Brian-1402/EPaxos-reactor/fastrpc"
	"github.com/Brian-1402/EPaxos-reactor/genericsmrproto"
)

func testReplica(t *testing.T, n int) *Replica {
	t.Helper()
	addrs := make([]string, n)
	for i := 0; i < n; i++ {
		addrs[i] = "127.0.0.1:0"
	}
	return NewReplica(0, addrs, false, false, false, false, n/2, t.TempDir(), 3000)
}

func TestRegisterRPCAssignsDistinctCodes(t *testing.T) {
	r := testReplica(t, 3)
	ch := make(chan fastrpc.Serializable, 1)
	first := r.RegisterRPC(new(epaxosproto.PreAccept), ch)
	second := r.RegisterRPC(new(epaxosproto.PreAcceptReply), ch)

	if first <= genericsmrproto.GENERIC_SMR_BEACON_REPLY {
		t.Errorf("rpc code %d collides with the reserved range", first)
	}
	if second != first+1 {
		t.Errorf("codes not sequential: %d then %d", first, second)
	}
}

func TestRandomisePeerOrderKeepsSelfLast(t *testing.T) {
	r := testReplica(t, 5)
	for i := range r.Alive {
		r.Alive[i] = true
	}
	for trial := 0; trial < 20; trial++ {
		r.RandomisePeerOrder()
		if last := r.PreferredPeerOrder[len(r.PreferredPeerOrder)-1]; last != r.Id {
			t.Fatalf("self not last in peer order: %v", r.PreferredPeerOrder)
		}
		seen := make(map[int32]bool)
		for _, id := range r.PreferredPeerOrder {
			if id < 0 || id >= int32(r.N) || seen[id] {
				t.Fatalf("peer order not a permutation: %v", r.PreferredPeerOrder)
			}
			seen[id] = true
		}
	}
}
