package genericsmr

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/portmapping/go-reuse"

	"github.com/Brian-1402/EPaxos-reactor/dlog"
	"github.com/Brian-1402/EPaxos-reactor/fastrpc"
	"github.com/Brian-1402/EPaxos-reactor/genericsmrproto"
	"github.com/Brian-1402/EPaxos-reactor/mathextra"
	"github.com/Brian-1402/EPaxos-reactor/stablestore"
	"github.com/Brian-1402/EPaxos-reactor/state"
)

const CHAN_BUFFER_SIZE = 200000
const TRUE = uint8(1)
const FALSE = uint8(0)

var storage string

type RPCPair struct {
	Obj  fastrpc.Serializable
	Chan chan fastrpc.Serializable
}

type Propose struct {
	*genericsmrproto.Propose
	Reply *bufio.Writer
	Mutex *sync.Mutex
}

type Beacon struct {
	Rid       int32
	Timestamp int64
}

type Replica struct {
	N              int        // total number of replicas
	Id             int32      // the ID of the current replica
	PeerAddrList   []string   // array with the IP:port address of every replica
	Peers          []net.Conn // cache of connections to all other replicas
	PeerReaders    []*bufio.Reader
	PeerWriters    []*bufio.Writer
	Alive          []bool // connection status
	Listener       net.Listener
	Clients        []net.Conn
	ClientsReaders []*bufio.Reader
	ClientsWriters []*bufio.Writer

	State *state.State

	ProposeChan chan *Propose // channel for client proposals
	BeaconChan  chan *Beacon  // channel for beacons from peer replicas

	Shutdown bool

	Thrifty bool // send only as many messages as strictly required?
	Exec    bool // execute commands?
	Dreply  bool // reply to client after command has been executed?
	Beacon  bool // send beacons to detect how fast are the other replicas?

	F int

	Durable     bool                    // log to a stable store?
	StableStore stablestore.StableStore // file support for the persistent log

	PreferredPeerOrder []int32 // replicas in the preferred order of communication

	rpcTable map[uint8]*RPCPair
	rpcCode  uint8

	Ewma                    []float64
	ReplicasLatenciesOrders []int32

	Mutex sync.Mutex

	Stats *genericsmrproto.Stats

	lastHeardFrom      []time.Time
	deadTime           int32
	heartbeatFrequency time.Duration
	ewmaWeight         float64
}

/* Network */

func (r *Replica) connectToPeer(i int) bool {
	var b [4]byte
	bs := b[:4]

	for done := false; !done; {
		if conn, err := reuse.Dial("tcp", r.PeerAddrList[r.Id], r.PeerAddrList[i]); err == nil {
			r.Peers[i] = conn
			done = true
		} else {
			time.Sleep(1e9)
		}
	}
	binary.LittleEndian.PutUint32(bs, uint32(r.Id))
	if _, err := r.Peers[i].Write(bs); err != nil {
		fmt.Println("Write id error:", err)
		return false
	}
	r.Alive[i] = true
	r.PeerReaders[i] = bufio.NewReader(r.Peers[i])
	r.PeerWriters[i] = bufio.NewWriter(r.Peers[i])

	log.Printf("OUT Connected to %d", i)
	return true
}

func (r *Replica) ConnectToPeers() {
	done := make(chan bool)

	go r.waitForPeerConnections(done)

	for i := 0; i < int(r.Id); i++ {
		r.connectToPeer(i)
	}
	<-done
	log.Printf("Replica id: %d. Done connecting to peers\n", r.Id)
	log.Printf("Node list %v", r.PeerAddrList)

	for rid, reader := range r.PeerReaders {
		if int32(rid) == r.Id {
			continue
		}
		if reader == nil {
			panic(fmt.Sprintf("no reader for peer %d", rid))
		}
		go r.replicaListener(rid, reader)
	}

	go r.heartbeatLoop()
}

func (r *Replica) waitForPeerConnection(i int) bool {
	var b [4]byte
	bs := b[:4]

	conn, err := r.Listener.Accept()
	if err != nil {
		fmt.Println("Accept error:", err)
		return false
	}
	if _, err := io.ReadFull(conn, bs); err != nil {
		fmt.Println("Connection establish error:", err)
		return false
	}
	id := int32(binary.LittleEndian.Uint32(bs))
	r.Peers[id] = conn
	r.PeerReaders[id] = bufio.NewReader(conn)
	r.PeerWriters[id] = bufio.NewWriter(conn)
	r.Alive[id] = true

	log.Printf("IN Connected to %d", id)
	return true
}

/* Peer (replica) connections dispatcher */
func (r *Replica) waitForPeerConnections(done chan bool) {
	var err error
	r.Listener, err = reuse.Listen("tcp", r.PeerAddrList[r.Id])
	if err != nil {
		log.Fatal("Listen error:", err)
	}
	for i := r.Id + 1; i < int32(r.N); i++ {
		r.waitForPeerConnection(int(i))
	}

	done <- true
}

/* Client connections dispatcher */
func (r *Replica) WaitForClientConnections() {
	log.Println("Waiting for client connections")
	for !r.Shutdown {
		conn, err := r.Listener.Accept()
		if err != nil {
			log.Println("Accept error:", err)
			continue
		}
		r.Mutex.Lock()
		r.Clients = append(r.Clients, conn)
		r.Mutex.Unlock()
		go r.clientListener(conn)
	}
}

func (r *Replica) heartbeatLoop() {
	timer := time.NewTimer(r.heartbeatFrequency)
	for !r.Shutdown {
		for i := int32(0); i < int32(r.N); i++ {
			if i == r.Id {
				continue
			}
			r.SendBeacon(i)
		}
		<-timer.C
		timer.Reset(r.heartbeatFrequency)
	}
}

func (r *Replica) replicaListener(rid int, reader *bufio.Reader) {
	var msgType uint8
	var err error = nil
	var gbeacon genericsmrproto.Beacon
	var gbeaconReply genericsmrproto.BeaconReply

	for err == nil && !r.Shutdown {

		if msgType, err = reader.ReadByte(); err != nil {
			break
		}

		r.Mutex.Lock()
		if r.Alive[rid] == false {
			r.Alive[rid] = true
		}
		r.lastHeardFrom[rid] = time.Now()
		r.Mutex.Unlock()

		switch uint8(msgType) {
		case genericsmrproto.GENERIC_SMR_BEACON:
			if err = gbeacon.Unmarshal(reader); err != nil {
				break
			}
			beacon := &Beacon{int32(rid), gbeacon.Timestamp}
			r.ReplyBeacon(beacon)

		case genericsmrproto.GENERIC_SMR_BEACON_REPLY:
			if err = gbeaconReply.Unmarshal(reader); err != nil {
				break
			}
			dlog.Println("receive beacon ", gbeaconReply.Timestamp, " reply from ", rid)
			r.Mutex.Lock()
			r.updateLatencyRanks(rid, gbeaconReply)
			r.Mutex.Unlock()

		default:
			if rpair, present := r.rpcTable[msgType]; present {
				obj := rpair.Obj.New()
				if err = obj.Unmarshal(reader); err != nil {
					break
				}
				rpair.Chan <- obj
			} else {
				log.Fatal("Error: received unknown message type ", msgType, " from  ", rid)
			}
		}
	}

	r.Mutex.Lock()
	r.Alive[rid] = false
	r.Mutex.Unlock()
}

func (r *Replica) clientListener(conn net.Conn) {
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	var msgType byte
	var err error

	r.Mutex.Lock()
	log.Println("Client up ", conn.RemoteAddr())
	r.Mutex.Unlock()

	mutex := &sync.Mutex{}

	for !r.Shutdown && err == nil {

		if msgType, err = reader.ReadByte(); err != nil {
			break
		}

		switch uint8(msgType) {

		case genericsmrproto.PROPOSE:
			propose := new(genericsmrproto.Propose)
			if err = propose.Unmarshal(reader); err != nil {
				break
			}
			r.ProposeChan <- &Propose{propose, writer, mutex}

		case genericsmrproto.STATS:
			r.Mutex.Lock()
			b, _ := json.Marshal(r.Stats)
			r.Mutex.Unlock()
			mutex.Lock()
			writer.Write(b)
			writer.Flush()
			mutex.Unlock()
		}
	}
	conn.Close()
	log.Println("Client down ", conn.RemoteAddr())
}

func (r *Replica) RegisterRPC(msgObj fastrpc.Serializable, notify chan fastrpc.Serializable) uint8 {
	code := r.rpcCode
	r.rpcCode++
	r.rpcTable[code] = &RPCPair{msgObj, notify}
	dlog.Println("registering RPC ", code)
	return code
}

func (r *Replica) CalculateAlive() {
	r.Mutex.Lock()
	for i := 0; i < r.N; i++ {
		if i == int(r.Id) || r.lastHeardFrom[i].Equal(time.Time{}) {
			continue
		}
		timeSinceLastMsg := time.Now().Sub(r.lastHeardFrom[i])
		if timeSinceLastMsg > time.Millisecond*time.Duration(r.deadTime) {
			r.Alive[i] = false
		}
	}
	r.Mutex.Unlock()
}

func (r *Replica) SendMsg(peerId int32, code uint8, msg fastrpc.Serializable) {
	r.Mutex.Lock()
	defer r.Mutex.Unlock()

	w := r.PeerWriters[peerId]
	if w == nil {
		log.Printf("Connection to %d lost!\n", peerId)
		return
	}

	if code == 0 {
		panic("bad rpc code")
	}
	w.WriteByte(code)
	msg.Marshal(w)
	w.Flush()
}

func (r *Replica) SendMsgNoFlush(peerId int32, code uint8, msg fastrpc.Serializable) {
	w := r.PeerWriters[peerId]
	if w == nil {
		log.Printf("Connection to %d lost!\n", peerId)
		return
	}
	w.WriteByte(code)
	msg.Marshal(w)
}

// ReplyProposeTS shares the client connection's writer with the
// listener goroutine serving STATS, hence the per-connection lock.
func (r *Replica) ReplyProposeTS(reply *genericsmrproto.ProposeReplyTS, w *bufio.Writer, lock *sync.Mutex) {
	lock.Lock()
	defer lock.Unlock()
	reply.Marshal(w)
	w.Flush()
}

func (r *Replica) SendBeacon(peerId int32) {
	r.Mutex.Lock()
	defer r.Mutex.Unlock()
	w := r.PeerWriters[peerId]
	if w == nil {
		log.Printf("Connection to %d lost!\n", peerId)
		return
	}
	w.WriteByte(genericsmrproto.GENERIC_SMR_BEACON)
	beacon := &genericsmrproto.Beacon{Timestamp: time.Now().UnixNano()}
	beacon.Marshal(w)
	w.Flush()
	dlog.Println("send beacon ", beacon.Timestamp, " to ", peerId)
}

func (r *Replica) ReplyBeacon(beacon *Beacon) {
	dlog.Println("replying beacon to ", beacon.Rid)
	r.Mutex.Lock()
	defer r.Mutex.Unlock()
	w := r.PeerWriters[beacon.Rid]
	if w == nil {
		log.Printf("Connection to %d lost!\n", beacon.Rid)
		return
	}
	w.WriteByte(genericsmrproto.GENERIC_SMR_BEACON_REPLY)
	rb := &genericsmrproto.BeaconReply{Timestamp: beacon.Timestamp}
	rb.Marshal(w)
	w.Flush()
}

func (r *Replica) Crash() {
	if r.Listener != nil {
		r.Listener.Close()
	}
	for i := 0; i < r.N; i++ {
		if int(r.Id) == i || r.Peers[i] == nil {
			continue
		}
		r.Peers[i].Close()
	}
}

func NewReplica(id int, peerAddrList []string, thrifty bool, exec bool, dreply bool, durable bool, failures int, storageParentDir string, deadTime int32) *Replica {
	r := &Replica{
		len(peerAddrList),
		int32(id),
		peerAddrList,
		make([]net.Conn, len(peerAddrList)),
		make([]*bufio.Reader, len(peerAddrList)),
		make([]*bufio.Writer, len(peerAddrList)),
		make([]bool, len(peerAddrList)),
		nil,
		nil,
		nil,
		nil,
		state.InitState(),
		make(chan *Propose, CHAN_BUFFER_SIZE),
		make(chan *Beacon, CHAN_BUFFER_SIZE),
		false,
		thrifty,
		exec,
		dreply,
		false,
		failures,
		durable,
		nil,
		make([]int32, len(peerAddrList)),
		make(map[uint8]*RPCPair),
		genericsmrproto.GENERIC_SMR_BEACON_REPLY + 1,
		make([]float64, len(peerAddrList)),
		make([]int32, len(peerAddrList)),
		sync.Mutex{},
		&genericsmrproto.Stats{M: make(map[string]int)},
		make([]time.Time, len(peerAddrList)),
		deadTime,
		time.Duration(100 * time.Millisecond),
		0.1,
	}

	storage = storageParentDir

	var err error
	r.StableStore, err =
		os.Create(fmt.Sprintf("%v/stable-store-replica%d", storage, r.Id))
	if err != nil {
		log.Fatal(err)
	}

	for i := int32(0); i < int32(r.N); i++ {
		if r.Id == i {
			continue
		}
		r.Ewma[i] = 0.0
		r.ReplicasLatenciesOrders[i] = i
	}

	return r
}

func (r *Replica) RandomisePeerOrder() {
	r.Mutex.Lock()
	for i := 0; i < len(r.PreferredPeerOrder); i++ {
		r.PreferredPeerOrder[i] = int32(i)
	}
	rand.Shuffle(r.N, func(i, j int) {
		r.PreferredPeerOrder[i], r.PreferredPeerOrder[j] = r.PreferredPeerOrder[j], r.PreferredPeerOrder[i]
	})

	// self goes last; we never send to ourselves
	theEnd := len(r.PreferredPeerOrder) - 1
	for i := 0; i < len(r.PreferredPeerOrder); i++ {
		if r.PreferredPeerOrder[i] == r.Id {
			tmp := r.PreferredPeerOrder[theEnd]
			r.PreferredPeerOrder[theEnd] = r.PreferredPeerOrder[i]
			r.PreferredPeerOrder[i] = tmp
		}
	}

	// dead peers sink below live ones
	theEnd--
	for i := 0; i < theEnd; i++ {
		if !r.Alive[r.PreferredPeerOrder[i]] {
			tmp := r.PreferredPeerOrder[theEnd]
			r.PreferredPeerOrder[theEnd] = r.PreferredPeerOrder[i]
			r.PreferredPeerOrder[i] = tmp
			theEnd--
		}
	}
	r.Mutex.Unlock()
}

func (r *Replica) updateLatencyRanks(rid int, gbeaconReply genericsmrproto.BeaconReply) {
	r.Ewma[rid] = mathextra.EwmaAdd(r.Ewma[rid], r.ewmaWeight, float64(time.Now().UnixNano()-gbeaconReply.Timestamp))
	sort.Slice(r.ReplicasLatenciesOrders, func(i, j int) bool {
		return r.Ewma[r.ReplicasLatenciesOrders[i]] < r.Ewma[r.ReplicasLatenciesOrders[j]]
	})
}
