package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map"

	"github.com/Brian-1402/EPaxos-reactor/genericsmrproto"
	"github.com/Brian-1402/EPaxos-reactor/state"
)

var clientIdFlag *int64 = flag.Int64("id", -1, "the id of the client. Default is RFC 4122 nodeID.")
var replicaList *string = flag.String("replicas", "127.0.0.1:7070,127.0.0.1:7071,127.0.0.1:7072", "Comma separated list of replica addresses.")
var targetRps *float64 = flag.Float64("rps", 10, "Target request rate (requests per second).")
var keySpace *int = flag.Int("keys", 10, "Number of distinct keys in the workload.")
var zipfS *float64 = flag.Float64("zipfs", 0, "Zipfian skew for key choice; must exceed 1 to take effect, 0 selects uniform keys.")
var readRatio *float64 = flag.Float64("reads", 0.5, "Fraction of requests that are reads (0 all writes, 1 all reads).")
var runDuration *int = flag.Int("runtime", 60, "How long to submit requests for (seconds).")
var procs *int = flag.Int("p", 2, "GOMAXPROCS. ")
var latencyOutput *string = flag.String("lato", "", "Where recorded latencies will be written")
var settleInTime *int = flag.Int("settletime", 0, "Number of seconds to allow before recording latency")
var logFilename *string = flag.String("logfilename", "", "Name for log file")

var clientId int32

type TimeseriesStats struct {
	minLatency        int64
	maxLatency        int64
	avgLatency        int64
	deliveredRequests int64
	deliveredBytes    int64
}

func NewTimeseriesStats() TimeseriesStats {
	return TimeseriesStats{
		minLatency: math.MaxInt64,
	}
}

func (stats TimeseriesStats) String() string {
	var mbps float64 = (float64(stats.deliveredBytes) * 8.) / (1024. * 1024.)
	minLat := stats.minLatency
	if stats.minLatency == math.MaxInt64 {
		minLat = 0
	}
	return fmt.Sprintf("%d value/sec, %.2f Mbps, latency min %d us max %d us avg %d us",
		stats.deliveredRequests, mbps, minLat, stats.maxLatency, stats.avgLatency)
}

func (stats *TimeseriesStats) update(deliveredBytes int64, latency time.Duration) {
	us := latency.Microseconds()
	stats.deliveredRequests++
	stats.deliveredBytes += deliveredBytes
	stats.avgLatency += (us - stats.avgLatency) / stats.deliveredRequests
	if us > stats.maxLatency {
		stats.maxLatency = us
	}
	if us < stats.minLatency {
		stats.minLatency = us
	}
}

func (stats *TimeseriesStats) reset() {
	stats.minLatency = math.MaxInt64
	stats.maxLatency = 0
	stats.avgLatency = 0
	stats.deliveredRequests = 0
	stats.deliveredBytes = 0
}

// LatencyRecorder appends one latency (in microseconds) per delivered
// request, discarding anything delivered before the settle time passes.
type LatencyRecorder struct {
	outputFile *os.File
	notBefore  time.Time
}

func NewLatencyRecorder(outputFileLoc string, settleTime int) LatencyRecorder {
	file, err := os.Create(outputFileLoc)
	if err != nil {
		panic("Cannot open latency recording output file at location")
	}
	return LatencyRecorder{
		outputFile: file,
		notBefore:  time.Now().Add(time.Duration(settleTime) * time.Second),
	}
}

func (recorder *LatencyRecorder) record(latencyMicroseconds int64) {
	if recorder.outputFile == nil || time.Now().Before(recorder.notBefore) {
		return
	}
	recorder.outputFile.WriteString(fmt.Sprintf("%d\n", latencyMicroseconds))
}

// pendingRequest is what the sender knows about an unanswered request.
// The reply only carries the command id, so the key and written value
// are kept here for the completion log line.
type pendingRequest struct {
	key    string
	value  string
	isRead bool
	sentAt time.Time
}

type deliveredReply struct {
	commandId int32
	value     string
}

func main() {
	flag.Parse()

	runtime.GOMAXPROCS(*procs)
	rand.Seed(time.Now().UnixNano())

	if *logFilename != "" {
		file, err := os.Create(*logFilename)
		if err != nil {
			log.Fatalf("cannot create log file %s: %v", *logFilename, err)
		}
		log.SetOutput(file)
	}

	if *clientIdFlag == -1 {
		*clientIdFlag = int64(uuid.New().ID())
	}
	// the log line format needs a non-negative decimal id
	clientId = int32(*clientIdFlag & math.MaxInt32)

	addrs := strings.Split(*replicaList, ",")
	writers := make([]*bufio.Writer, len(addrs))
	delivered := make(chan deliveredReply, 4096)
	for i, addr := range addrs {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			log.Fatalf("cannot connect to replica %s: %v", addr, err)
		}
		writers[i] = bufio.NewWriter(conn)
		go replyListener(conn, delivered)
	}

	recorder := LatencyRecorder{}
	if *latencyOutput != "" {
		recorder = NewLatencyRecorder(*latencyOutput, *settleInTime)
	}

	outstanding := cmap.New()
	stats := NewTimeseriesStats()

	senderDone := make(chan struct{})
	go sendLoop(writers, outstanding, senderDone)

	statsTick := time.NewTicker(time.Second)
	defer statsTick.Stop()
	var drainTimeout <-chan time.Time
	sending := true

collect:
	for sending || outstanding.Count() > 0 {
		select {
		case <-statsTick.C:
			log.Println(stats.String())
			stats.reset()
		case reply := <-delivered:
			tag := strconv.Itoa(int(reply.commandId))
			v, present := outstanding.Get(tag)
			if !present {
				continue // stale reply for a request we no longer track
			}
			outstanding.Remove(tag)
			req := v.(*pendingRequest)
			lat := time.Since(req.sentAt)
			recorder.record(lat.Microseconds())
			stats.update(int64(len(reply.value)), lat)
			if req.isRead {
				value := reply.value
				if value == "" {
					value = "NONE"
				}
				log.Printf("Client_%d [Req: %d] Get %s = %s\n", clientId, reply.commandId, req.key, value)
			} else {
				log.Printf("Client_%d [Req: %d] Set %s = %s\n", clientId, reply.commandId, req.key, req.value)
			}
		case <-senderDone:
			sending = false
			senderDone = nil
			drainTimeout = time.After(5 * time.Second)
		case <-drainTimeout:
			log.Printf("giving up on %d outstanding requests\n", outstanding.Count())
			break collect
		}
	}
}

// sendLoop submits requests following a Poisson process until the run
// duration elapses. Each request is registered in outstanding and its
// submission logged before the bytes hit the wire, so the completion
// line can never precede it.
func sendLoop(writers []*bufio.Writer, outstanding cmap.ConcurrentMap, done chan struct{}) {
	var zipf *rand.Zipf
	if *zipfS > 1 {
		zipf = rand.NewZipf(rand.New(rand.NewSource(time.Now().UnixNano())), *zipfS, 1, uint64(*keySpace-1))
	}

	start := time.Now()
	end := start.Add(time.Duration(*runDuration) * time.Second)
	next := start
	requestId := int32(0)

	for time.Now().Before(end) {
		now := time.Now()
		if next.After(now) {
			time.Sleep(next.Sub(now))
		} else {
			next = now // fell behind schedule; restart the clock instead of bursting
		}
		next = next.Add(time.Duration(rand.ExpFloat64() / *targetRps * float64(time.Second)))

		requestId++
		key := pickKey(zipf)
		req := &pendingRequest{key: key, isRead: rand.Float64() < *readRatio}

		command := state.Command{Op: state.GET, K: state.Key(key), V: state.NIL}
		if req.isRead {
			log.Printf("Client_%d [Req: %d] Getting %s\n", clientId, requestId, key)
		} else {
			req.value = fmt.Sprintf("value_%d_%d", clientId, requestId)
			command = state.Command{Op: state.PUT, K: state.Key(key), V: state.Value(req.value)}
			log.Printf("Client_%d [Req: %d] Setting %s = %s\n", clientId, requestId, key, req.value)
		}

		req.sentAt = time.Now()
		outstanding.Set(strconv.Itoa(int(requestId)), req)

		writer := writers[rand.Intn(len(writers))]
		writer.WriteByte(genericsmrproto.PROPOSE)
		args := genericsmrproto.Propose{CommandId: requestId, ClientId: clientId, Command: command, Timestamp: time.Now().UnixNano()}
		args.Marshal(writer)
		writer.Flush()
	}
	close(done)
}

func pickKey(zipf *rand.Zipf) string {
	if zipf != nil {
		return fmt.Sprintf("key_%d", zipf.Uint64())
	}
	return fmt.Sprintf("key_%d", rand.Intn(*keySpace))
}

func replyListener(conn net.Conn, delivered chan<- deliveredReply) {
	reader := bufio.NewReader(conn)
	for {
		reply := new(genericsmrproto.ProposeReplyTS)
		if err := reply.Unmarshal(reader); err != nil {
			return
		}
		if reply.OK != 1 {
			continue
		}
		delivered <- deliveredReply{commandId: reply.CommandId, value: string(reply.Value)}
	}
}
