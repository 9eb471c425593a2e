package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/Brian-1402/EPaxos-reactor/commitexec"
	"github.com/Brian-1402/EPaxos-reactor/dlog"
	"github.com/Brian-1402/EPaxos-reactor/epaxos"
	"github.com/Brian-1402/EPaxos-reactor/profiler"
)

var id *int = flag.Int("id", -1, "Index of this replica in the peer list.")
var peers *string = flag.String("peers", "127.0.0.1:7070,127.0.0.1:7071,127.0.0.1:7072", "Comma separated list of replica addresses, in id order.")
var procs *int = flag.Int("p", 2, "GOMAXPROCS. Defaults to 2")
var thrifty *bool = flag.Bool("thrifty", false, "Use only as many messages as strictly required for inter-replica communication.")
var doExec *bool = flag.Bool("exec", true, "Execute commands.")
var dreply *bool = flag.Bool("dreply", false, "Reply to client only after command has been executed.")
var beacon *bool = flag.Bool("beacon", false, "Send beacons to other replicas to detect failures.")
var durable *bool = flag.Bool("durable", false, "Log to a stable store (i.e., a file in the current dir).")
var committedOnly *bool = flag.Bool("committedonly", false, "Report only committed dependencies to other replicas.")
var fastQrm *int = flag.Int("fastqrm", 0, "Fast quorum size override. 0 derives it from the group size.")
var maxfailures *int = flag.Int("f", -1, "maximum number of maxfailures; default is a minority.")
var storageParentDir *string = flag.String("storageparentdir", "./", "The parent directory of the stable storage file. Defaults to ./")
var deadTime *int = flag.Int("deadtime", 60000, "time without a beacon before a replica is considered failed (ms)")
var cpuprofile *string = flag.String("cpuprofile", "", "write cpu profile to file")
var profileLoc *string = flag.String("profileloc", "", "write machine utilisation samples to file")
var profileRate *int = flag.Int("profilerate", 1000, "machine utilisation sample rate (ms)")
var profileNic *int = flag.Int("profilenic", 0, "index of the NIC to sample")
var profileNicName *string = flag.String("profilenicname", "", "expected name of the sampled NIC")
var profileDisk *string = flag.String("profiledisk", "sda", "name of the disk to sample")
var latencyLoc *string = flag.String("latencyloc", "", "write commit to execution latencies to file")
var doDlog *bool = flag.Bool("dlog", false, "log protocol events")
var quiet *bool = flag.Bool("quiet", false, "Log nothing?")
var logFilename *string = flag.String("logfilename", "", "Name for log file")

func main() {
	flag.Parse()

	runtime.GOMAXPROCS(*procs)
	rand.Seed(time.Now().UnixNano() ^ int64(os.Getpid()))
	dlog.DLOG = *doDlog

	if *quiet == true {
		log.SetOutput(ioutil.Discard)
	} else if *logFilename != "" {
		file, err := os.Create(*logFilename)
		if err != nil {
			log.Fatalf("cannot create log file %s: %v", *logFilename, err)
		}
		log.SetOutput(file)
	}

	nodeList := strings.Split(*peers, ",")
	if *id < 0 || *id >= len(nodeList) {
		log.Fatalf("invalid replica id %d for a group of %d", *id, len(nodeList))
	}
	if *maxfailures == -1 {
		*maxfailures = (len(nodeList) - 1) / 2
	}
	log.Printf("Tolerating %d max. failures\n", *maxfailures)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
	}

	var utilisation *profiler.Profiler
	if *profileLoc != "" {
		var err error
		utilisation, err = profiler.New(*profileLoc, time.Duration(*profileRate)*time.Millisecond, *profileNic, *profileNicName, *profileDisk)
		if err != nil {
			log.Fatal(err)
		}
		utilisation.Start()
	}

	log.Println("Starting Egalitarian Paxos replica...")
	rep := epaxos.NewReplica(*id, nodeList, *thrifty, *doExec, *dreply, *beacon, *durable, *committedOnly, *fastQrm, *maxfailures, *storageParentDir, int32(*deadTime))

	if *latencyLoc != "" {
		recorder, err := commitexec.NewRecorder(*latencyLoc)
		if err != nil {
			log.Fatal(err)
		}
		rep.LatencyRecorder = recorder
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, os.Kill)
	go catchKill(interrupt, rep, utilisation)

	rep.Run()
}

func catchKill(interrupt chan os.Signal, rep *epaxos.Replica, utilisation *profiler.Profiler) {
	<-interrupt
	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}
	if utilisation != nil {
		utilisation.Stop()
	}
	fmt.Println("Caught signal")
	rep.Crash()
	os.Exit(0)
}
