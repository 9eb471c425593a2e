// Package profiler samples CPU usage and NIC and disk counters at a
// fixed rate, appending one CSV line per sample. It runs alongside a
// replica so throughput dips can be matched to machine load.
package profiler

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/net"
)

const header = "Human Time, Robot Time, CPU Usage, Packets Sent, Packets Received, Bytes Sent, Bytes Received, Dropped Packets In, Dropped Packets Out, Disk Read Count, Disk Write Count, Disk Read Bytes, Disk Write Bytes\n"

type Profiler struct {
	out        *os.File
	sampleRate time.Duration
	nic        int
	disk       string

	netPrev  net.IOCountersStat
	diskPrev disk.IOCountersStat

	stop chan struct{}
	done chan struct{}
}

// New prepares a profiler writing to outputLoc. The nic is named by its
// index in the counter list; nicName, when given, guards against index
// drift across reboots.
func New(outputLoc string, sampleRate time.Duration, nic int, nicName string, diskName string) (*Profiler, error) {
	nics, err := net.IOCounters(true)
	if err != nil {
		return nil, err
	}
	if nic < 0 || nic >= len(nics) {
		return nil, fmt.Errorf("no nic with index %d", nic)
	}
	if nicName != "" && nics[nic].Name != nicName {
		return nil, fmt.Errorf("nic %d is %s, expected %s", nic, nics[nic].Name, nicName)
	}
	disks, err := disk.IOCounters()
	if err != nil {
		return nil, err
	}
	if _, exists := disks[diskName]; !exists {
		return nil, fmt.Errorf("no disk named %s", diskName)
	}

	f, err := os.Create(outputLoc)
	if err != nil {
		return nil, err
	}

	return &Profiler{
		out:        f,
		sampleRate: sampleRate,
		nic:        nic,
		disk:       diskName,
		netPrev:    nics[nic],
		diskPrev:   disks[diskName],
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

func (p *Profiler) Start() {
	p.out.WriteString(header)
	go p.loop()
}

// Stop ends sampling and flushes the file. It must be called at most
// once, after Start.
func (p *Profiler) Stop() {
	close(p.stop)
	<-p.done
}

func (p *Profiler) loop() {
	timer := time.NewTimer(p.sampleRate)
	for {
		select {
		case <-p.stop:
			timer.Stop()
			p.out.Sync()
			p.out.Close()
			close(p.done)
			return
		case <-timer.C:
			p.out.WriteString(p.sample())
			timer.Reset(p.sampleRate)
		}
	}
}

// sample reads the counters, diffs them against the previous sample and
// renders one CSV line. cpu.Percent blocks for a second to measure.
func (p *Profiler) sample() string {
	cpuPercent, _ := cpu.Percent(time.Second, false)
	nics, _ := net.IOCounters(true)
	disks, _ := disk.IOCounters()
	curNet := nics[p.nic]
	curDisk := disks[p.disk]

	usage := 0.0
	if len(cpuPercent) > 0 {
		usage = cpuPercent[0]
	}

	s := strings.Builder{}
	s.WriteString(timestamp())
	s.WriteString(fmt.Sprintf(" %.2f,", usage))
	s.WriteString(fmt.Sprintf(" %d, %d, %d, %d, %d, %d,",
		curNet.PacketsSent-p.netPrev.PacketsSent,
		curNet.PacketsRecv-p.netPrev.PacketsRecv,
		curNet.BytesSent-p.netPrev.BytesSent,
		curNet.BytesRecv-p.netPrev.BytesRecv,
		curNet.Dropin-p.netPrev.Dropin,
		curNet.Dropout-p.netPrev.Dropout))
	s.WriteString(fmt.Sprintf(" %d, %d, %d, %d",
		curDisk.ReadCount-p.diskPrev.ReadCount,
		curDisk.WriteCount-p.diskPrev.WriteCount,
		curDisk.ReadBytes-p.diskPrev.ReadBytes,
		curDisk.WriteBytes-p.diskPrev.WriteBytes))
	s.WriteString("\n")

	p.netPrev = curNet
	p.diskPrev = curDisk
	return s.String()
}

func timestamp() string {
	now := time.Now()
	return fmt.Sprintf("%s, %d,", now.Format("2006/01/02 15:04:05 .000"), now.UnixNano())
}
