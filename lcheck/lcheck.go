package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/anishathalye/porcupine"
	"github.com/maruel/natural"
)

var vizDir *string = flag.String("vizdir", "viz_output", "Parent directory for visualisation output.")
var checkTimeout *int = flag.Int("timeout", 60, "Per key check timeout (seconds).")

// kvOp is both the input and the output half of a register operation.
type kvOp struct {
	write bool
	key   string
	value string
}

// registerModel checks one key as a linearizable register. Keys start
// unset, which reads observe as NONE.
var registerModel = porcupine.Model{
	Init: func() interface{} {
		return "NONE"
	},
	Step: func(state, input, output interface{}) (bool, interface{}) {
		in := input.(kvOp)
		if in.write {
			return true, in.value
		}
		return output.(kvOp).value == state.(string), state
	},
	Equal: func(a, b interface{}) bool {
		return a.(string) == b.(string)
	},
	DescribeOperation: func(input, output interface{}) string {
		in := input.(kvOp)
		if in.write {
			return fmt.Sprintf("put(%v)", in.value)
		}
		return fmt.Sprintf("get()=%v", output.(kvOp).value)
	},
}

// The submission and completion lines written by the workload client.
// The client and request ids tie a completion to its submission even
// when lines from different clients interleave in the log.
type lineKind struct {
	re     *regexp.Regexp
	write  bool
	starts bool
}

var lineKinds = []lineKind{
	{regexp.MustCompile(`Client_?(\d+)\s+\[Req:\s*(\d+)\]\s+Setting\s+(\w+)\s+=\s+(\S*)`), true, true},
	{regexp.MustCompile(`Client_?(\d+)\s+\[Req:\s*(\d+)\]\s+Set\s+(\w+)\s+=\s+(\S*)`), true, false},
	{regexp.MustCompile(`Client_?(\d+)\s+\[Req:\s*(\d+)\]\s+Getting\s+(\w+)(\S*)`), false, true},
	{regexp.MustCompile(`Client_?(\d+)\s+\[Req:\s*(\d+)\]\s+Get\s+(\w+)\s+=\s+(\S*)`), false, false},
}

func parseLog(filename string) []porcupine.Event {
	file, err := os.Open(filename)
	if err != nil {
		fmt.Printf("Cannot open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	var events []porcupine.Event
	nextId := 0
	pendingOps := make(map[string]int)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		for _, kind := range lineKinds {
			m := kind.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			client, request, key := m[1], m[2], m[3]
			cid, _ := strconv.Atoi(client)
			tag := client + ":" + request

			if kind.starts {
				value := ""
				if kind.write {
					value = m[4]
				}
				pendingOps[tag] = nextId
				events = append(events, porcupine.Event{
					ClientId: cid,
					Kind:     porcupine.CallEvent,
					Value:    kvOp{kind.write, key, value},
					Id:       nextId,
				})
				nextId++
			} else {
				callId, ok := pendingOps[tag]
				if !ok {
					fmt.Printf("Warning: No matching start event for Client %s Req %s\n", client, request)
					break
				}
				delete(pendingOps, tag)
				events = append(events, porcupine.Event{
					ClientId: cid,
					Kind:     porcupine.ReturnEvent,
					Value:    kvOp{kind.write, key, m[4]},
					Id:       callId,
				})
			}
			break
		}
	}
	return events
}

// dropDangling removes calls that never returned. Porcupine treats an
// open call as concurrent with everything after it, which makes checks
// of interrupted runs both slow and vacuous.
func dropDangling(events []porcupine.Event) []porcupine.Event {
	finished := make(map[int]bool)
	for _, ev := range events {
		if ev.Kind == porcupine.ReturnEvent {
			finished[ev.Id] = true
		}
	}
	var kept []porcupine.Event
	for _, ev := range events {
		if ev.Kind == porcupine.ReturnEvent || finished[ev.Id] {
			kept = append(kept, ev)
		}
	}
	return kept
}

func splitEventsByKey(events []porcupine.Event) map[string][]porcupine.Event {
	grouped := make(map[string][]porcupine.Event)
	for _, ev := range events {
		op := ev.Value.(kvOp)
		grouped[op.key] = append(grouped[op.key], ev)
	}
	return grouped
}

func checkLinearizability(filename string) bool {
	fmt.Println("Checking linearizability of log file:", filename)

	events := dropDangling(parseLog(filename))
	if len(events) == 0 {
		fmt.Println("No events found in log file!")
		return false
	}
	grouped := splitEventsByKey(events)

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	outDir := filepath.Join(*vizDir, name)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		fmt.Printf("Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	var keys []string
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Sort(natural.StringSlice(keys))

	allOk := true
	for _, key := range keys {
		evs := grouped[key]
		fmt.Printf("=== Checking key %s (%d events) ===\n", key, len(evs))

		res, info := porcupine.CheckEventsVerbose(registerModel, evs, time.Duration(*checkTimeout)*time.Second)
		switch res {
		case porcupine.Ok:
			fmt.Printf("Key %s: linearizable\n", key)
		case porcupine.Illegal:
			fmt.Printf("Key %s: NOT linearizable\n", key)
			allOk = false
		default:
			fmt.Printf("Key %s: check timed out (Unknown)\n", key)
			allOk = false
		}
		if res != porcupine.Ok {
			continue
		}

		fname := filepath.Join(outDir, fmt.Sprintf("output_%s.html", key))
		f, err := os.Create(fname)
		if err != nil {
			fmt.Printf("Error creating visualization file for %s: %v\n", key, err)
			continue
		}
		if err := porcupine.Visualize(registerModel, info, f); err != nil {
			fmt.Printf("Error generating visualization for %s: %v\n", key, err)
		} else {
			fmt.Printf("Visualization for %s written to %s\n", key, fname)
		}
		f.Close()
	}

	if allOk {
		fmt.Println("All keys linearizable")
		writeCombinedVisualization(outDir, keys)
	}
	return allOk
}

// writeCombinedVisualization stitches the per-key pages into one page
// of iframes, one section per key.
func writeCombinedVisualization(outDir string, keys []string) {
	wrapper := filepath.Join(outDir, "output_all.html")
	fw, err := os.Create(wrapper)
	if err != nil {
		fmt.Printf("Error creating wrapper HTML: %v\n", err)
		return
	}
	defer fw.Close()

	fmt.Fprintln(fw, "<!DOCTYPE html>")
	fmt.Fprintln(fw, "<html><head><title>Combined Visualization</title>")
	fmt.Fprintln(fw, "<style>iframe{width:100%;height:600px;border:1px solid #ccc;margin:10px 0;}</style>")
	fmt.Fprintln(fw, "</head><body>")
	fmt.Fprintln(fw, "<h1>Combined Visualization (per-key)</h1>")
	for _, key := range keys {
		fmt.Fprintf(fw, "<h2>Key %s</h2>\n", key)
		fmt.Fprintf(fw, "<iframe src=\"output_%s.html\"></iframe>\n", key)
	}
	fmt.Fprintln(fw, "</body></html>")
	fmt.Printf("Wrapper visualization written to %s\n", wrapper)
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Println("Usage: lcheck [flags] <log-file-path>")
		os.Exit(1)
	}
	if !checkLinearizability(flag.Arg(0)) {
		os.Exit(1)
	}
}
