package epaxos

import (
	"sort"
	"time"

	"github.com/emirpasic/gods/queues/arrayqueue"
	"github.com/emirpasic/gods/stacks/arraystack"

	"github.com/Brian-1402/EPaxos-reactor/commitexec"
	"github.com/Brian-1402/EPaxos-reactor/dlog"
	"github.com/Brian-1402/EPaxos-reactor/epaxosproto"
	"github.com/Brian-1402/EPaxos-reactor/genericsmr"
	"github.com/Brian-1402/EPaxos-reactor/genericsmrproto"
	"github.com/Brian-1402/EPaxos-reactor/state"
)

type Exec struct {
	r *Replica
}

type vertex struct {
	id      epaxosproto.InstanceId
	inst    *Instance
	adj     []*vertex
	index   int
	lowlink int
	onStack bool
	scc     int
}

// executeCommand applies the committed instance at (replica, instance)
// together with everything it transitively depends on. It returns false,
// leaving all state untouched, if any reachable dependency is not yet
// committed; the caller retries after the next commit.
func (e *Exec) executeCommand(replica int32, instance int32) bool {
	inst := e.r.getInstance(replica, instance)
	if inst == nil {
		return false
	}
	if inst.Status == epaxosproto.EXECUTED {
		return true
	}
	if inst.Status != epaxosproto.COMMITTED {
		return false
	}

	graph, ready := e.buildDepGraph(epaxosproto.InstanceId{Replica: replica, Instance: instance})
	if !ready {
		return false
	}

	for _, comp := range topoSortSCC(stronglyConnected(graph)) {
		e.executeComponent(comp)
	}
	return true
}

// buildDepGraph walks the dependency closure of root. Executed records
// terminate the walk; a missing or uncommitted record aborts it.
func (e *Exec) buildDepGraph(root epaxosproto.InstanceId) (map[epaxosproto.InstanceId]*vertex, bool) {
	graph := make(map[epaxosproto.InstanceId]*vertex)

	work := arraystack.New()
	work.Push(root)
	for !work.Empty() {
		top, _ := work.Pop()
		id := top.(epaxosproto.InstanceId)
		if _, seen := graph[id]; seen {
			continue
		}
		inst := e.r.getInstance(id.Replica, id.Instance)
		if inst == nil {
			return nil, false
		}
		if inst.Status == epaxosproto.EXECUTED {
			continue
		}
		if inst.Status != epaxosproto.COMMITTED {
			return nil, false
		}
		graph[id] = &vertex{id: id, inst: inst}
		for d := range inst.Deps {
			work.Push(d)
		}
	}

	for _, v := range graph {
		for d := range v.inst.Deps {
			if w, present := graph[d]; present {
				v.adj = append(v.adj, w)
			}
		}
		sort.Slice(v.adj, func(i, j int) bool {
			return lessById(v.adj[i].id, v.adj[j].id)
		})
	}
	return graph, true
}

func lessById(a, b epaxosproto.InstanceId) bool {
	if a.Replica != b.Replica {
		return a.Replica < b.Replica
	}
	return a.Instance < b.Instance
}

type tarjanFrame struct {
	v   *vertex
	pos int
}

// stronglyConnected partitions the graph into its strongly connected
// components with an iterative Tarjan walk; recursion depth would
// otherwise be bounded by the length of the dependency chain.
func stronglyConnected(graph map[epaxosproto.InstanceId]*vertex) [][]*vertex {
	verts := make([]*vertex, 0, len(graph))
	for _, v := range graph {
		verts = append(verts, v)
	}
	sort.Slice(verts, func(i, j int) bool {
		return lessById(verts[i].id, verts[j].id)
	})

	index := 1
	stack := arraystack.New()
	frames := arraystack.New()
	sccs := make([][]*vertex, 0, len(verts))

	visit := func(v *vertex) {
		v.index = index
		v.lowlink = index
		index++
		stack.Push(v)
		v.onStack = true
		frames.Push(&tarjanFrame{v: v})
	}

	for _, root := range verts {
		if root.index != 0 {
			continue
		}
		visit(root)

		for !frames.Empty() {
			top, _ := frames.Peek()
			f := top.(*tarjanFrame)

			if f.pos < len(f.v.adj) {
				w := f.v.adj[f.pos]
				f.pos++
				if w.index == 0 {
					visit(w)
				} else if w.onStack && w.index < f.v.lowlink {
					f.v.lowlink = w.index
				}
				continue
			}

			frames.Pop()
			if !frames.Empty() {
				pt, _ := frames.Peek()
				parent := pt.(*tarjanFrame)
				if f.v.lowlink < parent.v.lowlink {
					parent.v.lowlink = f.v.lowlink
				}
			}
			if f.v.lowlink == f.v.index {
				comp := make([]*vertex, 0, 1)
				for {
					wt, _ := stack.Pop()
					w := wt.(*vertex)
					w.onStack = false
					w.scc = len(sccs)
					comp = append(comp, w)
					if w == f.v {
						break
					}
				}
				sccs = append(sccs, comp)
			}
		}
	}
	return sccs
}

// topoSortSCC orders the condensation of the dependency graph so that
// every component comes after every component it depends on.
func topoSortSCC(sccs [][]*vertex) [][]*vertex {
	n := len(sccs)
	dependers := make([][]int, n)
	indegree := make([]int, n)
	edgeSeen := make(map[[2]int]struct{})

	for _, comp := range sccs {
		for _, v := range comp {
			for _, w := range v.adj {
				if v.scc == w.scc {
					continue
				}
				key := [2]int{v.scc, w.scc}
				if _, dup := edgeSeen[key]; dup {
					continue
				}
				edgeSeen[key] = struct{}{}
				dependers[w.scc] = append(dependers[w.scc], v.scc)
				indegree[v.scc]++
			}
		}
	}

	queue := arrayqueue.New()
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			queue.Enqueue(i)
		}
	}

	order := make([][]*vertex, 0, n)
	for !queue.Empty() {
		front, _ := queue.Dequeue()
		i := front.(int)
		order = append(order, sccs[i])
		for _, d := range dependers[i] {
			indegree[d]--
			if indegree[d] == 0 {
				queue.Enqueue(d)
			}
		}
	}
	return order
}

// executeComponent applies one strongly connected component; members are
// ordered by sequence number, ties broken by instance identity.
func (e *Exec) executeComponent(comp []*vertex) {
	sort.Slice(comp, func(i, j int) bool {
		a, b := comp[i], comp[j]
		if a.inst.Seq != b.inst.Seq {
			return a.inst.Seq < b.inst.Seq
		}
		return lessById(a.id, b.id)
	})
	for _, v := range comp {
		e.executeInstance(v)
	}
}

func (e *Exec) executeInstance(v *vertex) {
	inst := v.inst
	if inst.Status == epaxosproto.EXECUTED {
		return
	}
	val := inst.Cmd.Execute(e.r.State)
	inst.Status = epaxosproto.EXECUTED

	e.r.bumpStat("executed")
	if e.r.LatencyRecorder != nil {
		e.r.LatencyRecorder.RecordExecution(commitexec.InstanceId{Log: v.id.Replica, Seq: v.id.Instance}, time.Now())
	}
	dlog.Printf("Replica %d executed %d.%d: %s\n", e.r.Id, v.id.Replica, v.id.Instance, inst.Cmd.String())

	lb := inst.lb
	if lb == nil || lb.clientProposal == nil {
		return
	}
	// reads answer only here; writes answer here when replies wait for execution
	if state.IsRead(&inst.Cmd) || e.r.Dreply {
		e.r.ReplyProposeTS(&genericsmrproto.ProposeReplyTS{
			OK:        genericsmr.TRUE,
			CommandId: lb.clientProposal.CommandId,
			ClientId:  lb.clientProposal.ClientId,
			Value:     val,
			Timestamp: lb.clientProposal.Timestamp,
		}, lb.clientProposal.Reply, lb.clientProposal.Mutex)
	}
}
