package constraint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/nlp"
)

// Type is the closed set of constraint kinds.
type Type int

const (
	MarkersToMatch Type = iota
	AlignWithCustomRT
	ProjectionOnPlane
	TrackState
	ProportionalState
	ProportionalControl
	ContactForceGreaterThan
	ContactForceLesserThan
	NonSlipping
	Custom
)

var typeNames = [...]string{
	MarkersToMatch:          "markers_to_match",
	AlignWithCustomRT:       "align_with_custom_rt",
	ProjectionOnPlane:       "projection_on_plane",
	TrackState:              "track_state",
	ProportionalState:       "proportional_state",
	ProportionalControl:     "proportional_control",
	ContactForceGreaterThan: "contact_force_greater_than",
	ContactForceLesserThan:  "contact_force_lesser_than",
	NonSlipping:             "non_slipping",
	Custom:                  "custom",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// NeedsControl reports whether the constraint reads the control at its node.
func (t Type) NeedsControl() bool {
	switch t {
	case ProportionalControl, ContactForceGreaterThan, ContactForceLesserThan, NonSlipping:
		return true
	}
	return false
}

// Types lists every constraint kind.
func Types() []Type {
	out := make([]Type, len(typeNames))
	for i := range out {
		out[i] = Type(i)
	}
	return out
}

// ParseType resolves a type name, case-insensitively.
func ParseType(s string) (Type, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return 0, dynamo.Errorf("constraint type", s, dynamo.ErrUnknownConstraint, "expected one of %s", strings.Join(typeNames[:], ", "))
}

type nodeKind int

const (
	nodeStart nodeKind = iota
	nodeEnd
	nodeAll
	nodeAllShooting
	nodeAt
)

// Node selects the shooting nodes a constraint applies to.
type Node struct {
	kind nodeKind
	k    int
}

var (
	Start       = Node{kind: nodeStart}
	End         = Node{kind: nodeEnd}
	All         = Node{kind: nodeAll}
	AllShooting = Node{kind: nodeAllShooting}
)

// At selects node k.
func At(k int) Node { return Node{kind: nodeAt, k: k} }

func (n Node) String() string {
	switch n.kind {
	case nodeStart:
		return "start"
	case nodeEnd:
		return "end"
	case nodeAll:
		return "all"
	case nodeAllShooting:
		return "all_shooting"
	}
	return fmt.Sprintf("node %d", n.k)
}

// ParseNode reads "start", "end", "all", "all_shooting" or a node index.
func ParseNode(s string) (Node, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "start":
		return Start, nil
	case "end":
		return End, nil
	case "all":
		return All, nil
	case "all_shooting":
		return AllShooting, nil
	}
	k, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return Node{}, dynamo.Errorf("node", s, dynamo.ErrInvalidParameter, "expected start, end, all, all_shooting or an index")
	}
	return At(k), nil
}

// selection is a node selector resolved against one phase.
type selection struct {
	nodes []int
	x     []expr.Vector
	// u holds the controls of the selected nodes that have one, in order.
	u []expr.Vector
	// terminal is set when the selector names the last node on its own.
	terminal bool
}

func (n Node) resolve(p *nlp.Phase) (selection, error) {
	ns := p.NShooting
	var nodes []int
	switch n.kind {
	case nodeStart:
		nodes = []int{0}
	case nodeEnd:
		nodes = []int{ns}
	case nodeAll:
		nodes = span(0, ns+1)
	case nodeAllShooting:
		nodes = span(0, ns)
	case nodeAt:
		if n.k < 0 || n.k > ns {
			return selection{}, dynamo.Errorf("node", n.k, dynamo.ErrIndexOutOfRange, "phase %d has nodes 0..%d", p.Index, ns)
		}
		nodes = []int{n.k}
	}
	sel := selection{nodes: nodes, terminal: len(nodes) == 1 && nodes[0] == ns}
	for _, k := range nodes {
		sel.x = append(sel.x, p.X[k])
		if k < ns {
			sel.u = append(sel.u, p.U[k])
		}
	}
	return sel, nil
}

func span(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

// CustomFunc is a user constraint. It pushes its own residuals.
type CustomFunc func(acc *nlp.Accumulator, phase *nlp.Phase, x, u []expr.Vector, params map[string]any) error

// Descriptor declares one constraint. It is consumed by the first
// AddConstraints that dispatches it.
type Descriptor struct {
	Type     Type
	Node     Node
	Params   map[string]any
	Function CustomFunc

	consumed bool
}

// Consumed reports whether the descriptor was already dispatched.
func (d *Descriptor) Consumed() bool { return d.consumed }

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s at %s", d.Type, d.Node)
}

// take strips the dispatch keys, marks the descriptor consumed and returns
// the builder parameters.
func (d *Descriptor) take() map[string]any {
	params := make(map[string]any, len(d.Params))
	for k, v := range d.Params {
		switch k {
		case "type", "node", "function":
			continue
		}
		params[k] = v
	}
	d.Params = nil
	d.consumed = true
	return params
}

func NewMarkersToMatch(node Node, first, second int) *Descriptor {
	return &Descriptor{Type: MarkersToMatch, Node: node, Params: map[string]any{
		"first_marker": first, "second_marker": second,
	}}
}

func NewAlignWithCustomRT(node Node, segment, rt int) *Descriptor {
	return &Descriptor{Type: AlignWithCustomRT, Node: node, Params: map[string]any{
		"segment": segment, "rt": rt,
	}}
}

func NewProjectionOnPlane(node Node, marker, segment int, axes ...int) *Descriptor {
	return &Descriptor{Type: ProjectionOnPlane, Node: node, Params: map[string]any{
		"marker": marker, "segment": segment, "axes": axes,
	}}
}

// NewTrackState tracks data[k][j] with state statesIdx[j] at every selected
// node k. An empty statesIdx tracks the whole state.
func NewTrackState(node Node, data [][]float64, statesIdx ...int) *Descriptor {
	params := map[string]any{"data_to_track": data}
	if len(statesIdx) > 0 {
		params["states_idx"] = statesIdx
	}
	return &Descriptor{Type: TrackState, Node: node, Params: params}
}

func NewProportionalState(node Node, first, second int, coef any) *Descriptor {
	return &Descriptor{Type: ProportionalState, Node: node, Params: map[string]any{
		"first_dof": first, "second_dof": second, "coef": coef,
	}}
}

func NewProportionalControl(node Node, first, second int, coef any) *Descriptor {
	return &Descriptor{Type: ProportionalControl, Node: node, Params: map[string]any{
		"first_dof": first, "second_dof": second, "coef": coef,
	}}
}

// NewContactForce bounds contact force component idx from below (greater)
// or above.
func NewContactForce(node Node, greater bool, idx int, boundary float64) *Descriptor {
	t := ContactForceLesserThan
	if greater {
		t = ContactForceGreaterThan
	}
	return &Descriptor{Type: t, Node: node, Params: map[string]any{
		"idx": idx, "boundary": boundary,
	}}
}

func NewNonSlipping(node Node, normal, tangential []int, mu float64) *Descriptor {
	return &Descriptor{Type: NonSlipping, Node: node, Params: map[string]any{
		"normal_component_idx":        normal,
		"tangential_component_idx":    tangential,
		"static_friction_coefficient": mu,
	}}
}

func NewCustom(node Node, fn CustomFunc, params map[string]any) *Descriptor {
	return &Descriptor{Type: Custom, Node: node, Function: fn, Params: params}
}
