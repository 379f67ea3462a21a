package dag

// Position places a task on a 2-D grid: X spreads tasks within a layer, Y is the layer.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Edge points from a task to one of its inputs.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Layout is a drawing aid only; nothing in the simulation depends on it.
type Layout struct {
	Nodes     []string            `json:"nodes"`
	Layers    map[string]int      `json:"layers"`
	Positions map[string]Position `json:"positions"`
	Edges     []Edge              `json:"edges"`
}

// Layer assigns layers and positions to the first maxNodes tasks in insertion order.
// Sources sit on layer 0 and every other task one layer below its lowest input.
// Within a layer, X goes 0, 1, -1, 2, -2, ... in insertion order.
func (d *WorkflowDAG) Layer(maxNodes int) Layout {
	layout := Layout{
		Nodes:     make([]string, 0),
		Layers:    make(map[string]int),
		Positions: make(map[string]Position),
		Edges:     make([]Edge, 0),
	}
	atLayer := make(map[int]int)

	for _, t := range d.order {
		if maxNodes <= 0 {
			break
		}
		maxNodes--

		layer := 0
		if len(t.inputs) > 0 {
			lowest, placed := 0, false
			for _, in := range t.inputs {
				l, ok := layout.Layers[in.Name]
				if !ok {
					continue
				}
				if !placed || l < lowest {
					lowest, placed = l, true
				}
				layout.Edges = append(layout.Edges, Edge{From: t.Name, To: in.Name})
			}
			if placed {
				layer = lowest - 1
			}
		}

		layout.Nodes = append(layout.Nodes, t.Name)
		layout.Layers[t.Name] = layer
		x := atLayer[layer]
		layout.Positions[t.Name] = Position{X: x, Y: layer}
		atLayer[layer] = nextSlot(x)
	}
	return layout
}

func nextSlot(x int) int {
	switch {
	case x == 0:
		return 1
	case x > 0:
		return -x
	default:
		return -x + 1
	}
}
