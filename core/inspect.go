package core

import (
	"fmt"
	"strings"

	"github.com/encodeous/dvsim/state"
)

// RenderTables formats the DV and routing table of one node for display.
func RenderTables(id state.NodeId, addr string, dv, rt state.Matrix, inf int) string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("Node %d (%s)\n", id, addr))
	sb.WriteString("Distance vector:\n")
	sb.WriteString(dv.Render(inf))
	sb.WriteString("Routing table:\n")
	sb.WriteString(rt.Render(0))
	return sb.String()
}

// DescribeState lists the neighbours, the cached neighbour rows and the routes of a node.
func DescribeState(s *state.DVState) string {
	sb := strings.Builder{}
	sb.WriteString("Neighbours:\n")
	if len(s.Neighbours) == 0 {
		sb.WriteString("  (none)\n")
	}
	for i, neigh := range s.Neighbours {
		sb.WriteString(fmt.Sprintf(" - %d cost %d\n", neigh, s.Costs[s.Id.Index()][neigh.Index()]))
		sb.WriteString(fmt.Sprintf("   Advertised: %s\n", renderRow(s.NeighbourDV[i][neigh.Index()], s.Infinity)))
	}

	sb.WriteString("\nRoutes:\n")
	for to := range s.N {
		if to == s.Id.Index() {
			continue
		}
		if !Reachable(s.Own[to], s.Infinity) {
			sb.WriteString(fmt.Sprintf(" - %d unreachable\n", to+1))
			continue
		}
		sb.WriteString(fmt.Sprintf(" - %d via %d metric %d\n", to+1, s.NextHop[to], s.Own[to]))
	}
	return sb.String()
}

func renderRow(row []int, inf int) string {
	parts := make([]string, len(row))
	for i, v := range row {
		if Reachable(v, inf) {
			parts[i] = fmt.Sprint(v)
		} else {
			parts[i] = "Inf"
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
