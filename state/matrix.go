package state

import (
	"fmt"
	"strings"
)

// NodeId is a 1-based node number, stable for a simulation run.
type NodeId int

// Index returns the zero-based row/column of the node.
func (id NodeId) Index() int {
	return int(id) - 1
}

func (id NodeId) String() string {
	return fmt.Sprintf("%d", int(id))
}

// NodeAt converts a zero-based index back to a NodeId.
func NodeAt(idx int) NodeId {
	return NodeId(idx + 1)
}

// Matrix is a square (from, to) table, used for costs, distance vectors and routing tables.
type Matrix [][]int

func NewMatrix(n int, fill int) Matrix {
	m := make(Matrix, n)
	for i := range m {
		row := make([]int, n)
		for j := range row {
			row[j] = fill
		}
		m[i] = row
	}
	return m
}

func (m Matrix) Size() int {
	return len(m)
}

// Square reports whether every row has len(m) entries.
func (m Matrix) Square() bool {
	for _, row := range m {
		if len(row) != len(m) {
			return false
		}
	}
	return true
}

func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = append([]int(nil), row...)
	}
	return out
}

func (m Matrix) Equal(o Matrix) bool {
	if len(m) != len(o) {
		return false
	}
	for i := range m {
		if len(m[i]) != len(o[i]) {
			return false
		}
		for j := range m[i] {
			if m[i][j] != o[i][j] {
				return false
			}
		}
	}
	return true
}

// Render formats the matrix as a table with 1-based headers, printing entries >= inf as "Inf".
// inf <= 0 disables the substitution.
func (m Matrix) Render(inf int) string {
	sb := strings.Builder{}
	sb.WriteString("    ")
	for to := range m {
		sb.WriteString(fmt.Sprintf("%-4d", to+1))
	}
	sb.WriteString("\n")
	for from, row := range m {
		sb.WriteString(fmt.Sprintf("%-4d", from+1))
		for _, v := range row {
			if inf > 0 && v >= inf {
				sb.WriteString(fmt.Sprintf("%-4s", "Inf"))
			} else {
				sb.WriteString(fmt.Sprintf("%-4d", v))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Snapshot is the ordered list of per-node DV tables captured by one controller step.
type Snapshot []Matrix

func (s Snapshot) Equal(o Snapshot) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if !s[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for i, m := range s {
		out[i] = m.Clone()
	}
	return out
}
