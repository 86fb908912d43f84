package protocol

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"

	"github.com/encodeous/dvsim/state"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestChangeCostOverPipe(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	costs := state.Matrix{
		{0, 1, 5},
		{1, 0, 1},
		{5, 1, 0},
	}
	req := NewChangeCost(costs)
	go func() {
		assert.NoError(t, Send(a, req))
	}()

	got := &Request{}
	require.NoError(t, Receive(b, got))
	assert.Equal(t, ChangeCost, got.Kind)
	assert.Equal(t, req.Id, got.Id)
	if diff := cmp.Diff(costs, got.Costs); diff != "" {
		t.Fatalf("costs mismatch (-want +got):\n%s", diff)
	}
}

func TestReplyCarriesTables(t *testing.T) {
	req := NewRequest(GetDVAndRoutingTable)
	reply := req.Ack()
	reply.DV = state.Matrix{{0, 16}, {-3, 0}}
	reply.RoutingTable = state.Matrix{{0, 2}, {0, 0}}

	buf := &bytes.Buffer{}
	require.NoError(t, Send(buf, reply))

	got := &Reply{}
	require.NoError(t, Receive(buf, got))
	assert.Equal(t, GetDVAndRoutingTable, got.Kind)
	assert.Equal(t, reply.DV, got.DV)
	assert.Equal(t, reply.RoutingTable, got.RoutingTable)
}

func TestAckHasNoTables(t *testing.T) {
	req := NewRequest(UpdateDV)
	buf := &bytes.Buffer{}
	require.NoError(t, Send(buf, req.Ack()))

	got := &Reply{}
	require.NoError(t, Receive(buf, got))
	assert.Equal(t, UpdateDV, got.Kind)
	assert.Nil(t, got.DV)
	assert.Nil(t, got.RoutingTable)
}

func TestUnknownKindRejected(t *testing.T) {
	_, err := (&Request{Kind: Kind(42)}).Marshal()
	assert.ErrorIs(t, err, ErrUnknownKind)

	b := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)
	assert.ErrorIs(t, (&Request{}).Unmarshal(b), ErrUnknownKind)
}

func TestChangeCostRequiresMatrix(t *testing.T) {
	req := NewRequest(ChangeCost)
	b, err := req.Marshal()
	require.NoError(t, err)
	assert.ErrorIs(t, (&Request{}).Unmarshal(b), ErrMalformed)
}

func TestMatrixCellCountChecked(t *testing.T) {
	var inner []byte
	inner = protowire.AppendTag(inner, fieldMatrixSize, protowire.VarintType)
	inner = protowire.AppendVarint(inner, 2)
	inner = protowire.AppendTag(inner, fieldMatrixCells, protowire.BytesType)
	inner = protowire.AppendBytes(inner, protowire.AppendVarint(nil, 0))
	_, err := consumeMatrix(inner)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestOversizedFrameRejected(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, binary.Write(buf, binary.BigEndian, uint32(MaxPacketSize+1)))
	assert.ErrorIs(t, Receive(buf, &Reply{}), ErrPacketSize)
}
