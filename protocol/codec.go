package protocol

// Messages are encoded in the protobuf wire format:
//
//	message Matrix  { uint32 size = 1; repeated sint64 cells = 2 [packed = true]; } // row-major
//	message Request { int32 kind = 1; bytes id = 2; Matrix costs = 3; }
//	message Reply   { int32 kind = 1; bytes id = 2; Matrix dv = 3; Matrix routing_table = 4; }

import (
	"fmt"

	"github.com/encodeous/dvsim/state"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldKind  protowire.Number = 1
	fieldId    protowire.Number = 2
	fieldCosts protowire.Number = 3

	fieldDV           protowire.Number = 3
	fieldRoutingTable protowire.Number = 4

	fieldMatrixSize  protowire.Number = 1
	fieldMatrixCells protowire.Number = 2
)

func appendMatrix(b []byte, num protowire.Number, m state.Matrix) []byte {
	if m == nil {
		return b
	}
	var inner []byte
	inner = protowire.AppendTag(inner, fieldMatrixSize, protowire.VarintType)
	inner = protowire.AppendVarint(inner, uint64(len(m)))
	var cells []byte
	for _, row := range m {
		for _, v := range row {
			cells = protowire.AppendVarint(cells, protowire.EncodeZigZag(int64(v)))
		}
	}
	inner = protowire.AppendTag(inner, fieldMatrixCells, protowire.BytesType)
	inner = protowire.AppendBytes(inner, cells)

	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner)
}

func consumeMatrix(b []byte) (state.Matrix, error) {
	size := -1
	var cells []int
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldMatrixSize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
			}
			if v > state.MaxNodesLimit {
				return nil, fmt.Errorf("%w: matrix size %d", ErrMalformed, v)
			}
			size = int(v)
			b = b[n:]
		case num == fieldMatrixCells && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nil, fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(m))
				}
				cells = append(cells, int(protowire.DecodeZigZag(v)))
				packed = packed[m:]
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if size < 0 || len(cells) != size*size {
		return nil, fmt.Errorf("%w: matrix of size %d has %d cells", ErrMalformed, size, len(cells))
	}
	m := state.NewMatrix(size, 0)
	for i := range size {
		copy(m[i], cells[i*size:(i+1)*size])
	}
	return m, nil
}

func appendHeader(b []byte, kind Kind, id uuid.UUID) []byte {
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(kind))
	b = protowire.AppendTag(b, fieldId, protowire.BytesType)
	return protowire.AppendBytes(b, id[:])
}

// walk calls fn for each length-delimited field after decoding kind and id.
func walk(b []byte, kind *Kind, id *uuid.UUID, fn func(num protowire.Number, val []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
			}
			*kind = Kind(int32(v))
			b = b[n:]
		case num == fieldId && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
			}
			parsed, err := uuid.FromBytes(v)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			*id = parsed
			b = b[n:]
		case typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
			}
			if err := fn(num, v); err != nil {
				return err
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

func (r *Request) Marshal() ([]byte, error) {
	if !r.Kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, r.Kind)
	}
	b := appendHeader(nil, r.Kind, r.Id)
	return appendMatrix(b, fieldCosts, r.Costs), nil
}

func (r *Request) Unmarshal(b []byte) error {
	*r = Request{}
	err := walk(b, &r.Kind, &r.Id, func(num protowire.Number, val []byte) error {
		if num != fieldCosts {
			return nil
		}
		m, err := consumeMatrix(val)
		r.Costs = m
		return err
	})
	if err != nil {
		return err
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownKind, r.Kind)
	}
	if r.Kind == ChangeCost && r.Costs == nil {
		return fmt.Errorf("%w: %s without a cost matrix", ErrMalformed, r.Kind)
	}
	return nil
}

func (r *Reply) Marshal() ([]byte, error) {
	b := appendHeader(nil, r.Kind, r.Id)
	b = appendMatrix(b, fieldDV, r.DV)
	return appendMatrix(b, fieldRoutingTable, r.RoutingTable), nil
}

func (r *Reply) Unmarshal(b []byte) error {
	*r = Reply{}
	return walk(b, &r.Kind, &r.Id, func(num protowire.Number, val []byte) error {
		var err error
		switch num {
		case fieldDV:
			r.DV, err = consumeMatrix(val)
		case fieldRoutingTable:
			r.RoutingTable, err = consumeMatrix(val)
		}
		return err
	})
}
