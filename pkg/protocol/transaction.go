package protocol

import (
	"fmt"

	"github.com/stratum-ui/stratum/pkg/mount"
	"github.com/stratum-ui/stratum/pkg/shadow"
)

// Op is the wire opcode of a mutation. The in-memory mutation type is a
// bitmask; on the wire each mutation is exactly one operation, so opcodes
// are sequential bytes.
type Op uint8

const (
	OpCreate Op = 0x01 // Allocate a view: new child view follows
	OpDelete Op = 0x02 // Destroy a view: doomed tag follows
	OpInsert Op = 0x03 // Attach: parent tag, index, new child view
	OpRemove Op = 0x04 // Detach: parent tag, index, doomed tag
	OpUpdate Op = 0x05 // Mutate in place: parent tag, index, new state
)

// String returns the string representation of the opcode.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "Create"
	case OpDelete:
		return "Delete"
	case OpInsert:
		return "Insert"
	case OpRemove:
		return "Remove"
	case OpUpdate:
		return "Update"
	default:
		return "Unknown"
	}
}

// opForMutation maps an in-memory mutation type to its wire opcode.
func opForMutation(t mount.MutationType) (Op, error) {
	switch t {
	case mount.MutationCreate:
		return OpCreate, nil
	case mount.MutationDelete:
		return OpDelete, nil
	case mount.MutationInsert:
		return OpInsert, nil
	case mount.MutationRemove:
		return OpRemove, nil
	case mount.MutationUpdate:
		return OpUpdate, nil
	default:
		return 0, fmt.Errorf("protocol: mutation type %v has no opcode", t)
	}
}

// EncodeTransaction encodes a transaction to bytes.
func EncodeTransaction(tx *mount.Transaction) ([]byte, error) {
	e := NewEncoder()
	if err := EncodeTransactionTo(e, tx); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// EncodeTransactionTo encodes a transaction using the provided encoder.
//
// Wire format:
//
//	base revision  uvarint
//	revision       uvarint
//	mutations      varint count, then one encoded mutation each
//
// Telemetry is process-local and does not travel.
func EncodeTransactionTo(e *Encoder, tx *mount.Transaction) error {
	e.WriteUvarint(tx.BaseRevision)
	e.WriteUvarint(tx.Revision)
	e.WriteUvarint(uint64(len(tx.Mutations)))

	for i := range tx.Mutations {
		if err := encodeMutation(e, &tx.Mutations[i]); err != nil {
			return fmt.Errorf("mutation %d: %w", i, err)
		}
	}
	return nil
}

// encodeMutation encodes a single mutation.
//
// Parents travel as bare tags: the consuming mount stage addresses views
// by tag, and a full parent snapshot on every Insert and Remove would
// dominate reorder-heavy transactions. Delete and Remove likewise carry
// only the doomed child's tag.
func encodeMutation(e *Encoder, m *mount.Mutation) error {
	op, err := opForMutation(m.Type)
	if err != nil {
		return err
	}
	e.WriteByte(byte(op))

	switch op {
	case OpCreate:
		return EncodeViewTo(e, m.NewChildView)

	case OpDelete:
		e.WriteTag(m.OldChildView.Tag)
		return nil

	case OpInsert:
		e.WritePlacement(m.ParentView.Tag, m.Index)
		return EncodeViewTo(e, m.NewChildView)

	case OpRemove:
		e.WritePlacement(m.ParentView.Tag, m.Index)
		e.WriteTag(m.OldChildView.Tag)
		return nil

	case OpUpdate:
		e.WritePlacement(m.ParentView.Tag, m.Index)
		return EncodeViewTo(e, m.NewChildView)
	}
	return nil
}

// DecodeTransaction decodes a transaction from bytes.
func DecodeTransaction(data []byte) (*mount.Transaction, error) {
	d := NewDecoder(data)
	return DecodeTransactionFrom(d)
}

// DecodeTransactionFrom decodes a transaction from a decoder.
//
// Decoded mutations carry only what the wire does: parent and doomed
// views hold a tag and nothing else, and an Update's old view is zero.
func DecodeTransactionFrom(d *Decoder) (*mount.Transaction, error) {
	base, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	revision, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}

	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}

	mutations := make([]mount.Mutation, count)
	for i := 0; i < count; i++ {
		if err := decodeMutation(d, &mutations[i]); err != nil {
			return nil, fmt.Errorf("mutation %d: %w", i, err)
		}
	}

	return &mount.Transaction{
		BaseRevision: base,
		Revision:     revision,
		Mutations:    mutations,
	}, nil
}

// decodeMutation decodes a single mutation.
func decodeMutation(d *Decoder, m *mount.Mutation) error {
	opByte, err := d.ReadByte()
	if err != nil {
		return err
	}

	switch Op(opByte) {
	case OpCreate:
		view, err := DecodeViewFrom(d)
		if err != nil {
			return err
		}
		*m = mount.CreateMutation(view)
		return nil

	case OpDelete:
		tag, err := d.ReadTag()
		if err != nil {
			return err
		}
		*m = mount.DeleteMutation(shadow.View{Tag: tag})
		return nil

	case OpInsert:
		parentTag, index, err := d.ReadPlacement()
		if err != nil {
			return err
		}
		view, err := DecodeViewFrom(d)
		if err != nil {
			return err
		}
		*m = mount.InsertMutation(shadow.View{Tag: parentTag}, view, index)
		return nil

	case OpRemove:
		parentTag, index, err := d.ReadPlacement()
		if err != nil {
			return err
		}
		tag, err := d.ReadTag()
		if err != nil {
			return err
		}
		*m = mount.RemoveMutation(shadow.View{Tag: parentTag}, shadow.View{Tag: tag}, index)
		return nil

	case OpUpdate:
		parentTag, index, err := d.ReadPlacement()
		if err != nil {
			return err
		}
		view, err := DecodeViewFrom(d)
		if err != nil {
			return err
		}
		*m = mount.UpdateMutation(shadow.View{Tag: parentTag}, shadow.View{}, view, index)
		return nil

	default:
		return fmt.Errorf("protocol: unknown opcode 0x%02X", opByte)
	}
}
