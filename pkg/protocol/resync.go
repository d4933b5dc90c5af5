package protocol

import (
	"fmt"

	"github.com/stratum-ui/stratum/pkg/mount"
)

// ResyncRequest is sent by a client that detected a revision gap.
// FromRevision is the newest revision the client has applied.
type ResyncRequest struct {
	FromRevision uint64
}

// ResyncReply answers a ResyncRequest. When the requested gap is still
// covered by the server's history the reply replays the missed
// transactions in revision order. When it is not, Snapshot is true and
// Transactions holds a single transaction that rebuilds from empty.
type ResyncReply struct {
	Snapshot     bool
	Transactions []*mount.Transaction
}

// EncodeResyncRequest encodes a ResyncRequest to bytes.
func EncodeResyncRequest(rr *ResyncRequest) []byte {
	e := NewEncoder()
	e.WriteUvarint(rr.FromRevision)
	return e.Bytes()
}

// DecodeResyncRequest decodes a ResyncRequest from bytes.
func DecodeResyncRequest(data []byte) (*ResyncRequest, error) {
	d := NewDecoder(data)
	from, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	return &ResyncRequest{FromRevision: from}, nil
}

// EncodeResyncReply encodes a ResyncReply to bytes.
func EncodeResyncReply(rr *ResyncReply) ([]byte, error) {
	e := NewEncoder()
	if err := EncodeResyncReplyTo(e, rr); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// EncodeResyncReplyTo encodes a ResyncReply using the provided encoder.
func EncodeResyncReplyTo(e *Encoder, rr *ResyncReply) error {
	e.WriteBool(rr.Snapshot)
	e.WriteUvarint(uint64(len(rr.Transactions)))
	for i, tx := range rr.Transactions {
		if err := EncodeTransactionTo(e, tx); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	return nil
}

// DecodeResyncReply decodes a ResyncReply from bytes.
func DecodeResyncReply(data []byte) (*ResyncReply, error) {
	d := NewDecoder(data)
	return DecodeResyncReplyFrom(d)
}

// DecodeResyncReplyFrom decodes a ResyncReply from a decoder.
func DecodeResyncReplyFrom(d *Decoder) (*ResyncReply, error) {
	snapshot, err := d.ReadBool()
	if err != nil {
		return nil, err
	}

	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	if count > MaxResyncTransactions {
		return nil, ErrCollectionTooLarge
	}

	rr := &ResyncReply{Snapshot: snapshot}
	if count > 0 {
		rr.Transactions = make([]*mount.Transaction, 0, count)
		for i := 0; i < count; i++ {
			tx, err := DecodeTransactionFrom(d)
			if err != nil {
				return nil, fmt.Errorf("transaction %d: %w", i, err)
			}
			rr.Transactions = append(rr.Transactions, tx)
		}
	}
	return rr, nil
}
