package broker

import (
	"strconv"

	"github.com/tidwall/sjson"

	"github.com/dshills/keystorm/internal/engine/rope"
	"github.com/dshills/keystorm/internal/engine/transaction"
)

// toWireTx converts a local transaction into its wire form for broadcast
// to followers. The conversion is purely structural; it does not touch
// the rope.
func toWireTx(tx transaction.Transaction) WireTx {
	changes := tx.Changes()
	wire := WireTx{Changes: make([]WireChange, len(changes))}
	for i, c := range changes {
		wire.Changes[i] = WireChange{
			Start:         uint64(c.Start),
			End:           uint64(c.End),
			Replacement:   c.Text(),
			IsReplacement: !c.IsDeletion(),
		}
	}
	return wire
}

// wireToTx converts a wire transaction received from the owner into a
// local transaction.Transaction, validated against the authoritative
// rope's current length. It does not apply the transaction.
func wireToTx(wire WireTx, against rope.Rope) (transaction.Transaction, error) {
	changes := make([]transaction.Change, len(wire.Changes))
	limit := against.LenChars()
	for i, wc := range wire.Changes {
		start := rope.CharOffset(wc.Start)
		end := rope.CharOffset(wc.End)
		if start > end || end > limit {
			return transaction.Transaction{}, newErr(ErrInvalidDelta)
		}
		if wc.IsReplacement {
			changes[i] = transaction.NewChange(start, end, wc.Replacement)
		} else {
			changes[i] = transaction.NewDeletion(start, end)
		}
	}
	tx, err := transaction.New(changes)
	if err != nil {
		return transaction.Transaction{}, newErr(ErrInvalidDelta)
	}
	return tx, nil
}

// marshalDeltaFrame builds the outbound BufferSyncDelta event payload.
// Encoding is assembled incrementally with sjson rather than a struct tag
// marshal so the frame's `type` discriminator and numeric fields land in
// the shape the IPC transport expects, matching how the rest of this pack
// (vimfony) builds its outbound JSON-RPC frames.
func marshalDeltaFrame(uri string, epoch SyncEpoch, seq SyncSeq, wire WireTx) (string, error) {
	json := `{}`
	var err error
	json, err = sjson.Set(json, "type", "BufferSyncDelta")
	if err != nil {
		return "", err
	}
	json, err = sjson.Set(json, "uri", uri)
	if err != nil {
		return "", err
	}
	json, err = sjson.Set(json, "epoch", uint64(epoch))
	if err != nil {
		return "", err
	}
	json, err = sjson.Set(json, "seq", uint64(seq))
	if err != nil {
		return "", err
	}
	for i, c := range wire.Changes {
		prefix := "tx.changes." + strconv.Itoa(i) + "."
		if json, err = sjson.Set(json, prefix+"start", c.Start); err != nil {
			return "", err
		}
		if json, err = sjson.Set(json, prefix+"end", c.End); err != nil {
			return "", err
		}
		if c.IsReplacement {
			if json, err = sjson.Set(json, prefix+"replacement", c.Replacement); err != nil {
				return "", err
			}
		}
	}
	return json, nil
}

// marshalOwnerChangedFrame builds the outbound BufferSyncOwnerChanged
// event payload.
func marshalOwnerChangedFrame(uri string, epoch SyncEpoch, owner SessionID) (string, error) {
	json := `{}`
	var err error
	if json, err = sjson.Set(json, "type", "BufferSyncOwnerChanged"); err != nil {
		return "", err
	}
	if json, err = sjson.Set(json, "uri", uri); err != nil {
		return "", err
	}
	if json, err = sjson.Set(json, "epoch", uint64(epoch)); err != nil {
		return "", err
	}
	if json, err = sjson.Set(json, "owner", string(owner)); err != nil {
		return "", err
	}
	return json, nil
}
