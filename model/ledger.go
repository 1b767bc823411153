package model

import (
	"bytes"
	"sort"

	"github.com/jinzhu/copier"
)

// Unspent transaction output. All UTXO are aggregated as a ledger and snapshoted at each block in the blockchain.
type UTXO struct {
	// Hex string of the transaction.
	PrevTxHash string `json:"prev_tx_hash"`
	// The index of the output in that transaction. Together with PrevTxHash, it identifies the unique output.
	Index int64 `json:"index"`
}

// Ledger is simply a pool of UTXO.
//
// A ledger becomes read-only once it is sealed, which happens when the block
// owning it is published on the blockchain. Sealed ledgers may be read from
// any goroutine; Clone one to derive a new state.
type Ledger struct {
	utxos  map[UTXO]Output
	sealed bool
}

func NewLedger() *Ledger {
	return &Ledger{
		utxos: make(map[UTXO]Output),
	}
}

func (l *Ledger) Contains(u UTXO) bool {
	_, ok := l.utxos[u]
	return ok
}

func (l *Ledger) Get(u UTXO) (Output, bool) {
	o, ok := l.utxos[u]
	return o, ok
}

// Insert stores an output under u. Panics on a sealed ledger.
func (l *Ledger) Insert(u UTXO, o Output) {
	l.mustBeWritable()
	l.utxos[u] = o
}

// Remove drops u from the ledger. Panics on a sealed ledger.
func (l *Ledger) Remove(u UTXO) {
	l.mustBeWritable()
	delete(l.utxos, u)
}

// All returns every UTXO key ordered by transaction hash, then index.
func (l *Ledger) All() []UTXO {
	keys := make([]UTXO, 0, len(l.utxos))
	for u := range l.utxos {
		keys = append(keys, u)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].PrevTxHash != keys[j].PrevTxHash {
			return keys[i].PrevTxHash < keys[j].PrevTxHash
		}
		return keys[i].Index < keys[j].Index
	})
	return keys
}

func (l *Ledger) Size() int {
	return len(l.utxos)
}

// TotalValue sums every unspent output.
func (l *Ledger) TotalValue() float64 {
	total := 0.0
	for _, o := range l.utxos {
		total += o.Value
	}
	return total
}

// Clone makes a deep copy of the ledger. The copy is never sealed, so it can
// be handed to transaction processing without touching the original.
func (l *Ledger) Clone() *Ledger {
	c := NewLedger()
	// copier rebuilds the map entry by entry rather than sharing it.
	if err := copier.Copy(&c.utxos, l.utxos); err != nil {
		panic("ledger clone: " + err.Error())
	}
	return c
}

// FilterByPublicKey returns a new ledger with only the outputs owned by pk.
func (l *Ledger) FilterByPublicKey(pk []byte) *Ledger {
	res := NewLedger()
	for u, o := range l.utxos {
		if bytes.Equal(o.PublicKey, pk) {
			res.utxos[u] = o
		}
	}
	return res
}

// Seal marks the ledger as published. It can't be modified afterwards.
func (l *Ledger) Seal() {
	l.sealed = true
}

func (l *Ledger) IsSealed() bool {
	return l.sealed
}

func (l *Ledger) mustBeWritable() {
	if l.sealed {
		panic("attempt to modify a sealed ledger")
	}
}
