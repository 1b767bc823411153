package model

import "sort"

type Input struct {
	// Hash of the transaction that outputs this coin.
	PrevTxHash string `json:"prev_tx_hash"`
	// The index of the output in that transaction. Together with PrevTxHash, it identifies the unique output.
	Index int64 `json:"index"`
	// Signature using the previous owner's PK.
	Signature []byte `json:"signature"`
}

type Output struct {
	// how much value to transfer.
	Value float64 `json:"value"`
	// Public key of the receiver, in the form of bytes.
	PublicKey []byte `json:"public_key"`
}

type Transaction struct {
	// Hash of this transaction. We use this to uniquely identify the transaction.
	Hash string `json:"hash"`
	// All inputs of this transaction. Empty for a coinbase transaction.
	Inputs []*Input `json:"inputs"`
	// All outputs of this transaction.
	Outputs []*Output `json:"outputs"`
	// Height of the block a coinbase transaction rewards. Zero for everything else.
	Height int64 `json:"height,omitempty"`
}

// IsCoinbase reports whether the transaction mints new coins instead of spending old ones.
func (t *Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 0
}

type poolEntry struct {
	tx  *Transaction
	seq int64
}

type TransactionPool struct {
	// All pending transactions that haven't been checked into the blockchain.
	// Key is the hex of transaction's hash.
	txs map[string]poolEntry
	// Arrival counter, keeps All() in submission order.
	next int64
}

// NewTransactionPool creates a new transaction pool with no transaction at all.
func NewTransactionPool() *TransactionPool {
	return &TransactionPool{
		txs: make(map[string]poolEntry),
	}
}

// Add puts tx into the pool, replacing any transaction with the same hash.
// Nothing is validated here; a nil tx is ignored.
func (p *TransactionPool) Add(tx *Transaction) {
	if tx == nil {
		return
	}
	if e, ok := p.txs[tx.Hash]; ok {
		p.txs[tx.Hash] = poolEntry{tx: tx, seq: e.seq}
		return
	}
	p.txs[tx.Hash] = poolEntry{tx: tx, seq: p.next}
	p.next++
}

func (p *TransactionPool) Remove(hash string) {
	delete(p.txs, hash)
}

func (p *TransactionPool) Get(hash string) (*Transaction, bool) {
	e, ok := p.txs[hash]
	return e.tx, ok
}

func (p *TransactionPool) Contains(hash string) bool {
	_, ok := p.txs[hash]
	return ok
}

func (p *TransactionPool) Size() int {
	return len(p.txs)
}

// All returns every pending transaction in the order it first arrived.
func (p *TransactionPool) All() []*Transaction {
	entries := make([]poolEntry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	txs := make([]*Transaction, 0, len(entries))
	for _, e := range entries {
		txs = append(txs, e.tx)
	}
	return txs
}
