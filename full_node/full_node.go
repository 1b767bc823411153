package full_node

import (
	"sort"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Luismorlan/btc_ledger/config"
	"github.com/Luismorlan/btc_ledger/model"
	"github.com/Luismorlan/btc_ledger/utils"
)

const logModule = "full_node"

// Admission is the outcome of submitting a block.
type Admission int

const (
	Accepted Admission = iota
	// Duplicate means the block is already on the blockchain. Nothing changed.
	Duplicate
	RejectedNoParent
	// RejectedUnknownParent covers both never-seen parents and parents pruned
	// for being too deep.
	RejectedUnknownParent
	RejectedInvalidTxs
)

// Ok reports whether the block is on the blockchain after submission.
func (a Admission) Ok() bool {
	return a == Accepted || a == Duplicate
}

func (a Admission) String() string {
	switch a {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate-noop"
	case RejectedNoParent:
		return "rejected-no-parent"
	case RejectedUnknownParent:
		return "rejected-unknown-or-pruned-parent"
	case RejectedInvalidTxs:
		return "rejected-invalid-transactions"
	default:
		return "unknown"
	}
}

var (
	ErrNoParent      = errors.New("block has no parent")
	ErrUnknownParent = errors.New("parent block not found in blockchain")
	ErrInvalidTxs    = errors.New("block contains invalid transactions")
	ErrExistingTx    = errors.New("existing transaction, will not process")
)

// Option customizes a FullNode at construction.
type Option func(*FullNode)

// WithVerifier replaces the signature check used on transaction inputs.
func WithVerifier(v utils.SignatureVerifier) Option {
	return func(f *FullNode) {
		f.verify = v
	}
}

// WithRegisterer registers the node's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(f *FullNode) {
		f.registerer = reg
	}
}

// A full node maintains the most recent part of the blockchain and the pool
// of transactions waiting to get into it.
//
// Admission holds the write lock for its whole duration. Every ledger handed
// out is sealed, so callers may keep reading it after the lock is released.
type FullNode struct {
	// The blockchain it needs to maintain.
	blockchain *model.Blockchain
	// Transaction pool it need to maintain. Incoming transaction are added to this pool.
	txPool *model.TransactionPool
	// Blockchain config.
	config config.AppConfig
	// Checks input signatures.
	verify utils.SignatureVerifier
	// Hashes of blocks rejected for invalid transactions. Such a block can never
	// become valid because its parent's ledger is never modified.
	rejected *lru.Cache

	registerer prometheus.Registerer
	metrics    *metrics

	// A single mutex for changing internal state.
	m sync.RWMutex
	// A unique indentifier of this Fullnode, this doesn't impact consensus, only
	// used for easier debugging.
	uuid string
}

// Create a brand new full node, which contains only the genesis block in the
// chain. genesis is trusted and not validated.
func NewFullNode(genesis *model.Block, c config.AppConfig, opts ...Option) *FullNode {
	f := &FullNode{
		blockchain: model.NewBlockChain(genesis),
		txPool:     model.NewTransactionPool(),
		config:     c,
		verify:     utils.VerifySignature,
		uuid:       uuid.NewV4().String(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if c.RejectCacheSize > 0 {
		f.rejected = lru.New(c.RejectCacheSize)
	}
	f.metrics = newMetrics(f.registerer)
	f.metrics.maxHeight.Set(float64(f.blockchain.MaxHeight))
	f.metrics.retainedBlocks.Set(float64(f.blockchain.Size()))

	log.WithFields(log.Fields{"module": logModule, "node": f.uuid, "genesis": genesis.Hash}).Info("full node initialized")
	return f
}

// ID is the unique identifier of this node.
func (f *FullNode) ID() string {
	return f.uuid
}

// SubmitBlock tries to add block to the blockchain and reports whether it is
// on the blockchain afterwards.
func (f *FullNode) SubmitBlock(block *model.Block) bool {
	res, _ := f.HandleNewBlock(block)
	return res.Ok()
}

// Handle the new block received:
// 1. The block must name a parent, and the parent must be retained.
// 2. A block already on the blockchain is accepted again without any change.
// 3. All transactions must be valid together on top of the parent's ledger.
// 4. The coinbase is credited and the block is recorded one above its parent.
// 5. Its transactions leave the pool, and the window is pruned if it grew.
// The error explains every rejection.
func (f *FullNode) HandleNewBlock(block *model.Block) (Admission, error) {
	// Lock mutex because we are changing the state of blockchain.
	f.m.Lock()
	defer f.m.Unlock()

	res, err := f.handleNewBlock(block)
	f.metrics.blocksAdmitted.WithLabelValues(res.String()).Inc()
	if err != nil {
		fields := log.Fields{"module": logModule, "node": f.uuid, "reason": res.String(), "err": err}
		if block != nil {
			fields["hash"] = block.Hash
		}
		log.WithFields(fields).Warn("block rejected")
	}
	return res, err
}

func (f *FullNode) handleNewBlock(block *model.Block) (Admission, error) {
	if block == nil {
		return RejectedNoParent, errors.Wrap(ErrNoParent, "nil block")
	}
	if block.PrevHash == "" {
		return RejectedNoParent, errors.Wrapf(ErrNoParent, "block %s", block.Hash)
	}

	// Parents buried deeper than CUT_OFF_AGE have been pruned and are not found either.
	prevBlockWrapper, ok := f.blockchain.GetBlockWrapper(block.PrevHash)
	if !ok {
		return RejectedUnknownParent, errors.Wrapf(ErrUnknownParent, "block %s, parent %s", block.Hash, block.PrevHash)
	}

	// Processing it again would hand out a new sequence and break head selection.
	if f.blockchain.HasBlock(block.Hash) {
		log.WithFields(log.Fields{"module": logModule, "node": f.uuid, "hash": block.Hash}).Debug("block already known")
		return Duplicate, nil
	}

	if f.rejected != nil {
		if _, seen := f.rejected.Get(block.Hash); seen {
			return RejectedInvalidTxs, errors.Wrapf(ErrInvalidTxs, "block %s previously rejected", block.Hash)
		}
	}

	// Work on a deep copy; the parent's ledger is shared with every other child.
	l := prevBlockWrapper.L.Clone()
	accepted, err := utils.HandleTransactions(block.Txs, l, f.verify)
	if err != nil {
		if f.rejected != nil {
			f.rejected.Add(block.Hash, struct{}{})
		}
		return RejectedInvalidTxs, errors.Wrapf(ErrInvalidTxs, "block %s: %v", block.Hash, err)
	}
	fee, err := utils.CalcTxFee(accepted, prevBlockWrapper.L)
	if err != nil {
		log.WithFields(log.Fields{"module": logModule, "node": f.uuid, "hash": block.Hash, "err": err}).Warn("failed to compute block fee")
	}

	utils.ApplyCoinbase(block.Coinbase, l)

	blockWrapper := f.blockchain.AddBlockWrapper(block, prevBlockWrapper, l)

	for _, tx := range block.Txs {
		f.txPool.Remove(tx.Hash)
	}

	pruned := f.blockchain.UpdateMaxHeight(blockWrapper.Height)
	if len(pruned) > 0 {
		log.WithFields(log.Fields{"module": logModule, "node": f.uuid, "count": len(pruned), "min_height": f.blockchain.MinHeight()}).Debug("pruned outdated blocks")
	}

	f.metrics.blocksPruned.Add(float64(len(pruned)))
	f.metrics.maxHeight.Set(float64(f.blockchain.MaxHeight))
	f.metrics.retainedBlocks.Set(float64(f.blockchain.Size()))
	f.metrics.pendingTxs.Set(float64(f.txPool.Size()))

	log.WithFields(log.Fields{
		"module":   logModule,
		"node":     f.uuid,
		"hash":     block.Hash,
		"height":   blockWrapper.Height,
		"sequence": blockWrapper.Sequence,
		"txs":      len(block.Txs),
		"fee":      fee,
	}).Info("block accepted")
	return Accepted, nil
}

// CurrentHead returns the tallest block, the earliest arrival among equals.
func (f *FullNode) CurrentHead() *model.BlockWrapper {
	f.m.RLock()
	defer f.m.RUnlock()
	return f.blockchain.GetMaxHeightBlockWrapper()
}

// CurrentUTXOSet returns the sealed ledger of the head. Clone it before making changes.
func (f *FullNode) CurrentUTXOSet() *model.Ledger {
	return f.CurrentHead().L
}

// GetHeight returns the height of the head.
func (f *FullNode) GetHeight() int64 {
	f.m.RLock()
	defer f.m.RUnlock()
	return f.blockchain.MaxHeight
}

// GetBlockWrapper looks up a retained block.
func (f *FullNode) GetBlockWrapper(hash string) (*model.BlockWrapper, bool) {
	f.m.RLock()
	defer f.m.RUnlock()
	return f.blockchain.GetBlockWrapper(hash)
}

// GetBlocksInWindow returns every retained block, by height then arrival.
func (f *FullNode) GetBlocksInWindow() []*model.BlockWrapper {
	f.m.RLock()
	defer f.m.RUnlock()

	var res []*model.BlockWrapper
	for _, bw := range f.blockchain.Chain {
		res = append(res, bw)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Height != res[j].Height {
			return res[i].Height < res[j].Height
		}
		return res[i].Sequence < res[j].Sequence
	})
	return res
}

// Return all utxo the public key owned at the head.
func (f *FullNode) GetUtxoForPublicKey(pk []byte) *model.Ledger {
	return f.CurrentUTXOSet().FilterByPublicKey(pk)
}

// SubmitTransaction puts tx into the pool without validating it. A
// transaction with the same hash is replaced, a nil one is ignored.
func (f *FullNode) SubmitTransaction(tx *model.Transaction) {
	if tx == nil {
		return
	}
	f.m.Lock()
	defer f.m.Unlock()
	f.txPool.Add(tx)
	f.metrics.pendingTxs.Set(float64(f.txPool.Size()))
}

// AddTransactionToPool is SubmitTransaction that refuses a hash already pending.
func (f *FullNode) AddTransactionToPool(tx *model.Transaction) error {
	if tx == nil {
		return errors.New("input transaction is nil")
	}
	f.m.Lock()
	defer f.m.Unlock()

	if f.txPool.Contains(tx.Hash) {
		return errors.Wrapf(ErrExistingTx, "tx %s", tx.Hash)
	}
	f.txPool.Add(tx)
	f.metrics.pendingTxs.Set(float64(f.txPool.Size()))
	log.WithFields(log.Fields{"module": logModule, "node": f.uuid, "tx_id": tx.Hash}).Debug("add tx to pool")
	return nil
}

// PendingTransactions returns the pool content in arrival order.
func (f *FullNode) PendingTransactions() []*model.Transaction {
	f.m.RLock()
	defer f.m.RUnlock()
	return f.txPool.All()
}

// SelectTransactions returns the largest set of pending transactions that are
// valid together on top of the head. The pool is left as is; the chosen
// transactions leave it once a block containing them is accepted.
func (f *FullNode) SelectTransactions() []*model.Transaction {
	f.m.RLock()
	l := f.blockchain.GetMaxHeightBlockWrapper().L.Clone()
	txs := f.txPool.All()
	f.m.RUnlock()

	return utils.HandleMaximalTransactions(txs, l, f.verify)
}
