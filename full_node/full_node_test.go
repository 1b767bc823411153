package full_node

import (
	"math"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luismorlan/btc_ledger/config"
	"github.com/Luismorlan/btc_ledger/model"
	"github.com/Luismorlan/btc_ledger/utils"
)

// extendEmpty appends n blocks without transactions on top of parent and
// returns the last one.
func extendEmpty(t *testing.T, f *FullNode, parent *model.BlockWrapper, nonce int64, n int) *model.BlockWrapper {
	_, _, k3 := keys()
	for i := 0; i < n; i++ {
		b := newBlock(t, parent, k3, nonce)
		res, err := f.HandleNewBlock(b)
		require.NoError(t, err)
		require.Equal(t, Accepted, res)
		parent = mustGet(t, f, b.Hash)
	}
	return parent
}

func TestSpendGenesisOutput(t *testing.T) {
	k1, k2, k3 := keys()
	f, genesis := newTestNode(t)
	genesisBW := mustGet(t, f, genesis.Hash)

	tx := spendTx(t, k1, genesis.Coinbase.Hash, 0, out(40, k2), out(60, k1))
	block2 := newBlock(t, genesisBW, k3, 0, tx)
	assert.True(t, f.SubmitBlock(block2))

	head := f.CurrentHead()
	assert.Equal(t, block2.Hash, head.B.Hash)
	assert.Equal(t, int64(2), head.Height)
	assert.Equal(t, int64(2), f.GetHeight())

	utxos := f.CurrentUTXOSet()
	assert.Equal(t, 3, utxos.Size())
	assert.False(t, utxos.Contains(model.UTXO{PrevTxHash: genesis.Coinbase.Hash, Index: 0}))

	o, ok := utxos.Get(model.UTXO{PrevTxHash: tx.Hash, Index: 0})
	require.True(t, ok)
	assert.Equal(t, 40.0, o.Value)
	assert.Equal(t, pk(k2), o.PublicKey)

	o, ok = utxos.Get(model.UTXO{PrevTxHash: tx.Hash, Index: 1})
	require.True(t, ok)
	assert.Equal(t, 60.0, o.Value)
	assert.Equal(t, pk(k1), o.PublicKey)

	o, ok = utxos.Get(model.UTXO{PrevTxHash: block2.Coinbase.Hash, Index: 0})
	require.True(t, ok)
	assert.Equal(t, 25.0, o.Value)
	assert.Equal(t, pk(k3), o.PublicKey)

	// The genesis ledger is untouched.
	assert.Equal(t, 1, genesisBW.L.Size())
}

func TestDuplicateBlockIsNoop(t *testing.T) {
	k1, k2, k3 := keys()
	f, genesis := newTestNode(t)

	tx := spendTx(t, k1, genesis.Coinbase.Hash, 0, out(40, k2), out(60, k1))
	block2 := newBlock(t, mustGet(t, f, genesis.Hash), k3, 0, tx)
	require.True(t, f.SubmitBlock(block2))
	first := f.CurrentHead()

	res, err := f.HandleNewBlock(block2)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, res)
	assert.True(t, res.Ok())
	assert.True(t, f.SubmitBlock(block2))

	head := f.CurrentHead()
	assert.Same(t, first, head)
	assert.Equal(t, first.Sequence, head.Sequence)
	assert.Len(t, f.GetBlocksInWindow(), 2)

	// Genesis has no parent to attach to.
	res, err = f.HandleNewBlock(genesis)
	assert.Equal(t, RejectedNoParent, res)
	assert.Equal(t, ErrNoParent, errors.Cause(err))
}

func TestBadSignatureRejectsWholeBlock(t *testing.T) {
	k1, k2, k3 := keys()
	f, genesis := newTestNode(t)
	genesisBW := mustGet(t, f, genesis.Hash)

	good := spendTx(t, k1, genesis.Coinbase.Hash, 0, out(100, k2))
	// k3 signs for an output owned by k2.
	forged := spendTx(t, k3, good.Hash, 0, out(100, k3))
	b := newBlock(t, genesisBW, k3, 0, good, forged)

	res, err := f.HandleNewBlock(b)
	assert.Equal(t, RejectedInvalidTxs, res)
	assert.False(t, res.Ok())
	assert.Equal(t, ErrInvalidTxs, errors.Cause(err))

	assert.Equal(t, genesis.Hash, f.CurrentHead().B.Hash)
	_, ok := f.GetBlockWrapper(b.Hash)
	assert.False(t, ok)
	assert.Equal(t, 1, f.CurrentUTXOSet().Size())

	// The good transaction alone is still admissible.
	assert.True(t, f.SubmitBlock(newBlock(t, genesisBW, k3, 1, good)))
}

func TestNonFiniteOutputRejectsWholeBlock(t *testing.T) {
	k1, k2, k3 := keys()
	f, genesis := newTestNode(t)
	genesisBW := mustGet(t, f, genesis.Hash)

	good := spendTx(t, k1, genesis.Coinbase.Hash, 0, out(100, k2))
	minted := spendTx(t, k2, good.Hash, 0,
		&model.Output{Value: math.NaN(), PublicKey: pk(k3)},
		out(1000, k3))
	b := newBlock(t, genesisBW, k3, 0, good, minted)

	res, err := f.HandleNewBlock(b)
	assert.Equal(t, RejectedInvalidTxs, res)
	assert.Equal(t, ErrInvalidTxs, errors.Cause(err))
	assert.Equal(t, genesis.Hash, f.CurrentHead().B.Hash)
	assert.Equal(t, 100.0, f.CurrentUTXOSet().TotalValue())

	inf := spendTx(t, k1, genesis.Coinbase.Hash, 0, &model.Output{Value: math.Inf(1), PublicKey: pk(k3)})
	assert.False(t, f.SubmitBlock(newBlock(t, genesisBW, k3, 1, inf)))
	assert.Len(t, f.GetBlocksInWindow(), 1)
}

func TestRejectedParents(t *testing.T) {
	k1, _, k3 := keys()
	f, genesis := newTestNode(t)

	res, err := f.HandleNewBlock(nil)
	assert.Equal(t, RejectedNoParent, res)
	assert.Equal(t, ErrNoParent, errors.Cause(err))

	orphan, err := utils.AssembleBlock("", nil, utils.CreateCoinbaseTx(25, pk(k3), 2), 7)
	require.NoError(t, err)
	res, err = f.HandleNewBlock(orphan)
	assert.Equal(t, RejectedNoParent, res)
	assert.Equal(t, ErrNoParent, errors.Cause(err))

	unknownParent := utils.BytesToHex(utils.SHA256([]byte("nowhere")))
	stray, err := utils.AssembleBlock(unknownParent, nil, utils.CreateCoinbaseTx(25, pk(k1), 2), 0)
	require.NoError(t, err)
	res, err = f.HandleNewBlock(stray)
	assert.Equal(t, RejectedUnknownParent, res)
	assert.Equal(t, ErrUnknownParent, errors.Cause(err))

	assert.Equal(t, genesis.Hash, f.CurrentHead().B.Hash)
	assert.Len(t, f.GetBlocksInWindow(), 1)
}

func TestSameBlockDependencies(t *testing.T) {
	k1, k2, k3 := keys()
	f, genesis := newTestNode(t)
	genesisBW := mustGet(t, f, genesis.Hash)

	parent := spendTx(t, k1, genesis.Coinbase.Hash, 0, out(100, k2))
	child := spendTx(t, k2, parent.Hash, 0, out(70, k3), out(30, k2))

	// The child comes first in the block.
	b := newBlock(t, genesisBW, k3, 0, child, parent)
	require.True(t, f.SubmitBlock(b))

	utxos := f.CurrentUTXOSet()
	assert.False(t, utxos.Contains(model.UTXO{PrevTxHash: parent.Hash, Index: 0}))
	assert.True(t, utxos.Contains(model.UTXO{PrevTxHash: child.Hash, Index: 0}))
	assert.True(t, utxos.Contains(model.UTXO{PrevTxHash: child.Hash, Index: 1}))
	assert.Equal(t, 3, utxos.Size())
}

func TestDoubleSpend(t *testing.T) {
	k1, k2, k3 := keys()
	f, genesis := newTestNode(t)
	genesisBW := mustGet(t, f, genesis.Hash)

	toK2 := spendTx(t, k1, genesis.Coinbase.Hash, 0, out(100, k2))
	toK3 := spendTx(t, k1, genesis.Coinbase.Hash, 0, out(100, k3))

	// Within one block.
	res, err := f.HandleNewBlock(newBlock(t, genesisBW, k3, 0, toK2, toK3))
	assert.Equal(t, RejectedInvalidTxs, res)
	assert.Error(t, err)

	// Against an ancestor.
	b2 := newBlock(t, genesisBW, k3, 1, toK2)
	require.True(t, f.SubmitBlock(b2))
	res, _ = f.HandleNewBlock(newBlock(t, mustGet(t, f, b2.Hash), k3, 0, toK3))
	assert.Equal(t, RejectedInvalidTxs, res)

	// A transaction cannot be included twice along a branch.
	res, _ = f.HandleNewBlock(newBlock(t, mustGet(t, f, b2.Hash), k3, 1, toK2))
	assert.Equal(t, RejectedInvalidTxs, res)
}

func TestForksAreIndependent(t *testing.T) {
	k1, k2, k3 := keys()
	f, genesis := newTestNode(t)
	genesisBW := mustGet(t, f, genesis.Hash)

	toK2 := spendTx(t, k1, genesis.Coinbase.Hash, 0, out(100, k2))
	toK3 := spendTx(t, k1, genesis.Coinbase.Hash, 0, out(100, k3))

	a := newBlock(t, genesisBW, k1, 0, toK2)
	b := newBlock(t, genesisBW, k1, 1, toK3)
	require.True(t, f.SubmitBlock(a))
	require.True(t, f.SubmitBlock(b))

	// Same height, a arrived first.
	assert.Equal(t, a.Hash, f.CurrentHead().B.Hash)

	bwA := mustGet(t, f, a.Hash)
	bwB := mustGet(t, f, b.Hash)
	assert.True(t, bwA.L.Contains(model.UTXO{PrevTxHash: toK2.Hash, Index: 0}))
	assert.False(t, bwA.L.Contains(model.UTXO{PrevTxHash: toK3.Hash, Index: 0}))
	assert.True(t, bwB.L.Contains(model.UTXO{PrevTxHash: toK3.Hash, Index: 0}))
	assert.False(t, bwB.L.Contains(model.UTXO{PrevTxHash: toK2.Hash, Index: 0}))
	assert.True(t, bwA.L.IsSealed())
	assert.True(t, bwB.L.IsSealed())

	// Growing b makes its branch the head; a's ledger stays as it was.
	spendOnB := spendTx(t, k3, toK3.Hash, 0, out(50, k1), out(50, k2))
	c := newBlock(t, bwB, k1, 0, spendOnB)
	require.True(t, f.SubmitBlock(c))
	assert.Equal(t, c.Hash, f.CurrentHead().B.Hash)
	assert.Equal(t, int64(3), f.CurrentHead().Height)
	assert.Equal(t, 2, bwA.L.Size())
	assert.Equal(t, 2, bwB.L.Size())

	// The spend from b's branch is not valid on a's.
	res, _ := f.HandleNewBlock(newBlock(t, bwA, k1, 0, spendOnB))
	assert.Equal(t, RejectedInvalidTxs, res)
}

func TestBoundedRetention(t *testing.T) {
	_, _, k3 := keys()
	f, genesis := newTestNode(t)
	genesisBW := mustGet(t, f, genesis.Hash)

	// Up to height 11 genesis is still a valid parent.
	h11 := extendEmpty(t, f, genesisBW, 0, 10)
	require.Equal(t, int64(11), h11.Height)
	side := newBlock(t, genesisBW, k3, 99)
	res, err := f.HandleNewBlock(side)
	require.NoError(t, err)
	assert.Equal(t, Accepted, res)

	// Height 12 prunes height 1.
	h12 := extendEmpty(t, f, h11, 0, 1)
	require.Equal(t, int64(12), h12.Height)
	_, ok := f.GetBlockWrapper(genesis.Hash)
	assert.False(t, ok)

	res, err = f.HandleNewBlock(newBlock(t, genesisBW, k3, 100))
	assert.Equal(t, RejectedUnknownParent, res)
	assert.Equal(t, ErrUnknownParent, errors.Cause(err))

	// The side block at height 2 still takes children.
	sideBW := mustGet(t, f, side.Hash)
	assert.True(t, f.SubmitBlock(newBlock(t, sideBW, k3, 0)))
	assert.Equal(t, h12.B.Hash, f.CurrentHead().B.Hash)

	for _, bw := range f.GetBlocksInWindow() {
		assert.True(t, bw.Height > f.GetHeight()-model.CUT_OFF_AGE-1)
	}

	// Keep growing: retention never exceeds CUT_OFF_AGE+1 heights.
	h20 := extendEmpty(t, f, h12, 0, 8)
	assert.Equal(t, int64(20), h20.Height)
	blocks := f.GetBlocksInWindow()
	assert.Len(t, blocks, model.CUT_OFF_AGE+1)
	assert.Equal(t, int64(10), blocks[0].Height)
	assert.Equal(t, int64(20), blocks[len(blocks)-1].Height)
}

func TestCoinbaseValueAccumulates(t *testing.T) {
	f, genesis := newTestNode(t)
	extendEmpty(t, f, mustGet(t, f, genesis.Hash), 0, 5)
	assert.Equal(t, 100.0+5*25.0, f.CurrentUTXOSet().TotalValue())
}

func TestRejectCache(t *testing.T) {
	k1, k2, k3 := keys()
	calls := 0
	counting := func(pk, msg, sig []byte) bool {
		calls++
		return utils.VerifySignature(pk, msg, sig)
	}
	f, genesis := newTestNode(t, WithVerifier(counting))

	forged := spendTx(t, k2, genesis.Coinbase.Hash, 0, out(100, k2))
	b := newBlock(t, mustGet(t, f, genesis.Hash), k3, 0, forged)

	res, _ := f.HandleNewBlock(b)
	require.Equal(t, RejectedInvalidTxs, res)
	verified := calls
	assert.True(t, verified > 0)

	res, err := f.HandleNewBlock(b)
	assert.Equal(t, RejectedInvalidTxs, res)
	assert.Equal(t, ErrInvalidTxs, errors.Cause(err))
	assert.Equal(t, verified, calls)

	valid := spendTx(t, k1, genesis.Coinbase.Hash, 0, out(100, k2))
	assert.True(t, f.SubmitBlock(newBlock(t, mustGet(t, f, genesis.Hash), k3, 0, valid)))
}

func TestRejectCacheDisabled(t *testing.T) {
	_, k2, k3 := keys()
	genesis := utils.CreateGenesisBlock(100, pk(k2))
	cfg := config.DefaultAppConfig()
	cfg.RejectCacheSize = 0
	calls := 0
	f := NewFullNode(genesis, cfg, WithVerifier(func(pk, msg, sig []byte) bool {
		calls++
		return false
	}))

	tx := spendTx(t, k2, genesis.Coinbase.Hash, 0, out(100, k3))
	b := newBlock(t, mustGet(t, f, genesis.Hash), k3, 0, tx)
	assert.False(t, f.SubmitBlock(b))
	assert.False(t, f.SubmitBlock(b))
	// Both submissions ran validation.
	assert.Equal(t, 2, calls)
}

func TestVerifierIsInjected(t *testing.T) {
	k1, k2, k3 := keys()
	f, genesis := newTestNode(t, WithVerifier(func(pk, msg, sig []byte) bool { return true }))

	// Signed by the wrong key, but the verifier accepts everything.
	tx := spendTx(t, k2, genesis.Coinbase.Hash, 0, out(100, k3))
	assert.True(t, f.SubmitBlock(newBlock(t, mustGet(t, f, genesis.Hash), k1, 0, tx)))
}

func TestPendingPool(t *testing.T) {
	k1, k2, k3 := keys()
	f, genesis := newTestNode(t)

	first := spendTx(t, k1, genesis.Coinbase.Hash, 0, out(100, k2))
	second := spendTx(t, k2, first.Hash, 0, out(100, k3))
	f.SubmitTransaction(second)
	f.SubmitTransaction(first)
	// Resubmitting keeps the original position.
	f.SubmitTransaction(second)

	pending := f.PendingTransactions()
	require.Len(t, pending, 2)
	assert.Equal(t, second.Hash, pending[0].Hash)
	assert.Equal(t, first.Hash, pending[1].Hash)

	err := f.AddTransactionToPool(first)
	assert.Equal(t, ErrExistingTx, errors.Cause(err))
	assert.Error(t, f.AddTransactionToPool(nil))
	assert.NotPanics(t, func() { f.SubmitTransaction(nil) })
	assert.Len(t, f.PendingTransactions(), 2)

	// A rejected block leaves the pool alone.
	forged := spendTx(t, k3, genesis.Coinbase.Hash, 0, out(100, k3))
	assert.False(t, f.SubmitBlock(newBlock(t, mustGet(t, f, genesis.Hash), k3, 0, first, forged)))
	assert.Len(t, f.PendingTransactions(), 2)

	// Accepted transactions leave the pool.
	b := newBlock(t, mustGet(t, f, genesis.Hash), k3, 1, first)
	require.True(t, f.SubmitBlock(b))
	pending = f.PendingTransactions()
	require.Len(t, pending, 1)
	assert.Equal(t, second.Hash, pending[0].Hash)
}

func TestSelectTransactions(t *testing.T) {
	k1, k2, k3 := keys()
	f, genesis := newTestNode(t)

	first := spendTx(t, k1, genesis.Coinbase.Hash, 0, out(100, k2))
	second := spendTx(t, k2, first.Hash, 0, out(90, k3))
	conflicting := spendTx(t, k1, genesis.Coinbase.Hash, 0, out(100, k3))
	overspend := spendTx(t, k3, second.Hash, 0, out(1000, k3))

	for _, tx := range []*model.Transaction{second, first, conflicting, overspend} {
		require.NoError(t, f.AddTransactionToPool(tx))
	}

	selected := f.SelectTransactions()
	require.Len(t, selected, 2)
	assert.Equal(t, first.Hash, selected[0].Hash)
	assert.Equal(t, second.Hash, selected[1].Hash)

	// Selection does not touch the pool or the head.
	assert.Len(t, f.PendingTransactions(), 4)
	assert.Equal(t, 1, f.CurrentUTXOSet().Size())

	// The selection forms a valid block.
	b := newBlock(t, f.CurrentHead(), k1, 0, selected...)
	assert.True(t, f.SubmitBlock(b))
	assert.Len(t, f.PendingTransactions(), 2)
	assert.Empty(t, f.SelectTransactions())
}

func TestGetUtxoForPublicKey(t *testing.T) {
	k1, k2, k3 := keys()
	f, genesis := newTestNode(t)

	tx := spendTx(t, k1, genesis.Coinbase.Hash, 0, out(40, k2), out(60, k1))
	require.True(t, f.SubmitBlock(newBlock(t, mustGet(t, f, genesis.Hash), k3, 0, tx)))

	mine := f.GetUtxoForPublicKey(pk(k1))
	assert.Equal(t, 1, mine.Size())
	assert.Equal(t, 60.0, mine.TotalValue())
	assert.Equal(t, 40.0, f.GetUtxoForPublicKey(pk(k2)).TotalValue())
	assert.Equal(t, 25.0, f.GetUtxoForPublicKey(pk(k3)).TotalValue())
}

func TestMetrics(t *testing.T) {
	_, _, k3 := keys()
	reg := prometheus.NewRegistry()
	f, genesis := newTestNode(t, WithRegisterer(reg))

	b := newBlock(t, mustGet(t, f, genesis.Hash), k3, 0)
	require.True(t, f.SubmitBlock(b))
	require.True(t, f.SubmitBlock(b))
	require.False(t, f.SubmitBlock(nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.blocksAdmitted.WithLabelValues(Accepted.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.blocksAdmitted.WithLabelValues(Duplicate.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.blocksAdmitted.WithLabelValues(RejectedNoParent.String())))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.maxHeight))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.retainedBlocks))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["btc_ledger_blocks_admitted_total"])
	assert.True(t, names["btc_ledger_max_height"])

	// A second node gets its own collectors.
	other, _ := newTestNode(t, WithRegisterer(prometheus.NewRegistry()))
	assert.Equal(t, 0.0, testutil.ToFloat64(other.metrics.blocksAdmitted.WithLabelValues(Accepted.String())))
}

func TestConcurrentReaders(t *testing.T) {
	_, _, k3 := keys()
	f, genesis := newTestNode(t)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				l := f.CurrentUTXOSet()
				assert.True(t, l.TotalValue() >= 100)
				f.PendingTransactions()
				f.GetBlocksInWindow()
			}
		}()
	}

	parent := mustGet(t, f, genesis.Hash)
	for i := 0; i < 15; i++ {
		b := newBlock(t, parent, k3, 0)
		require.True(t, f.SubmitBlock(b))
		parent = mustGet(t, f, b.Hash)
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, int64(16), f.GetHeight())
}

func TestAdmissionString(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "duplicate-noop", Duplicate.String())
	assert.Equal(t, "rejected-no-parent", RejectedNoParent.String())
	assert.Equal(t, "rejected-unknown-or-pruned-parent", RejectedUnknownParent.String())
	assert.Equal(t, "rejected-invalid-transactions", RejectedInvalidTxs.String())
	assert.False(t, RejectedInvalidTxs.Ok())
}
