package utils

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Luismorlan/btc_ledger/model"
)

// ErrUnresolvedTxs means some transactions of a batch could never become valid.
var ErrUnresolvedTxs = errors.New("transactions could not be resolved")

// ResolveTransactions admits as many transactions of txs as possible into l.
//
// Transactions may depend on each other in any order, so the batch is swept
// repeatedly: every transaction valid against the current ledger is applied
// immediately and leaves the unresolved set, making its outputs visible to the
// rest of the sweep. Sweeping stops once a full pass admits nothing, which
// takes at most len(txs) passes.
//
// l is modified in place.
func ResolveTransactions(txs []*model.Transaction, l *model.Ledger, verify SignatureVerifier) (accepted, unresolved []*model.Transaction) {
	unresolved = make([]*model.Transaction, len(txs))
	copy(unresolved, txs)

	for passes := 1; len(unresolved) > 0; passes++ {
		remaining := unresolved[:0]
		for _, tx := range unresolved {
			if err := HandleTransaction(tx, l, verify); err != nil {
				remaining = append(remaining, tx)
				continue
			}
			accepted = append(accepted, tx)
		}

		progressed := len(remaining) < len(unresolved)
		unresolved = remaining
		if !progressed {
			log.WithFields(log.Fields{"module": logModule, "passes": passes, "unresolved": len(unresolved)}).Debug("transaction resolution reached fixed point")
			break
		}
	}
	return accepted, unresolved
}

// Handle a bunch of transactions, all of which must be admitted. The admitted
// transactions are returned in the order they were applied.
// Note that ledger will be changed directly even on failure, when passing
// ledger to this function, be sure to pass a deep copy.
func HandleTransactions(txs []*model.Transaction, l *model.Ledger, verify SignatureVerifier) ([]*model.Transaction, error) {
	accepted, unresolved := ResolveTransactions(txs, l, verify)
	if len(unresolved) > 0 {
		return nil, errors.Wrapf(ErrUnresolvedTxs, "%d of %d transactions, first %s", len(unresolved), len(txs), describeTx(unresolved[0]))
	}
	return accepted, nil
}

// HandleMaximalTransactions admits the largest mutually valid subset of txs
// into l and returns exactly that subset, in admission order.
func HandleMaximalTransactions(txs []*model.Transaction, l *model.Ledger, verify SignatureVerifier) []*model.Transaction {
	accepted, _ := ResolveTransactions(txs, l, verify)
	return accepted
}

// CalcTxFee is how much the inputs of txs exceed their outputs. txs must be
// in an order they can be applied to l, as returned by ResolveTransactions.
// An input is looked up among the outputs of earlier txs first, then in l.
// Nothing is re-verified and l is only read.
func CalcTxFee(txs []*model.Transaction, l *model.Ledger) (float64, error) {
	created := make(map[model.UTXO]float64)
	fee := 0.0
	for _, tx := range txs {
		for _, in := range tx.Inputs {
			u := CreateUtxoFromInput(in)
			if v, ok := created[u]; ok {
				fee += v
				delete(created, u)
				continue
			}
			out, ok := l.Get(u)
			if !ok {
				return 0, errors.Wrapf(ErrMissingUtxo, "tx %s", tx.Hash)
			}
			fee += out.Value
		}
		for i, out := range tx.Outputs {
			fee -= out.Value
			created[model.UTXO{PrevTxHash: tx.Hash, Index: int64(i)}] = out.Value
		}
	}
	return fee, nil
}

func describeTx(tx *model.Transaction) string {
	if tx == nil {
		return "<nil>"
	}
	return tx.Hash
}
