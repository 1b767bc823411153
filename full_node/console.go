package full_node

import (
	"fmt"
	"io"
	"strconv"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"

	"github.com/Luismorlan/btc_ledger/commands"
	"github.com/Luismorlan/btc_ledger/model"
	"github.com/Luismorlan/btc_ledger/utils"
)

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	MaxDepth:                5,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Execute runs a console command against the node and writes the result to w.
// showDir is where "show" renders to.
func (sev *FullNodeServer) Execute(c commands.Command, w io.Writer, showDir string) error {
	f := sev.fullNode
	switch c.Op {
	case commands.HEAD:
		head := f.CurrentHead()
		fmt.Fprintf(w, "head %s height %d sequence %d utxos %d\n", head.B.Hash, head.Height, head.Sequence, head.L.Size())
	case commands.UTXO:
		writeLedger(w, f.CurrentUTXOSet())
	case commands.PENDING:
		writeTxs(w, f.PendingTransactions())
	case commands.SELECT:
		writeTxs(w, f.SelectTransactions())
	case commands.SHOW:
		d, err := strconv.Atoi(c.Args[0])
		if err != nil {
			return errors.Wrapf(err, "%s is not a valid number for depth", c.Args[0])
		}
		path, err := sev.Show(d, showDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "blockchain written to %s\n", path)
	case commands.DUMP:
		bw := f.CurrentHead()
		if len(c.Args) == 1 {
			var ok bool
			if bw, ok = f.GetBlockWrapper(c.Args[0]); !ok {
				return errors.Wrapf(ErrUnknownParent, "block %s", c.Args[0])
			}
		}
		dumpConfig.Fdump(w, bw.B)
	case commands.HELP:
		fmt.Fprintln(w, commands.NodeUsage)
	default:
		return errors.Wrapf(commands.ErrInvalidCommand, "unsupported operation %d", c.Op)
	}
	return nil
}

func writeLedger(w io.Writer, l *model.Ledger) {
	for _, u := range l.All() {
		o, _ := l.Get(u)
		fmt.Fprintf(w, "%s:%d %v %s\n", u.PrevTxHash, u.Index, o.Value, shortKey(o.PublicKey))
	}
	fmt.Fprintf(w, "%d utxos, total %v\n", l.Size(), l.TotalValue())
}

func writeTxs(w io.Writer, txs []*model.Transaction) {
	for _, tx := range txs {
		fmt.Fprintf(w, "%s inputs %d outputs %d\n", tx.Hash, len(tx.Inputs), len(tx.Outputs))
	}
	fmt.Fprintf(w, "%d transactions\n", len(txs))
}

// shortKey keeps the tail of a hex key, DER prefixes are all alike.
func shortKey(pk []byte) string {
	s := utils.BytesToHex(pk)
	if len(s) <= 12 {
		return s
	}
	return "..." + s[len(s)-12:]
}
