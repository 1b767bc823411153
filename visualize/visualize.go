package visualize

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os/exec"
	"path/filepath"

	"github.com/bradleyjkemp/memviz"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Luismorlan/btc_ledger/model"
)

const logModule = "visualize"

// We need to re-define the visualize model here because the ledger model
// contains lots of extra information that we don't really care.
type input struct {
	prevTxHash string
	index      int64
}

type output struct {
	value     float64
	publicKey string
}

type coinbaseTransaction struct {
	hash    string
	outputs []output
	height  int64
}

type transaction struct {
	hash    string
	inputs  []input
	outputs []output
}

type block struct {
	hash     string
	prevHash string
	height   int64
	sequence int64
	utxos    int
	coinbase coinbaseTransaction
	txs      []transaction
	children []*block
}

// The string of public key and hash is just too long to render, instead we take only first 3 and last 3
// characters and replace the middle part with '...'. E.g. "abcdefghi" will be rendered as "abc...ghi"
func shortenString(s string) string {
	if len(s) < 9 {
		return s
	}
	return fmt.Sprintf("%s...%s", s[0:3], s[len(s)-3:])
}

func shortenPK(pk []byte) string {
	s := fmt.Sprintf("%x", pk)
	if len(s) < 9 {
		return s
	}
	// DER encoded keys share their prefix, the tail is what tells them apart.
	return fmt.Sprintf("...%s", s[len(s)-6:])
}

func outputsOf(outs []*model.Output) []output {
	var res []output
	for _, out := range outs {
		if out == nil {
			continue
		}
		res = append(res, output{publicKey: shortenPK(out.PublicKey), value: out.Value})
	}
	return res
}

func txToTx(tx *model.Transaction) transaction {
	t := transaction{
		hash:    shortenString(tx.Hash),
		outputs: outputsOf(tx.Outputs),
	}
	for _, in := range tx.Inputs {
		t.inputs = append(t.inputs, input{prevTxHash: shortenString(in.PrevTxHash), index: in.Index})
	}
	return t
}

func wrapperToBlock(bw *model.BlockWrapper) *block {
	n := &block{
		hash:     shortenString(bw.B.Hash),
		prevHash: shortenString(bw.B.PrevHash),
		height:   bw.Height,
		sequence: bw.Sequence,
		utxos:    bw.L.Size(),
	}
	if cb := bw.B.Coinbase; cb != nil {
		n.coinbase = coinbaseTransaction{
			hash:    shortenString(cb.Hash),
			outputs: outputsOf(cb.Outputs),
			height:  cb.Height,
		}
	}
	for _, tx := range bw.B.Txs {
		n.txs = append(n.txs, txToTx(tx))
	}
	return n
}

// buildForest links the blocks of the last d heights into trees. Roots are
// blocks whose parent is not part of the selection.
func buildForest(blocks []*model.BlockWrapper, d int) []*block {
	var maxHeight int64
	for _, bw := range blocks {
		if bw.Height > maxHeight {
			maxHeight = bw.Height
		}
	}

	nodes := make(map[string]*block)
	var selected []*model.BlockWrapper
	for _, bw := range blocks {
		if bw.Height < maxHeight-int64(d) {
			continue
		}
		selected = append(selected, bw)
		nodes[bw.B.Hash] = wrapperToBlock(bw)
	}

	var roots []*block
	for _, bw := range selected {
		node := nodes[bw.B.Hash]
		if parent, ok := nodes[bw.B.PrevHash]; ok {
			parent.children = append(parent.children, node)
			continue
		}
		roots = append(roots, node)
	}
	return roots
}

// Render writes the blocks of the last d heights as a dot graph into dir
// and returns its path. When graphviz is installed a png is rendered next
// to it.
// blocks: retained blocks ordered by height then arrival.
// id: unique id of the full node.
func Render(blocks []*model.BlockWrapper, d int, dir string, id string) (string, error) {
	buf := &bytes.Buffer{}

	forest := buildForest(blocks, d)
	memviz.Map(buf, &forest)

	// Write the parsed data to disk
	fileName := filepath.Join(dir, "chaindata-"+id+".dot")
	if err := ioutil.WriteFile(fileName, buf.Bytes(), 0644); err != nil {
		return "", errors.Wrapf(err, "write %s", fileName)
	}

	if _, err := exec.LookPath("dot"); err == nil {
		outputName := filepath.Join(dir, "rendered-chain-"+id+".png")
		if err := exec.Command("dot", "-Tpng", fileName, "-o", outputName).Run(); err != nil {
			log.WithFields(log.Fields{"module": logModule, "err": err}).Warn("failed to render png")
		}
	}
	return fileName, nil
}
