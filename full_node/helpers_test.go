package full_node

import (
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Luismorlan/btc_ledger/config"
	"github.com/Luismorlan/btc_ledger/model"
	"github.com/Luismorlan/btc_ledger/utils"
)

var (
	keysOnce sync.Once
	testKeys []*rsa.PrivateKey
)

// keys returns three RSA keys shared by every test of the package.
func keys() (k1, k2, k3 *rsa.PrivateKey) {
	keysOnce.Do(func() {
		for i := 0; i < 3; i++ {
			sk, _ := utils.GenerateKeyPair(utils.KeyBits)
			testKeys = append(testKeys, sk)
		}
	})
	return testKeys[0], testKeys[1], testKeys[2]
}

func pk(sk *rsa.PrivateKey) []byte {
	return utils.PublicKeyToBytes(&sk.PublicKey)
}

// newTestNode returns a node whose genesis pays 100 to k1.
func newTestNode(t *testing.T, opts ...Option) (*FullNode, *model.Block) {
	k1, _, _ := keys()
	genesis := utils.CreateGenesisBlock(100, pk(k1))
	return NewFullNode(genesis, config.DefaultAppConfig(), opts...), genesis
}

// spendTx claims output index of prev, signed by owner, paying outs.
func spendTx(t *testing.T, owner *rsa.PrivateKey, prev string, index int64, outs ...*model.Output) *model.Transaction {
	tx := &model.Transaction{
		Inputs:  []*model.Input{{PrevTxHash: prev, Index: index}},
		Outputs: outs,
	}
	require.NoError(t, utils.SignTransaction(tx, owner))
	return tx
}

func out(value float64, owner *rsa.PrivateKey) *model.Output {
	return &model.Output{Value: value, PublicKey: pk(owner)}
}

// newBlock builds a block on parent whose coinbase pays 25 to miner. nonce
// keeps sibling blocks apart.
func newBlock(t *testing.T, parent *model.BlockWrapper, miner *rsa.PrivateKey, nonce int64, txs ...*model.Transaction) *model.Block {
	cb := utils.CreateCoinbaseTx(25, pk(miner), parent.Height+1)
	b, err := utils.AssembleBlock(parent.B.Hash, txs, cb, nonce)
	require.NoError(t, err)
	return b
}

func mustGet(t *testing.T, f *FullNode, hash string) *model.BlockWrapper {
	bw, ok := f.GetBlockWrapper(hash)
	require.True(t, ok, "block %s not retained", hash)
	return bw
}
