package utils

import (
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Luismorlan/btc_ledger/model"
)

var (
	keysOnce sync.Once
	testKeys []*rsa.PrivateKey
)

// getTestKeys returns n RSA keys shared by every test of the package.
func getTestKeys(t *testing.T, n int) []*rsa.PrivateKey {
	keysOnce.Do(func() {
		for i := 0; i < 3; i++ {
			sk, _ := GenerateKeyPair(KeyBits)
			testKeys = append(testKeys, sk)
		}
	})
	require.LessOrEqual(t, n, len(testKeys))
	return testKeys[:n]
}

func pkBytes(sk *rsa.PrivateKey) []byte {
	return PublicKeyToBytes(&sk.PublicKey)
}

// fundedLedger returns a ledger holding one output per value, all owned by sk,
// under a synthetic funding transaction.
func fundedLedger(sk *rsa.PrivateKey, values ...float64) (*model.Ledger, string) {
	l := model.NewLedger()
	funding := BytesToHex(SHA256([]byte("funding")))
	for i, v := range values {
		l.Insert(model.UTXO{PrevTxHash: funding, Index: int64(i)}, model.Output{Value: v, PublicKey: pkBytes(sk)})
	}
	return l, funding
}

// spend builds a transaction signed by sk, claiming the given outputs of
// prevHash and paying outs.
func spend(t *testing.T, sk *rsa.PrivateKey, prevHash string, indexes []int64, outs ...*model.Output) *model.Transaction {
	tx := &model.Transaction{Outputs: outs}
	for _, idx := range indexes {
		tx.Inputs = append(tx.Inputs, &model.Input{PrevTxHash: prevHash, Index: idx})
	}
	require.NoError(t, SignTransaction(tx, sk))
	return tx
}
