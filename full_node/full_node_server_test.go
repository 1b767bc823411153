package full_node

import (
	"context"
	"io/ioutil"
	"net"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Luismorlan/btc_ledger/service"
)

const bufSize = 1024 * 1024

// dialServer serves f over an in-memory listener and returns a connected client.
func dialServer(t *testing.T, f *FullNode) service.FullNodeServiceClient {
	lis := bufconn.Listen(bufSize)
	s := grpc.NewServer()
	service.RegisterFullNodeServiceServer(s, NewFullNodeServer(f))
	go func() {
		_ = s.Serve(lis)
	}()

	ctx := context.Background()
	conn, err := grpc.DialContext(ctx, "bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithInsecure())
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		s.Stop()
	})
	return service.NewFullNodeServiceClient(conn)
}

func TestServerRoundTrip(t *testing.T) {
	k1, k2, k3 := keys()
	f, genesis := newTestNode(t)
	client := dialServer(t, f)
	ctx := context.Background()

	head, err := client.GetHead(ctx, &service.GetHeadRequest{})
	require.NoError(t, err)
	assert.Equal(t, genesis.Hash, head.Hash)
	assert.Equal(t, int64(1), head.Height)

	tx := spendTx(t, k1, genesis.Coinbase.Hash, 0, out(40, k2), out(60, k1))
	_, err = client.SetTransaction(ctx, &service.SetTransactionRequest{Tx: tx})
	require.NoError(t, err)

	_, err = client.SetTransaction(ctx, &service.SetTransactionRequest{Tx: tx})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	pending, err := client.GetPendingTransactions(ctx, &service.GetPendingTransactionsRequest{})
	require.NoError(t, err)
	require.Len(t, pending.Txs, 1)
	assert.Equal(t, tx.Hash, pending.Txs[0].Hash)
	assert.Equal(t, tx.Inputs[0].Signature, pending.Txs[0].Inputs[0].Signature)

	// The block travels as json; its hash must survive the trip.
	b := newBlock(t, mustGet(t, f, genesis.Hash), k3, 0, pending.Txs...)
	resp, err := client.SetBlock(ctx, &service.SetBlockRequest{Block: b})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Equal(t, Accepted.String(), resp.Outcome)

	resp, err = client.SetBlock(ctx, &service.SetBlockRequest{Block: b})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Equal(t, Duplicate.String(), resp.Outcome)

	head, err = client.GetHead(ctx, &service.GetHeadRequest{})
	require.NoError(t, err)
	assert.Equal(t, b.Hash, head.Hash)
	assert.Equal(t, int64(2), head.Height)

	balance, err := client.GetBalance(ctx, &service.GetBalanceRequest{PublicKey: pk(k1)})
	require.NoError(t, err)
	require.Len(t, balance.UtxoOutputPairs, 1)
	assert.Equal(t, tx.Hash, balance.UtxoOutputPairs[0].Utxo.PrevTxHash)
	assert.Equal(t, int64(1), balance.UtxoOutputPairs[0].Utxo.Index)
	assert.Equal(t, 60.0, balance.UtxoOutputPairs[0].Output.Value)

	pending, err = client.GetPendingTransactions(ctx, &service.GetPendingTransactionsRequest{})
	require.NoError(t, err)
	assert.Empty(t, pending.Txs)
}

func TestServerRejections(t *testing.T) {
	_, _, k3 := keys()
	f, genesis := newTestNode(t)
	client := dialServer(t, f)
	ctx := context.Background()

	_, err := client.SetBlock(ctx, &service.SetBlockRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.SetTransaction(ctx, &service.SetTransactionRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	forged := spendTx(t, k3, genesis.Coinbase.Hash, 0, out(100, k3))
	b := newBlock(t, mustGet(t, f, genesis.Hash), k3, 0, forged)
	_, err = client.SetBlock(ctx, &service.SetBlockRequest{Block: b})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.True(t, strings.Contains(status.Convert(err).Message(), ErrInvalidTxs.Error()))
}

func TestServerShow(t *testing.T) {
	f, genesis := newTestNode(t)
	extendEmpty(t, f, mustGet(t, f, genesis.Hash), 0, 3)

	dir, err := ioutil.TempDir("", "show")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path, err := NewFullNodeServer(f).Show(2, dir)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "chaindata-"+f.ID()+".dot"))
	content, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "digraph")
}
