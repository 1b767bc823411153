package full_node

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Luismorlan/btc_ledger/model"
	"github.com/Luismorlan/btc_ledger/service"
	"github.com/Luismorlan/btc_ledger/visualize"
)

// FullNodeServer exposes a full node to wallets over gRPC.
type FullNodeServer struct {
	service.UnimplementedFullNodeServiceServer

	fullNode *FullNode
}

// Create a new full node server around an existing full node.
func NewFullNodeServer(f *FullNode) *FullNodeServer {
	return &FullNodeServer{
		fullNode: f,
	}
}

// FullNode returns the node served.
func (sev *FullNodeServer) FullNode() *FullNode {
	return sev.fullNode
}

// Set transaction adds the transaction to the pool. It is not validated until
// a block containing it arrives.
func (sev *FullNodeServer) SetTransaction(ctx context.Context, req *service.SetTransactionRequest) (*service.SetTransactionResponse, error) {
	tx := req.Tx
	if tx == nil {
		return nil, status.Error(codes.InvalidArgument, "input transaction is nil")
	}
	if err := sev.fullNode.AddTransactionToPool(tx); err != nil {
		if errors.Cause(err) == ErrExistingTx {
			return nil, status.Error(codes.AlreadyExists, err.Error())
		}
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return &service.SetTransactionResponse{}, nil
}

// Handle the incoming block. A rejected block is reported both in the
// response and as a FailedPrecondition error.
func (sev *FullNodeServer) SetBlock(ctx context.Context, req *service.SetBlockRequest) (*service.SetBlockResponse, error) {
	if req.Block == nil {
		return nil, status.Error(codes.InvalidArgument, "input block is nil")
	}
	log.WithFields(log.Fields{"module": logModule, "hash": req.Block.Hash}).Debug("received a new block")

	res, err := sev.fullNode.HandleNewBlock(req.Block)
	resp := &service.SetBlockResponse{
		Accepted: res.Ok(),
		Outcome:  res.String(),
	}
	if err != nil {
		return resp, status.Error(codes.FailedPrecondition, err.Error())
	}
	return resp, nil
}

func (sev *FullNodeServer) GetHead(ctx context.Context, req *service.GetHeadRequest) (*service.GetHeadResponse, error) {
	head := sev.fullNode.CurrentHead()
	return &service.GetHeadResponse{
		Hash:     head.B.Hash,
		Height:   head.Height,
		Sequence: head.Sequence,
	}, nil
}

// Return all utxo the public key owned.
func (sev *FullNodeServer) GetBalance(ctx context.Context, req *service.GetBalanceRequest) (*service.GetBalanceResponse, error) {
	l := sev.fullNode.GetUtxoForPublicKey(req.PublicKey)
	res := service.GetBalanceResponse{}
	for _, utxo := range l.All() {
		u := utxo
		output, _ := l.Get(u)
		res.UtxoOutputPairs = append(res.UtxoOutputPairs, &service.UtxoOutputPair{
			Utxo:   &u,
			Output: &model.Output{Value: output.Value, PublicKey: output.PublicKey},
		})
	}
	return &res, nil
}

func (sev *FullNodeServer) GetPendingTransactions(ctx context.Context, req *service.GetPendingTransactionsRequest) (*service.GetPendingTransactionsResponse, error) {
	return &service.GetPendingTransactionsResponse{Txs: sev.fullNode.PendingTransactions()}, nil
}

// Show renders the last d heights of the retained blocks into dir and
// returns the path of the dot file.
func (sev *FullNodeServer) Show(d int, dir string) (string, error) {
	return visualize.Render(sev.fullNode.GetBlocksInWindow(), d, dir, sev.fullNode.ID())
}
