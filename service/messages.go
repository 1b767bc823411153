package service

import "github.com/Luismorlan/btc_ledger/model"

type SetBlockRequest struct {
	Block *model.Block `json:"block"`
}

type SetBlockResponse struct {
	// Accepted is true when the block was admitted or was already known.
	Accepted bool `json:"accepted"`
	// Outcome names the admission state, e.g. "accepted" or "rejected-invalid-transactions".
	Outcome string `json:"outcome"`
}

type SetTransactionRequest struct {
	Tx *model.Transaction `json:"tx"`
}

type SetTransactionResponse struct{}

type GetHeadRequest struct{}

type GetHeadResponse struct {
	Hash     string `json:"hash"`
	Height   int64  `json:"height"`
	Sequence int64  `json:"sequence"`
}

type GetBalanceRequest struct {
	PublicKey []byte `json:"public_key"`
}

type UtxoOutputPair struct {
	Utxo   *model.UTXO   `json:"utxo"`
	Output *model.Output `json:"output"`
}

type GetBalanceResponse struct {
	UtxoOutputPairs []*UtxoOutputPair `json:"utxo_output_pairs"`
}

type GetPendingTransactionsRequest struct{}

type GetPendingTransactionsResponse struct {
	Txs []*model.Transaction `json:"txs"`
}
