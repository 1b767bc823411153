package wallet

import (
	"context"
	"crypto/rsa"
	"sort"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/Luismorlan/btc_ledger/model"
	"github.com/Luismorlan/btc_ledger/service"
	"github.com/Luismorlan/btc_ledger/utils"
)

const (
	logModule = "wallet"

	rpcTimeout = 10 * time.Second
)

var (
	ErrNotConnected      = errors.New("wallet is not connected to a full node")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// User signs and sends transactions to network.
type Wallet struct {
	keys           *rsa.PrivateKey
	FullNodeClient service.FullNodeServiceClient
	conn           *grpc.ClientConn
	// Outputs owned by this wallet at the head of the full node, refreshed by GetBalance.
	UTXOs map[model.UTXO]model.Output
}

func NewWallet(keys *rsa.PrivateKey) *Wallet {
	return &Wallet{
		keys:  keys,
		UTXOs: make(map[model.UTXO]model.Output),
	}
}

// SetFullNodeConnection dials the full node at ipAddr:port, replacing any
// previous connection.
func (w *Wallet) SetFullNodeConnection(ipAddr string, port string) error {
	serverAddr := ipAddr + ":" + port
	conn, err := grpc.Dial(serverAddr, grpc.WithInsecure())
	if err != nil {
		return errors.Wrapf(err, "dial %s", serverAddr)
	}
	w.Close()
	w.conn = conn
	w.FullNodeClient = service.NewFullNodeServiceClient(conn)
	log.WithFields(log.Fields{"module": logModule, "addr": serverAddr}).Info("connected to full node")
	return nil
}

// Close drops the connection opened by SetFullNodeConnection.
func (w *Wallet) Close() error {
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	w.FullNodeClient = nil
	return err
}

// GetPublicKey returns the hex encoded public key others pay to.
func (w *Wallet) GetPublicKey() string {
	return utils.BytesToHex(w.publicKey())
}

func (w *Wallet) publicKey() []byte {
	return utils.PublicKeyToBytes(&w.keys.PublicKey)
}

func (w *Wallet) client() (service.FullNodeServiceClient, error) {
	if w.FullNodeClient == nil {
		return nil, ErrNotConnected
	}
	return w.FullNodeClient, nil
}

// GetBalance replaces UTXOs with what the full node reports at its head.
func (w *Wallet) GetBalance() error {
	c, err := w.client()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	response, err := c.GetBalance(ctx, &service.GetBalanceRequest{PublicKey: w.publicKey()})
	if err != nil {
		return errors.Wrap(err, "get balance")
	}
	w.UTXOs = make(map[model.UTXO]model.Output)
	for _, pair := range response.UtxoOutputPairs {
		if pair.Utxo == nil || pair.Output == nil {
			continue
		}
		w.UTXOs[*pair.Utxo] = *pair.Output
	}
	return nil
}

// GetTotalDeposit refreshes UTXOs and sums them.
func (w *Wallet) GetTotalDeposit() (float64, error) {
	if err := w.GetBalance(); err != nil {
		return 0, err
	}
	total := 0.0
	for _, o := range w.UTXOs {
		total += o.Value
	}
	return total, nil
}

func (w *Wallet) GetHead() (*service.GetHeadResponse, error) {
	c, err := w.client()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	head, err := c.GetHead(ctx, &service.GetHeadRequest{})
	if err != nil {
		return nil, errors.Wrap(err, "get head")
	}
	return head, nil
}

// claimedByPending returns the outputs pending transactions already spend, so
// a second transfer does not claim them again before a block is accepted.
func (w *Wallet) claimedByPending() (map[model.UTXO]bool, error) {
	c, err := w.client()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	resp, err := c.GetPendingTransactions(ctx, &service.GetPendingTransactionsRequest{})
	if err != nil {
		return nil, errors.Wrap(err, "get pending transactions")
	}
	claimed := make(map[model.UTXO]bool)
	for _, tx := range resp.Txs {
		for _, in := range tx.Inputs {
			if in != nil {
				claimed[utils.CreateUtxoFromInput(in)] = true
			}
		}
	}
	return claimed, nil
}

// TransferMoney pays value to receiverPK, a hex encoded public key, and sends
// the signed transaction to the full node.
func (w *Wallet) TransferMoney(receiverPK string, value float64) (*model.Transaction, error) {
	if err := w.GetBalance(); err != nil {
		return nil, err
	}
	claimed, err := w.claimedByPending()
	if err != nil {
		return nil, err
	}
	pk, err := utils.HexToBytes(receiverPK)
	if err != nil {
		return nil, errors.Wrap(err, "parse receiver public key")
	}
	if utils.BytesToPublicKey(pk) == nil {
		return nil, errors.New("receiver public key is not a valid RSA key")
	}

	spendable := make(map[model.UTXO]model.Output)
	for u, o := range w.UTXOs {
		if !claimed[u] {
			spendable[u] = o
		}
	}
	tx, err := CreatePendingTransaction(w.keys, spendable, []*model.Output{{PublicKey: pk, Value: value}})
	if err != nil {
		return nil, err
	}
	if err := w.SendTransaction(tx); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"module": logModule, "tx_id": tx.Hash, "value": value}).Info("sent transaction to full node")
	return tx, nil
}

func (w *Wallet) SendTransaction(tx *model.Transaction) error {
	c, err := w.client()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	if _, err := c.SetTransaction(ctx, &service.SetTransactionRequest{Tx: tx}); err != nil {
		return errors.Wrapf(err, "send tx %s", tx.Hash)
	}
	return nil
}

// Create a pending transaction paying outputs from utxos, all owned by sk.
// UTXOs are claimed in (hash, index) order until they cover the outputs; the
// change goes back to sk.
func CreatePendingTransaction(sk *rsa.PrivateKey, utxos map[model.UTXO]model.Output, outputs []*model.Output) (*model.Transaction, error) {
	// Total amount of money will be transferred to others
	totalTransferValue := 0.0
	for _, o := range outputs {
		if o.Value < 0 {
			return nil, errors.Errorf("negative output value %v", o.Value)
		}
		totalTransferValue += o.Value
	}

	keys := make([]model.UTXO, 0, len(utxos))
	for u := range utxos {
		keys = append(keys, u)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].PrevTxHash != keys[j].PrevTxHash {
			return keys[i].PrevTxHash < keys[j].PrevTxHash
		}
		return keys[i].Index < keys[j].Index
	})

	var inputs []*model.Input
	totalValue := 0.0
	for _, u := range keys {
		if totalValue >= totalTransferValue && len(inputs) > 0 {
			break
		}
		inputs = append(inputs, &model.Input{PrevTxHash: u.PrevTxHash, Index: u.Index})
		totalValue += utxos[u].Value
	}
	if len(inputs) == 0 || totalValue < totalTransferValue {
		return nil, errors.Wrapf(ErrInsufficientFunds, "have %v, need %v", totalValue, totalTransferValue)
	}

	outs := append([]*model.Output{}, outputs...)
	if change := totalValue - totalTransferValue; change > 0 {
		outs = append(outs, &model.Output{
			Value:     change,
			PublicKey: utils.PublicKeyToBytes(&sk.PublicKey),
		})
	}
	tx := &model.Transaction{
		Inputs:  inputs,
		Outputs: outs,
	}
	if err := utils.SignTransaction(tx, sk); err != nil {
		return nil, errors.Wrap(err, "sign transaction")
	}
	return tx, nil
}
