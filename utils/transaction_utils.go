package utils

import (
	"crypto/rsa"
	"math"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Luismorlan/btc_ledger/model"
)

var (
	// ErrMalformedTx is returned for a transaction missing required parts.
	ErrMalformedTx = errors.New("malformed transaction")
	// ErrMissingUtxo means an input does not reference an unspent output.
	ErrMissingUtxo = errors.New("input is not an unspent output")
	// ErrDoubleClaim means two inputs of one transaction claim the same output.
	ErrDoubleClaim = errors.New("output claimed more than once")
	// ErrBadSignature means an input signature does not verify under the owner's key.
	ErrBadSignature = errors.New("input signature is invalid")
	// ErrNegativeOutput means an output value is negative or not a finite number.
	ErrNegativeOutput = errors.New("output value is negative or not finite")
	// ErrInsufficientInput means outputs spend more than the inputs provide.
	ErrInsufficientInput = errors.New("outputs exceed inputs")
)

func CreateUtxoFromInput(input *model.Input) model.UTXO {
	return model.UTXO{
		PrevTxHash: input.PrevTxHash,
		Index:      input.Index,
	}
}

// GetInputBytes converts input to byte slice. With or without the signature.
func GetInputBytes(input *model.Input, withSig bool) ([]byte, error) {
	var data []byte
	prevHash, err := HexToBytes(input.PrevTxHash)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedTx, "prev tx hash %q is not hex", input.PrevTxHash)
	}
	data = append(data, prevHash...)
	data = append(data, Int64ToBytes(input.Index)...)
	if withSig {
		data = append(data, input.Signature...)
	}
	return data, nil
}

func GetOutputBytes(output *model.Output) []byte {
	var data []byte
	data = append(data, Float64ToBytes(output.Value)...)

	data = append(data, output.PublicKey...)
	return data
}

// Concat all inputs and outputs raw data in byte slices. The coinbase height
// is appended so rewards for different heights never share a hash.
func GetTransactionBytes(t *model.Transaction, withSig bool) ([]byte, error) {
	var data []byte
	for i := 0; i < len(t.Inputs); i++ {
		inputData, err := GetInputBytes(t.Inputs[i], withSig)
		if err != nil {
			return nil, err
		}
		data = append(data, inputData...)
	}

	for i := 0; i < len(t.Outputs); i++ {
		data = append(data, GetOutputBytes(t.Outputs[i])...)
	}
	data = append(data, Int64ToBytes(t.Height)...)
	return data, nil
}

// GetInputDataToSignByIndex returns what the owner of the index-th input signs:
// that input without its signature, followed by every output.
func GetInputDataToSignByIndex(t *model.Transaction, index int) ([]byte, error) {
	var data []byte

	if index < 0 || len(t.Inputs)-1 < index {
		return nil, errors.New("index is out of the range")
	}
	// Don't include signature since we haven't signed it yet.
	inputData, err := GetInputBytes(t.Inputs[index], false /*withSig=*/)
	if err != nil {
		return nil, err
	}
	data = append(data, inputData...)

	for i := 0; i < len(t.Outputs); i++ {
		data = append(data, GetOutputBytes(t.Outputs[i])...)
	}
	return data, nil
}

// ComputeTransactionHash fills in tx.Hash from its full content, signatures included.
func ComputeTransactionHash(tx *model.Transaction) error {
	txBytes, err := GetTransactionBytes(tx, true /*withSig=*/)
	if err != nil {
		return err
	}
	tx.Hash = BytesToHex(SHA256(txBytes))
	return nil
}

// SignTransaction signs every input with sk and then computes the hash.
func SignTransaction(tx *model.Transaction, sk *rsa.PrivateKey) error {
	for i := 0; i < len(tx.Inputs); i++ {
		msg, err := GetInputDataToSignByIndex(tx, i)
		if err != nil {
			return err
		}
		sig, err := Sign(msg, sk)
		if err != nil {
			return err
		}
		tx.Inputs[i].Signature = sig
	}
	return ComputeTransactionHash(tx)
}

// CreateCoinbaseTx creates the reward transaction of the block at height.
func CreateCoinbaseTx(reward float64, pk []byte, height int64) *model.Transaction {
	tx := &model.Transaction{
		Outputs: []*model.Output{
			{
				Value:     reward,
				PublicKey: pk,
			},
		},
		Height: height,
	}
	// Coinbase has no inputs, so hashing cannot fail.
	_ = ComputeTransactionHash(tx)
	return tx
}

// A transaction is valid against ledger if:
// 1. All inputs are UTXO.
// 2. No output is claimed twice.
// 3. Signatures are valid under the owner of each claimed output.
// 4. Outputs are finite non-negative numbers.
// 5. Total outputs are smaller or equal to inputs.
// The returned error wraps one of the Err* sentinels.
func IsValidTransaction(t *model.Transaction, ledger *model.Ledger, verify SignatureVerifier) error {
	if t == nil {
		return ErrMalformedTx
	}
	var totalInput = 0.0
	var totalOutput = 0.0

	// Store all seen UTXOs to avoid double spending.
	seenUtxo := make(map[model.UTXO]bool)

	for i := 0; i < len(t.Inputs); i++ {
		input := t.Inputs[i]
		if input == nil {
			return errors.Wrapf(ErrMalformedTx, "tx %s input %d is nil", t.Hash, i)
		}
		inputUtxo := CreateUtxoFromInput(input)
		if seenUtxo[inputUtxo] {
			return errors.Wrapf(ErrDoubleClaim, "tx %s input %d", t.Hash, i)
		}
		seenUtxo[inputUtxo] = true

		output, ok := ledger.Get(inputUtxo)
		if !ok {
			return errors.Wrapf(ErrMissingUtxo, "tx %s input %d (%s:%d)", t.Hash, i, input.PrevTxHash, input.Index)
		}

		msg, err := GetInputDataToSignByIndex(t, i)
		if err != nil {
			return err
		}
		if !verify(output.PublicKey, msg, input.Signature) {
			return errors.Wrapf(ErrBadSignature, "tx %s input %d", t.Hash, i)
		}
		totalInput += output.Value
	}

	for i := 0; i < len(t.Outputs); i++ {
		output := t.Outputs[i]
		if output == nil {
			return errors.Wrapf(ErrMalformedTx, "tx %s output %d is nil", t.Hash, i)
		}
		// NaN fails every comparison, so test for the valid range instead.
		if !(output.Value >= 0) || math.IsInf(output.Value, 0) {
			return errors.Wrapf(ErrNegativeOutput, "tx %s output %d value %v", t.Hash, i, output.Value)
		}
		totalOutput += output.Value
	}

	if totalInput < totalOutput {
		return errors.Wrapf(ErrInsufficientInput, "tx %s in %v out %v", t.Hash, totalInput, totalOutput)
	}
	return nil
}

// ApplyTransaction claims every input and stores every output of t. It does no
// validation; callers check IsValidTransaction against the same ledger first.
func ApplyTransaction(t *model.Transaction, l *model.Ledger) {
	for i := 0; i < len(t.Inputs); i++ {
		l.Remove(CreateUtxoFromInput(t.Inputs[i]))
	}

	for i := 0; i < len(t.Outputs); i++ {
		utxo := model.UTXO{
			PrevTxHash: t.Hash,
			Index:      int64(i),
		}
		l.Insert(utxo, *t.Outputs[i])
	}
}

// Handle transaction:
// 1. Validate transaction.
// 2. Claim every input.
// 3. Store every output.
func HandleTransaction(t *model.Transaction, l *model.Ledger, verify SignatureVerifier) error {
	if err := IsValidTransaction(t, l, verify); err != nil {
		log.WithFields(log.Fields{"module": logModule, "err": err}).Debug("invalid transaction")
		return err
	}
	ApplyTransaction(t, l)
	return nil
}

// ApplyCoinbase credits every output of the coinbase without checking it;
// a coinbase creates money rather than spending it.
func ApplyCoinbase(cb *model.Transaction, l *model.Ledger) {
	if cb == nil {
		return
	}
	for i, o := range cb.Outputs {
		if o == nil {
			continue
		}
		l.Insert(model.UTXO{PrevTxHash: cb.Hash, Index: int64(i)}, *o)
	}
}
