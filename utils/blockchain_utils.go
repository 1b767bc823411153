package utils

import (
	"github.com/Luismorlan/btc_ledger/model"
)

// GetBlockBytes serializes everything a block hash commits to.
func GetBlockBytes(block *model.Block) ([]byte, error) {
	var rawBlock []byte

	rawBlock = append(rawBlock, Int64ToBytes(block.Nonce)...)

	preHashBytes, err := HexToBytes(block.PrevHash)
	if err != nil {
		return nil, err
	}
	rawBlock = append(rawBlock, preHashBytes...)

	for i := 0; i < len(block.Txs); i++ {
		txBytes, err := GetTransactionBytes(block.Txs[i], true /*withSig=*/)
		if err != nil {
			return nil, err
		}
		rawBlock = append(rawBlock, txBytes...)
	}

	if block.Coinbase != nil {
		coinbaseBytes, err := GetTransactionBytes(block.Coinbase, true /*withSig=*/)
		if err != nil {
			return nil, err
		}
		rawBlock = append(rawBlock, coinbaseBytes...)
	}

	return rawBlock, nil
}

// ComputeBlockHash fills in block.Hash.
func ComputeBlockHash(block *model.Block) error {
	blockBytes, err := GetBlockBytes(block)
	if err != nil {
		return err
	}
	block.Hash = BytesToHex(SHA256(blockBytes))
	return nil
}

// AssembleBlock wraps already signed transactions and a coinbase into a
// hashed block on top of prevHash.
func AssembleBlock(prevHash string, txs []*model.Transaction, coinbase *model.Transaction, nonce int64) (*model.Block, error) {
	block := &model.Block{
		PrevHash: prevHash,
		Txs:      txs,
		Coinbase: coinbase,
		Nonce:    nonce,
	}
	if err := ComputeBlockHash(block); err != nil {
		return nil, err
	}
	return block, nil
}

// CreateGenesisBlock returns a parentless block paying reward to pk.
func CreateGenesisBlock(reward float64, pk []byte) *model.Block {
	// An empty prev hash decodes to no bytes, so this cannot fail.
	block, _ := AssembleBlock("", nil, CreateCoinbaseTx(reward, pk, model.GenesisHeight), 0)
	return block
}
