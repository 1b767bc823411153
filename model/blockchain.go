package model

// CUT_OFF_AGE is how many heights below the tallest block a fork may still be
// extended. Anything deeper is pruned and becomes unreachable.
const CUT_OFF_AGE = 10

// GenesisHeight is the height of the block the blockchain is bootstrapped with.
const GenesisHeight = 1

type Block struct {
	// Hash of this entire block in the hex string format.
	Hash string `json:"hash"`
	// Hash of the previous block in the hex format. Empty means no parent.
	PrevHash string `json:"prev_hash"`
	// Transactions for this block, not including the coinbase.
	Txs []*Transaction `json:"txs"`
	// Coinbase transaction as the miner's reward.
	Coinbase *Transaction `json:"coinbase"`
	// Nonce makes otherwise identical blocks hash differently.
	Nonce int64 `json:"nonce"`
}

// BlockWrapper stores both the block information and it's metadata on blockchain.
type BlockWrapper struct {
	// The actual block
	B *Block
	// height in the blockchain.
	Height int64
	// Ledger at that node. Sealed, never modified after the wrapper is created.
	L *Ledger
	// Arrival order of the block, used to break ties between forks of equal height.
	Sequence int64
}

// Blockchain keeps the most recent CUT_OFF_AGE+1 heights of blocks, indexed
// both by hash and by height. Both indexes point at the same wrapper.
//
// Blockchain is not safe for concurrent use; the full node serializes access.
type Blockchain struct {
	// A map from hex string of the block hash to block wrapper.
	Chain map[string]*BlockWrapper
	// A map from height to the hashes of every retained block at that height.
	Heights map[int64][]string
	// The maximum height ever reached.
	MaxHeight int64

	// Lowest height that may still hold blocks.
	minHeight int64
	// Sequence assigned to the next accepted block.
	blockCount int64
}

// NewBlockChain creates a blockchain holding only genesis. Every output of the
// genesis coinbase becomes spendable; genesis itself is trusted as is.
func NewBlockChain(genesis *Block) *Blockchain {
	l := NewLedger()
	if cb := genesis.Coinbase; cb != nil {
		for i, o := range cb.Outputs {
			if o == nil {
				continue
			}
			l.Insert(UTXO{PrevTxHash: cb.Hash, Index: int64(i)}, *o)
		}
	}

	bc := &Blockchain{
		Chain:     make(map[string]*BlockWrapper),
		Heights:   make(map[int64][]string),
		minHeight: GenesisHeight,
	}
	bc.insert(genesis, GenesisHeight, l)
	bc.MaxHeight = GenesisHeight
	return bc
}

func (bc *Blockchain) HasBlock(hash string) bool {
	_, ok := bc.Chain[hash]
	return ok
}

func (bc *Blockchain) GetBlockWrapper(hash string) (*BlockWrapper, bool) {
	bw, ok := bc.Chain[hash]
	return bw, ok
}

// AddBlockWrapper records b as a child of parent with ledger l, which is
// sealed here. It does not update MaxHeight; call UpdateMaxHeight afterwards.
func (bc *Blockchain) AddBlockWrapper(b *Block, parent *BlockWrapper, l *Ledger) *BlockWrapper {
	return bc.insert(b, parent.Height+1, l)
}

func (bc *Blockchain) insert(b *Block, height int64, l *Ledger) *BlockWrapper {
	l.Seal()
	bw := &BlockWrapper{
		B:        b,
		Height:   height,
		L:        l,
		Sequence: bc.blockCount,
	}
	bc.blockCount++
	bc.Chain[b.Hash] = bw
	bc.Heights[height] = append(bc.Heights[height], b.Hash)
	return bw
}

// UpdateMaxHeight raises MaxHeight to height if it is taller, then prunes
// every block at or below MaxHeight-CUT_OFF_AGE-1. Returns the hashes of the
// pruned blocks.
func (bc *Blockchain) UpdateMaxHeight(height int64) []string {
	if height <= bc.MaxHeight {
		return nil
	}
	bc.MaxHeight = height
	return bc.removeOutdatedBlocks(bc.MaxHeight - CUT_OFF_AGE - 1)
}

func (bc *Blockchain) removeOutdatedBlocks(outHeight int64) []string {
	var pruned []string
	for h := bc.minHeight; h <= outHeight; h++ {
		for _, hash := range bc.Heights[h] {
			delete(bc.Chain, hash)
			pruned = append(pruned, hash)
		}
		delete(bc.Heights, h)
	}
	if outHeight >= bc.minHeight {
		bc.minHeight = outHeight + 1
	}
	return pruned
}

// GetMaxHeightBlockWrapper returns the head: the block at MaxHeight that
// arrived first.
func (bc *Blockchain) GetMaxHeightBlockWrapper() *BlockWrapper {
	var head *BlockWrapper
	for _, hash := range bc.Heights[bc.MaxHeight] {
		bw := bc.Chain[hash]
		if head == nil || bw.Sequence < head.Sequence {
			head = bw
		}
	}
	return head
}

// GetBlocksAtHeight returns the retained blocks at height in arrival order.
func (bc *Blockchain) GetBlocksAtHeight(height int64) []*BlockWrapper {
	hashes := bc.Heights[height]
	res := make([]*BlockWrapper, 0, len(hashes))
	for _, hash := range hashes {
		res = append(res, bc.Chain[hash])
	}
	return res
}

// MinHeight is the lowest height that still has retained blocks.
func (bc *Blockchain) MinHeight() int64 {
	return bc.minHeight
}

// Size is the number of retained blocks.
func (bc *Blockchain) Size() int {
	return len(bc.Chain)
}
