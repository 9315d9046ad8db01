// Package mocks provides a configurable test double for the chain
// client, with canned chain state and call counters so tests can assert
// how many RPC round trips a code path performed.
package mocks

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/speedrun-hq/paywatch/pkg/chainclient"
)

// ChainClient implements the chainclient.Client interface against
// in-memory chain state.
type ChainClient struct {
	mu sync.Mutex

	// Chain state served to callers
	NetworkID   *big.Int
	LatestBlock uint64
	Blocks      map[uint64]*types.Block
	Logs        []types.Log

	// Error injection, one per method
	ChainIDErr       error
	BlockNumberErr   error
	BlockByNumberErr error
	FilterLogsErr    error

	// BlockNumberDelay makes BlockNumber calls sleep, so tests can hold
	// a verification in flight
	BlockNumberDelay time.Duration

	// LastFilterQuery captures the most recent log filter for assertions
	LastFilterQuery ethereum.FilterQuery

	chainIDCalls       int
	blockNumberCalls   int
	blockByNumberCalls int
	filterLogsCalls    int
}

var _ chainclient.Client = (*ChainClient)(nil)

// NewChainClient creates a mock client for the given network at the
// given chain head
func NewChainClient(networkID *big.Int, latestBlock uint64) *ChainClient {
	return &ChainClient{
		NetworkID:   networkID,
		LatestBlock: latestBlock,
		Blocks:      make(map[uint64]*types.Block),
	}
}

// AddBlock registers a block so BlockByNumber can serve it
func (m *ChainClient) AddBlock(block *types.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Blocks[block.NumberU64()] = block
}

func (m *ChainClient) ChainID(_ context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chainIDCalls++

	if m.ChainIDErr != nil {
		return nil, m.ChainIDErr
	}
	return m.NetworkID, nil
}

func (m *ChainClient) BlockNumber(_ context.Context) (uint64, error) {
	m.mu.Lock()
	delay := m.BlockNumberDelay
	m.blockNumberCalls++
	err := m.BlockNumberErr
	latest := m.LatestBlock
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return 0, err
	}
	return latest, nil
}

func (m *ChainClient) BlockByNumber(_ context.Context, number *big.Int) (*types.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockByNumberCalls++

	if m.BlockByNumberErr != nil {
		return nil, m.BlockByNumberErr
	}
	if number == nil {
		number = new(big.Int).SetUint64(m.LatestBlock)
	}
	block, ok := m.Blocks[number.Uint64()]
	if !ok {
		return nil, fmt.Errorf("block %d not found", number.Uint64())
	}
	return block, nil
}

func (m *ChainClient) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filterLogsCalls++
	m.LastFilterQuery = q

	if m.FilterLogsErr != nil {
		return nil, m.FilterLogsErr
	}
	return m.Logs, nil
}

func (m *ChainClient) Close() {}

// CallCounts returns how many times each method was invoked
func (m *ChainClient) CallCounts() (chainID, blockNumber, blockByNumber, filterLogs int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chainIDCalls, m.blockNumberCalls, m.blockByNumberCalls, m.filterLogsCalls
}

// NewBlock assembles a block at the given height carrying the given
// transactions
func NewBlock(number uint64, txs ...*types.Transaction) *types.Block {
	header := &types.Header{Number: new(big.Int).SetUint64(number)}
	block := types.NewBlockWithHeader(header)
	if len(txs) > 0 {
		block = block.WithBody(txs, nil)
	}
	return block
}

// NativeTransfer builds a plain value transfer transaction. Nonces keep
// transaction hashes distinct across test fixtures.
func NativeTransfer(nonce uint64, to common.Address, value *big.Int) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
}

// ContractCreation builds a transaction with no recipient
func ContractCreation(nonce uint64) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       nil,
		Value:    big.NewInt(0),
		Gas:      100000,
		GasPrice: big.NewInt(1),
	})
}
