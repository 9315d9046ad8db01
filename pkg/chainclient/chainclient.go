package chainclient

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/speedrun-hq/paywatch/pkg/logger"
	"github.com/speedrun-hq/paywatch/pkg/metrics"
)

// Client is the minimal chain capability surface the verification engine
// needs. The EVM implementation lives below; tests substitute the mocks
// package.
type Client interface {
	// ChainID returns the network ID reported by the connected node.
	ChainID(ctx context.Context) (*big.Int, error)

	// BlockNumber returns the latest block number.
	BlockNumber(ctx context.Context) (uint64, error)

	// BlockByNumber fetches a block with its full transaction list.
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)

	// FilterLogs executes a log filter query.
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)

	// Close releases the underlying connection.
	Close()
}

// EVMClient wraps an ethclient connection with per-call timeouts, call
// metrics and a short-lived block cache, so sweeps over many intents on
// the same network do not refetch identical blocks.
type EVMClient struct {
	rpcURL  string
	timeout time.Duration
	client  *ethclient.Client
	blocks  *BlockCache
	logger  logger.Logger
}

var _ Client = (*EVMClient)(nil)

// Dial connects to an EVM JSON-RPC endpoint
func Dial(rpcURL string, timeout time.Duration, log logger.Logger) (*EVMClient, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %v", err)
	}

	return &EVMClient{
		rpcURL:  rpcURL,
		timeout: timeout,
		client:  client,
		blocks:  NewBlockCache(DefaultBlockCacheTTL, DefaultBlockCacheSize),
		logger:  log,
	}, nil
}

// ChainID returns the network ID reported by the connected node
func (c *EVMClient) ChainID(ctx context.Context) (*big.Int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chainID, err := c.client.ChainID(timeoutCtx)
	c.record("chain_id", err)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %v", err)
	}
	return chainID, nil
}

// BlockNumber returns the latest block number
func (c *EVMClient) BlockNumber(ctx context.Context) (uint64, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	blockNumber, err := c.client.BlockNumber(timeoutCtx)
	c.record("block_number", err)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block number: %v", err)
	}
	return blockNumber, nil
}

// BlockByNumber fetches a block with its full transaction list. Blocks
// requested by concrete number are served from the cache when possible;
// a nil number means latest and always hits the node.
func (c *EVMClient) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	if number != nil {
		if block, ok := c.blocks.Get(number.Uint64()); ok {
			metrics.BlockCacheHits.Inc()
			return block, nil
		}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	block, err := c.client.BlockByNumber(timeoutCtx, number)
	c.record("block_by_number", err)
	if err != nil {
		return nil, fmt.Errorf("failed to get block %v: %v", number, err)
	}

	if number != nil {
		c.blocks.Set(number.Uint64(), block)
	}
	return block, nil
}

// FilterLogs executes a log filter query
func (c *EVMClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logs, err := c.client.FilterLogs(timeoutCtx, q)
	c.record("filter_logs", err)
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs: %v", err)
	}
	return logs, nil
}

// Close releases the underlying connection
func (c *EVMClient) Close() {
	c.client.Close()
	c.blocks.Clear()
}

// record tracks the outcome of one RPC call
func (c *EVMClient) record(method string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		c.logger.Debug("RPC %s against %s failed: %v", method, c.rpcURL, err)
	}
	metrics.RPCCalls.WithLabelValues(method, outcome).Inc()
}
