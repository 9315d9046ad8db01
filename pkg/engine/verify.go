package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/paywatch/pkg/chains"
	"github.com/speedrun-hq/paywatch/pkg/contracts"
	"github.com/speedrun-hq/paywatch/pkg/models"
)

// maxRangeProbes bounds how many bisection queries a range probe may issue
const maxRangeProbes = 8

// paymentMatch is a transaction satisfying an intent inside the scan window
type paymentMatch struct {
	txHash common.Hash
	block  uint64
}

// Verify checks the chain for a transaction satisfying the intent and
// reports the status the evidence supports. It never mutates the intent;
// persisting the outcome is the caller's job.
//
// The scan window is bounded: only the last ScanBlocks blocks from the
// chain head are inspected, so a payment older than the window reports
// PENDING again. The network pin and expiry are checked before any RPC
// call is made.
func (e *Engine) Verify(ctx context.Context, intent *models.PaymentIntent) models.VerificationResult {
	network, err := chains.Parse(intent.ChainID)
	if err != nil || network != e.network {
		return models.VerificationResult{
			Status:    models.StatusFailed,
			ErrorCode: models.CodeChainMismatch,
			Reason:    fmt.Sprintf("intent pinned to %q but this service verifies on %s", intent.ChainID, e.network),
		}
	}

	if !intent.ExpiresAt.After(time.Now()) {
		return models.VerificationResult{
			Status:    models.StatusExpired,
			ErrorCode: models.CodeExpiredError,
			Reason:    fmt.Sprintf("intent expired at %s", intent.ExpiresAt.UTC().Format(time.RFC3339)),
		}
	}

	nodeChainID, err := e.client.ChainID(ctx)
	if err != nil {
		return failureResult(models.Errorf(models.CodeRPCError, "failed to query node chain ID: %v", err))
	}
	if nodeChainID == nil || nodeChainID.Cmp(e.evmChainID) != 0 {
		return models.VerificationResult{
			Status:    models.StatusFailed,
			ErrorCode: models.CodeChainMismatch,
			Reason:    fmt.Sprintf("node reports chain ID %v, expected %s", nodeChainID, e.evmChainID),
		}
	}

	latest, err := e.client.BlockNumber(ctx)
	if err != nil {
		return failureResult(models.Errorf(models.CodeRPCError, "failed to query latest block: %v", err))
	}

	fromBlock := uint64(0)
	if latest > e.cfg.ScanBlocks {
		fromBlock = latest - e.cfg.ScanBlocks
	}

	var match *paymentMatch
	switch intent.Asset.Type {
	case models.AssetNative:
		match, err = e.scanNative(ctx, intent, fromBlock, latest)
	case models.AssetERC20:
		match, err = e.scanERC20(ctx, intent, fromBlock, latest)
	default:
		return failureResult(models.Errorf(models.CodeValidationError, "unknown asset type %q", intent.Asset.Type))
	}
	if err != nil {
		return failureResult(err)
	}

	if match == nil {
		e.logger.DebugWithIntent(intent.ID, "no matching transaction in blocks %d-%d", fromBlock, latest)
		return models.VerificationResult{
			Status: models.StatusPending,
			Reason: fmt.Sprintf("no matching transaction in blocks %d-%d", fromBlock, latest),
		}
	}

	confirmations := uint64(1)
	if latest >= match.block {
		confirmations = latest - match.block + 1
	}

	minConfirmations := intent.ConfirmationPolicy.MinConfirmations
	if confirmations < minConfirmations {
		return models.VerificationResult{
			Status:        models.StatusDetected,
			TxHash:        match.txHash.Hex(),
			Confirmations: confirmations,
			ErrorCode:     models.CodeConfirmationPending,
			Reason:        fmt.Sprintf("%d of %d confirmations", confirmations, minConfirmations),
		}
	}

	return models.VerificationResult{
		Status:        models.StatusConfirmed,
		TxHash:        match.txHash.Hex(),
		Confirmations: confirmations,
	}
}

// scanNative walks blocks newest first looking for a plain value
// transfer to the recipient of at least the intent amount.
func (e *Engine) scanNative(ctx context.Context, intent *models.PaymentIntent, fromBlock, latest uint64) (*paymentMatch, error) {
	recipient := common.HexToAddress(intent.Recipient)
	amount, ok := new(big.Int).SetString(intent.Amount, 10)
	if !ok {
		return nil, models.Errorf(models.CodeValidationError, "stored amount %q is not a base-10 integer", intent.Amount)
	}

	for number := latest; ; number-- {
		block, err := e.client.BlockByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			return nil, models.Errorf(models.CodeRPCError, "failed to fetch block %d: %v", number, err)
		}

		for _, tx := range block.Transactions() {
			to := tx.To()
			if to == nil || *to != recipient {
				continue
			}
			if tx.Value().Cmp(amount) >= 0 {
				return &paymentMatch{txHash: tx.Hash(), block: number}, nil
			}
		}

		if number == fromBlock {
			break
		}
	}
	return nil, nil
}

// scanERC20 fetches Transfer logs for the token contract filtered down
// to the recipient and keeps the newest one covering the intent amount.
func (e *Engine) scanERC20(ctx context.Context, intent *models.PaymentIntent, fromBlock, latest uint64) (*paymentMatch, error) {
	contract := common.HexToAddress(intent.Asset.ContractAddress)
	recipient := common.HexToAddress(intent.Recipient)
	amount, ok := new(big.Int).SetString(intent.Amount, 10)
	if !ok {
		return nil, models.Errorf(models.CodeValidationError, "stored amount %q is not a base-10 integer", intent.Amount)
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(latest),
		Addresses: []common.Address{contract},
		Topics: [][]common.Hash{
			{contracts.TransferTopic},
			nil, // any sender
			{contracts.AddressTopic(recipient)},
		},
	}

	logs, err := e.client.FilterLogs(ctx, query)
	if err != nil {
		if e.cfg.DebugRangeProbe {
			e.probeLogRange(ctx, query, fromBlock, latest)
		}
		return nil, models.Errorf(models.CodeRPCError, "failed to filter transfer logs: %v", err)
	}

	var best *paymentMatch
	var bestIndex uint
	for _, log := range logs {
		// reorg-removed logs are no evidence of payment
		if log.Removed || log.Address != contract {
			continue
		}
		transfer, err := contracts.ParseTransfer(log)
		if err != nil {
			e.logger.DebugWithIntent(intent.ID, "skipping undecodable log in block %d: %v", log.BlockNumber, err)
			continue
		}
		if transfer.To != recipient || transfer.Value.Cmp(amount) < 0 {
			continue
		}
		if best == nil || log.BlockNumber > best.block || (log.BlockNumber == best.block && log.Index > bestIndex) {
			best = &paymentMatch{txHash: log.TxHash, block: log.BlockNumber}
			bestIndex = log.Index
		}
	}
	return best, nil
}

// probeLogRange bisects a failed filter query to report the largest
// block span the node accepts. Diagnostics only, the verification
// outcome is unaffected.
func (e *Engine) probeLogRange(ctx context.Context, query ethereum.FilterQuery, fromBlock, latest uint64) {
	span := latest - fromBlock + 1
	for attempt := 0; attempt < maxRangeProbes && span > 1; attempt++ {
		span /= 2
		probe := query
		probe.FromBlock = new(big.Int).SetUint64(latest - span + 1)
		probe.ToBlock = new(big.Int).SetUint64(latest)

		if _, err := e.client.FilterLogs(ctx, probe); err == nil {
			e.logger.Notice("log range probe: node accepted a %d-block span, consider lowering SCAN_BLOCKS", span)
			return
		}
	}
	e.logger.Notice("log range probe: node rejected every span down to %d blocks", span)
}

// failureResult maps a scan error to a FAILED result carrying its code
func failureResult(err error) models.VerificationResult {
	code := models.CodeRPCError
	reason := err.Error()

	var coded *models.Error
	if errors.As(err, &coded) {
		code = coded.Code
		reason = coded.Message
	}

	return models.VerificationResult{
		Status:    models.StatusFailed,
		ErrorCode: code,
		Reason:    reason,
	}
}
