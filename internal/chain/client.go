package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-pkgz/lgr"
)

// Client is the concrete, ethclient-backed Source implementation. It wraps
// go-ethereum's ethclient.Client the way the teacher's
// internal/services/blockchain.Client wraps it for transaction sending; this
// side only ever reads (spec.md §1 — no wallet/signing here).
type Client struct {
	eth       *ethclient.Client
	community common.Address
	logger    lgr.L
	tsCache   *TimestampCache
	pollEvery time.Duration
}

// NewClient dials rpcURL and returns a Client scoped to the community
// contract address, resolving and caching block timestamps in tsCache.
func NewClient(logger lgr.L, rpcURL string, community common.Address, tsCache *TimestampCache) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}
	return &Client{
		eth:       eth,
		community: community,
		logger:    logger,
		tsCache:   tsCache,
		pollEvery: 15 * time.Second,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() { c.eth.Close() }

// Head implements Source, returning the chain's current block number.
func (c *Client) Head(ctx context.Context) (uint64, error) {
	head, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: block number: %w", err)
	}
	return head, nil
}

// FilterRange implements Source: a bounded [from, to] log query over the
// three consumed event kinds, decoded and timestamp-resolved.
func (c *Client) FilterRange(ctx context.Context, from, to uint64) ([]Event, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.community},
		Topics:    [][]common.Hash{topics()},
	}

	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("chain: filter logs [%d,%d]: %w", from, to, err)
	}

	events := make([]Event, 0, len(logs))
	for _, log := range logs {
		ts, err := c.blockTimestampMs(ctx, log.BlockNumber)
		if err != nil {
			return nil, err
		}
		meta := LogMeta{
			BlockNumber:      log.BlockNumber,
			TxIndex:          uint64(log.TxIndex),
			LogIndex:         uint64(log.Index),
			BlockTimestampMs: ts,
			Removed:          log.Removed,
		}
		ev, err := decode(meta, log)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			events = append(events, ev)
		}
	}
	return events, nil
}

// SubscribeNew implements Source by polling FilterRange from the current
// head forward, per pollEvery. go-ethereum's native log subscription
// requires a websocket endpoint the operator may not have configured, so
// polling is the portable default (mirrors the teacher's scheduler ticker).
func (c *Client) SubscribeNew(ctx context.Context) (<-chan Event, error) {
	head, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: block number: %w", err)
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		last := head
		ticker := time.NewTicker(c.pollEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				newHead, err := c.eth.BlockNumber(ctx)
				if err != nil {
					c.logger.Logf("WARN chain: poll head: %v", err)
					continue
				}
				if newHead <= last {
					continue
				}
				events, err := c.FilterRange(ctx, last+1, newHead)
				if err != nil {
					c.logger.Logf("WARN chain: poll range [%d,%d]: %v", last+1, newHead, err)
					continue
				}
				for _, ev := range events {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
				last = newHead
			}
		}
	}()
	return out, nil
}

func (c *Client) blockTimestampMs(ctx context.Context, blockNumber uint64) (int64, error) {
	if ms, ok, err := c.tsCache.Get(blockNumber); err != nil {
		return 0, err
	} else if ok {
		return ms, nil
	}

	header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return 0, fmt.Errorf("chain: header for block %d: %w", blockNumber, err)
	}
	ms := int64(header.Time) * 1000
	if err := c.tsCache.Put(blockNumber, ms); err != nil {
		return 0, err
	}
	return ms, nil
}

// decode dispatches a raw log to its typed Event, or returns nil for a log
// whose topic matches none of the three consumed kinds (ignored).
func decode(meta LogMeta, log types.Log) (Event, error) {
	if len(log.Topics) == 0 {
		return nil, nil
	}
	switch log.Topics[0] {
	case adminFeeChangedTopic:
		fee, err := decodeAdminFeeChanged(log.Data)
		if err != nil {
			return nil, fmt.Errorf("chain: decode AdminFeeChanged: %w", err)
		}
		return AdminFeeChanged{LogMeta: meta, AdminFee: fee}, nil

	case blockCreatedTopic:
		decoded, err := decodeBlockCreated(log.Data)
		if err != nil {
			return nil, fmt.Errorf("chain: decode BlockCreated: %w", err)
		}
		return BlockCreated{
			LogMeta:     meta,
			BlockNumber: decoded.BlockNumber,
			RootHash:    decoded.RootHash,
			IPFSHash:    decoded.IPFSHash,
		}, nil

	case transferTopic:
		if len(log.Topics) < 3 {
			return nil, fmt.Errorf("chain: malformed Transfer log (want 3 topics, got %d)", len(log.Topics))
		}
		value, err := decodeTransferValue(log.Data)
		if err != nil {
			return nil, fmt.Errorf("chain: decode Transfer: %w", err)
		}
		return TokenTransfer{
			LogMeta: meta,
			From:    addressFromTopic(log.Topics[1]),
			To:      addressFromTopic(log.Topics[2]),
			Value:   value,
		}, nil

	default:
		return nil, nil
	}
}
