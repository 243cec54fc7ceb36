// Command operator is the bootstrap CLI spec.md §1 names as an external
// collaborator, kept intentionally thin per SPEC_FULL.md §4.12: it parses
// internal/config, constructs the Store, ChainSource, ChannelSource, State,
// Watcher and Operator, and runs Operator.Start until signalled to stop.
// It does not implement a transaction-signing wallet, an HTTP read API, or
// generated contract ABI bindings — those remain external collaborators.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/andrey/dataunion-core/internal/chain"
	"github.com/andrey/dataunion-core/internal/channel"
	"github.com/andrey/dataunion-core/internal/config"
	"github.com/andrey/dataunion-core/internal/ledger"
	"github.com/andrey/dataunion-core/internal/logging"
	"github.com/andrey/dataunion-core/internal/operator"
	"github.com/andrey/dataunion-core/internal/store"
	"github.com/andrey/dataunion-core/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "operator: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	level := "info"
	if cfg.Quiet {
		level = "warn"
	}
	logger, err := logging.NewWithConfig(logging.Config{
		Level:      level,
		Output:     "stdout",
		SecretMask: []string{cfg.OperatorKey},
	})
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	if cfg.Reset {
		logger.Logf("WARN operator: reset requested, wiping %s", cfg.StoreDir)
		if err := os.RemoveAll(cfg.StoreDir); err != nil {
			return fmt.Errorf("reset store dir: %w", err)
		}
	}

	db, err := store.Open(logger, cfg.StoreDir, cfg.CommunityAddress)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	tsCache, err := chain.OpenTimestampCache(cfg.TSCacheDir)
	if err != nil {
		return fmt.Errorf("open timestamp cache: %w", err)
	}
	defer tsCache.Close()

	communityAddr := common.HexToAddress(cfg.CommunityAddress)
	chainClient, err := chain.NewClient(logger, cfg.ChainEndpoint, communityAddr, tsCache)
	if err != nil {
		return fmt.Errorf("dial chain: %w", err)
	}
	defer chainClient.Close()

	redisSource, err := channel.NewRedisSource(logger, channel.Config{Address: cfg.ChannelAddress})
	if err != nil {
		return fmt.Errorf("dial channel: %w", err)
	}
	defer redisSource.Close()
	channelSource := channel.NewCommunitySource(redisSource, cfg.CommunityAddress)

	adminAddr, err := cfg.NormalizedAdminAddress()
	if err != nil {
		return fmt.Errorf("admin address: %w", err)
	}
	adminFeeFraction, err := cfg.AdminFeeFractionInt()
	if err != nil {
		return fmt.Errorf("admin fee fraction: %w", err)
	}

	rec, found, err := db.LoadState()
	if err != nil {
		return fmt.Errorf("load persisted state: %w", err)
	}

	initialMembers, currentBlockNumber, currentTimestamp, lastProcessedBlock, lastMessageTimestamp, err := seedFromRecord(rec, found)
	if err != nil {
		return fmt.Errorf("seed state from persisted record: %w", err)
	}
	if found {
		adminFeeFraction, _ = new(big.Int).SetString(rec.AdminFeeFraction, 10)
	}

	state := ledger.NewState(cfg.BlockFreezeSeconds, initialMembers, db, adminAddr, adminFeeFraction, currentBlockNumber, currentTimestamp)

	contractCfg := watcher.ContractConfig{
		TokenAddress:     cfg.TokenAddress,
		CommunityAddress: cfg.CommunityAddress,
	}
	w := watcher.New(logger, chainClient, channelSource, state, db, contractCfg, lastProcessedBlock, lastMessageTimestamp)
	op := operator.New(logger, w)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- op.Start(ctx) }()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := op.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// seedFromRecord materializes the Watcher startup protocol's step 1 (spec.md
// §4.5): seed State with the persisted member set, or start fresh.
func seedFromRecord(rec ledger.StateRecord, found bool) ([]ledger.Member, int64, int64, int64, int64, error) {
	if !found {
		return nil, 0, 0, 0, 0, nil
	}
	members := make([]ledger.Member, 0, len(rec.Members))
	for _, r := range rec.Members {
		m, err := ledger.MemberFromRecord(r)
		if err != nil {
			return nil, 0, 0, 0, 0, err
		}
		members = append(members, *m)
	}
	return members, rec.CurrentBlockNumber, rec.CurrentTimestamp, rec.LastProcessedBlock, rec.LastMessageTimestamp, nil
}
