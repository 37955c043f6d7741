package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flasharb/internal/cache/redis"
	"github.com/alanyoungcy/flasharb/internal/config"
	"github.com/alanyoungcy/flasharb/internal/crypto"
	"github.com/alanyoungcy/flasharb/internal/domain"
	"github.com/alanyoungcy/flasharb/internal/gasprice"
	"github.com/alanyoungcy/flasharb/internal/gateway"
	"github.com/alanyoungcy/flasharb/internal/ledger"
	"github.com/alanyoungcy/flasharb/internal/lender"
	"github.com/alanyoungcy/flasharb/internal/notify"
	"github.com/alanyoungcy/flasharb/internal/orchestrator"
	"github.com/alanyoungcy/flasharb/internal/registry"
	"github.com/alanyoungcy/flasharb/internal/sequencer"
	"github.com/alanyoungcy/flasharb/internal/settle"
	"github.com/alanyoungcy/flasharb/internal/store/memory"
	"github.com/alanyoungcy/flasharb/internal/store/postgres"
	"github.com/alanyoungcy/flasharb/internal/venue"
)

// selfAddr is the component's own funds account on the ledger: loans land
// here, swaps trade from here, profits accumulate here.
var selfAddr = common.HexToAddress("0x0000000000000000000000000000000000001000")

// Dependencies bundles everything the running application needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Owner    common.Address
	Book     *ledger.Ledger
	Registry *registry.Registry
	Gateway  *gateway.Gateway

	// Feed is non-nil when the live base-fee feed is enabled; App runs it.
	Feed *gasprice.Feed

	TradeStore domain.TradeStore
	Notifier   *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- Owner identity ---
	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: wallet: %w", err)
	}
	owner, err := crypto.AddressOf(keyHex)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: wallet: %w", err)
	}
	beneficiary := owner
	if cfg.Wallet.FeeBeneficiary != "" {
		beneficiary = common.HexToAddress(cfg.Wallet.FeeBeneficiary)
	}

	// --- Stores ---
	var (
		tradeStore  domain.TradeStore
		paramsStore domain.ParamsStore
	)
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		tradeStore = postgres.NewTradeStore(pgClient)
		paramsStore = postgres.NewParamsStore(pgClient)
	} else {
		tradeStore = memory.NewTradeStore()
		paramsStore = memory.NewParamsStore()
	}

	// --- Redis (distributed execution lock) ---
	var distLock domain.LockManager
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		distLock = redis.NewLockManager(redisClient)
	}

	// --- Notifications and events ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	notifier := notify.NewNotifier(senders, cfg.Notify.Events, logger)
	emitter := notify.NewEmitter(notifier, logger)

	// --- Gas oracle ---
	var (
		oracle domain.GasOracle
		feed   *gasprice.Feed
	)
	if cfg.GasFeed.Enabled {
		feed = gasprice.NewFeed(cfg.GasFeed.WsURL, config.GweiToWei(cfg.GasFeed.FallbackGwei), logger)
		oracle = feed
	} else {
		oracle = gasprice.NewStatic(config.GweiToWei(cfg.GasFeed.FallbackGwei))
	}

	// --- Ledger, facility, venues ---
	book := ledger.New()
	facility := lender.NewPool(common.HexToAddress(cfg.Lender.Address), uint32(cfg.Lender.FeeBps), logger)
	for _, a := range cfg.Assets {
		if a.LenderLiquidity == "" {
			continue
		}
		book.Mint(common.HexToAddress(a.Address), facility.Address(), config.Amount(a.LenderLiquidity))
	}

	venues := venue.NewRegistry()
	for _, v := range cfg.Venues {
		addr := common.HexToAddress(v.Address)
		token0 := common.HexToAddress(v.Token0)
		token1 := common.HexToAddress(v.Token1)
		book.Mint(token0, addr, config.Amount(v.Reserve0))
		book.Mint(token1, addr, config.Amount(v.Reserve1))
		venues.Register(venue.NewConstantProduct(addr, token0, token1, uint32(v.FeeBps), book))
	}

	// --- Configuration registry ---
	initial := &domain.Params{
		Owner:             owner,
		FeeBeneficiary:    beneficiary,
		MaxGasPriceWei:    config.GweiToWei(cfg.Limits.MaxGasPriceGwei),
		MinProfitBps:      uint32(cfg.Limits.MinProfitBps),
		MaxSlippageBps:    uint32(cfg.Limits.MaxSlippageBps),
		BeneficiaryFeeBps: uint32(cfg.Limits.BeneficiaryFeeBps),
		EstGasUnits:       uint64(cfg.Limits.EstGasUnits),
		Executors:         make(map[common.Address]bool),
		Assets:            make(map[common.Address]domain.AssetPolicy),
		TotalProfit:       new(big.Int),
		Stats:             make(map[common.Address]domain.AssetStats),
	}
	for _, e := range cfg.Wallet.Executors {
		initial.Executors[common.HexToAddress(e)] = true
	}
	for _, a := range cfg.Assets {
		initial.Assets[common.HexToAddress(a.Address)] = domain.AssetPolicy{
			Supported:    true,
			MaxTradeSize: config.Amount(a.MaxTradeSize),
		}
	}

	reg, err := registry.Load(ctx, paramsStore, emitter, logger)
	if errors.Is(err, domain.ErrNotFound) {
		reg, err = registry.New(ctx, initial, paramsStore, emitter, logger)
	}
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: registry: %w", err)
	}

	// --- Execution pipeline ---
	seq := sequencer.New(venues, selfAddr, logger)
	acct := settle.New(selfAddr, logger)
	orch := orchestrator.New(facility, seq, acct, selfAddr, logger)
	est := registry.NewEstimator(reg, facility)

	gw := gateway.New(reg, est, orch, book, tradeStore, emitter, oracle, selfAddr, logger,
		gateway.Options{DistributedLock: distLock})

	return &Dependencies{
		Owner:      owner,
		Book:       book,
		Registry:   reg,
		Gateway:    gw,
		Feed:       feed,
		TradeStore: tradeStore,
		Notifier:   notifier,
	}, cleanup, nil
}
