package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/frontierx/nftmarket/params"
	"github.com/frontierx/nftmarket/pkg/api"
	"github.com/frontierx/nftmarket/pkg/ledger"
	"github.com/frontierx/nftmarket/pkg/market"
	"github.com/frontierx/nftmarket/pkg/registry"
	"github.com/frontierx/nftmarket/pkg/storage"
	"github.com/frontierx/nftmarket/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logFile := cfg.Node.LogFile
	if logFile == "" {
		logFile = filepath.Join(cfg.Node.DataDir, "marketd.log")
	}
	os.MkdirAll(cfg.Node.DataDir, 0755)

	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	// ---- Persistence ----
	// Trades are always kept in pebble. Fill levels and approvals can
	// optionally live in redis so several gateway processes share them.
	pebbleStore, err := storage.NewPebbleStore(filepath.Join(cfg.Node.DataDir, "market"))
	if err != nil {
		sugar.Fatalw("pebble_open_failed", "err", err)
	}
	defer pebbleStore.Close()

	var fills market.FillStore = pebbleStore
	var approvals market.ApprovalStore = pebbleStore
	if cfg.Node.RedisAddr != "" {
		redisStore, err := storage.NewRedisStore(cfg.Node.RedisAddr)
		if err != nil {
			sugar.Fatalw("redis_connect_failed", "addr", cfg.Node.RedisAddr, "err", err)
		}
		defer redisStore.Close()
		fills = redisStore
		approvals = redisStore
		sugar.Infow("redis_store_enabled", "addr", cfg.Node.RedisAddr)
	}

	// ---- Ledgers (devnet genesis) ----
	bus := ledger.NewBus()
	native := ledger.NewNative()

	platformToken := ledger.NewERC20("devnet:platform-token")
	paymentToken := ledger.NewERC20("devnet:erc20")
	nft := ledger.NewERC721("devnet:nft")
	bus.Register(platformToken)
	bus.Register(paymentToken)
	bus.Register(nft)

	warehouse := market.NewDataWarehouse()
	warehouse.WhitelistPaymentToken(paymentToken.Address(), true)
	warehouse.WhitelistNFT(nft.Address(), true)

	// Optional devnet account: minted NFTs and payment balance for
	// manual testing against the REST API.
	if v := os.Getenv("DEVNET_ACCOUNT"); v != "" {
		addr := ledger.NewAddress("devnet:" + v)
		oneM := new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1e18))
		paymentToken.Mint(addr, oneM)
		native.Mint(addr, oneM)
		for id := int64(1); id <= 10; id++ {
			nft.Mint(addr, big.NewInt(id))
		}
		sugar.Infow("devnet_account_funded", "address", addr.Hex())
	}

	// ---- Settlement engine ----
	if cfg.Fees.Recipient == (common.Address{}) {
		cfg.Fees.Recipient = ledger.NewAddress("devnet:platform")
	}
	engine := market.NewEngine(market.EngineConfig{
		Log:       logger,
		ChainID:   cfg.ChainID,
		Fees:      cfg.Fees,
		Bus:       bus,
		Native:    native,
		Warehouse: warehouse,
		Fills:     fills,
		Approvals: approvals,
		Trades:    pebbleStore,
		Hook:      market.NewRewardPolicy(cfg.Mining, platformToken, warehouse),
	})

	statics := market.NewCheckRegistry("statics:devnet")
	engine.RegisterStatic(statics)

	reg := registry.New("devnet", bus)
	reg.GrantAuthentication(engine.Address())
	engine.RegisterRegistry(reg)

	sugar.Infow("engine_ready",
		"chain_id", cfg.ChainID.String(),
		"registry", reg.Address().Hex(),
		"statics", statics.Address().Hex(),
		"fee_primary_bps", cfg.Fees.PrimaryBps,
		"fee_secondary_bps", cfg.Fees.SecondaryBps,
		"mining_enabled", cfg.Mining.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API Server ----
	apiServer := api.NewServer(engine, logger)
	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.Node.ListenAddr)
		if err := apiServer.Start(cfg.Node.ListenAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")
}
