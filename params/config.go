package params

import (
	"math/big"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Fees holds the platform fee split rates in basis points (1/10000).
// Primary sales (first sale of an NFT) and secondary sales carry
// different rates.
type Fees struct {
	PrimaryBps   uint64
	SecondaryBps uint64
	Recipient    common.Address
}

// Mining holds the liquidity-mining reward curve parameters.
// Rewards are paid in the platform token to the buyer of a settled trade.
type Mining struct {
	Enabled           bool
	WhitelistedOnly   bool     // restrict rewards to whitelisted NFT contracts
	Epsilon           *big.Int // base reward per qualifying trade
	Alpha             *big.Int // price-proportional reward numerator
	Gamma             *big.Int // price-proportional reward denominator
	Omega             *big.Int // reward decay step per trade
	PriceThreshold    *big.Int // minimum payment amount to qualify
	MaxRewardPerTrade *big.Int
}

type Node struct {
	ListenAddr string
	DataDir    string
	RedisAddr  string // optional; empty means pebble-only
	LogFile    string
}

type Config struct {
	ChainID *big.Int
	Fees    Fees
	Mining  Mining
	Node    Node
}

// Default returns the devnet configuration. The fee rates match the
// marketplace deployment defaults: 30% primary, 10% secondary.
func Default() Config {
	return Config{
		ChainID: big.NewInt(1337),
		Fees: Fees{
			PrimaryBps:   3000,
			SecondaryBps: 1000,
		},
		Mining: Mining{
			Enabled:           true,
			WhitelistedOnly:   false,
			Epsilon:           mustBig("5000000000000000000"),    // 5 tokens
			Alpha:             mustBig("1000000000000000000"),    // 1 token
			Gamma:             mustBig("9999999999999"),          // 10^13 - 1
			Omega:             mustBig("100000"),
			PriceThreshold:    mustBig("1000"),                   // 1000 wei
			MaxRewardPerTrade: mustBig("1000000000000000000000"), // 1000 tokens
		},
		Node: Node{
			ListenAddr: ":8080",
			DataDir:    "data",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("CHAIN_ID"); v != "" {
		if id, ok := new(big.Int).SetString(v, 10); ok {
			cfg.ChainID = id
		}
	}
	if v := os.Getenv("FEE_PRIMARY_BPS"); v != "" {
		if bps, err := strconv.ParseUint(v, 10, 64); err == nil && bps <= 10000 {
			cfg.Fees.PrimaryBps = bps
		}
	}
	if v := os.Getenv("FEE_SECONDARY_BPS"); v != "" {
		if bps, err := strconv.ParseUint(v, 10, 64); err == nil && bps <= 10000 {
			cfg.Fees.SecondaryBps = bps
		}
	}
	if v := os.Getenv("FEE_RECIPIENT"); v != "" {
		cfg.Fees.Recipient = common.HexToAddress(v)
	}

	if v := os.Getenv("MINING_ENABLED"); v != "" {
		cfg.Mining.Enabled = v == "true"
	}
	if v := os.Getenv("MINING_WHITELISTED_ONLY"); v != "" {
		cfg.Mining.WhitelistedOnly = v == "true"
	}
	if v := os.Getenv("MINING_PRICE_THRESHOLD"); v != "" {
		if n, ok := new(big.Int).SetString(v, 10); ok {
			cfg.Mining.PriceThreshold = n
		}
	}
	if v := os.Getenv("MINING_MAX_REWARD"); v != "" {
		if n, ok := new(big.Int).SetString(v, 10); ok {
			cfg.Mining.MaxRewardPerTrade = n
		}
	}

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Node.ListenAddr = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Node.RedisAddr = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}

	return cfg
}

func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("params: bad big integer literal " + s)
	}
	return n
}
