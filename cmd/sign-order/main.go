package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/frontierx/nftmarket/params"
	"github.com/frontierx/nftmarket/pkg/crypto"
	"github.com/frontierx/nftmarket/pkg/ledger"
	"github.com/frontierx/nftmarket/pkg/market"
)

// signedOrder is the JSON shape accepted by POST /api/v1/trades (one
// side of the "one"/"two" pair plus its signature).
type signedOrder struct {
	Registry        string `json:"registry"`
	Maker           string `json:"maker"`
	StaticTarget    string `json:"staticTarget"`
	StaticKind      string `json:"staticKind"`
	StaticExtradata string `json:"staticExtradata"`
	MaximumFill     uint64 `json:"maximumFill"`
	ListingTime     uint64 `json:"listingTime"`
	ExpirationTime  uint64 `json:"expirationTime"`
	Salt            string `json:"salt"`
	Signature       string `json:"signature"`
}

func main() {
	cfg := params.Default()

	// Step 1: Generate or load key
	var signer *crypto.Signer
	var err error
	if hexKey := os.Getenv("PRIVATE_KEY"); hexKey != "" {
		signer, err = crypto.FromPrivateKeyHex(hexKey)
	} else {
		fmt.Println("Generating new keypair...")
		signer, err = crypto.GenerateKey()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Address: %s\n", crypto.ChecksumAddress(signer.Address()))
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	// Step 2: Build a sample sell order. The static params declare
	// which NFT is offered and the payment token and price expected
	// in return.
	asset := ledger.NewAddress("devnet:nft")
	paymentToken := ledger.NewAddress("devnet:erc20")
	tokenID := big.NewInt(1)
	price := new(big.Int).Mul(big.NewInt(99), big.NewInt(1e18))

	salt, err := crypto.RandomSalt()
	if err != nil {
		fmt.Printf("Error generating salt: %v\n", err)
		os.Exit(1)
	}

	order := &market.Order{
		Registry:        ledger.NewAddress("registry:devnet"),
		Maker:           signer.Address(),
		StaticTarget:    ledger.NewAddress("statics:devnet"),
		StaticKind:      market.AssetForToken,
		StaticExtradata: market.EncodeStaticParams(asset, paymentToken, tokenID, price),
		MaximumFill:     1,
		ListingTime:     0,
		ExpirationTime:  1<<63 - 1,
		Salt:            salt,
	}

	fmt.Println("Order Details:")
	fmt.Printf("  Kind: %s\n", order.StaticKind)
	fmt.Printf("  Asset: %s\n", asset.Hex())
	fmt.Printf("  Token ID: %s\n", tokenID.String())
	fmt.Printf("  Payment Token: %s\n", paymentToken.Hex())
	fmt.Printf("  Price: %s\n", price.String())
	fmt.Printf("  Maker: %s\n\n", order.Maker.Hex())

	// Step 3: Hash and sign as EIP-712 typed data
	domain := market.Domain{ChainID: cfg.ChainID}
	hash, err := market.HashOrder(domain, order)
	if err != nil {
		fmt.Printf("Error hashing: %v\n", err)
		os.Exit(1)
	}
	signature, err := signer.Sign(hash.Bytes())
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Order Hash: %s\n", hash.Hex())
	fmt.Printf("Signature: 0x%x\n\n", signature)

	// Step 4: Serialize to JSON
	out := signedOrder{
		Registry:        order.Registry.Hex(),
		Maker:           order.Maker.Hex(),
		StaticTarget:    order.StaticTarget.Hex(),
		StaticKind:      order.StaticKind.String(),
		StaticExtradata: hexutil.Encode(order.StaticExtradata),
		MaximumFill:     order.MaximumFill,
		ListingTime:     order.ListingTime,
		ExpirationTime:  order.ExpirationTime,
		Salt:            order.Salt.String(),
		Signature:       hexutil.Encode(signature),
	}
	orderJSON, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Signed Order (JSON):")
	fmt.Println(string(orderJSON))
	fmt.Println()

	// Step 5: Verify signature
	fmt.Println("Verifying signature...")
	recovered, err := crypto.RecoverAddress(hash.Bytes(), signature)
	if err != nil {
		fmt.Printf("Error verifying: %v\n", err)
		os.Exit(1)
	}
	if recovered != order.Maker {
		fmt.Println("✗ Signature INVALID")
		os.Exit(1)
	}
	fmt.Println("✓ Signature VALID")
	fmt.Printf("  Signer: %s\n\n", recovered.Hex())

	// Step 6: Show how to submit
	fmt.Println("Pair this with a matching counter-order and submit:")
	fmt.Println("  POST http://localhost:8080/api/v1/trades")
	fmt.Println("  Content-Type: application/json")
}
