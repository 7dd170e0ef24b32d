package api

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/frontierx/nftmarket/pkg/market"
)

// ==============================
// REST Request Types
// ==============================

// OrderJSON is the wire form of a signed order. Addresses and byte
// fields are hex strings, big integers are decimal strings.
type OrderJSON struct {
	Registry        string `json:"registry"`
	Maker           string `json:"maker"`
	StaticTarget    string `json:"staticTarget"`
	StaticKind      string `json:"staticKind"` // e.g. "AssetForToken"
	StaticExtradata string `json:"staticExtradata"`
	MaximumFill     uint64 `json:"maximumFill"`
	ListingTime     uint64 `json:"listingTime"`
	ExpirationTime  uint64 `json:"expirationTime"`
	Salt            string `json:"salt"`
}

// CallJSON is the wire form of one settlement leg.
type CallJSON struct {
	Target    string `json:"target"`
	HowToCall uint8  `json:"howToCall"`
	Data      string `json:"data"`
}

// TradeRequest submits two matched orders for atomic settlement.
type TradeRequest struct {
	Caller   string    `json:"caller"`
	One      OrderJSON `json:"one"`
	SigOne   string    `json:"sigOne"`
	CallOne  CallJSON  `json:"callOne"`
	Two      OrderJSON `json:"two"`
	SigTwo   string    `json:"sigTwo"`
	CallTwo  CallJSON  `json:"callTwo"`
	Value    string    `json:"value"`    // native currency attached, decimal string
	Metadata string    `json:"metadata"` // optional 32-byte hex
}

// ApproveRequest marks an order as approved without a signature. The
// caller must be the order's maker.
type ApproveRequest struct {
	Caller string    `json:"caller"`
	Order  OrderJSON `json:"order"`
}

// ==============================
// REST Response Types
// ==============================

// FillResponse reports the consumed fill level of an order hash.
type FillResponse struct {
	Hash string `json:"hash"`
	Fill uint64 `json:"fill"`
}

// ApproveResponse returns the hash of a newly approved order.
type ApproveResponse struct {
	Hash string `json:"hash"`
}

// HealthResponse for health check endpoint
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Types
// ==============================

// WSSubscribeRequest from client to subscribe/unsubscribe channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// WSMessage wraps a broadcast payload with its channel name.
type WSMessage struct {
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
}

// ==============================
// Decoding helpers
// ==============================

func parseAddress(s, field string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

func parseBig(s, field string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid integer %q", field, s)
	}
	return v, nil
}

func parseBytes(s, field string) ([]byte, error) {
	if s == "" || s == "0x" {
		return nil, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return b, nil
}

// ToOrder decodes the wire order into its engine form.
func (o OrderJSON) ToOrder() (*market.Order, error) {
	registry, err := parseAddress(o.Registry, "registry")
	if err != nil {
		return nil, err
	}
	maker, err := parseAddress(o.Maker, "maker")
	if err != nil {
		return nil, err
	}
	target, err := parseAddress(o.StaticTarget, "staticTarget")
	if err != nil {
		return nil, err
	}
	kind := market.ParseStaticKind(o.StaticKind)
	extradata, err := parseBytes(o.StaticExtradata, "staticExtradata")
	if err != nil {
		return nil, err
	}
	salt, err := parseBig(o.Salt, "salt")
	if err != nil {
		return nil, err
	}
	return &market.Order{
		Registry:        registry,
		Maker:           maker,
		StaticTarget:    target,
		StaticKind:      kind,
		StaticExtradata: extradata,
		MaximumFill:     o.MaximumFill,
		ListingTime:     o.ListingTime,
		ExpirationTime:  o.ExpirationTime,
		Salt:            salt,
	}, nil
}

// ToCall decodes the wire call into its engine form.
func (c CallJSON) ToCall() (market.Call, error) {
	var target common.Address
	if c.Target != "" {
		var err error
		target, err = parseAddress(c.Target, "target")
		if err != nil {
			return market.Call{}, err
		}
	}
	data, err := parseBytes(c.Data, "data")
	if err != nil {
		return market.Call{}, err
	}
	return market.Call{
		Target:    target,
		HowToCall: market.HowToCall(c.HowToCall),
		Data:      data,
	}, nil
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
