// Package chain reads the health of the Base network over JSON-RPC: latest
// block number and suggested gas price. It is a read-only status surface;
// nothing here signs or submits transactions.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"

	appconfig "cryptotrader/config"
	"cryptotrader/logger"
)

// rpcClient is the slice of *ethclient.Client the reader uses.
type rpcClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Status is one point-in-time observation of the network.
type Status struct {
	ChainID     int64  `json:"chainId"`
	BlockNumber uint64 `json:"blockNumber"`
	GasPriceWei string `json:"gasPriceWei"`
}

// StatusReader answers network status queries against a single RPC endpoint.
type StatusReader struct {
	client      rpcClient
	wantChainID int64
	log         *logger.Log
}

// NewStatusReader dials the configured RPC endpoint. Dialing an HTTP
// endpoint does not touch the network, so a dead endpoint surfaces on the
// first Status call, not here.
func NewStatusReader(cfg appconfig.ChainConfig) (*StatusReader, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain rpc %s: %w", cfg.RPCURL, err)
	}
	return &StatusReader{
		client:      client,
		wantChainID: cfg.ChainID,
		log:         logger.GetLogger(),
	}, nil
}

// Status reads the chain ID, latest block and suggested gas price. A chain
// ID mismatch is an error: it means the endpoint is not the configured
// network.
func (r *StatusReader) Status(ctx context.Context) (*Status, error) {
	id, err := r.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}
	if r.wantChainID != 0 && id.Int64() != r.wantChainID {
		return nil, fmt.Errorf("rpc endpoint is chain %d, expected %d", id.Int64(), r.wantChainID)
	}

	block, err := r.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest block: %w", err)
	}
	gas, err := r.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read gas price: %w", err)
	}

	s := &Status{ChainID: id.Int64(), BlockNumber: block, GasPriceWei: gas.String()}
	r.log.WithComponent("chain").WithFields(logger.Fields{
		"chain_id": s.ChainID,
		"block":    s.BlockNumber,
		"gas_wei":  s.GasPriceWei,
	}).Debug("chain status read")
	return s, nil
}
