package clients

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils"
)

const erc20BalanceABI = `[{
	"name":"balanceOf",
	"type":"function",
	"stateMutability":"view",
	"inputs":[{"name":"account","type":"address"}],
	"outputs":[{"name":"","type":"uint256"}]
}]`

var erc20ABI = mustParseABI(erc20BalanceABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// chainReader is the subset of ethclient.Client used here.
type chainReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// EVMClient reads balances and confirmations straight from an RPC node.
type EVMClient struct {
	network types.Network
	token   common.Address
	client  chainReader
}

// NewEVMClient dials rpcURL. token is the ERC-20 contract whose balance is read.
func NewEVMClient(network types.Network, rpcURL, token string) (*EVMClient, error) {
	if !common.IsHexAddress(token) {
		return nil, fmt.Errorf("invalid token address %q", token)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum RPC: %w", err)
	}

	return newEVMClient(network, token, client), nil
}

func newEVMClient(network types.Network, token string, reader chainReader) *EVMClient {
	return &EVMClient{
		network: network,
		token:   common.HexToAddress(token),
		client:  reader,
	}
}

// GetNetwork returns the network this client reads from.
func (e *EVMClient) GetNetwork() types.Network {
	return e.network
}

// BalanceOf implements BalanceSource with an eth_call to balanceOf.
func (e *EVMClient) BalanceOf(ctx context.Context, owner string) (*big.Int, error) {
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("invalid owner address %q", owner)
	}

	callData, err := erc20ABI.Pack("balanceOf", common.HexToAddress(owner))
	if err != nil {
		return nil, err
	}

	out, err := e.client.CallContract(ctx, ethereum.CallMsg{To: &e.token, Data: callData}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}

	values, err := erc20ABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode balanceOf: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected balanceOf output length %d", len(values))
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf output type %T", values[0])
	}
	return balance, nil
}

// TransactionStatus implements StatusSource from the transaction receipt.
// A pending transaction reports zero confirmations; a reverted one reports an error message.
func (e *EVMClient) TransactionStatus(ctx context.Context, txID string) (*types.TransactionStatus, error) {
	if err := utils.ValidateTransactionHash(txID); err != nil {
		return nil, err
	}
	receipt, err := e.client.TransactionReceipt(ctx, common.HexToHash(txID))
	if errors.Is(err, ethereum.NotFound) {
		return &types.TransactionStatus{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("receipt lookup failed: %w", err)
	}

	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return &types.TransactionStatus{Failed: true, ErrorMessage: "transaction reverted"}, nil
	}

	head, err := e.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("block number lookup failed: %w", err)
	}

	confirmations := 0
	if receipt.BlockNumber != nil && head >= receipt.BlockNumber.Uint64() {
		confirmations = int(head-receipt.BlockNumber.Uint64()) + 1
	}

	return &types.TransactionStatus{
		Confirmed:     confirmations > 0,
		Confirmations: confirmations,
	}, nil
}

// Close closes the RPC connection.
func (e *EVMClient) Close() {
	e.client.Close()
}
