package clients

import (
	"context"
	"errors"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/x402pay/types"
)

type fakeChain struct {
	balance *big.Int
	receipt *gethtypes.Receipt
	head    uint64
	err     error

	lastCall ethereum.CallMsg
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.lastCall = msg
	if f.err != nil {
		return nil, f.err
	}
	return erc20ABI.Methods["balanceOf"].Outputs.Pack(f.balance)
}

func (f *fakeChain) TransactionReceipt(context.Context, common.Hash) (*gethtypes.Receipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeChain) Close() {}

const (
	owner  = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	txHash = "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"
)

func TestEVMClientBalanceOf(t *testing.T) {
	chain := &fakeChain{balance: big.NewInt(19_000_000)}
	c := newEVMClient(types.NetworkBase, types.USDCBase, chain)

	bal, err := c.BalanceOf(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, int64(19_000_000), bal.Int64())
	require.NotNil(t, chain.lastCall.To)
	assert.Equal(t, common.HexToAddress(types.USDCBase), *chain.lastCall.To)
	assert.Len(t, chain.lastCall.Data, 4+32)
}

func TestEVMClientBalanceOfRejectsBadAddress(t *testing.T) {
	c := newEVMClient(types.NetworkBase, types.USDCBase, &fakeChain{})
	_, err := c.BalanceOf(context.Background(), "0xR")
	require.Error(t, err)
}

func TestEVMClientBalanceOfCallError(t *testing.T) {
	c := newEVMClient(types.NetworkBase, types.USDCBase, &fakeChain{err: errors.New("rpc down")})
	_, err := c.BalanceOf(context.Background(), owner)
	require.ErrorContains(t, err, "rpc down")
}

func TestEVMClientTransactionStatus(t *testing.T) {
	tests := []struct {
		name          string
		receipt       *gethtypes.Receipt
		head          uint64
		confirmed     bool
		confirmations int
		failed        bool
		errMsg        string
	}{
		{
			name: "pending",
		},
		{
			name:          "mined",
			receipt:       &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100)},
			head:          102,
			confirmed:     true,
			confirmations: 3,
		},
		{
			name:    "reverted",
			receipt: &gethtypes.Receipt{Status: gethtypes.ReceiptStatusFailed, BlockNumber: big.NewInt(100)},
			head:    105,
			failed:  true,
			errMsg:  "transaction reverted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newEVMClient(types.NetworkBaseSepolia, types.USDCBaseSepolia, &fakeChain{receipt: tt.receipt, head: tt.head})
			status, err := c.TransactionStatus(context.Background(), txHash)
			require.NoError(t, err)
			assert.Equal(t, tt.confirmed, status.Confirmed)
			assert.Equal(t, tt.confirmations, status.Confirmations)
			assert.Equal(t, tt.failed, status.Failed)
			assert.Equal(t, tt.errMsg, status.ErrorMessage)
		})
	}
}

func TestEVMClientTransactionStatusRejectsBadHash(t *testing.T) {
	chain := &fakeChain{}
	c := newEVMClient(types.NetworkBase, types.USDCBase, chain)
	_, err := c.TransactionStatus(context.Background(), "0x01")
	require.ErrorContains(t, err, "64 hex characters")
}

func TestNewEVMClientRejectsBadToken(t *testing.T) {
	_, err := NewEVMClient(types.NetworkBase, "http://127.0.0.1:0", "usdc")
	require.Error(t, err)
}
