package types

import "fmt"

// Network represents a supported chain.
type Network string

const (
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia" // testnet
)

// USDC contract addresses.
const (
	USDCBase        = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	USDCBaseSepolia = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
)

type networkInfo struct {
	chainID  int64
	usdc     string
	explorer string
}

var networks = map[Network]networkInfo{
	NetworkBase:        {chainID: 8453, usdc: USDCBase, explorer: "https://basescan.org"},
	NetworkBaseSepolia: {chainID: 84532, usdc: USDCBaseSepolia, explorer: "https://sepolia.basescan.org"},
}

// ParseNetwork validates a network name.
func ParseNetwork(name string) (Network, error) {
	n := Network(name)
	if !n.IsSupported() {
		return "", NewPaymentError(ErrUnsupportedNetwork, "unsupported network: %s", name)
	}
	return n, nil
}

func (n Network) IsSupported() bool {
	_, ok := networks[n]
	return ok
}

func (n Network) IsTestnet() bool {
	return n == NetworkBaseSepolia
}

// ChainID returns the EIP-155 chain id, or 0 for unknown networks.
func (n Network) ChainID() int64 {
	return networks[n].chainID
}

// USDCAddress returns the USDC contract on this network.
func (n Network) USDCAddress() string {
	return networks[n].usdc
}

// ExplorerTxURL links a transaction on the network's block explorer.
func (n Network) ExplorerTxURL(txHash string) string {
	info, ok := networks[n]
	if !ok || txHash == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", info.explorer, txHash)
}

func (n Network) String() string {
	return string(n)
}
