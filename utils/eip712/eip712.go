// Package eip712 builds and signs EIP-712 digests for EIP-3009
// transferWithAuthorization, the authorization USDC accepts for x402 payments.
package eip712

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vitwit/x402pay/types"
)

// Domain is the EIP-712 domain of the token contract.
type Domain struct {
	Name              string // "USD Coin" on Base mainnet, "USDC" on Base Sepolia
	Version           string // "2"
	ChainID           *big.Int
	VerifyingContract common.Address
}

var (
	transferAuthTypeHash = crypto.Keccak256Hash([]byte("TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)"))

	// EIP712Domain type string - note ordering matters
	domainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
)

func padLeft32(i *big.Int) []byte {
	return common.LeftPadBytes(i.Bytes(), 32)
}

func addressTo32(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}

func stringToBig(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal integer string %q", s)
	}
	return n, nil
}

// HexToBytes32 converts hex (with/without 0x) to a 32-byte array.
func HexToBytes32(hexStr string) ([32]byte, error) {
	var out [32]byte
	b, err := hexutil.Decode(hexStr)
	if err != nil {
		b, err = hexutil.Decode("0x" + hexStr)
		if err != nil {
			return out, err
		}
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// DomainSeparator builds the domainSeparator hash per EIP-712.
func DomainSeparator(d Domain) (common.Hash, error) {
	if d.Name == "" || d.Version == "" || d.ChainID == nil || d.VerifyingContract == (common.Address{}) {
		return common.Hash{}, errors.New("incomplete domain")
	}

	return crypto.Keccak256Hash(
		domainTypeHash.Bytes(),
		crypto.Keccak256([]byte(d.Name)),
		crypto.Keccak256([]byte(d.Version)),
		padLeft32(d.ChainID),
		addressTo32(d.VerifyingContract),
	), nil
}

// HashTransferWithAuthorization computes the EIP-3009 struct hash.
func HashTransferWithAuthorization(auth types.EIP3009Authorization) (common.Hash, error) {
	value, err := stringToBig(auth.Value)
	if err != nil {
		return common.Hash{}, fmt.Errorf("value: %w", err)
	}
	validAfter, err := stringToBig(auth.ValidAfter)
	if err != nil {
		return common.Hash{}, fmt.Errorf("validAfter: %w", err)
	}
	validBefore, err := stringToBig(auth.ValidBefore)
	if err != nil {
		return common.Hash{}, fmt.Errorf("validBefore: %w", err)
	}
	nonce, err := HexToBytes32(auth.Nonce)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}

	return crypto.Keccak256Hash(
		transferAuthTypeHash.Bytes(),
		addressTo32(common.HexToAddress(auth.From)),
		addressTo32(common.HexToAddress(auth.To)),
		padLeft32(value),
		padLeft32(validAfter),
		padLeft32(validBefore),
		nonce[:],
	), nil
}

// Digest returns keccak256("\x19\x01" || domainSeparator || structHash).
func Digest(domain Domain, auth types.EIP3009Authorization) (common.Hash, error) {
	domainSep, err := DomainSeparator(domain)
	if err != nil {
		return common.Hash{}, err
	}
	structHash, err := HashTransferWithAuthorization(auth)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domainSep.Bytes(), structHash.Bytes()), nil
}

// Sign signs the authorization and returns a 0x-prefixed signature with V in 27/28.
func Sign(domain Domain, auth types.EIP3009Authorization, key *ecdsa.PrivateKey) (string, error) {
	digest, err := Digest(domain, auth)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return "", fmt.Errorf("sign failed: %w", err)
	}
	sig[64] += 27

	return hexutil.Encode(sig), nil
}

// RecoverSigner recovers the address that signed the authorization.
// V may be 0/1 or 27/28.
func RecoverSigner(domain Domain, auth types.EIP3009Authorization, sigHex string) (common.Address, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("bad signature hex: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, errors.New("signature must be 65 bytes")
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	digest, err := Digest(domain, auth)
	if err != nil {
		return common.Address{}, err
	}

	pubKey, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("sig to pub failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
