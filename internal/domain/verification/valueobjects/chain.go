package valueobjects

import (
	"fmt"
	"regexp"
)

// Chain represents the blockchain a manual payment claims to have been sent on.
type Chain string

const (
	// ChainEthereum represents Ethereum mainnet
	ChainEthereum Chain = "ethereum"
	// ChainBSC represents BNB Smart Chain
	ChainBSC Chain = "bsc"
	// ChainPolygon represents the Polygon (Matic) blockchain
	ChainPolygon Chain = "polygon"
	// ChainTron represents the Tron blockchain
	ChainTron Chain = "tron"
)

// AllChains lists every supported chain, in a stable order.
func AllChains() []Chain {
	return []Chain{ChainEthereum, ChainBSC, ChainPolygon, ChainTron}
}

// NewChain creates a new Chain from string, validating at the boundary.
func NewChain(chain string) (Chain, error) {
	c := Chain(chain)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid chain: %s", chain)
	}
	return c, nil
}

// IsValid checks if the chain is supported
func (c Chain) IsValid() bool {
	switch c {
	case ChainEthereum, ChainBSC, ChainPolygon, ChainTron:
		return true
	default:
		return false
	}
}

// String returns the string representation of the chain
func (c Chain) String() string {
	return string(c)
}

// IsEVM reports whether the chain is EVM-compatible and thus served by the
// unified Etherscan V2 API.
func (c Chain) IsEVM() bool {
	switch c {
	case ChainEthereum, ChainBSC, ChainPolygon:
		return true
	default:
		return false
	}
}

// EtherscanChainID returns the chain ID parameter for the Etherscan V2 API.
// Empty for non-EVM chains.
func (c Chain) EtherscanChainID() string {
	switch c {
	case ChainEthereum:
		return "1"
	case ChainBSC:
		return "56"
	case ChainPolygon:
		return "137"
	default:
		return ""
	}
}

// DefaultMinConfirmations returns the confirmation depth required for a
// transaction to be considered final on this chain, absent a config override.
func (c Chain) DefaultMinConfirmations() int {
	switch c {
	case ChainEthereum:
		return 12
	case ChainBSC:
		return 15
	case ChainPolygon:
		return 12
	case ChainTron:
		return 19
	default:
		return 0
	}
}

// Address and transaction hash format patterns
var (
	// EVM address: 0x followed by 40 hex characters
	evmAddressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	// EVM transaction hash: 0x followed by 64 hex characters
	evmTxHashPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)
	// Tron address: T followed by 33 base58 characters (Base58Check encoding)
	tronAddressPattern = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)
	// Tron transaction ID: 64 hex characters, no 0x prefix
	tronTxHashPattern = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)
)

// ValidateAddress validates a wallet address for this chain.
func (c Chain) ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	switch c {
	case ChainEthereum, ChainBSC, ChainPolygon:
		if !evmAddressPattern.MatchString(address) {
			return fmt.Errorf("invalid %s address format: must be 0x followed by 40 hex characters", c)
		}
		return nil
	case ChainTron:
		if !tronAddressPattern.MatchString(address) {
			return fmt.Errorf("invalid Tron address format: must start with T followed by 33 base58 characters")
		}
		return nil
	default:
		return fmt.Errorf("cannot validate address for unknown chain: %s", c)
	}
}

// IsValidAddress returns true if the address is valid for this chain.
func (c Chain) IsValidAddress(address string) bool {
	return c.ValidateAddress(address) == nil
}

// ValidateTxHash validates a transaction hash for this chain.
func (c Chain) ValidateTxHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("transaction hash cannot be empty")
	}

	switch c {
	case ChainEthereum, ChainBSC, ChainPolygon:
		if !evmTxHashPattern.MatchString(hash) {
			return fmt.Errorf("invalid %s transaction hash: must be 0x followed by 64 hex characters", c)
		}
		return nil
	case ChainTron:
		if !tronTxHashPattern.MatchString(hash) {
			return fmt.Errorf("invalid Tron transaction hash: must be 64 hex characters")
		}
		return nil
	default:
		return fmt.Errorf("cannot validate transaction hash for unknown chain: %s", c)
	}
}

// IsValidTxHash returns true if the hash matches the chain's expected format.
func (c Chain) IsValidTxHash(hash string) bool {
	return c.ValidateTxHash(hash) == nil
}
