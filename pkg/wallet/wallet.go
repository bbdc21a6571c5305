package wallet

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet is a trader identity: a secp256k1 key pair whose checksummed hex
// address serves as the opaque wallet key everywhere else in the system.
// The book, the ledger and the scheduler compare wallets by this string
// only; the private key never leaves this package's callers.
type Wallet struct {
	Address    string
	privateKey *ecdsa.PrivateKey
}

// Generate creates a new random wallet.
func Generate() (*Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return fromKey(key), nil
}

// FromPrivateKeyHex restores a wallet from a hex-encoded private key
// ("0x..." or bare 64 hex chars).
func FromPrivateKeyHex(hexKey string) (*Wallet, error) {
	if len(hexKey) > 1 && hexKey[0] == '0' && (hexKey[1] == 'x' || hexKey[1] == 'X') {
		hexKey = hexKey[2:]
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return fromKey(key), nil
}

func fromKey(key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		privateKey: key,
	}
}

// PrivateKeyHex exports the private key. Only the simulation's trader setup
// uses this; real custody is out of scope.
func (w *Wallet) PrivateKeyHex() string {
	if w.privateKey == nil {
		return ""
	}
	return fmt.Sprintf("%x", crypto.FromECDSA(w.privateKey))
}

// GenerateBatch creates n wallets for an agent swarm.
func GenerateBatch(n int) ([]*Wallet, error) {
	wallets := make([]*Wallet, 0, n)
	for i := 0; i < n; i++ {
		w, err := Generate()
		if err != nil {
			return nil, fmt.Errorf("wallet %d: %w", i, err)
		}
		wallets = append(wallets, w)
	}
	return wallets, nil
}
