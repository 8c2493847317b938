package types

import (
	"encoding/base64"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/ghostnetwork/ghost-node/internal/config"
)

// KeyPair is a node or wallet identity on the secp256k1 curve. Addresses
// embed the full compressed public key so verification needs no lookup
// beyond the address itself.
type KeyPair struct {
	priv *btcec.PrivateKey
}

func NewKeyPair() (*KeyPair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

func KeyPairFromBytes(raw []byte) *KeyPair {
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return &KeyPair{priv: priv}
}

func (kp *KeyPair) Bytes() []byte {
	return kp.priv.Serialize()
}

// Address encodes the compressed public key under the configured address
// version prefix, base58check.
func (kp *KeyPair) Address() string {
	return AddressFromPubKey(kp.priv.PubKey())
}

func AddressFromPubKey(pub *btcec.PublicKey) string {
	return base58.CheckEncode(pub.SerializeCompressed(), config.AppConfig.AddressVersion)
}

// PubKeyFromAddress recovers the public key embedded in an address.
func PubKeyFromAddress(addr string) (*btcec.PublicKey, error) {
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return nil, fmt.Errorf("malformed address %q: %w", addr, err)
	}
	if version != config.AppConfig.AddressVersion {
		return nil, fmt.Errorf("address version %d does not match configured %d", version, config.AppConfig.AddressVersion)
	}
	pub, err := btcec.ParsePubKey(payload)
	if err != nil {
		return nil, fmt.Errorf("address %q does not carry a valid public key: %w", addr, err)
	}
	return pub, nil
}

// Sign produces a base64 DER signature over the hex digest string.
func (kp *KeyPair) Sign(digest string) string {
	sig := ecdsa.Sign(kp.priv, []byte(digest))
	return base64.StdEncoding.EncodeToString(sig.Serialize())
}

// VerifySignature checks sig against the public key recovered from addr.
func VerifySignature(addr, sig, digest string) bool {
	pub, err := PubKeyFromAddress(addr)
	if err != nil {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	parsed, err := ecdsa.ParseDERSignature(raw)
	if err != nil {
		return false
	}
	return parsed.Verify([]byte(digest), pub)
}
