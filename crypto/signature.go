package crypto

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// CallDigest derives the 32-byte digest a caller signs to authorize a single
// marketplace operation. The digest binds the method name to the exact encoded
// parameters so a signature cannot be replayed against a different call shape.
func CallDigest(method string, params []byte) [32]byte {
	var digest [32]byte
	copy(digest[:], crypto.Keccak256([]byte(method), params))
	return digest
}

// SignDigest produces a 65-byte [R || S || V] signature over the digest.
func SignDigest(key *PrivateKey, digest [32]byte) ([]byte, error) {
	if key == nil || key.PrivateKey == nil {
		return nil, fmt.Errorf("crypto: nil signing key")
	}
	return crypto.Sign(digest[:], key.PrivateKey)
}

// RecoverSigner returns the address that produced the signature over digest.
func RecoverSigner(digest [32]byte, sig []byte) (Address, error) {
	if len(sig) != 65 {
		return Address{}, fmt.Errorf("crypto: signature must be 65 bytes, got %d", len(sig))
	}
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: recover signer: %w", err)
	}
	return MustNewAddress(NFTPrefix, crypto.PubkeyToAddress(*pub).Bytes()), nil
}
