package crypto

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// Envelope is the wire format for cross-instance exchange. The payload is
// AES-GCM encrypted and signed with the receiving partner's shared secret,
// so a peer can both read the body and attribute it to the sender.
type Envelope struct {
	SenderID  string `json:"senderId"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// Sealer seals and opens envelopes for one instance. Both the AES key and
// the HMAC key are derived from the pairwise partner secret, so the two
// ends of a partnership interoperate with that one shared credential and
// a third instance cannot read their envelopes.
type Sealer struct {
	instanceID string
}

func NewSealer(instanceID string) *Sealer {
	return &Sealer{instanceID: instanceID}
}

// encryptorFor derives the AES-256 key for one partnership from the
// shared secret.
func encryptorFor(secret string) (*Encryptor, error) {
	key := sha256.Sum256([]byte(secret))
	return NewEncryptor(key[:])
}

// Seal marshals v, encrypts it, and signs the ciphertext with secret.
func (s *Sealer) Seal(v any, secret string) (*Envelope, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("seal: marshal payload: %w", err)
	}

	enc, err := encryptorFor(secret)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	ciphertext, err := enc.Encrypt(string(body))
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}

	return &Envelope{
		SenderID:  s.instanceID,
		Payload:   ciphertext,
		Signature: Sign([]byte(ciphertext), secret),
	}, nil
}

// Open verifies the envelope signature, decrypts the payload, and unmarshals
// it into v. A bad signature fails before any decryption is attempted.
func (s *Sealer) Open(env *Envelope, secret string, v any) error {
	if !VerifySignature([]byte(env.Payload), env.Signature, secret) {
		return fmt.Errorf("open: signature verification failed for sender %s", env.SenderID)
	}

	enc, err := encryptorFor(secret)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	body, err := enc.Decrypt(env.Payload)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("open: unmarshal payload: %w", err)
	}
	return nil
}
