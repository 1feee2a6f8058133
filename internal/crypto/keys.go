// Package crypto implements the per-user RSA key material and the
// message encryption primitives. Each account gets one 2048-bit keypair
// at creation; messages are encrypted directly with RSA-OAEP per
// recipient, which caps a single plaintext at MaxPayload bytes. Kept
// for compatibility with existing clients rather than replaced with
// envelope encryption.
package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
)

const keyBits = 2048

// MaxPayload is the largest plaintext RSA-2048 with OAEP-SHA256 can
// carry: 256 - 2*32 - 2 bytes.
const MaxPayload = keyBits/8 - 2*sha256.Size - 2

// ErrPayloadTooLarge is returned by Encrypt for plaintexts beyond
// MaxPayload. Callers decide whether to fall back; Encrypt never
// truncates.
var ErrPayloadTooLarge = errors.New("crypto: plaintext exceeds RSA-OAEP payload limit")

// GenerateKeyPair creates a fresh RSA-2048 keypair and returns it as
// PEM: SPKI for the public key, PKCS#8 for the private key.
func GenerateKeyPair() (publicPEM, privatePEM string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return "", "", fmt.Errorf("generate rsa key: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("marshal public key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("marshal private key: %w", err)
	}

	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
	return publicPEM, privatePEM, nil
}

// ParsePublicKey decodes a PEM SPKI RSA public key.
func ParsePublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("crypto: no PEM block in public key")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("crypto: public key is not RSA")
	}
	return rsaPub, nil
}

// ParsePrivateKey decodes a PEM PKCS#8 RSA private key.
func ParsePrivateKey(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("crypto: no PEM block in private key")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("crypto: private key is not RSA")
	}
	return rsaKey, nil
}

// Encrypt encrypts plaintext with OAEP-SHA256 under the given PEM public
// key and returns base64. Plaintexts beyond MaxPayload fail with
// ErrPayloadTooLarge.
func Encrypt(plaintext, publicPEM string) (string, error) {
	if len(plaintext) > MaxPayload {
		return "", ErrPayloadTooLarge
	}
	pub, err := ParsePublicKey(publicPEM)
	if err != nil {
		return "", err
	}
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(plaintext), nil)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt reverses Encrypt using the PEM private key.
func Decrypt(ciphertextB64, privatePEM string) (string, error) {
	key, err := ParsePrivateKey(privatePEM)
	if err != nil {
		return "", err
	}
	ct, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	pt, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, key, ct, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(pt), nil
}
