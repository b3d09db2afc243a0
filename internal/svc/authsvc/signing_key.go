package authsvc

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// KeyType is the PEM block type for PKCS#1 RSA private keys.
	KeyType = "RSA PRIVATE KEY"
	// PKCS8KeyType is the PEM block type for PKCS#8 private keys.
	PKCS8KeyType = "PRIVATE KEY"
)

// DefaultKeySize is the default RSA key size in bits.
const DefaultKeySize = 2048

// ErrInvalidSigningKey is returned when the key file does not hold an RSA private key.
var ErrInvalidSigningKey = errors.New("invalid signing key")

// DecodePrivateKey reads a PEM-encoded RSA private key in PKCS#1 or PKCS#8 form.
func DecodePrivateKey(key io.Reader) (*rsa.PrivateKey, error) {
	buf, err := io.ReadAll(key)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}

	block, _ := pem.Decode(buf)
	if block == nil {
		return nil, fmt.Errorf("decode key: %w", ErrInvalidSigningKey)
	}

	switch block.Type {
	case KeyType:
		privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Join(ErrInvalidSigningKey, fmt.Errorf("parse pkcs1 key: %w", err))
		}

		return privateKey, nil
	case PKCS8KeyType:
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Join(ErrInvalidSigningKey, fmt.Errorf("parse pkcs8 key: %w", err))
		}

		privateKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("pkcs8 key is %T: %w", parsed, ErrInvalidSigningKey)
		}

		return privateKey, nil
	default:
		return nil, fmt.Errorf("pem block %q: %w", block.Type, ErrInvalidSigningKey)
	}
}

// GeneratePrivateKey creates a new RSA private key with the specified bit size.
func GeneratePrivateKey(bits int) (*rsa.PrivateKey, error) {
	signingKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	return signingKey, nil
}

// EncodePrivateKey encodes an RSA private key as a PKCS#1 PEM block.
func EncodePrivateKey(signingKey *rsa.PrivateKey) []byte {
	//nolint:exhaustruct
	return pem.EncodeToMemory(&pem.Block{
		Type:  KeyType,
		Bytes: x509.MarshalPKCS1PrivateKey(signingKey),
	})
}

// GetPrivateKey loads the RSA key at path, generating and saving a new one
// (mode 0600) if the file does not exist yet.
func GetPrivateKey(path string) (*rsa.PrivateKey, error) {
	keyFile, err := os.Open(path)
	if err == nil {
		defer keyFile.Close()

		signingKey, err := DecodePrivateKey(keyFile)
		if err != nil {
			return nil, fmt.Errorf("decode private key: %w", err)
		}

		return signingKey, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open key file: %w", err)
	}

	signingKey, err := GeneratePrivateKey(DefaultKeySize)
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}

	if err := os.WriteFile(path, EncodePrivateKey(signingKey), 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}

	return signingKey, nil
}
