package encryption

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"bls-go/internal/bls"
	"bls-go/internal/config"
)

// AgeEncryptor implements bls.Encryptor using filippo.io/age with X25519
// keys. A single identity file holds the private key; the recipient is
// derived from it, so one file is all that needs backing up. Book files
// are encrypted before upload and decrypted after download; covers and
// catalog records stay plaintext.
type AgeEncryptor struct {
	keyPath string
}

var _ bls.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates a new AgeEncryptor from configuration.
func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{keyPath: cfg.KeyPath}
}

func (e *AgeEncryptor) Enabled() bool { return true }

// Setup generates a new X25519 identity and writes it to the key file.
// It refuses to overwrite an existing key: losing the identity makes
// every uploaded book unreadable.
func (e *AgeEncryptor) Setup() error {
	if _, err := os.Stat(e.keyPath); err == nil {
		return fmt.Errorf("key file already exists: %s", e.keyPath)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(e.keyPath), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(e.keyPath, []byte(identity.String()+"\n"), 0600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

// Encrypt reads plaintext from r and writes age-encrypted ciphertext to w.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	identity, err := e.loadIdentity()
	if err != nil {
		return err
	}

	encWriter, err := age.Encrypt(w, identity.Recipient())
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}

	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}

	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Decrypt reads age-encrypted ciphertext from r and writes plaintext to w.
func (e *AgeEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	identity, err := e.loadIdentity()
	if err != nil {
		return err
	}

	decReader, err := age.Decrypt(r, identity)
	if err != nil {
		return fmt.Errorf("creating decrypted reader: %w", err)
	}

	if _, err := io.Copy(w, decReader); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	return nil
}

func (e *AgeEncryptor) loadIdentity() (*age.X25519Identity, error) {
	keyData, err := os.ReadFile(e.keyPath)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(keyData))
	if err != nil {
		return nil, fmt.Errorf("parsing key file: %w", err)
	}

	for _, id := range identities {
		if x, ok := id.(*age.X25519Identity); ok {
			return x, nil
		}
	}
	return nil, fmt.Errorf("no X25519 identity found in key file")
}
