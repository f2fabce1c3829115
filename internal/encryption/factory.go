package encryption

import (
	"fmt"
	"io"

	"bls-go/internal/bls"
	"bls-go/internal/config"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (bls.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return NoneEncryptor{}, nil
	case "age":
		if cfg.KeyPath == "" {
			return nil, fmt.Errorf("age encryption requires key_path to be set")
		}
		return NewAgeEncryptor(cfg), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}

// NoneEncryptor is the default: uploads go out as-is.
type NoneEncryptor struct{}

var _ bls.Encryptor = NoneEncryptor{}

func (NoneEncryptor) Enabled() bool { return false }

func (NoneEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, r)
	return err
}

func (NoneEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, r)
	return err
}
