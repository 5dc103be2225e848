// Package cipher decrypts and encrypts push payloads with AES-GCM.
//
// A sealed payload is base64(nonce | ciphertext | tag) with a 12 byte nonce and
// a 16 byte tag. The key is used as raw UTF-8 bytes and its length selects
// AES-128, AES-192 or AES-256.
package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"beacon/internal/config"
	"beacon/pkg/errors"
)

type Algorithm string

const (
	AES128 Algorithm = "AES128"
	AES192 Algorithm = "AES192"
	AES256 Algorithm = "AES256"
)

func (a Algorithm) KeyLength() int {
	switch a {
	case AES128:
		return 16
	case AES192:
		return 24
	case AES256:
		return 32
	default:
		return 0
	}
}

const (
	ModeGCM   = "GCM"
	nonceSize = 12
	tagSize   = 16
)

type Config struct {
	Algorithm Algorithm
	Mode      string
	Key       string
}

func (c Config) Validate() error {
	want := c.Algorithm.KeyLength()
	if want == 0 {
		return errors.ErrValidation.WithMessage(fmt.Sprintf("unsupported cipher algorithm %q", c.Algorithm))
	}
	if c.Mode != "" && !strings.EqualFold(c.Mode, ModeGCM) {
		return errors.ErrValidation.WithMessage(fmt.Sprintf("unsupported cipher mode %q", c.Mode))
	}
	if len(c.Key) != want {
		return errors.ErrValidation.WithMessage(fmt.Sprintf("%s requires a %d byte key, got %d", c.Algorithm, want, len(c.Key)))
	}
	return nil
}

func (c Config) aead() (stdcipher.AEAD, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher([]byte(c.Key))
	if err != nil {
		return nil, fmt.Errorf("create block cipher: %w", err)
	}
	return stdcipher.NewGCMWithNonceSize(block, nonceSize)
}

// Decrypt opens a base64 sealed payload.
func Decrypt(cfg Config, sealed string) ([]byte, error) {
	aead, err := cfg.aead()
	if err != nil {
		return nil, errors.ErrDecryption.WithCause(err)
	}

	raw, err := decodeBase64(strings.TrimSpace(sealed))
	if err != nil {
		return nil, errors.ErrDecryption.WithCause(err)
	}
	if len(raw) < nonceSize+tagSize {
		return nil, errors.ErrDecryption.WithMessage(fmt.Sprintf("sealed payload too short: %d bytes", len(raw)))
	}

	plain, err := aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return nil, errors.ErrDecryption.WithCause(err)
	}
	return plain, nil
}

// Encrypt seals plaintext with a random nonce.
func Encrypt(cfg Config, plaintext []byte) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	return EncryptWithNonce(cfg, plaintext, nonce)
}

func EncryptWithNonce(cfg Config, plaintext, nonce []byte) (string, error) {
	if len(nonce) != nonceSize {
		return "", errors.ErrValidation.WithMessage(fmt.Sprintf("nonce must be %d bytes", nonceSize))
	}
	aead, err := cfg.aead()
	if err != nil {
		return "", err
	}
	out := make([]byte, 0, nonceSize+len(plaintext)+tagSize)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func decodeBase64(s string) ([]byte, error) {
	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("decode base64: %w", firstErr)
}

// Gateway selects a configuration by index and runs the cipher with it.
type Gateway struct {
	configs []Config
}

func NewGateway(configs []Config) *Gateway {
	return &Gateway{configs: append([]Config(nil), configs...)}
}

func FromSettings(cfg config.CipherConfig) *Gateway {
	configs := make([]Config, 0, len(cfg.Configs))
	for _, entry := range cfg.Configs {
		configs = append(configs, Config{
			Algorithm: Algorithm(strings.ToUpper(entry.Algorithm)),
			Mode:      entry.Mode,
			Key:       entry.Key,
		})
	}
	return NewGateway(configs)
}

// Select returns the configuration at index, or the first one when index is out of range.
func (g *Gateway) Select(index int) (Config, error) {
	if len(g.configs) == 0 {
		return Config{}, errors.ErrDecryption.WithMessage("no cipher configuration available")
	}
	if index < 0 || index >= len(g.configs) {
		return g.configs[0], nil
	}
	return g.configs[index], nil
}

func (g *Gateway) Decrypt(index int, sealed string) ([]byte, error) {
	cfg, err := g.Select(index)
	if err != nil {
		return nil, err
	}
	return Decrypt(cfg, sealed)
}

func (g *Gateway) Encrypt(index int, plaintext []byte) (string, error) {
	cfg, err := g.Select(index)
	if err != nil {
		return "", err
	}
	return Encrypt(cfg, plaintext)
}

func (g *Gateway) Len() int {
	return len(g.configs)
}
