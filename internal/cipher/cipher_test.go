package cipher

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/pkg/errors"
)

var (
	key128 = Config{Algorithm: AES128, Mode: ModeGCM, Key: "0123456789abcdef"}
	key256 = Config{Algorithm: AES256, Mode: ModeGCM, Key: "0123456789abcdef0123456789abcdef"}
)

func TestRoundTrip(t *testing.T) {
	for _, cfg := range []Config{key128, key256} {
		t.Run(string(cfg.Algorithm), func(t *testing.T) {
			plain := []byte(`{"title":"Deploy finished","body":"build 512 is live"}`)

			sealed, err := Encrypt(cfg, plain)
			require.NoError(t, err)

			got, err := Decrypt(cfg, sealed)
			require.NoError(t, err)
			assert.Equal(t, plain, got)
		})
	}
}

func TestDecryptKnownLayout(t *testing.T) {
	nonce := []byte("fixednonce12")
	sealed, err := EncryptWithNonce(key128, []byte("hello"), nonce)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	assert.Equal(t, nonce, raw[:12])
	assert.Len(t, raw, 12+5+16)
}

func TestDecryptFailures(t *testing.T) {
	sealed, err := Encrypt(key128, []byte("payload"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		cfg    Config
		sealed string
	}{
		{"wrong key", Config{Algorithm: AES128, Key: "fedcba9876543210"}, sealed},
		{"not base64", key128, "%%%not-base64%%%"},
		{"too short", key128, base64.StdEncoding.EncodeToString([]byte("short"))},
		{"bad key length", Config{Algorithm: AES256, Key: "short"}, sealed},
		{"unknown algorithm", Config{Algorithm: "DES", Key: "12345678"}, sealed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.cfg, tt.sealed)
			require.Error(t, err)
			assert.True(t, errors.IsDecryption(err))
		})
	}
}

func TestGatewaySelect(t *testing.T) {
	g := NewGateway([]Config{key128, key256})

	cfg, err := g.Select(1)
	require.NoError(t, err)
	assert.Equal(t, AES256, cfg.Algorithm)

	cfg, err = g.Select(7)
	require.NoError(t, err)
	assert.Equal(t, AES128, cfg.Algorithm)

	_, err = NewGateway(nil).Select(0)
	assert.Error(t, err)
}

func TestGatewayRoundTrip(t *testing.T) {
	g := NewGateway([]Config{key128, key256})

	sealed, err := g.Encrypt(1, []byte("secret"))
	require.NoError(t, err)

	plain, err := g.Decrypt(1, sealed)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(plain))

	_, err = g.Decrypt(0, sealed)
	assert.Error(t, err)
}
