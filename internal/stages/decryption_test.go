package stages

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/cipher"
	"beacon/internal/logger"
	"beacon/internal/pipeline"
	"beacon/pkg/models"
)

func TestDecryptionRoundTrip(t *testing.T) {
	gw := cipher.NewGateway([]cipher.Config{
		{Algorithm: cipher.AES128, Mode: cipher.ModeGCM, Key: "0123456789abcdef"},
		testKey,
	})
	sealed, err := gw.Encrypt(1, []byte(`{"ID":"msg-9","Title":"Build","BODY":"green","Group":"ci","sound":"bell","Extra":"x"}`))
	require.NoError(t, err)

	s := NewDecryption(gw, logger.NopLogger())
	env := envelope(map[string]interface{}{
		"subtitle":     "kept",
		"ciphertext":   sealed,
		"ciphernumber": "1",
	})

	out, err := s.Process(context.Background(), "n-1", env)
	require.NoError(t, err)
	assert.Equal(t, "msg-9", out.TargetID)
	assert.Equal(t, "Build", out.Title)
	assert.Equal(t, "kept", out.Subtitle)
	assert.Equal(t, "green", out.Body)
	assert.Equal(t, "ci", out.ThreadKey)
	assert.Equal(t, "bell.caf", out.SoundName)
	assert.Equal(t, models.CategoryPlain, out.Category)
	assert.Equal(t, "x", out.CustomFields["extra"])
}

func TestDecryptionMarkdown(t *testing.T) {
	gw := cipher.NewGateway([]cipher.Config{testKey})

	tests := []struct {
		name     string
		plain    string
		wantBody string
		wantCat  models.Category
	}{
		{"markdown key", `{"markdown":"**bold**","body":"ignored"}`, "**bold**", models.CategoryMarkdown},
		{"category field", `{"body":"# h","category":"Markdown"}`, "# h", models.CategoryMarkdown},
		{"other category", `{"body":"plain","category":"alert"}`, "plain", models.CategoryPlain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := gw.Encrypt(0, []byte(tt.plain))
			require.NoError(t, err)
			out, err := NewDecryption(gw, logger.NopLogger()).Process(context.Background(), "id",
				envelope(map[string]interface{}{"ciphertext": sealed}))
			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, out.Body)
			assert.Equal(t, tt.wantCat, out.Category)
		})
	}
}

func TestDecryptionPassThrough(t *testing.T) {
	env := envelope(map[string]interface{}{"title": "hello"})
	out, err := NewDecryption(nil, logger.NopLogger()).Process(context.Background(), "id", env)
	require.NoError(t, err)
	assert.Equal(t, env, out)
}

func TestDecryptionFailureReplacement(t *testing.T) {
	gw := cipher.NewGateway([]cipher.Config{testKey})
	notJSON, err := gw.Encrypt(0, []byte("not json"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		sealed string
		cipher Decrypter
	}{
		{"bad base64", strings.Repeat("!", 100), gw},
		{"wrong key", notJSON, cipher.NewGateway([]cipher.Config{{Algorithm: cipher.AES256, Key: strings.Repeat("z", 32)}})},
		{"not json", notJSON, gw},
		{"no configs", notJSON, cipher.NewGateway(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := envelope(map[string]interface{}{
				"title":      "outer",
				"url":        "https://example.com",
				"ciphertext": tt.sealed,
			})
			_, err := NewDecryption(tt.cipher, logger.NopLogger()).Process(context.Background(), "n-1", env)

			te, ok := pipeline.AsTerminal(err)
			require.True(t, ok)
			assert.Equal(t, decryptFailedTitle, te.Replacement.Title)
			assert.Equal(t, "n-1", te.Replacement.Identifier)
			assert.Equal(t, map[string]interface{}{"ciphertext": tt.sealed}, te.Replacement.CustomFields)
			assert.LessOrEqual(t, utf8.RuneCountInString(te.Replacement.Body), excerptRunes+1)
			assert.True(t, strings.HasPrefix(tt.sealed, strings.TrimSuffix(te.Replacement.Body, "…")))
		})
	}
}
