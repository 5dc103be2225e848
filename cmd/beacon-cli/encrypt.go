package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"beacon/internal/cipher"
)

func newEncryptCommand(ctx *commandContext) *cobra.Command {
	var index int

	cmd := &cobra.Command{
		Use:   "encrypt [json]",
		Short: "Seal a push payload with a configured cipher",
		Long:  "Encrypts a JSON payload with the cipher configuration at --index and prints the base64 ciphertext. Reads stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			payload, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			if !json.Valid(payload) {
				return fmt.Errorf("payload is not valid JSON")
			}
			var compact bytes.Buffer
			if err := json.Compact(&compact, payload); err != nil {
				return err
			}
			sealed, err := cipher.FromSettings(cfg.Cipher).Encrypt(index, compact.Bytes())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
	cmd.Flags().IntVarP(&index, "index", "i", 0, "Cipher configuration index")
	return cmd
}

func newDecryptCommand(ctx *commandContext) *cobra.Command {
	var index int

	cmd := &cobra.Command{
		Use:   "decrypt [ciphertext]",
		Short: "Open a sealed payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sealed, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			plain, err := cipher.FromSettings(cfg.Cipher).Decrypt(index, strings.TrimSpace(string(sealed)))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(plain))
			return nil
		},
	}
	cmd.Flags().IntVarP(&index, "index", "i", 0, "Cipher configuration index")
	return cmd
}

func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 1 {
		return []byte(args[0]), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("no input: pass an argument or pipe to stdin")
	}
	return data, nil
}
