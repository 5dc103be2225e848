// Command beacon-cli administers a beacon installation: it encrypts test
// payloads and manages the message archive and mutes without the service.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
