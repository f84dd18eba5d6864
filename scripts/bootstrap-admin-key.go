package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/convtrack/convtrack/internal/auth"
)

type output struct {
	Key  string `json:"key"`
	Hash string `json:"hash"`
}

func main() {
	var (
		key    = flag.String("key", "", "API key to hash; generated when empty")
		format = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	plaintext := *key
	if plaintext == "" {
		generated, err := generateKey()
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate key:", err)
			os.Exit(1)
		}
		plaintext = generated
	}

	hash, err := auth.HashKey(plaintext)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash key:", err)
		os.Exit(1)
	}

	out := output{Key: plaintext, Hash: hash}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println("API key:            ", out.Key)
		fmt.Println("ADMIN_API_KEY_HASH: ", out.Hash)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

func generateKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "ct_" + base64.RawURLEncoding.EncodeToString(raw), nil
}
