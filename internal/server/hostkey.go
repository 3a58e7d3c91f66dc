package server

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/ssh"
)

// loadOrGenerateHostKey returns the server identity. An empty path yields
// an ephemeral in-memory key; a missing file is created with a fresh
// ed25519 key so the fingerprint survives restarts.
func loadOrGenerateHostKey(path string) (ssh.Signer, error) {
	if path == "" {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		log.Printf("Using ephemeral host key")
		return ssh.NewSignerFromKey(priv)
	}

	if data, err := os.ReadFile(path); err == nil {
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse host key %s: %w", path, err)
		}
		return signer, nil
	}

	log.Printf("Generating new host key at %s", path)
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		return nil, fmt.Errorf("failed to write host key: %w", err)
	}
	return ssh.NewSignerFromKey(priv)
}
