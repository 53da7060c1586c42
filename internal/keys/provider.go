package keys

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Shugur-Network/nostr-client/internal/constants"
)

// StaticProvider hands out a key pair parsed from a configured hex key.
type StaticProvider struct {
	PrivateKeyHex string
}

func (p StaticProvider) KeyPair() (*KeyPair, error) {
	return FromHex(p.PrivateKeyHex)
}

// FileProvider loads the identity from a key file, generating and saving one on first use.
type FileProvider struct {
	Path string

	once sync.Once
	kp   *KeyPair
	err  error
}

// NewFileProvider returns a provider for path, or for ~/.nostr-client/identity.key when path is empty.
func NewFileProvider(path string) (*FileProvider, error) {
	if path == "" {
		var err error
		if path, err = DefaultIdentityPath(); err != nil {
			return nil, err
		}
	}
	return &FileProvider{Path: path}, nil
}

// DefaultIdentityPath returns ~/.nostr-client/identity.key.
func DefaultIdentityPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.IdentityDirName, constants.IdentityFileName), nil
}

func (p *FileProvider) KeyPair() (*KeyPair, error) {
	p.once.Do(func() {
		p.kp, p.err = p.loadOrCreate()
	})
	return p.kp, p.err
}

func (p *FileProvider) loadOrCreate() (*KeyPair, error) {
	path := filepath.Clean(p.Path)

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		kp, err := FromHex(strings.TrimSpace(string(content)))
		if err != nil {
			return nil, fmt.Errorf("load identity %s: %w", path, err)
		}
		return kp, nil
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read identity %s: %w", path, err)
	}

	kp, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := Save(path, kp); err != nil {
		return nil, err
	}
	return kp, nil
}

// Save writes the private key as hex with owner-only permissions.
func Save(path string, kp *KeyPair) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(kp.PrivateKey()+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}
	return nil
}
