package keystore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"

	"github.com/stakeops/stakectl/internal/chain"
	clierr "github.com/stakeops/stakectl/internal/errors"
)

const (
	EnvSeed     = "STAKECTL_SEED"
	EnvSeedFile = "STAKECTL_SEED_FILE"

	defaultSeedRelativePath = "stakectl/seed"
)

// Keystore derives signers from a secret seed or mnemonic. The secret
// can be handed in directly as the credential, or picked up from the
// environment and the default seed file.
type Keystore struct {
	network uint16
}

func New(network uint16) *Keystore {
	return &Keystore{network: network}
}

type localSigner struct {
	kp signature.KeyringPair
}

func (s localSigner) Address() string                { return s.kp.Address }
func (s localSigner) Keyring() signature.KeyringPair { return s.kp }

// Unlock derives the signer and checks it controls the given address.
// Any failure here is an authentication failure: a wrong or missing
// secret, or a secret for a different account.
func (k *Keystore) Unlock(address, credential string) (chain.Signer, error) {
	secret := strings.TrimSpace(credential)
	if secret == "" {
		var err error
		secret, err = secretFromEnv()
		if err != nil {
			return nil, err
		}
	}

	kp, err := signature.KeyringPairFromSecret(secret, k.network)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeAuth, "derive signing key", err)
	}
	if address != "" && kp.Address != address {
		return nil, clierr.New(clierr.CodeAuth,
			fmt.Sprintf("secret does not control %s", address))
	}
	return localSigner{kp: kp}, nil
}

func secretFromEnv() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvSeed)); v != "" {
		return v, nil
	}
	path := strings.TrimSpace(os.Getenv(EnvSeedFile))
	if path == "" {
		path = defaultSeedFile()
	}
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return "", clierr.Wrap(clierr.CodeAuth, "read seed file", err)
		}
		if v := strings.TrimSpace(string(buf)); v != "" {
			return v, nil
		}
	}
	return "", clierr.New(clierr.CodeAuth,
		fmt.Sprintf("missing signing secret: set %s or %s", EnvSeed, EnvSeedFile))
}

func defaultSeedFile() string {
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	path := filepath.Join(base, defaultSeedRelativePath)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}
