package vault

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/crewdhq/crewd/internal/store"
)

// Keeper stores named secrets encrypted at rest. Its Resolve method plugs
// into MCP tool configs as the secret: reference resolver.
type Keeper struct {
	vault *Vault
	store *store.Store
}

func NewKeeper(passphrase string, s *store.Store) (*Keeper, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("vault passphrase is empty")
	}
	return &Keeper{vault: New(passphrase), store: s}, nil
}

func (k *Keeper) Set(name, description, value string) error {
	if name == "" {
		return fmt.Errorf("secret name is empty")
	}
	ciphertext, nonce, err := k.vault.Encrypt([]byte(value))
	if err != nil {
		return fmt.Errorf("encrypt secret: %w", err)
	}
	return k.store.SaveSecret(&store.Secret{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Value:       ciphertext,
		Nonce:       nonce,
	})
}

func (k *Keeper) Get(name string) (string, error) {
	sec, err := k.store.GetSecretByName(name)
	if err != nil {
		return "", err
	}
	if sec == nil {
		return "", fmt.Errorf("secret %s not found", name)
	}
	plaintext, err := k.vault.Decrypt(sec.Value, sec.Nonce)
	if err != nil {
		return "", fmt.Errorf("decrypt secret %s: %w", name, err)
	}
	return string(plaintext), nil
}

// Resolve satisfies the resolver shape used for secret: references.
func (k *Keeper) Resolve(name string) (string, error) {
	return k.Get(name)
}

func (k *Keeper) List() ([]store.Secret, error) {
	return k.store.ListSecrets()
}

func (k *Keeper) Delete(name string) error {
	return k.store.DeleteSecret(name)
}
