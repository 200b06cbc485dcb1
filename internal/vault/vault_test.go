package vault

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := New("crewd-test-passphrase")
	apiKey := []byte("sk-or-v1-abc123def456")

	ciphertext, nonce, err := v.Encrypt(apiKey)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(ciphertext, apiKey) {
		t.Fatal("ciphertext leaks the plaintext")
	}

	decrypted, err := v.Decrypt(ciphertext, nonce)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(apiKey, decrypted) {
		t.Fatalf("got %q, want %q", decrypted, apiKey)
	}
}

func TestDecryptWithWrongPassphrase(t *testing.T) {
	good := New("the-real-passphrase")
	bad := New("a-guessed-passphrase")

	ciphertext, nonce, err := good.Encrypt([]byte("provider key"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := bad.Decrypt(ciphertext, nonce); err == nil {
		t.Fatal("expected decryption to fail with the wrong passphrase")
	}
}

func TestKeyDerivationIsDeterministic(t *testing.T) {
	// The same passphrase must reopen the vault across restarts.
	if New("stable").key != New("stable").key {
		t.Fatal("same passphrase derived different keys")
	}
	if New("stable").key == New("other").key {
		t.Fatal("different passphrases derived the same key")
	}
}

func TestNonceIsFreshPerEncryption(t *testing.T) {
	v := New("crewd-test-passphrase")

	_, n1, err := v.Encrypt([]byte("same value"))
	if err != nil {
		t.Fatal(err)
	}
	_, n2, err := v.Encrypt([]byte("same value"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(n1, n2) {
		t.Fatal("nonce reused across encryptions")
	}
}

func TestEncryptEmptyValue(t *testing.T) {
	v := New("crewd-test-passphrase")

	ciphertext, nonce, err := v.Encrypt(nil)
	if err != nil {
		t.Fatalf("encrypt empty: %v", err)
	}
	decrypted, err := v.Decrypt(ciphertext, nonce)
	if err != nil {
		t.Fatalf("decrypt empty: %v", err)
	}
	if len(decrypted) != 0 {
		t.Fatalf("expected empty plaintext, got %d bytes", len(decrypted))
	}
}
