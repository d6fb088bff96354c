// Package vault keeps archive.org credentials encrypted on disk.
// Uses AES-256-GCM for authenticated encryption.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

const (
	keySize = 32
	ivSize  = 16
	tagSize = 16
)

var (
	// ErrNoCredentials is returned when nothing has been stored yet
	ErrNoCredentials = errors.New("no credentials stored")
	// ErrInvalidCiphertext is returned when the stored file cannot be decrypted
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	// ErrInvalidKey is returned when the configured key is not 32 hex-encoded bytes
	ErrInvalidKey = errors.New("invalid key: want 64 hex characters")
)

// Credentials is an archive.org S3-style key pair
type Credentials struct {
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
}

// Status describes stored credentials without revealing them
type Status struct {
	HasCredentials   bool    `json:"hasCredentials"`
	AccessKeyPreview *string `json:"accessKeyPreview"`
	Validated        bool    `json:"validated"`
}

// sealed is the on-disk file format, every field hex-encoded
type sealed struct {
	IV            string `json:"iv"`
	EncryptedData string `json:"encryptedData"`
	AuthTag       string `json:"authTag"`
}

// Vault stores one credential pair in an encrypted file
type Vault struct {
	path   string
	key    []byte
	logger *log.Logger
	mu     sync.Mutex
}

// New creates a vault at path. hexKey may be empty, in which case a random
// per-process key is generated and anything saved is unreadable after restart.
func New(path, hexKey string, logger *log.Logger) (*Vault, error) {
	var key []byte
	if strings.TrimSpace(hexKey) == "" {
		key = make([]byte, keySize)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, fmt.Errorf("failed to generate key: %w", err)
		}
		if logger != nil {
			logger.Warn("ENCRYPTION_KEY not set, using a random key; stored credentials will not survive a restart")
		}
	} else {
		decoded, err := hex.DecodeString(strings.TrimSpace(hexKey))
		if err != nil || len(decoded) != keySize {
			return nil, ErrInvalidKey
		}
		key = decoded
	}
	return &Vault{path: path, key: key, logger: logger}, nil
}

// Path returns the credentials file path
func (v *Vault) Path() string {
	return v.path
}

// Save encrypts and writes the credential pair, replacing any previous one
func (v *Vault) Save(creds Credentials) error {
	if strings.TrimSpace(creds.AccessKey) == "" || strings.TrimSpace(creds.SecretKey) == "" {
		return fmt.Errorf("access key and secret key are required")
	}

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	box, err := v.encrypt(plaintext)
	if err != nil {
		return err
	}
	data, err := json.Marshal(box)
	if err != nil {
		return fmt.Errorf("failed to encode credentials file: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if dir := filepath.Dir(v.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create credentials directory: %w", err)
		}
	}
	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmp, v.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// Load reads and decrypts the stored pair
func (v *Vault) Load() (*Credentials, error) {
	v.mu.Lock()
	data, err := os.ReadFile(v.path)
	v.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var box sealed
	if err := json.Unmarshal(data, &box); err != nil {
		return nil, ErrInvalidCiphertext
	}
	plaintext, err := v.decrypt(box)
	if err != nil {
		return nil, err
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, ErrInvalidCiphertext
	}
	return &creds, nil
}

// Delete removes the stored pair. Deleting nothing is not an error.
func (v *Vault) Delete() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := os.Remove(v.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

// Status reports whether usable credentials exist.
// Unreadable files count as absent.
func (v *Vault) Status() Status {
	creds, err := v.Load()
	if err != nil {
		if !errors.Is(err, ErrNoCredentials) && v.logger != nil {
			v.logger.Warn("Stored credentials are unreadable", "path", v.path, "err", err)
		}
		return Status{}
	}
	preview := Preview(creds.AccessKey)
	return Status{HasCredentials: true, AccessKeyPreview: &preview}
}

// Preview shows the first four characters of a key
func Preview(key string) string {
	if len(key) > 4 {
		key = key[:4]
	}
	return key + "..."
}

func (v *Vault) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, ivSize)
}

func (v *Vault) encrypt(plaintext []byte) (sealed, error) {
	gcm, err := v.gcm()
	if err != nil {
		return sealed{}, fmt.Errorf("failed to init cipher: %w", err)
	}

	// Generate a random IV
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return sealed{}, fmt.Errorf("failed to generate iv: %w", err)
	}

	// Seal appends the tag to the ciphertext; the file keeps them apart
	out := gcm.Seal(nil, iv, plaintext, nil)
	ciphertext, tag := out[:len(out)-tagSize], out[len(out)-tagSize:]

	return sealed{
		IV:            hex.EncodeToString(iv),
		EncryptedData: hex.EncodeToString(ciphertext),
		AuthTag:       hex.EncodeToString(tag),
	}, nil
}

func (v *Vault) decrypt(box sealed) ([]byte, error) {
	iv, err := hex.DecodeString(box.IV)
	if err != nil || len(iv) != ivSize {
		return nil, ErrInvalidCiphertext
	}
	ciphertext, err := hex.DecodeString(box.EncryptedData)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	tag, err := hex.DecodeString(box.AuthTag)
	if err != nil || len(tag) != tagSize {
		return nil, ErrInvalidCiphertext
	}

	gcm, err := v.gcm()
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}

	// Decrypt and verify
	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	return plaintext, nil
}
