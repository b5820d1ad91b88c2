// Package keyring provides secure credential storage.
// It uses the system keyring when available, falling back to
// encrypted local file storage when not.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/hkdf"

	"github.com/yllada/vpnht/common"
)

const (
	// serviceName is the identifier used in the system keyring.
	serviceName = "vpnht"
	probeKey    = "vpnht-probe"
)

// Common errors returned by keyring operations.
var (
	ErrNotFound = common.ErrCredentialsNotFound
	ErrEmptyKey = errors.New("credential key cannot be empty")
)

// Store keeps secrets in the system keyring, or in an AES-GCM encrypted file
// under dir when the keyring is unavailable.
type Store struct {
	mu        sync.RWMutex
	service   string
	useLocal  bool
	local     map[string]string
	localFile string
	key       []byte
}

// New returns a Store for the vpnht service, using dir for the fallback file.
func New(dir string) *Store {
	s := &Store{
		service:   serviceName,
		localFile: filepath.Join(dir, common.CredentialsFileName),
	}

	if err := keyring.Set(s.service, probeKey, "probe"); err == nil {
		keyring.Delete(s.service, probeKey)
	} else {
		common.LogDebug("System keyring unavailable, using encrypted file: %v", err)
		s.switchToLocal()
	}
	return s
}

// switchToLocal derives the file key and loads existing secrets.
func (s *Store) switchToLocal() {
	s.useLocal = true
	s.key = deriveKey()
	s.local = make(map[string]string)
	s.loadLocal()
}

// deriveKey derives the file encryption key from machine-specific data.
func deriveKey() []byte {
	hostname, _ := os.Hostname()
	secret := fmt.Sprintf("%s-%s-%d", hostname, machineID(), os.Getuid())
	kdf := hkdf.New(sha256.New, []byte(secret), []byte(serviceName), []byte("credentials-file"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		sum := sha256.Sum256([]byte(secret))
		return sum[:]
	}
	return key
}

func machineID() string {
	data, err := os.ReadFile("/etc/machine-id")
	if err == nil {
		return strings.TrimSpace(string(data))
	}
	return "default-machine-id"
}

func (s *Store) loadLocal() {
	data, err := os.ReadFile(s.localFile)
	if err != nil {
		return
	}

	decrypted, err := s.decrypt(data)
	if err != nil {
		common.LogWarn("Ignoring unreadable credentials file %s: %v", s.localFile, err)
		return
	}

	json.Unmarshal(decrypted, &s.local)
}

func (s *Store) saveLocal() error {
	s.mu.RLock()
	data, err := json.Marshal(s.local)
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	encrypted, err := s.encrypt(data)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.localFile), 0700); err != nil {
		return err
	}
	return os.WriteFile(s.localFile, encrypted, 0600)
}

func (s *Store) encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func (s *Store) decrypt(data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}

	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func (s *Store) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Store saves secret under key.
func (s *Store) Store(key, secret string) error {
	if key == "" {
		return ErrEmptyKey
	}

	if !s.useLocal {
		err := keyring.Set(s.service, key, secret)
		if err == nil {
			return nil
		}
		common.LogWarn("Keyring write failed, falling back to encrypted file: %v", err)
		s.switchToLocal()
	}

	s.mu.Lock()
	s.local[key] = secret
	s.mu.Unlock()
	return s.saveLocal()
}

// Get retrieves the secret stored under key.
func (s *Store) Get(key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	if !s.useLocal {
		secret, err := keyring.Get(s.service, key)
		if err == nil {
			return secret, nil
		}
		if !errors.Is(err, keyring.ErrNotFound) {
			common.LogWarn("Keyring read failed for %s: %v", key, err)
		}
		return "", ErrNotFound
	}

	s.mu.RLock()
	secret, exists := s.local[key]
	s.mu.RUnlock()
	if !exists {
		return "", ErrNotFound
	}
	return secret, nil
}

// Delete removes the secret stored under key.
func (s *Store) Delete(key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	if !s.useLocal {
		if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
		return nil
	}

	s.mu.Lock()
	delete(s.local, key)
	s.mu.Unlock()
	return s.saveLocal()
}

// UsesLocalStorage reports whether the encrypted file fallback is active.
func (s *Store) UsesLocalStorage() bool {
	return s.useLocal
}
