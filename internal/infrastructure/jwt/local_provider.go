package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arvoria/authd/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// RSAKeySize is the modulus size of generated signing keys.
const RSAKeySize = 2048

var errInvalidKeyConfig = errors.New("invalid signing key configuration")

// localProvider implements domain.SigningKeyProvider with an RSA key
// pair kept on local disk.
type localProvider struct {
	privateKey   *rsa.PrivateKey
	publicKey    *rsa.PublicKey
	keyPath      string
	logger       *zap.Logger
	keyID        string
	lastRotation time.Time
	mu           sync.RWMutex
}

// NewLocalProvider loads the RSA key pair from keyPath, generating and
// persisting a fresh pair when none exists.
func NewLocalProvider(keyPath string, logger *zap.Logger) (domain.SigningKeyProvider, error) {
	if keyPath == "" {
		return nil, errInvalidKeyConfig
	}

	provider := &localProvider{
		keyPath:      keyPath,
		logger:       logger,
		lastRotation: time.Now(),
	}

	if err := provider.loadOrGenerateKeyPair(); err != nil {
		return nil, err
	}

	provider.keyID = generateKeyID(provider.privateKey)

	return provider, nil
}

// loadOrGenerateKeyPair loads the key pair from file or generates a new one
func (l *localProvider) loadOrGenerateKeyPair() error {
	dir := filepath.Dir(l.keyPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errInvalidKeyConfig
	}

	if err := l.loadKeyPair(); err == nil {
		return nil
	}

	return l.generateKeyPair()
}

// loadKeyPair loads the key pair from file
func (l *localProvider) loadKeyPair() error {
	privateKeyPEM, err := os.ReadFile(l.keyPath)
	if err != nil {
		return errInvalidKeyConfig
	}

	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return errInvalidKeyConfig
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return errInvalidKeyConfig
	}

	l.privateKey = privateKey
	l.publicKey = &privateKey.PublicKey
	return nil
}

// generateKeyPair generates a new RSA key pair and persists it
func (l *localProvider) generateKeyPair() error {
	privateKey, err := rsa.GenerateKey(rand.Reader, RSAKeySize)
	if err != nil {
		return errInvalidKeyConfig
	}

	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	if err := os.WriteFile(l.keyPath, privateKeyPEM, 0600); err != nil {
		return errInvalidKeyConfig
	}

	l.privateKey = privateKey
	l.publicKey = &privateKey.PublicKey
	return nil
}

// Sign signs claims using the local private key
func (l *localProvider) Sign(claims jwt.Claims) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = l.keyID

	return token.SignedString(l.privateKey)
}

// GetPublicKey returns the public key
func (l *localProvider) GetPublicKey() *rsa.PublicKey {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.publicKey
}

// GetKeyID returns the current key ID
func (l *localProvider) GetKeyID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.keyID
}

// RotateKey generates a new key pair
func (l *localProvider) RotateKey() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.generateKeyPair(); err != nil {
		return err
	}

	l.keyID = generateKeyID(l.privateKey)
	l.lastRotation = time.Now()

	l.logger.Info("Signing key rotated", zap.String("key_id", l.keyID))
	return nil
}

// GetLastRotation returns the last key rotation time
func (l *localProvider) GetLastRotation() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastRotation
}

// generateKeyID generates a unique key ID from the private key
func generateKeyID(key *rsa.PrivateKey) string {
	// Use the public key components to generate a unique ID
	modulus := key.N.Bytes()
	exponent := []byte{byte(key.E)}

	data := append(modulus, exponent...)
	hash := sha256.Sum256(data)

	return base64.RawURLEncoding.EncodeToString(hash[:])
}
