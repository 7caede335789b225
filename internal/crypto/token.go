// Package crypto implements the field crypto gate: deterministic,
// authenticated tokenization of sensitive string fields under a named secret.
//
// A token is "v1." followed by the unpadded base64url encoding of
// nonce || AES-256-GCM(ciphertext+tag). The nonce is the first 12 bytes of
// HMAC-SHA256 over the plaintext, so equal plaintexts seal to equal tokens
// under the same secret and clients can use sealed ids as lookup keys.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"finey/internal/core"
)

const (
	tokenPrefix  = "v1."
	nonceSize    = 12
	keySize      = 32
	MinSecretLen = 16
	hkdfInfo     = "finey field gate v1"
)

var (
	ErrKeyUnavailable = errors.New("key unavailable")
	ErrWeakSecret     = errors.New("secret material too short")
	ErrMalformedToken = errors.New("malformed token")
	ErrAuthentication = errors.New("token failed authentication")
)

var encoding = base64.RawURLEncoding

// Key is the derived key pair for one named secret.
type Key struct {
	name string
	enc  []byte
	mac  []byte
}

// DeriveKey expands raw secret material into encryption and MAC keys.
// The secret name salts the derivation so that two secrets sharing material
// still produce unrelated tokens.
func DeriveKey(name string, material []byte) (Key, error) {
	if len(material) == 0 {
		return Key{}, &core.CryptoError{Op: "derive key", Secret: name, Err: ErrKeyUnavailable}
	}
	if len(material) < MinSecretLen {
		return Key{}, &core.CryptoError{Op: "derive key", Secret: name, Err: ErrWeakSecret}
	}

	buf := make([]byte, 2*keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, material, []byte(name), []byte(hkdfInfo)), buf); err != nil {
		return Key{}, &core.CryptoError{Op: "derive key", Secret: name, Err: err}
	}
	return Key{name: name, enc: buf[:keySize], mac: buf[keySize:]}, nil
}

// Name returns the secret name the key was derived for.
func (k Key) Name() string { return k.name }

func (k Key) usable() bool {
	return len(k.enc) == keySize && len(k.mac) == keySize
}

func (k Key) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(k.enc)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (k Key) nonce(plaintext []byte) []byte {
	m := hmac.New(sha256.New, k.mac)
	m.Write(plaintext)
	return m.Sum(nil)[:nonceSize]
}

// Encrypt seals plaintext under key.
func Encrypt(plaintext string, key Key) (string, error) {
	if !key.usable() {
		return "", &core.CryptoError{Op: "encrypt", Secret: key.name, Err: ErrKeyUnavailable}
	}
	aead, err := key.aead()
	if err != nil {
		return "", &core.CryptoError{Op: "encrypt", Secret: key.name, Err: err}
	}

	pt := []byte(plaintext)
	nonce := key.nonce(pt)
	out := make([]byte, 0, nonceSize+len(pt)+aead.Overhead())
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, pt, []byte(key.name))
	return tokenPrefix + encoding.EncodeToString(out), nil
}

// Decrypt opens a token produced by Encrypt under the same key.
func Decrypt(token string, key Key) (string, error) {
	if !key.usable() {
		return "", &core.CryptoError{Op: "decrypt", Secret: key.name, Err: ErrKeyUnavailable}
	}
	pt, err := open(token, key)
	if err != nil {
		return "", &core.CryptoError{Op: "decrypt", Secret: key.name, Err: err}
	}
	return string(pt), nil
}

// IsEncrypted reports whether value is a token that authenticates under key.
// Anything else, including an unusable key, yields false.
func IsEncrypted(value string, key Key) bool {
	if !key.usable() {
		return false
	}
	_, err := open(value, key)
	return err == nil
}

func open(token string, key Key) ([]byte, error) {
	raw, ok := strings.CutPrefix(token, tokenPrefix)
	if !ok {
		return nil, ErrMalformedToken
	}
	data, err := encoding.DecodeString(raw)
	if err != nil {
		return nil, ErrMalformedToken
	}

	aead, err := key.aead()
	if err != nil {
		return nil, err
	}
	if len(data) < nonceSize+aead.Overhead() {
		return nil, ErrMalformedToken
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	pt, err := aead.Open(nil, nonce, sealed, []byte(key.name))
	if err != nil {
		return nil, ErrAuthentication
	}
	if !hmac.Equal(nonce, key.nonce(pt)) {
		return nil, ErrAuthentication
	}
	return pt, nil
}
