package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
)

// Encrypt seals plaintext with AES-GCM. The ciphertext and the nonce (IV) are
// returned separately, both base64 encoded, so they can be stored in their own columns.
func Encrypt(plaintext, key []byte) (ciphertext string, iv string, err error) {
	aesGCM, err := newGCM(key)
	if err != nil {
		return "", "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		slog.Info(err.Error())
		return "", "", err
	}

	sealed := aesGCM.Seal(nil, nonce, plaintext, nil)

	return base64.StdEncoding.EncodeToString(sealed), base64.StdEncoding.EncodeToString(nonce), nil
}

// Decrypt opens a value produced by Encrypt.
func Decrypt(ciphertext, iv string, key []byte) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	aesGCM, err := newGCM(key)
	if err != nil {
		return "", err
	}

	if len(nonce) != aesGCM.NonceSize() {
		return "", errors.New("invalid iv length")
	}

	plaintext, err := aesGCM.Open(nil, nonce, data, nil)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return aesGCM, nil
}
