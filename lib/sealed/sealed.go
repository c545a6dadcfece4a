// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/bureau-foundation/userprefs/lib/secret"
)

// binaryHeader is the first line of a binary age file.
const binaryHeader = "age-encryption.org/v1"

// SealToken encrypts token to the given age recipients (age1...
// strings) and returns an ASCII-armored age file. The token buffer is
// read but not closed.
func SealToken(token *secret.Buffer, recipientKeys []string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("sealed: at least one recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("sealed: parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var output bytes.Buffer
	armored := armor.NewWriter(&output)
	writer, err := age.Encrypt(armored, recipients...)
	if err != nil {
		return nil, fmt.Errorf("sealed: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(token.Bytes()); err != nil {
		return nil, fmt.Errorf("sealed: writing token to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("sealed: finalizing age encryption: %w", err)
	}
	if err := armored.Close(); err != nil {
		return nil, fmt.Errorf("sealed: finalizing armor: %w", err)
	}
	return output.Bytes(), nil
}

// IsSealed reports whether data looks like an age file (armored or
// binary).
func IsSealed(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return bytes.HasPrefix(trimmed, []byte(armor.Header)) || bytes.HasPrefix(trimmed, []byte(binaryHeader))
}

// OpenToken decrypts a sealed token with the identities in identityFile
// (the contents of an age-keygen key file; comment lines are allowed).
// Neither buffer is closed. The caller must Close the returned buffer.
func OpenToken(data []byte, identityFile *secret.Buffer) (*secret.Buffer, error) {
	identities, err := age.ParseIdentities(bytes.NewReader(identityFile.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing identity file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	var source io.Reader = bytes.NewReader(trimmed)
	if bytes.HasPrefix(trimmed, []byte(armor.Header)) {
		source = armor.NewReader(source)
	}

	reader, err := age.Decrypt(source, identities...)
	if err != nil {
		return nil, fmt.Errorf("sealed: decrypting token: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading decrypted token: %w", err)
	}
	return protect(plaintext)
}

// ReadTokenFile loads the access token from tokenPath. A sealed file is
// decrypted with the age identity at identityPath; a plain file is
// trimmed and used as-is. The caller must Close the returned buffer.
func ReadTokenFile(tokenPath, identityPath string) (*secret.Buffer, error) {
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading token file: %w", err)
	}

	if !IsSealed(data) {
		return protect(data)
	}

	if identityPath == "" {
		return nil, fmt.Errorf("sealed: token file %s is age-encrypted but no identity file is configured", tokenPath)
	}
	identityBytes, err := os.ReadFile(identityPath)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading identity file: %w", err)
	}
	identity, err := secret.NewFromBytes(identityBytes)
	if err != nil {
		return nil, fmt.Errorf("sealed: protecting identity: %w", err)
	}
	defer identity.Close()

	return OpenToken(data, identity)
}

// protect trims surrounding whitespace and moves the token into a
// secret.Buffer, zeroing the heap copy.
func protect(raw []byte) (*secret.Buffer, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("sealed: token is empty")
	}
	buffer, err := secret.NewFromBytes(trimmed)
	for index := range raw {
		raw[index] = 0
	}
	if err != nil {
		return nil, fmt.Errorf("sealed: protecting token: %w", err)
	}
	return buffer, nil
}
