package compliance

import (
	"encoding/base64"

	"clinicbook/internal/platform/crypto"
)

// FieldCipher seals protected field values for storage in text columns. The
// output is base64 over the authenticated ciphertext; decryption fails on any
// mutation of the stored value.
type FieldCipher struct {
	svc *crypto.Service
}

func NewFieldCipher(svc *crypto.Service) *FieldCipher {
	return &FieldCipher{svc: svc}
}

func (c *FieldCipher) EncryptField(value string) (string, error) {
	sealed, err := c.svc.EncryptString(value)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *FieldCipher) DecryptField(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", crypto.ErrCiphertextInvalid
	}
	return c.svc.DecryptString(sealed)
}
