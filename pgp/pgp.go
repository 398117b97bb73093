// Package pgp encrypts and decrypts run reports with OpenPGP, either for
// the public keys of a keyring or with a shared password.
package pgp

import (
	"io"
	"os"

	"github.com/targodan/go-errors"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/packet"
)

var pgpConfig = &packet.Config{
	DefaultCipher: packet.CipherAES256,
}

// Options selects the encryption. If Keyring is set, the recipients are
// the keys of the keyring and Password unlocks the private key when
// decrypting. Otherwise the data is encrypted symmetrically with Password.
type Options struct {
	Keyring  openpgp.EntityList
	Password string
}

// Enabled reports whether any encryption was configured.
func (o *Options) Enabled() bool {
	return o != nil && (len(o.Keyring) > 0 || o.Password != "")
}

func readKeyRing(path string, read func(io.Reader) (openpgp.EntityList, error)) (openpgp.EntityList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return read(f)
}

// ReadKeyRing reads an armored or binary keyring.
func ReadKeyRing(path string) (openpgp.EntityList, error) {
	ring, err1 := readKeyRing(path, openpgp.ReadArmoredKeyRing)
	if err1 == nil {
		return ring, nil
	}
	ring, err2 := readKeyRing(path, openpgp.ReadKeyRing)
	if err2 == nil {
		return ring, nil
	}
	return nil, errors.Errorf("could not read keyring \"%s\", reason: %w", path, errors.NewMultiError(err1, err2))
}

// NewEncryptor returns a writer encrypting everything written to output.
// Closing it does not close output.
func NewEncryptor(opts *Options, output io.Writer) (io.WriteCloser, error) {
	hints := &openpgp.FileHints{IsBinary: true}
	if len(opts.Keyring) > 0 {
		return openpgp.Encrypt(output, opts.Keyring, nil, hints, pgpConfig)
	}
	if opts.Password == "" {
		return nil, errors.New("neither a keyring nor a password was given")
	}
	return openpgp.SymmetricallyEncrypt(output, []byte(opts.Password), hints, pgpConfig)
}

type emptyKeyring struct{}

func (r emptyKeyring) KeysById(id uint64) []openpgp.Key {
	return nil
}

func (r emptyKeyring) KeysByIdUsage(id uint64, requiredUsage byte) []openpgp.Key {
	return nil
}

func (r emptyKeyring) DecryptionKeys() []openpgp.Key {
	return nil
}

// NewDecryptor returns a reader yielding the decrypted content of input.
func NewDecryptor(opts *Options, input io.Reader) (io.Reader, error) {
	var ring openpgp.KeyRing = emptyKeyring{}
	if len(opts.Keyring) > 0 {
		ring = opts.Keyring
	}

	tried := false
	prompt := func(keys []openpgp.Key, symmetric bool) ([]byte, error) {
		if tried || opts.Password == "" {
			return nil, errors.New("wrong or missing password")
		}
		if symmetric && len(opts.Keyring) > 0 {
			return nil, errors.New("expected asymmetric encryption but message was symmetrically encrypted")
		}
		if !symmetric {
			for _, k := range keys {
				if k.PrivateKey != nil && k.PrivateKey.Encrypted {
					if err := k.PrivateKey.Decrypt([]byte(opts.Password)); err != nil {
						return nil, err
					}
				}
			}
		}
		tried = true
		return []byte(opts.Password), nil
	}

	msg, err := openpgp.ReadMessage(input, ring, prompt, pgpConfig)
	if err != nil {
		return nil, errors.Errorf("could not decrypt input, reason: %w", err)
	}
	return msg.UnverifiedBody, nil
}
