package utils

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SignatureVerifier checks that signature signs msg under the serialized
// public key pk. Implementations must never panic or error; any failure is
// reported as false.
type SignatureVerifier func(pk []byte, msg []byte, signature []byte) bool

// GenerateKeyPair generates a new key pair
func GenerateKeyPair(bits int) (*rsa.PrivateKey, *rsa.PublicKey) {
	privkey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil
	}
	return privkey, &privkey.PublicKey
}

// PrivateKeyToBytes private key to bytes
func PrivateKeyToBytes(priv *rsa.PrivateKey) []byte {
	privBytes := pem.EncodeToMemory(
		&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(priv),
		},
	)

	return privBytes
}

// PublicKeyToBytes public key to bytes
func PublicKeyToBytes(pub *rsa.PublicKey) []byte {
	pubASN1, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil
	}

	return pubASN1
}

// BytesToPrivateKey parses a PEM encoded PKCS1 private key.
func BytesToPrivateKey(priv []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(priv)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "parse PKCS1 private key")
	}
	return key, nil
}

// BytesToPublicKey bytes to public key
func BytesToPublicKey(pub []byte) *rsa.PublicKey {
	ifc, err := x509.ParsePKIXPublicKey(pub)
	if err != nil {
		return nil
	}
	key, ok := ifc.(*rsa.PublicKey)
	if !ok {
		return nil
	}
	return key
}

// Hash message using SHA256
func SHA256(msg []byte) []byte {
	newhash := crypto.SHA256
	pssh := newhash.New()
	pssh.Write(msg)
	return pssh.Sum(nil)
}

// Sign a message's SHA256 digest with provided private key.
func Sign(msg []byte, sk *rsa.PrivateKey) ([]byte, error) {
	digest := SHA256(msg)

	var opts rsa.PSSOptions
	opts.SaltLength = rsa.PSSSaltLengthAuto
	signature, err := rsa.SignPSS(rand.Reader, sk, crypto.SHA256, digest, &opts)
	if err != nil {
		return nil, errors.Wrap(err, "sign message")
	}

	return signature, nil
}

// Verify the given signature matches the message.
func Verify(msg []byte, pk *rsa.PublicKey, signature []byte) bool {
	if pk == nil {
		return false
	}
	digest := SHA256(msg)

	var opts rsa.PSSOptions
	opts.SaltLength = rsa.PSSSaltLengthAuto

	return rsa.VerifyPSS(pk, crypto.SHA256, digest, signature, &opts) == nil
}

// VerifySignature is the default SignatureVerifier. The public key is PKIX
// DER bytes as produced by PublicKeyToBytes. A malformed key, a malformed
// signature or a panic in the crypto backend all count as a failed check.
func VerifySignature(pk []byte, msg []byte, signature []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"module": logModule, "panic": r}).Warn("signature backend failure")
			ok = false
		}
	}()

	key := BytesToPublicKey(pk)
	if key == nil {
		return false
	}
	return Verify(msg, key, signature)
}
