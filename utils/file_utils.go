package utils

import (
	"crypto/rand"
	"crypto/rsa"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// KeyBits is the RSA modulus size of generated keys.
const KeyBits = 2048

// ParseKeyFile loads the private key at fPath, generating and saving a new
// one first when createNewKey is set.
func ParseKeyFile(fPath string, createNewKey bool) (*rsa.PrivateKey, error) {
	if fPath == "" {
		return nil, errors.New("file path is missing")
	}
	// Generate new key and save to given path
	if createNewKey {
		log.WithFields(log.Fields{"module": logModule, "path": fPath}).Info("generating a new key")
		userKey, err := rsa.GenerateKey(rand.Reader, KeyBits)
		if err != nil {
			return nil, errors.Wrap(err, "generate key")
		}
		if err := SavePrivateKeyToFile(userKey, fPath); err != nil {
			return nil, err
		}
		return userKey, nil
	}
	// Read key from exsiting rsa file
	userKey, err := ReadKeyFromFPath(fPath)
	if err != nil {
		return nil, errors.Wrapf(err, "read key from %s", fPath)
	}
	return userKey, nil
}

func SavePrivateKeyToFile(privkey *rsa.PrivateKey, fpath string) error {
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrapf(err, "open %s", fpath)
	}
	defer f.Close()
	if _, err := f.Write(PrivateKeyToBytes(privkey)); err != nil {
		return errors.Wrapf(err, "save key in %s", fpath)
	}
	log.WithFields(log.Fields{"module": logModule, "path": fpath}).Info("saved private key")

	return nil
}

func ReadKeyFromFPath(fPath string) (*rsa.PrivateKey, error) {
	fileContent, err := ioutil.ReadFile(fPath)
	if err != nil {
		return nil, err
	}
	if len(fileContent) == 0 {
		return nil, errors.New("key file is empty")
	}
	return BytesToPrivateKey(fileContent)
}
