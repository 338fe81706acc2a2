package credentials

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// loadKeyPair reads a PEM keystore file containing one private key and
// its certificate. Supports PKCS#8 and PKCS#1 keys; the first
// CERTIFICATE block is taken as the credential certificate.
func loadKeyPair(path string) (*rsa.PrivateKey, *x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read keystore %s: %w", path, err)
	}

	var key *rsa.PrivateKey
	var cert *x509.Certificate
	for {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		data = rest

		switch block.Type {
		case "CERTIFICATE":
			if cert != nil {
				continue
			}
			parsed, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, nil, fmt.Errorf("parse certificate in %s: %w", path, err)
			}
			cert = parsed
		case "PRIVATE KEY", "RSA PRIVATE KEY":
			if key != nil {
				continue
			}
			parsed, err := parsePrivateKey(block.Bytes)
			if err != nil {
				return nil, nil, fmt.Errorf("parse private key in %s: %w", path, err)
			}
			key = parsed
		}
	}

	if key == nil {
		return nil, nil, fmt.Errorf("keystore %s contains no private key", path)
	}
	if cert == nil {
		return nil, nil, fmt.Errorf("keystore %s contains no certificate", path)
	}
	return key, cert, nil
}

// parsePrivateKey tries PKCS#8 first (modern format), then PKCS#1.
func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("key is not RSA")
		}
		return rsaKey, nil
	}
	return x509.ParsePKCS1PrivateKey(der)
}
