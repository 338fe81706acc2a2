package ports

import (
	"crypto/x509"

	"github.com/beevik/etree"
)

// SignatureVerifier validates the enveloped XML signature of a protocol
// message against a set of trust anchor certificates and returns the
// validated element. Validation succeeds if any configured certificate
// verifies the signature (key-rotation overlap).
type SignatureVerifier interface {
	Verify(el *etree.Element) (*etree.Element, error)
}

// SignatureVerifierFactory builds a SignatureVerifier trusting the
// given certificates.
type SignatureVerifierFactory func(certs []*x509.Certificate) SignatureVerifier

// DocumentSigner adds an enveloped XML signature to a document.
type DocumentSigner interface {
	Sign(data []byte) ([]byte, error)
}
