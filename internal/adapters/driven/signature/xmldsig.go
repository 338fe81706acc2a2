// Package signature implements XML signature verification and signing
// over goxmldsig.
package signature

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/ports"
)

// XMLDsigVerifier validates enveloped XML signatures against a set of
// trust anchor certificates. Any configured certificate may verify the
// signature, so overlapping certificates during IdP key rotation are
// accepted.
type XMLDsigVerifier struct {
	certStore dsig.X509CertificateStore
}

// NewXMLDsigVerifier creates a verifier trusting the given certificates.
func NewXMLDsigVerifier(certs []*x509.Certificate) *XMLDsigVerifier {
	return &XMLDsigVerifier{
		certStore: &dsig.MemoryX509CertificateStore{Roots: certs},
	}
}

// Verify validates the enveloped signature on el and returns the
// validated element. Callers must use the returned element, not the
// input: only the signed subtree is trustworthy (signature wrapping
// defense).
func (v *XMLDsigVerifier) Verify(el *etree.Element) (*etree.Element, error) {
	ctx := dsig.NewDefaultValidationContext(v.certStore)
	validated, err := ctx.Validate(el)
	if err != nil {
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}
	return validated, nil
}

// XMLDsigSigner adds an enveloped signature to an XML document using
// the given key pair.
type XMLDsigSigner struct {
	privateKey  *rsa.PrivateKey
	certificate *x509.Certificate
}

// NewXMLDsigSigner creates a signer with the given key pair.
func NewXMLDsigSigner(privateKey *rsa.PrivateKey, certificate *x509.Certificate) *XMLDsigSigner {
	return &XMLDsigSigner{privateKey: privateKey, certificate: certificate}
}

// Sign parses data, signs the root element and returns the serialized
// signed document.
func (s *XMLDsigSigner) Sign(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty document")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("empty XML document")
	}

	keyStore := dsig.TLSCertKeyStore(tls.Certificate{
		Certificate: [][]byte{s.certificate.Raw},
		PrivateKey:  s.privateKey,
	})
	signingContext := dsig.NewDefaultSigningContext(keyStore)
	signingContext.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")

	signedRoot, err := signingContext.SignEnveloped(root)
	if err != nil {
		return nil, fmt.Errorf("sign XML: %w", err)
	}
	doc.SetRoot(signedRoot)

	signed, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize signed XML: %w", err)
	}
	return signed, nil
}

var _ ports.SignatureVerifier = (*XMLDsigVerifier)(nil)
var _ ports.DocumentSigner = (*XMLDsigSigner)(nil)
