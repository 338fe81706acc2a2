package saml2

import (
	"encoding/xml"

	"github.com/beevik/etree"
	"github.com/crewjam/saml/xmlenc"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
)

// DecryptAssertions decrypts every EncryptedAssertion in the document,
// trying each decryption credential in turn so key-rotation overlap
// never breaks inbound responses. Returns the decrypted assertions; a
// document without encrypted assertions yields none and no error.
func DecryptAssertions(doc *etree.Document, credentials []domain.Credential) ([]Assertion, error) {
	encryptedEls := doc.FindElements("//EncryptedAssertion")
	if len(encryptedEls) == 0 {
		return nil, nil
	}
	if len(credentials) == 0 {
		return nil, domain.NewValidationError("decryption", "Response contains encrypted assertions but no decryption credential is available")
	}

	var out []Assertion
	for _, encryptedEl := range encryptedEls {
		dataEl := encryptedEl.FindElement("./EncryptedData")
		if dataEl == nil {
			return nil, domain.NewValidationError("decryption", "EncryptedAssertion has no EncryptedData")
		}

		var plaintext []byte
		var lastErr error
		for _, credential := range credentials {
			plaintext, lastErr = xmlenc.Decrypt(credential.PrivateKey, dataEl)
			if lastErr == nil {
				break
			}
		}
		if lastErr != nil {
			return nil, domain.NewValidationError("decryption", "Could not decrypt assertion: %v", lastErr)
		}

		var assertion Assertion
		if err := xml.Unmarshal(plaintext, &assertion); err != nil {
			return nil, domain.NewValidationError("decryption", "Decrypted assertion is not parseable: %v", err)
		}
		out = append(out, assertion)
	}
	return out, nil
}
