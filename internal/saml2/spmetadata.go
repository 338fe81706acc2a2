package saml2

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/crewjam/saml"
	"github.com/jonboulle/clockwork"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
)

// MetadataValidity is the advertised validity window of a generated SP
// metadata document. Documents are generated per request and never
// cached long-term.
const MetadataValidity = 7 * 24 * time.Hour

// Metadata extension namespaces.
const (
	algSupportNamespace       = "urn:oasis:names:tc:SAML:metadata:algsupport"
	entityAttributesNamespace = "urn:oasis:names:tc:SAML:metadata:attribute"
	subjectIDRequirementName  = "urn:oasis:names:tc:SAML:profiles:subject-id:req"
	attributeNameFormatURI    = "urn:oasis:names:tc:SAML:2.0:attrname-format:uri"
)

// MetadataBuilder serializes this relying party's SP metadata document.
type MetadataBuilder struct {
	policy *domain.AlgorithmPolicy
	clock  clockwork.Clock
}

// NewMetadataBuilder creates a builder advertising the algorithms the
// given policy allows.
func NewMetadataBuilder(policy *domain.AlgorithmPolicy, clock clockwork.Clock) *MetadataBuilder {
	if policy == nil {
		policy = domain.DefaultAlgorithmPolicy()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MetadataBuilder{policy: policy, clock: clock}
}

// Build produces the SP metadata document for the given trust
// configuration.
func (b *MetadataBuilder) Build(trust *domain.TrustConfiguration) ([]byte, error) {
	if trust == nil {
		return nil, domain.ErrNoTrustConfiguration
	}

	descriptor := saml.EntityDescriptor{
		EntityID:   trust.EntityID,
		ValidUntil: b.clock.Now().UTC().Add(MetadataValidity),
		SPSSODescriptors: []saml.SPSSODescriptor{{
			SSODescriptor: saml.SSODescriptor{
				RoleDescriptor: saml.RoleDescriptor{
					ProtocolSupportEnumeration: ProtocolNamespace,
					KeyDescriptors:             b.keyDescriptors(trust),
				},
				NameIDFormats: []saml.NameIDFormat{saml.TransientNameIDFormat},
			},
			AssertionConsumerServices: []saml.IndexedEndpoint{{
				Binding:  HTTPPostBinding,
				Location: trust.AssertionConsumerServiceURL,
				Index:    1,
			}},
		}},
	}

	raw, err := xml.Marshal(descriptor)
	if err != nil {
		return nil, fmt.Errorf("marshal SP metadata: %w", err)
	}
	return b.insertExtensions(raw)
}

// keyDescriptors lists every signing and decryption credential.
// Decryption descriptors additionally advertise the allowed
// data-encryption algorithms.
func (b *MetadataBuilder) keyDescriptors(trust *domain.TrustConfiguration) []saml.KeyDescriptor {
	var descriptors []saml.KeyDescriptor
	for _, credential := range trust.SigningCredentials {
		descriptors = append(descriptors, saml.KeyDescriptor{
			Use:     "signing",
			KeyInfo: keyInfo(credential),
		})
	}
	for _, credential := range trust.DecryptionCredentials {
		var methods []saml.EncryptionMethod
		for _, algorithm := range b.policy.DataEncryptionAlgorithms() {
			methods = append(methods, saml.EncryptionMethod{Algorithm: algorithm})
		}
		descriptors = append(descriptors, saml.KeyDescriptor{
			Use:               "encryption",
			KeyInfo:           keyInfo(credential),
			EncryptionMethods: methods,
		})
	}
	return descriptors
}

func keyInfo(credential domain.Credential) saml.KeyInfo {
	return saml.KeyInfo{
		X509Data: saml.X509Data{
			X509Certificates: []saml.X509Certificate{{
				Data: base64.StdEncoding.EncodeToString(credential.Certificate.Raw),
			}},
		},
	}
}

// insertExtensions adds the Extensions block crewjam's metadata types
// do not model: the subject-id entity attribute requirement and the
// allowed signing and digest algorithms, filtered through the policy so
// a disabled algorithm is never advertised.
func (b *MetadataBuilder) insertExtensions(raw []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("re-parse SP metadata: %w", err)
	}
	root := doc.Root()

	extensions := etree.NewElement("Extensions")
	extensions.Space = root.Space

	entityAttributes := extensions.CreateElement("mdattr:EntityAttributes")
	entityAttributes.CreateAttr("xmlns:mdattr", entityAttributesNamespace)
	attribute := entityAttributes.CreateElement("saml:Attribute")
	attribute.CreateAttr("xmlns:saml", AssertionNamespace)
	attribute.CreateAttr("Name", subjectIDRequirementName)
	attribute.CreateAttr("NameFormat", attributeNameFormatURI)
	attributeValue := attribute.CreateElement("saml:AttributeValue")
	attributeValue.SetText("subject-id")

	for _, algorithm := range b.policy.SigningAlgorithms() {
		method := extensions.CreateElement("alg:SigningMethod")
		method.CreateAttr("xmlns:alg", algSupportNamespace)
		method.CreateAttr("Algorithm", algorithm)
	}
	for _, algorithm := range b.policy.DigestAlgorithms() {
		method := extensions.CreateElement("alg:DigestMethod")
		method.CreateAttr("xmlns:alg", algSupportNamespace)
		method.CreateAttr("Algorithm", algorithm)
	}

	// Extensions must precede the role descriptors.
	root.InsertChildAt(0, extensions)

	doc.Indent(2)
	return doc.WriteToBytes()
}
