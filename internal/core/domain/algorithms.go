package domain

// XML security algorithm URIs advertised and accepted by this relying
// party.
const (
	AlgSigningRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSigningRSASHA384 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha384"
	AlgSigningRSASHA512 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha512"
	AlgSigningRSASHA1   = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"

	AlgDigestSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"
	AlgDigestSHA512 = "http://www.w3.org/2001/04/xmlenc#sha512"
	AlgDigestSHA1   = "http://www.w3.org/2000/09/xmldsig#sha1"

	AlgDataEncryptionAES128GCM = "http://www.w3.org/2009/xmlenc11#aes128-gcm"
	AlgDataEncryptionAES256GCM = "http://www.w3.org/2009/xmlenc11#aes256-gcm"
	AlgDataEncryptionAES128CBC = "http://www.w3.org/2001/04/xmlenc#aes128-cbc"
	AlgDataEncryptionAES256CBC = "http://www.w3.org/2001/04/xmlenc#aes256-cbc"
)

// AlgorithmPolicy is the process-wide algorithm allow list. It is built
// once at startup and passed by reference to every component that needs
// it; there is no ambient mutable registry. Excluded algorithms win
// over included ones and are never advertised in SP metadata.
type AlgorithmPolicy struct {
	signing        []string
	digest         []string
	dataEncryption []string
	excluded       map[string]bool
}

// NewAlgorithmPolicy builds a policy from include and exclude lists.
// Empty include lists fall back to the defaults.
func NewAlgorithmPolicy(signing, digest, dataEncryption, exclude []string) *AlgorithmPolicy {
	if len(signing) == 0 {
		signing = []string{AlgSigningRSASHA256, AlgSigningRSASHA512}
	}
	if len(digest) == 0 {
		digest = []string{AlgDigestSHA256, AlgDigestSHA512}
	}
	if len(dataEncryption) == 0 {
		dataEncryption = []string{
			AlgDataEncryptionAES128GCM,
			AlgDataEncryptionAES256GCM,
			AlgDataEncryptionAES128CBC,
			AlgDataEncryptionAES256CBC,
		}
	}
	excluded := make(map[string]bool, len(exclude))
	for _, uri := range exclude {
		excluded[uri] = true
	}
	return &AlgorithmPolicy{
		signing:        signing,
		digest:         digest,
		dataEncryption: dataEncryption,
		excluded:       excluded,
	}
}

// DefaultAlgorithmPolicy returns the default policy: SHA-256/512 based
// signing and digests, AES-GCM and AES-CBC data encryption, SHA-1
// excluded.
func DefaultAlgorithmPolicy() *AlgorithmPolicy {
	return NewAlgorithmPolicy(nil, nil, nil, []string{AlgSigningRSASHA1, AlgDigestSHA1})
}

func (p *AlgorithmPolicy) filter(uris []string) []string {
	var out []string
	for _, uri := range uris {
		if !p.excluded[uri] {
			out = append(out, uri)
		}
	}
	return out
}

// SigningAlgorithms returns the allowed signing algorithm URIs.
func (p *AlgorithmPolicy) SigningAlgorithms() []string { return p.filter(p.signing) }

// DigestAlgorithms returns the allowed digest algorithm URIs.
func (p *AlgorithmPolicy) DigestAlgorithms() []string { return p.filter(p.digest) }

// DataEncryptionAlgorithms returns the allowed data-encryption
// algorithm URIs advertised on decryption key descriptors.
func (p *AlgorithmPolicy) DataEncryptionAlgorithms() []string { return p.filter(p.dataEncryption) }

// Allows reports whether the given algorithm URI is allowed.
func (p *AlgorithmPolicy) Allows(uri string) bool {
	if p.excluded[uri] {
		return false
	}
	for _, lists := range [][]string{p.signing, p.digest, p.dataEncryption} {
		for _, u := range lists {
			if u == uri {
				return true
			}
		}
	}
	return false
}
