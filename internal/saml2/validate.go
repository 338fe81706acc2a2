package saml2

import (
	"crypto/x509"
	"net/http"
	"time"

	"github.com/beevik/etree"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/adapters/driven/signature"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/domain"
	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/ports"
)

// ClockSkew is the acceptable clock difference between this relying
// party and the asserting party.
const ClockSkew = 5 * time.Minute

// Validator runs the response validation pipeline: a strictly ordered
// chain of independent checks over one inbound response message. Each
// check either passes silently or raises a ValidationError that aborts
// the whole chain. The order encodes a security invariant: signature
// verification runs before decryption, and every content check runs
// only on decrypted, trusted material.
type Validator struct {
	clock               clockwork.Clock
	logger              *zap.Logger
	metrics             ports.MetricsRecorder
	verifierFor         ports.SignatureVerifierFactory
	clockSkew           time.Duration
	lenientAuthnContext bool
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithValidatorClock injects the clock used for all freshness checks.
func WithValidatorClock(clock clockwork.Clock) ValidatorOption {
	return func(v *Validator) { v.clock = clock }
}

// WithValidatorLogger sets the logger.
func WithValidatorLogger(logger *zap.Logger) ValidatorOption {
	return func(v *Validator) { v.logger = logger }
}

// WithValidatorMetrics sets the metrics recorder.
func WithValidatorMetrics(m ports.MetricsRecorder) ValidatorOption {
	return func(v *Validator) { v.metrics = m }
}

// WithSignatureVerifierFactory replaces how a signature verifier is
// constructed from the trust anchors of a registration.
func WithSignatureVerifierFactory(factory ports.SignatureVerifierFactory) ValidatorOption {
	return func(v *Validator) {
		if factory != nil {
			v.verifierFor = factory
		}
	}
}

// WithLenientAuthnContext makes an unknown AuthnContextClassRef resolve
// to the weakest class instead of failing. The strict default treats an
// unknown reference as an error; this option exists for IdPs that
// assert non-catalog references while no minimum strength is enforced.
func WithLenientAuthnContext() ValidatorOption {
	return func(v *Validator) { v.lenientAuthnContext = true }
}

// NewValidator creates a Validator with the default 5 minute clock skew
// window.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		clock:     clockwork.NewRealClock(),
		clockSkew: ClockSkew,
		verifierFor: func(certs []*x509.Certificate) ports.SignatureVerifier {
			return signature.NewXMLDsigVerifier(certs)
		},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidatedResponse is the pipeline result. A non-success status
// terminates the chain without error: Success is false, Assertion nil.
type ValidatedResponse struct {
	Success    bool
	StatusCode string
	Assertion  *Assertion
	RelayState string
}

// validationContext threads the message and its environment through the
// checks. The assertion accumulator is the one piece of mutable state:
// the decryption check appends decrypted assertions to it.
type validationContext struct {
	response   *Response
	doc        *etree.Document
	assertions []Assertion

	request     ports.RequestInfo
	reqCtx      domain.AuthnRequestContext
	trust       *domain.TrustConfiguration
	verifierFor ports.SignatureVerifierFactory

	now  time.Time
	skew time.Duration

	lenientAuthnContext bool

	// terminated is set by the status check for non-success responses:
	// the remaining success-only checks are skipped without an error.
	terminated bool
}

type check struct {
	name string
	fn   func(*validationContext) error
}

// The canonical check order. Changing it changes the security
// properties of the pipeline.
var checks = []check{
	{"message_freshness", checkMessageFreshness},
	{"message_id", checkMessageID},
	{"issuer", checkIssuer},
	{"signature", checkSignature},
	{"decryption", checkDecryption},
	{"status", checkStatus},
	{"assertion_structure", checkAssertionStructure},
	{"subject_confirmation", checkSubjectConfirmation},
	{"audience", checkAudience},
	{"endpoint", checkEndpoint},
	{"authn_instant", checkAuthnInstant},
	{"subject_identifier", checkSubjectIdentifier},
	{"authn_strength", checkAuthnStrength},
}

// Validate runs the pipeline over one base64-encoded response.
func (v *Validator) Validate(encodedResponse, relayState string, request ports.RequestInfo, reqCtx domain.AuthnRequestContext, trust *domain.TrustConfiguration) (*ValidatedResponse, error) {
	if trust == nil {
		return nil, domain.ErrNoTrustConfiguration
	}
	registrationID := trust.RegistrationID

	resp, doc, err := ParseResponse(encodedResponse)
	if err != nil {
		v.recordOutcome(registrationID, false, "parse")
		return nil, domain.AuthError("SAML response is not parseable", err)
	}

	vc := &validationContext{
		response:            resp,
		doc:                 doc,
		assertions:          append([]Assertion(nil), resp.Assertions...),
		request:             request,
		reqCtx:              reqCtx,
		trust:               trust,
		verifierFor:         v.verifierFor,
		now:                 v.clock.Now(),
		skew:                v.clockSkew,
		lenientAuthnContext: v.lenientAuthnContext,
	}

	for _, c := range checks {
		if err := c.fn(vc); err != nil {
			if v.logger != nil {
				v.logger.Warn("response validation failed",
					zap.String("registration_id", registrationID),
					zap.String("check", c.name),
					zap.Error(err))
			}
			v.recordOutcome(registrationID, false, c.name)
			return nil, err
		}
		if vc.terminated {
			v.recordOutcome(registrationID, true, "")
			return &ValidatedResponse{
				Success:    false,
				StatusCode: statusCode(vc.response),
				RelayState: relayState,
			}, nil
		}
	}

	v.recordOutcome(registrationID, true, "")
	return &ValidatedResponse{
		Success:    true,
		StatusCode: StatusSuccess,
		Assertion:  &vc.assertions[0],
		RelayState: relayState,
	}, nil
}

func (v *Validator) recordOutcome(registrationID string, success bool, check string) {
	if v.metrics != nil {
		v.metrics.RecordResponseValidation(registrationID, success, check)
	}
}

func statusCode(r *Response) string {
	if r.Status == nil {
		return ""
	}
	return r.Status.StatusCode.Value
}

// 1. Message freshness: the issue instant must be within the clock skew
// window around now.
func checkMessageFreshness(vc *validationContext) error {
	issued := vc.response.IssueInstant
	if issued.IsZero() {
		return domain.NewValidationError("message_freshness", "Response has no IssueInstant")
	}
	if issued.After(vc.now.Add(vc.skew)) || issued.Before(vc.now.Add(-vc.skew)) {
		return domain.NewValidationError("message_freshness",
			"Response issue instant %s is outside the acceptable clock skew window", issued.Format(time.RFC3339))
	}
	return nil
}

// 2. Message id presence.
func checkMessageID(vc *validationContext) error {
	if vc.response.ID == "" {
		return domain.NewValidationError("message_id", "Response has no ID set")
	}
	return nil
}

// 3. Issuer: present, entity name format (when declared) and matching
// the expected asserting party entity id.
func checkIssuer(vc *validationContext) error {
	issuer := vc.response.Issuer
	if issuer == nil || issuer.Value == "" {
		return domain.NewValidationError("issuer", "Response has no issuer")
	}
	if issuer.Format != "" && issuer.Format != NameIDFormatEntity {
		return domain.NewValidationError("issuer", "Invalid issuer name format %q", issuer.Format)
	}
	if issuer.Value != vc.trust.AssertingParty.EntityID {
		return domain.NewValidationError("issuer", "Invalid issuer %q", issuer.Value)
	}
	return nil
}

// 4. Signature: required for success responses (error responses may be
// unsigned). Cryptographic validation succeeds if any verification
// credential of the trust configuration validates the signature. The
// validated element replaces the working document so later checks only
// ever see signed content (signature wrapping defense).
func checkSignature(vc *validationContext) error {
	root := vc.doc.Root()
	signatureEl := findChildByLocalName(root, "Signature")
	if signatureEl == nil {
		if vc.response.Success() {
			return domain.NewValidationError("signature", "Response must be signed but no signature present")
		}
		return nil
	}

	verifier := vc.verifierFor(vc.trust.AssertingParty.VerificationCertificates)
	validated, err := verifier.Verify(root)
	if err != nil {
		return domain.NewValidationError("signature", "Response signature validation failed: %v", err)
	}

	// Re-serialize and re-parse the validated element: all later checks
	// operate on the signed content only.
	validatedDoc := etree.NewDocument()
	validatedDoc.SetRoot(validated)
	raw, err := validatedDoc.WriteToBytes()
	if err != nil {
		return domain.NewValidationError("signature", "Response could not be re-serialized after validation: %v", err)
	}
	resp, doc, err := parseResponseXML(raw)
	if err != nil {
		return domain.NewValidationError("signature", "Validated response is not parseable: %v", err)
	}
	vc.response = resp
	vc.doc = doc
	vc.assertions = append([]Assertion(nil), resp.Assertions...)
	return nil
}

// 5. Decryption: decrypt every encrypted assertion with every
// decryption credential and append the plaintext assertions to the
// accumulator. A no-op when nothing is encrypted.
func checkDecryption(vc *validationContext) error {
	decrypted, err := DecryptAssertions(vc.doc, vc.trust.DecryptionCredentials)
	if err != nil {
		return err
	}
	vc.assertions = append(vc.assertions, decrypted...)
	return nil
}

// 6. Status: only success responses proceed to the content checks. A
// non-success status terminates the chain without raising.
func checkStatus(vc *validationContext) error {
	if vc.response.Status == nil {
		return domain.NewValidationError("status", "Response has no status")
	}
	if !vc.response.Success() {
		vc.terminated = true
	}
	return nil
}

// 7. Structural validation: exactly one assertion carrying exactly one
// authn statement and one attribute statement, a subject, and version
// 2.0.
func checkAssertionStructure(vc *validationContext) error {
	if len(vc.assertions) != 1 {
		return domain.NewValidationError("assertion_structure",
			"Response must have exactly one Assertion but has %d", len(vc.assertions))
	}
	assertion := &vc.assertions[0]
	if assertion.Version != SAMLVersion {
		return domain.NewValidationError("assertion_structure",
			"Assertion version must be 2.0 but is %q", assertion.Version)
	}
	if len(assertion.AuthnStatements) != 1 {
		return domain.NewValidationError("assertion_structure",
			"Assertion must have exactly one AuthnStatement but has %d", len(assertion.AuthnStatements))
	}
	if len(assertion.AttributeStatements) != 1 {
		return domain.NewValidationError("assertion_structure",
			"Assertion must have exactly one AttributeStatement but has %d", len(assertion.AttributeStatements))
	}
	if assertion.Subject == nil {
		return domain.NewValidationError("assertion_structure", "Assertion has no Subject")
	}
	return nil
}

// 8. Subject confirmation: exactly one bearer confirmation whose data
// matches this round-trip (recipient, timing, correlation, address).
func checkSubjectConfirmation(vc *validationContext) error {
	assertion := &vc.assertions[0]

	var bearers []SubjectConfirmation
	for _, sc := range assertion.Subject.SubjectConfirmations {
		if sc.Method == BearerConfirmationMethod {
			bearers = append(bearers, sc)
		}
	}
	if len(bearers) != 1 {
		return domain.NewValidationError("subject_confirmation",
			"Assertion must have exactly one bearer SubjectConfirmation but has %d", len(bearers))
	}

	data := bearers[0].SubjectConfirmationData
	if data == nil {
		return domain.NewValidationError("subject_confirmation", "SubjectConfirmation has no SubjectConfirmationData")
	}
	if data.Recipient != vc.trust.AssertionConsumerServiceURL {
		return domain.NewValidationError("subject_confirmation", "Invalid recipient %q", data.Recipient)
	}
	// Bearer assertions forbid NotBefore on the confirmation data.
	if !data.NotBefore.IsZero() {
		return domain.NewValidationError("subject_confirmation", "SubjectConfirmationData must not contain NotBefore")
	}
	if data.NotOnOrAfter.IsZero() {
		return domain.NewValidationError("subject_confirmation", "SubjectConfirmationData has no NotOnOrAfter")
	}
	if !vc.now.Before(data.NotOnOrAfter.Add(vc.skew)) {
		return domain.NewValidationError("subject_confirmation", "SubjectConfirmationData already outdated")
	}
	if data.InResponseTo != vc.reqCtx.AuthnRequestID {
		return domain.NewValidationError("subject_confirmation",
			"InResponseTo %q does not match the authentication request id", data.InResponseTo)
	}
	if data.Address != "" && data.Address != vc.request.ClientAddress {
		return domain.NewValidationError("subject_confirmation", "Invalid subject confirmation address %q", data.Address)
	}
	return nil
}

// 9. Audience restriction: conditions present, time bounds coherent and
// current, and our entity id among the audiences.
func checkAudience(vc *validationContext) error {
	conditions := vc.assertions[0].Conditions
	if conditions == nil {
		return domain.NewValidationError("audience", "Assertion has no Conditions")
	}
	notBefore, notOnOrAfter := conditions.NotBefore, conditions.NotOnOrAfter
	if !notBefore.IsZero() && !notOnOrAfter.IsZero() && notOnOrAfter.Before(notBefore) {
		return domain.NewValidationError("audience", "Conditions NotOnOrAfter precedes NotBefore")
	}
	if !notBefore.IsZero() && vc.now.Before(notBefore.Add(-vc.skew)) {
		return domain.NewValidationError("audience", "Conditions not valid yet")
	}
	if !notOnOrAfter.IsZero() && !vc.now.Before(notOnOrAfter.Add(vc.skew)) {
		return domain.NewValidationError("audience", "Conditions already outdated")
	}
	for _, restriction := range conditions.AudienceRestrictions {
		for _, audience := range restriction.Audiences {
			if audience.Value == vc.trust.EntityID {
				return nil
			}
		}
	}
	return domain.NewValidationError("audience", "Audience restriction does not contain entity id %q", vc.trust.EntityID)
}

// 10. Endpoint: the message must arrive as a POST at the assertion
// consumer service it was destined for.
func checkEndpoint(vc *validationContext) error {
	if vc.request.Method != "" && vc.request.Method != http.MethodPost {
		return domain.NewValidationError("endpoint", "Response must arrive via POST but came via %s", vc.request.Method)
	}
	if vc.request.URL != "" && vc.request.URL != vc.trust.AssertionConsumerServiceURL {
		return domain.NewValidationError("endpoint",
			"Response arrived at %q instead of the assertion consumer service", vc.request.URL)
	}
	destination := vc.response.Destination
	if destination != "" && destination != vc.trust.AssertionConsumerServiceURL {
		return domain.NewValidationError("endpoint",
			"Response destination %q does not match the assertion consumer service", destination)
	}
	return nil
}

// 11. Authn instant freshness: enforced only when the caller requested
// forced authentication or recorded a maximum session age.
func checkAuthnInstant(vc *validationContext) error {
	statement := vc.assertions[0].AuthnStatements[0]

	var maxAge time.Duration
	switch {
	case vc.reqCtx.ForceAuthn:
		// A freshly forced authentication must not be older than the
		// skew window.
		maxAge = vc.skew
	case vc.reqCtx.MaxSessionAge != nil:
		maxAge = time.Duration(*vc.reqCtx.MaxSessionAge)*time.Second + vc.skew
	default:
		return nil
	}

	if statement.AuthnInstant.IsZero() {
		return domain.NewValidationError("authn_instant", "AuthnStatement has no AuthnInstant")
	}
	if vc.now.Sub(statement.AuthnInstant) > maxAge {
		return domain.NewValidationError("authn_instant",
			"Authentication instant %s is older than the allowed maximum age",
			statement.AuthnInstant.Format(time.RFC3339))
	}
	return nil
}

// 12. Subject identifier: exactly one of the two recognized subject
// identifier attributes must be asserted.
func checkSubjectIdentifier(vc *validationContext) error {
	count := 0
	for _, attr := range vc.assertions[0].AttributeStatements[0].Attributes {
		if attr.Name == AttributeSubjectID || attr.Name == AttributePairwiseID {
			count++
		}
	}
	if count != 1 {
		return domain.NewValidationError("subject_identifier",
			"Expected exactly one subject identifier attribute but found %d", count)
	}
	return nil
}

// 13. Authentication strength: enforced only when a minimum NIST level
// was requested. An unknown class reference is an error unless lenient
// resolution was configured.
func checkAuthnStrength(vc *validationContext) error {
	if vc.reqCtx.NistLevel == nil {
		return nil
	}
	class, err := resolveAuthnContextClass(&vc.assertions[0], vc.lenientAuthnContext)
	if err != nil {
		return err
	}
	if class.NistLevel < *vc.reqCtx.NistLevel {
		return domain.NewValidationError("authn_strength",
			"Authentication strength %d is weaker than requested %d", class.NistLevel, *vc.reqCtx.NistLevel)
	}
	return nil
}

// resolveAuthnContextClass maps the assertion's class reference to the
// catalog.
func resolveAuthnContextClass(assertion *Assertion, lenient bool) (domain.AuthnContextClass, error) {
	reference := ""
	if len(assertion.AuthnStatements) > 0 && assertion.AuthnStatements[0].AuthnContext != nil {
		reference = assertion.AuthnStatements[0].AuthnContext.AuthnContextClassRef
	}
	class, ok := domain.AuthnContextClassByReference(reference)
	if !ok && !lenient {
		return domain.AuthnContextNone, domain.NewValidationError("authn_strength",
			"Unknown authentication context class reference %q", reference)
	}
	return class, nil
}

// findChildByLocalName returns the first direct child element with the
// given local name, namespace prefixes ignored.
func findChildByLocalName(parent *etree.Element, localName string) *etree.Element {
	if parent == nil {
		return nil
	}
	for _, child := range parent.ChildElements() {
		if child.Tag == localName {
			return child
		}
	}
	return nil
}
