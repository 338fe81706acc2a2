package domain

import (
	"strconv"
	"time"
)

// AttributeValue is one typed attribute value from a validated
// response: string, int, bool, time.Time, []byte or a URI string,
// depending on the declared xsi:type.
type AttributeValue any

// Saml2Data is the validated, flattened result of one inbound response:
// immutable once built by the validation pipeline.
type Saml2Data struct {
	SubjectID    string
	NameID       string
	NameIDFormat string
	SessionIndex string
	RelayState   string

	AuthnInstant      time.Time
	AuthnContextClass AuthnContextClass

	// Attributes maps attribute names to their values. A scalar
	// attribute is a one-element list; accessors below make the two
	// shapes interchangeable for consumers.
	Attributes map[string][]AttributeValue
}

// StringValues returns every value of the named attribute coerced to
// string where possible. Missing attributes return nil.
func (d *Saml2Data) StringValues(name string) []string {
	values, ok := d.Attributes[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case int:
			out = append(out, strconv.Itoa(t))
		case bool:
			out = append(out, strconv.FormatBool(t))
		}
	}
	return out
}

// StringValue returns the single string value of the named attribute,
// or "" and false when absent.
func (d *Saml2Data) StringValue(name string) (string, bool) {
	values := d.StringValues(name)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// IntValue returns the single integer value of the named attribute.
func (d *Saml2Data) IntValue(name string) (int, bool) {
	values, ok := d.Attributes[name]
	if !ok || len(values) == 0 {
		return 0, false
	}
	switch t := values[0].(type) {
	case int:
		return t, true
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// BoolValue returns the single boolean value of the named attribute.
func (d *Saml2Data) BoolValue(name string) (bool, bool) {
	values, ok := d.Attributes[name]
	if !ok || len(values) == 0 {
		return false, false
	}
	switch t := values[0].(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, false
		}
		return b, true
	}
	return false, false
}
