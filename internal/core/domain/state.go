package domain

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// The OIDC state parameter base64-encodes "<random>:<customPart>". Any
// party holding the state string can recover the custom part; the
// random prefix keeps the state unguessable.

// BuildState encodes a state value carrying the given custom part.
func BuildState(custom string) string {
	return BuildStateWithRandom(uuid.NewString(), custom)
}

// BuildStateWithRandom encodes a state value with an explicit random
// part. Exposed for deterministic tests.
func BuildStateWithRandom(random, custom string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(random + ":" + custom))
}

// CustomState extracts the custom part from a state value. Only the
// first ":" splits; any further colons belong to the custom part and
// are preserved verbatim.
func CustomState(state string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		// Padded encoders exist in the wild; accept both forms.
		decoded, err = base64.URLEncoding.DecodeString(state)
		if err != nil {
			return "", errors.New("state is not valid base64")
		}
	}
	_, custom, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", errors.New("state carries no custom part")
	}
	return custom, nil
}
