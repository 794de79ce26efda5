package gate

// DefaultSignatureHeader is the header whose values are matched against
// the expected portal agent.
const DefaultSignatureHeader = "User-Agent"

// Policy is the immutable gate configuration snapshot.
//
// Both settings are optional. An empty string is treated the same as an
// unset value.
type Policy struct {
	expectedSignature *string
	integrityKey      *string
}

// NewPolicy builds a Policy from optional settings. The values are copied,
// so later changes to the pointed-to strings do not affect the policy.
func NewPolicy(expectedSignature, integrityKey *string) Policy {
	return Policy{
		expectedSignature: normalize(expectedSignature),
		integrityKey:      normalize(integrityKey),
	}
}

func normalize(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

// ExpectedSignature returns the configured portal agent and whether one is
// set.
func (p Policy) ExpectedSignature() (string, bool) {
	if p.expectedSignature == nil {
		return "", false
	}
	return *p.expectedSignature, true
}

// HasExpectedSignature reports whether a portal agent is configured.
func (p Policy) HasExpectedSignature() bool {
	return p.expectedSignature != nil
}

// HasIntegrityKey reports whether a salt key is configured.
func (p Policy) HasIntegrityKey() bool {
	return p.integrityKey != nil
}

// Complete reports whether both settings are present.
func (p Policy) Complete() bool {
	return p.HasExpectedSignature() && p.HasIntegrityKey()
}
