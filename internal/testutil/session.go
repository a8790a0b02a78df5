package testutil

// FixedSessionGenerator returns the same journal session id every time.
//
// The same scenario with the same FixedSessionGenerator produces
// byte-identical journals.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	session string
}

// NewFixedSessionGenerator creates a generator for session. If session is
// empty, Generate returns "test-session-default".
func NewFixedSessionGenerator(session string) *FixedSessionGenerator {
	if session == "" {
		session = "test-session-default"
	}
	return &FixedSessionGenerator{session: session}
}

// Generate returns the fixed session id.
//
// Implements store.SessionGenerator.
func (g *FixedSessionGenerator) Generate() string {
	return g.session
}
