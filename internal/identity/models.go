package identity

// Identity is one local account in the registry. The registry is read-only
// for the gateway; population happens at startup (seeding) or through an
// external provisioning process.
type Identity struct {
	UserID string
	Email  string

	// PasswordHash is the argon2id-encoded stored form. Plaintext never
	// enters the registry.
	PasswordHash string

	DisplayName string
}
