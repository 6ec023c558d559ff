package identity

import (
	"context"

	dErrors "authgate/pkg/domain-errors"
	"authgate/pkg/secrets"
)

// Verifier checks a presented credential pair against the registry.
//
// Unknown email and wrong password are deliberately indistinguishable: both
// return the same invalid_credentials error, and when the email is unknown
// the verifier still runs a full argon2id comparison against a dummy record
// so response timing does not reveal account existence.
type Verifier struct {
	registry  Registry
	dummyHash string
}

// NewVerifier constructs a verifier over the given registry.
func NewVerifier(registry Registry) *Verifier {
	return &Verifier{
		registry:  registry,
		dummyHash: secrets.DummyHash(),
	}
}

var errInvalidCredentials = dErrors.New(dErrors.CodeInvalidCredentials, "invalid credentials")

// Verify returns the identity when the password matches, or an
// invalid_credentials error otherwise.
func (v *Verifier) Verify(ctx context.Context, email, password string) (*Identity, error) {
	ident, err := v.registry.FindByEmail(ctx, email)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			// Burn the same work as a real comparison before rejecting.
			_ = secrets.VerifyPassword(password, v.dummyHash)
			return nil, errInvalidCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "identity lookup failed")
	}

	if err := secrets.VerifyPassword(password, ident.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidCredentials) {
			return nil, errInvalidCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "password verification failed")
	}

	return ident, nil
}
