package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Identity is the canonical caller identity produced by a credential scheme.
type Identity struct {
	Email   string
	Subject string
	Name    string
}

type SchemeOutcome int

const (
	// SchemeNotApplicable hands the credential to the next scheme.
	SchemeNotApplicable SchemeOutcome = iota
	SchemeResolved
	// SchemeRejected stops resolution with ErrUnauthenticated.
	SchemeRejected
)

func (o SchemeOutcome) String() string {
	switch o {
	case SchemeResolved:
		return "resolved"
	case SchemeRejected:
		return "rejected"
	default:
		return "not_applicable"
	}
}

// SchemeResult is what one scheme concluded about a credential.
type SchemeResult struct {
	Outcome  SchemeOutcome
	Identity *Identity
	Err      error
}

func notApplicable(err error) SchemeResult {
	return SchemeResult{Outcome: SchemeNotApplicable, Err: err}
}

func rejected(err error) SchemeResult {
	return SchemeResult{Outcome: SchemeRejected, Err: err}
}

func resolved(id *Identity) SchemeResult {
	return SchemeResult{Outcome: SchemeResolved, Identity: id}
}

type CredentialScheme interface {
	Name() string
	Attempt(ctx context.Context, credential string) SchemeResult
}

// IdentityResolver tries schemes in order until one resolves or rejects.
type IdentityResolver struct {
	schemes []CredentialScheme
}

func NewIdentityResolver(schemes ...CredentialScheme) *IdentityResolver {
	return &IdentityResolver{schemes: schemes}
}

func (r *IdentityResolver) Resolve(ctx context.Context, credential string) (*Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}

	for _, scheme := range r.schemes {
		res := scheme.Attempt(ctx, credential)
		switch res.Outcome {
		case SchemeResolved:
			return res.Identity, nil
		case SchemeRejected:
			return nil, fmt.Errorf("%w: %s: %v", ErrUnauthenticated, scheme.Name(), res.Err)
		default:
			if res.Err != nil {
				slog.Debug("credential scheme not applicable", "scheme", scheme.Name(), "error", res.Err)
			}
		}
	}
	return nil, ErrUnauthenticated
}
