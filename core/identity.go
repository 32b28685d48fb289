package core

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrIdentityNotFound   = errors.New("identity not found")
)

type IdentityEventKind string

const (
	IdentitySignedIn  IdentityEventKind = "signedIn"
	IdentitySignedOut IdentityEventKind = "signedOut"
)

type (
	// Identity is an authenticated principal of the identity provider.
	Identity struct {
		UID   string `json:"uid"`
		Email string `json:"email"`
	}

	IdentityEvent struct {
		Kind     IdentityEventKind
		Identity Identity
		At       time.Time
	}

	// IdentityProvider registers and authenticates identities.
	IdentityProvider interface {
		Register(ctx context.Context, email, password string) (Identity, error)
		// SignIn returns ErrInvalidCredentials for an unknown email or a wrong password.
		SignIn(ctx context.Context, email, password string) (Identity, error)
		SignOut(ctx context.Context, uid string) error
		SetPassword(ctx context.Context, email, password string) error
		Delete(ctx context.Context, uid string) error
		// Subscribe streams sign-in and sign-out events until cancel is called.
		Subscribe() (events <-chan IdentityEvent, cancel func())
	}
)
