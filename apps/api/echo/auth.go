package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/edumart/core"
	"github.com/trezcool/edumart/core/role"
	"github.com/trezcool/edumart/core/session"
)

var (
	contextTokenKey   = "userToken"
	contextSessionKey = "session"
)

// Claims represents the authorization claims transmitted via a JWT.
// The role state is informative: the session is the authority on it.
type Claims struct {
	jwt.StandardClaims
	SessionID string     `json:"sid"`
	Email     string     `json:"email,omitempty"`
	AccountID string     `json:"account_id,omitempty"`
	State     role.State `json:"state"`
}

func (c Claims) LogPerson() (id, username, email string) {
	return c.Subject, c.AccountID, c.Email
}

type authenticator struct {
	conf      *core.Config
	sessions  *session.Manager
	jwtConfig middleware.JWTConfig
}

func newAuthenticator(conf *core.Config, sessions *session.Manager) *authenticator {
	return &authenticator{
		conf:     conf,
		sessions: sessions,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

func (a *authenticator) jwt() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(a.jwtConfig)
}

func (a *authenticator) newClaims(sess *session.Session, expiresAt time.Time) *Claims {
	ident := sess.Identity()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:   a.conf.AppName,
			Subject:  ident.UID,
			IssuedAt: time.Now().Unix(),
		},
		SessionID: sess.ID(),
		Email:     ident.Email,
		AccountID: sess.AccountID(),
		State:     sess.State(),
	}
	if !expiresAt.IsZero() {
		claims.ExpiresAt = expiresAt.Unix()
	}
	return claims
}

// GenerateToken generates a signed JWT token string representing the session Claims.
func (a *authenticator) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// sessionToken renews sess so that the session and its new token expire together.
func (a *authenticator) sessionToken(sess *session.Session) (string, error) {
	return a.GenerateToken(a.newClaims(sess, a.sessions.Renew(sess)))
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// sessionMiddleware loads the live session of the token. Tokens of ended sessions are rejected.
func (a *authenticator) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		sess, err := a.sessions.Get(claims.SessionID)
		if err != nil || sess.Identity().UID != claims.Subject {
			return errSessionEnded
		}
		ctx.Set(contextSessionKey, sess)
		return next(ctx)
	}
}

func getContextSession(ctx echo.Context) (*session.Session, error) {
	if sess, ok := ctx.Get(contextSessionKey).(*session.Session); ok {
		return sess, nil
	}
	return nil, errUnauthorized
}
