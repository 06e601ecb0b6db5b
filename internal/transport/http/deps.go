package http

import (
	"github.com/valid-names/internal/application/application"
	"github.com/valid-names/internal/application/auth"
	"github.com/valid-names/internal/application/category"
	"github.com/valid-names/internal/application/check"
	"github.com/valid-names/internal/application/domainname"
	"github.com/valid-names/internal/application/notification"
	"github.com/valid-names/internal/application/report"
	"github.com/valid-names/internal/application/session"
	"github.com/valid-names/internal/application/tld"
	"github.com/valid-names/internal/application/user"
	jwtinfra "github.com/valid-names/internal/infrastructure/jwt"
)

// TokenVerifier checks bearer tokens for the auth middleware.
type TokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// Services holds every application service the router exposes.
type Services struct {
	Auth          auth.Service
	Users         user.Service
	Sessions      session.Service
	Applications  application.Service
	Categories    category.Service
	Domains       domainname.Service
	Checks        check.Service
	TLDs          tld.Service
	Notifications notification.Service
	Reports       report.Service
	Verifier      TokenVerifier
}
