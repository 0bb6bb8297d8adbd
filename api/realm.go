package api

import (
	"context"
	"net/http"
	"regexp"

	"github.com/andrebq/doorman/account"
	"github.com/andrebq/doorman/token"
	"github.com/rs/zerolog/hlog"
)

type (
	// Realm guards handlers that require an authenticated account
	Realm struct {
		store account.Store
		codec *token.Codec
		// revoke rejects tokens issued before the last credential change
		revoke bool
	}

	ctxKey byte
)

const (
	msgTokenRequired = "Access token required"
	msgTokenInvalid  = "Invalid or expired token"
)

var (
	bearerTokenRE = regexp.MustCompile(`^Bearer ([^\s]+)$`)

	accountKey = ctxKey(1)
)

func NewRealm(store account.Store, codec *token.Codec, revokeOnCredentialChange bool) *Realm {
	return &Realm{
		store:  store,
		codec:  codec,
		revoke: revokeOnCredentialChange,
	}
}

// WithAccount returns a copy of ctx carrying acc
func WithAccount(ctx context.Context, acc account.Account) context.Context {
	return context.WithValue(ctx, accountKey, acc)
}

// AccountFromContext returns the account attached by Realm.Protect
func AccountFromContext(ctx context.Context) (account.Account, bool) {
	acc, ok := ctx.Value(accountKey).(account.Account)
	return acc, ok
}

func (s *Realm) Protect(sensitive http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)
		groups := bearerTokenRE.FindStringSubmatch(r.Header.Get("Authorization"))
		if len(groups) == 0 {
			fail(w, r, http.StatusUnauthorized, msgTokenRequired)
			return
		}
		claims, err := s.codec.Verify(groups[1])
		if err != nil {
			log.Debug().Err(err).Msg("Rejected session token")
			fail(w, r, http.StatusForbidden, msgTokenInvalid)
			return
		}
		acc, found := s.store.FindByID(claims.UserID)
		if !found {
			fail(w, r, http.StatusUnauthorized, msgUserNotFound)
			return
		}
		if s.revoke && claims.Version != acc.TokenVersion {
			log.Debug().Str("account", acc.ID).Int("version", claims.Version).Msg("Rejected revoked session token")
			fail(w, r, http.StatusForbidden, msgTokenInvalid)
			return
		}
		sensitive.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acc)))
	})
}
