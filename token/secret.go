package token

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	SecretEnvVar = "JWT_SECRET"

	// DevelopmentSecret is only used when no secret is configured
	DevelopmentSecret = "fallback_jwt_secret_for_development"
)

// SecretFromEnv reads the signing secret from varname and removes it from
// the environment so child processes never see it.
//
// When the variable is empty the development secret is returned and a
// warning is logged.
func SecretFromEnv(log zerolog.Logger, varname string, getfn func(string) string, setfn func(string, string) error) []byte {
	if getfn == nil {
		getfn = os.Getenv
	}
	if setfn == nil {
		setfn = os.Setenv
	}
	val := getfn(varname)
	setfn(varname, "")
	if val == "" {
		log.Warn().Str("envvar", varname).Msg("No signing secret configured, using the development secret. Do not use this in production")
		return []byte(DevelopmentSecret)
	}
	return []byte(val)
}

// GenerateSecret returns a base64 encoded random secret of 32 bytes
func GenerateSecret(rand io.Reader) (string, error) {
	var buf [32]byte
	_, err := io.ReadFull(rand, buf[:])
	if err != nil {
		return "", fmt.Errorf("token: unable to read random bytes, cause %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf[:]), nil
}
