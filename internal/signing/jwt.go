package signing

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/golang-jwt/jwt/v5"

	"cloutfeed/go-identity/internal/identity"
)

var ErrInvalidToken = errors.New("invalid jwt")

// expireClaim is carried verbatim and never enforced here. The server decides
// what it means.
const expireClaim = "60"

// IssueJWT returns a compact ES256 JWS over {"expire":"60"} signed with the
// secp256k1 key of seedHex.
func IssueJWT(seedHex string) (string, error) {
	priv, err := identity.PrivateKeyFromSeedHex(seedHex)
	if err != nil {
		return "", err
	}
	defer priv.Zero()

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{"expire": expireClaim})
	return token.SignedString(priv.ToECDSA())
}

// VerifyJWT checks an ES256 token against pub and returns its claims.
func VerifyJWT(token string, pub *secp256k1.PublicKey) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return pub.ToECDSA(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
