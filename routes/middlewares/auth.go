package middlewares

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/controllers/helpers"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/services/users"
	"github.com/zsmartex/carbonex/types"
)

var (
	AuthzInvalidSession = "authz.invalid_session"
	JwtDecodeAndVerify  = "jwt.decode_and_verify"
	ServerInternalError = "server.internal_error"
)

// Auth struct represents parsed jwt information.
type Auth struct {
	UID      string   `json:"uid"`
	State    string   `json:"state"`
	Email    string   `json:"email"`
	Role     string   `json:"role"`
	Level    int32    `json:"level"`
	Audience []string `json:"aud,omitempty"`

	jwt.StandardClaims
}

// Member builds the snapshot of a member first seen through its token.
func (a Auth) Member() *models.Member {
	member := &models.Member{
		UID:       a.UID,
		Email:     a.Email,
		KYCLevel:  a.Level,
		KYCStatus: types.KYCStatusPending,
		State:     types.MemberStateActive,
	}

	if a.Level > 0 {
		member.KYCStatus = types.KYCStatusApproved
	}
	if len(a.State) > 0 && a.State != string(types.MemberStateActive) {
		member.State = types.MemberStateSuspended
	}

	return member
}

type MemberStore interface {
	FindMemberByUID(ctx context.Context, uid string) (*models.Member, error)
	Save(ctx context.Context, member *models.Member) error
}

// ParsePublicKey decodes a base64 encoded PEM RSA public key.
func ParsePublicKey(encoded string) (*rsa.PublicKey, error) {
	public_key_pem, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	return jwt.ParseRSAPublicKeyFromPEM(public_key_pem)
}

func Authenticate(publicKey *rsa.PublicKey, members MemberStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get("Authorization")
		if len(token) == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(helpers.Errors{
				Errors: []string{AuthzInvalidSession},
			})
		}

		token = strings.TrimPrefix(token, "Bearer ")

		var auth Auth
		_, err := jwt.ParseWithClaims(token, &auth, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}

			return publicKey, nil
		})
		if err != nil || len(auth.UID) == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(helpers.Errors{
				Errors: []string{JwtDecodeAndVerify},
			})
		}

		member, err := members.FindMemberByUID(c.UserContext(), auth.UID)
		if errors.Is(err, users.ErrMemberNotFound) {
			member = auth.Member()
			err = members.Save(c.UserContext(), member)
		}
		if err != nil {
			config.Logger.Errorf("[carbonex.api] failed to load member %s: %v", auth.UID, err)

			return c.Status(fiber.StatusInternalServerError).JSON(helpers.Errors{
				Errors: []string{ServerInternalError},
			})
		}

		c.Locals(helpers.CurrentUserKey, member)

		return c.Next()
	}
}
