package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentra-id/sentra/internal/shared"
)

func newTestCodec(t *testing.T, secret string) *Codec {
	t.Helper()
	codec, err := NewCodec(secret, time.Hour)
	require.NoError(t, err)
	return codec
}

func TestTokenRoundTrip(t *testing.T) {
	codec := newTestCodec(t, "roundtrip-secret")
	principal := &Principal{
		Username:  "jdoe",
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jdoe@example.com",
		Roles:     []Role{RoleUser, RoleAdministrator},
	}

	raw, err := codec.Encode(principal, "engineering")
	require.NoError(t, err)

	claims, err := codec.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "jdoe", claims.Username())
	require.Equal(t, "Jane", claims.FirstName)
	require.Equal(t, "Doe", claims.LastName)
	require.Equal(t, "jdoe@example.com", claims.Email)
	require.Equal(t, "engineering", claims.ActiveGroup)
	require.ElementsMatch(t, []Role{RoleUser, RoleAdministrator}, claims.Roles)
	require.NotEmpty(t, claims.ID)
}

func TestTokenExpired(t *testing.T) {
	codec := newTestCodec(t, "expiry-secret")
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec.now = func() time.Time { return issued }

	raw, err := codec.Encode(&Principal{Username: "jdoe", Roles: []Role{RoleUser}}, "")
	require.NoError(t, err)

	// Still valid just before expiry.
	codec.now = func() time.Time { return issued.Add(59 * time.Minute) }
	_, err = codec.Decode(raw)
	require.NoError(t, err)

	codec.now = func() time.Time { return issued.Add(61 * time.Minute) }
	_, err = codec.Decode(raw)
	require.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestTokenTampered(t *testing.T) {
	codec := newTestCodec(t, "tamper-secret")
	raw, err := codec.Encode(&Principal{Username: "jdoe", Roles: []Role{RoleUser}}, "")
	require.NoError(t, err)

	tampered := raw[:len(raw)-2] + "xx"
	_, err = codec.Decode(tampered)
	require.ErrorIs(t, err, shared.ErrInvalidToken)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	_, err = codec.Decode(parts[0] + "." + parts[1])
	require.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestTokenWrongSecret(t *testing.T) {
	issuing := newTestCodec(t, "secret-a")
	verifying := newTestCodec(t, "secret-b")

	raw, err := issuing.Encode(&Principal{Username: "jdoe", Roles: []Role{RoleUser}}, "")
	require.NoError(t, err)

	_, err = verifying.Decode(raw)
	require.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestTokenEmptyAndGarbage(t *testing.T) {
	codec := newTestCodec(t, "garbage-secret")

	_, err := codec.Decode("")
	require.ErrorIs(t, err, shared.ErrInvalidToken)

	_, err = codec.Decode("not-a-token")
	require.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestCodecConfigValidation(t *testing.T) {
	_, err := NewCodec("", time.Hour)
	require.Error(t, err)

	_, err = NewCodec("secret", 0)
	require.Error(t, err)
}
