package oidc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gopkg.in/square/go-jose.v2/jwt"
)

func TestTokenTypes_Redaction(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	at := AccessToken("eyJ.access.token")
	assert.Equal(RedactedAccessToken, at.String())
	gotAt, err := at.MarshalJSON()
	assert.NoError(err)
	assert.JSONEq(`"`+RedactedAccessToken+`"`, string(gotAt))

	rt := RefreshToken("eyJ.refresh.token")
	assert.Equal(RedactedRefreshToken, rt.String())
	gotRt, err := rt.MarshalJSON()
	assert.NoError(err)
	assert.JSONEq(`"`+RedactedRefreshToken+`"`, string(gotRt))

	id := IDToken("eyJ.id.token")
	assert.Equal(RedactedIDToken, id.String())
	gotID, err := id.MarshalJSON()
	assert.NoError(err)
	assert.JSONEq(`"`+RedactedIDToken+`"`, string(gotID))
}

func TestNewToken(t *testing.T) {
	t.Parallel()
	_, priv := TestGenerateKeys(t)
	now := time.Now()
	idToken := TestSignJWT(t, priv, jwt.Claims{
		Subject:  "usr_42",
		Issuer:   "https://test-issuer.example",
		Expiry:   jwt.NewNumericDate(now.Add(time.Hour)),
		Audience: jwt.Audience{"test-client-id"},
	}, map[string]interface{}{
		"email":          "alice@example.com",
		"email_verified": true,
		"given_name":     "Alice",
	})

	t.Run("full-token-set", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		src := (&oauth2.Token{
			AccessToken:  "test-access",
			RefreshToken: "test-refresh",
			Expiry:       now.Add(time.Hour),
		}).WithExtra(map[string]interface{}{
			"id_token":   idToken,
			"expires_in": float64(3600),
		})

		got, err := NewToken(src)
		require.NoError(err)
		assert.Equal(AccessToken("test-access"), got.AccessToken)
		assert.Equal(RefreshToken("test-refresh"), got.RefreshToken)
		assert.Equal(IDToken(idToken), got.IDToken)
		assert.Equal(3600, got.ExpiresIn)
		assert.Equal("usr_42", got.User.Sub)
		assert.Equal("alice@example.com", got.User.Email)
		assert.True(got.User.EmailVerified)
		assert.Equal("Alice", got.User.GivenName)
		assert.Empty(got.User.FamilyName)
		assert.True(got.Valid())
	})
	t.Run("no-id-token", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		got, err := NewToken(&oauth2.Token{AccessToken: "test-access"})
		require.NoError(err)
		assert.Empty(got.IDToken)
		assert.Empty(got.User.Sub)
	})
	t.Run("expires-in-from-expiry", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		got, err := NewToken(&oauth2.Token{
			AccessToken: "test-access",
			Expiry:      time.Now().Add(10 * time.Minute),
		})
		require.NoError(err)
		assert.InDelta(600, got.ExpiresIn, 2)
	})
	t.Run("nil-token", func(t *testing.T) {
		t.Parallel()
		_, err := NewToken(nil)
		assert.ErrorIs(t, err, ErrNilParameter)
	})
	t.Run("missing-access-token", func(t *testing.T) {
		t.Parallel()
		_, err := NewToken(&oauth2.Token{})
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestToken_Valid(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	var nilTk *Token
	assert.False(nilTk.Valid())
	assert.False((&Token{}).Valid())
	assert.True((&Token{AccessToken: "at"}).Valid())
	assert.True((&Token{AccessToken: "at", Expiry: time.Now().Add(time.Minute)}).Valid())
	assert.False((&Token{AccessToken: "at", Expiry: time.Now().Add(-time.Minute)}).Valid())
}

func TestUnmarshalClaims(t *testing.T) {
	t.Parallel()
	t.Run("not-a-jwt", func(t *testing.T) {
		t.Parallel()
		var claims map[string]interface{}
		err := UnmarshalClaims("only.two", &claims)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
	t.Run("bad-payload", func(t *testing.T) {
		t.Parallel()
		var claims map[string]interface{}
		err := UnmarshalClaims("aa.!!!.cc", &claims)
		assert.Error(t, err)
	})
}

func TestIDToken_Claims(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	_, priv := TestGenerateKeys(t)
	raw := TestSignJWT(t, priv, jwt.Claims{Subject: "usr_7"}, map[string]interface{}{"color": "red"})

	var claims map[string]interface{}
	require.NoError(IDToken(raw).Claims(&claims))
	assert.Equal("usr_7", claims["sub"])
	assert.Equal("red", claims["color"])

	assert.ErrorIs(IDToken("").Claims(&claims), ErrInvalidParameter)
	assert.ErrorIs(IDToken(raw).Claims(nil), ErrNilParameter)
}
