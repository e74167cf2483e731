package token

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_signAndParse(t *testing.T) {
	signed, err := New(UserToken, "admin").Sign("aSecret")
	assert.Nil(t, err)

	parsed, err := Parse(signed, func(t *Token) (string, error) {
		return "aSecret", nil
	})
	assert.Nil(t, err)
	assert.Equal(t, UserToken, parsed.Kind)
	assert.Equal(t, "admin", parsed.Subject)

	_, err = Parse(signed, func(t *Token) (string, error) {
		return "wrongSecret", nil
	})
	assert.NotNil(t, err)
}

func Test_expiredTokenIsRejected(t *testing.T) {
	signed, err := New(UserToken, "admin").SignExpires("aSecret", time.Now().Add(-time.Hour).Unix())
	assert.Nil(t, err)

	_, err = Parse(signed, func(t *Token) (string, error) {
		return "aSecret", nil
	})
	assert.NotNil(t, err)
}

func Test_parseRequest(t *testing.T) {
	signed, err := New(UserToken, "admin").Sign("aSecret")
	assert.Nil(t, err)

	secretFunc := func(t *Token) (string, error) {
		return "aSecret", nil
	}

	r := httptest.NewRequest("GET", "/api/runs", nil)
	r.Header.Set("Authorization", "Bearer "+signed)
	parsed, err := ParseRequest(r, secretFunc)
	assert.Nil(t, err)
	assert.Equal(t, "admin", parsed.Subject)

	r = httptest.NewRequest("GET", "/api/runs", nil)
	r.Header.Set("Authorization", "BEARER "+signed)
	parsed, err = ParseRequest(r, secretFunc)
	assert.Nil(t, err)
	assert.Equal(t, "admin", parsed.Subject)

	r = httptest.NewRequest("GET", "/api/runs?access_token="+signed, nil)
	parsed, err = ParseRequest(r, secretFunc)
	assert.Nil(t, err)
	assert.Equal(t, "admin", parsed.Subject)

	r = httptest.NewRequest("GET", "/api/runs", nil)
	_, err = ParseRequest(r, secretFunc)
	assert.NotNil(t, err)
}
