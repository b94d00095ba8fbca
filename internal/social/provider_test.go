package social

import (
	"net/url"
	"testing"

	"github.com/openboard/openboard/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.SocialConfig {
	return config.SocialConfig{
		Naver:  config.OAuthClient{ClientID: "naver-id", ClientSecret: "naver-secret"},
		Google: config.OAuthClient{ClientID: "google-id", ClientSecret: "google-secret"},
		Kakao:  config.OAuthClient{ClientID: "kakao-id", ClientSecret: "kakao-secret"},
	}
}

func TestSupportedOnlyForConfiguredProviders(t *testing.T) {
	e := NewExchanger(testConfig(), "http://localhost:3000")

	assert.True(t, e.Supported("naver"))
	assert.True(t, e.Supported("google"))
	assert.True(t, e.Supported("kakao"))
	// No credentials configured, so these stay off the table.
	assert.False(t, e.Supported("discord"))
	assert.False(t, e.Supported("twitter"))
	assert.False(t, e.Supported("github"))
}

func TestAuthURL(t *testing.T) {
	e := NewExchanger(testConfig(), "http://localhost:3000")

	raw, err := e.AuthURL("google", "state-123")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "state-123", u.Query().Get("state"))
	assert.Equal(t, "google-id", u.Query().Get("client_id"))
	assert.Equal(t, "http://localhost:3000/auth/callback/google", u.Query().Get("redirect_uri"))
}

func TestAuthURLUnsupported(t *testing.T) {
	e := NewExchanger(testConfig(), "http://localhost:3000")

	_, err := e.AuthURL("myspace", "s")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestParseNaver(t *testing.T) {
	data := []byte(`{
		"resultcode": "00",
		"message": "success",
		"response": {
			"id": "naver-abc",
			"name": "홍길동",
			"email": "hong@naver.com",
			"profile_image": "https://phinf.pstatic.net/p.png"
		}
	}`)

	profile, err := parseNaver(data)
	require.NoError(t, err)
	assert.Equal(t, "naver-abc", profile.ID)
	assert.Equal(t, "홍길동", profile.Name)
	assert.Equal(t, "hong@naver.com", profile.Email)
	assert.Equal(t, "https://phinf.pstatic.net/p.png", profile.ImageURL)
}

func TestParseGoogle(t *testing.T) {
	data := []byte(`{"id":"108", "name":"Alice", "email":"alice@gmail.com", "picture":"https://lh3.googleusercontent.com/a.jpg"}`)

	profile, err := parseGoogle(data)
	require.NoError(t, err)
	assert.Equal(t, "108", profile.ID)
	assert.Equal(t, "Alice", profile.Name)
	assert.Equal(t, "alice@gmail.com", profile.Email)
}

func TestParseKakao(t *testing.T) {
	data := []byte(`{
		"id": 12345678,
		"kakao_account": {
			"email": "alice@kakao.com",
			"profile": {"nickname": "앨리스", "profile_image_url": "https://k.kakaocdn.net/a.jpg"}
		}
	}`)

	profile, err := parseKakao(data)
	require.NoError(t, err)
	assert.Equal(t, "12345678", profile.ID)
	assert.Equal(t, "앨리스", profile.Name)
	assert.Equal(t, "alice@kakao.com", profile.Email)
}

func TestParseKakaoNameFallback(t *testing.T) {
	data := []byte(`{"id": 1, "kakao_account": {"name": "Alice Kim", "profile": {}}}`)

	profile, err := parseKakao(data)
	require.NoError(t, err)
	assert.Equal(t, "Alice Kim", profile.Name)
}

func TestParseDiscord(t *testing.T) {
	data := []byte(`{"id":"4567", "username":"alice#0", "email":"alice@example.com", "avatar":"abcd"}`)

	profile, err := parseDiscord(data)
	require.NoError(t, err)
	assert.Equal(t, "4567", profile.ID)
	assert.Equal(t, "alice#0", profile.Name)
	assert.Equal(t, "https://cdn.discordapp.com/avatars/4567/abcd.png", profile.ImageURL)
}

func TestParseDiscordNoAvatar(t *testing.T) {
	data := []byte(`{"id":"4567", "username":"alice#0"}`)

	profile, err := parseDiscord(data)
	require.NoError(t, err)
	assert.Empty(t, profile.ImageURL)
}

func TestParseTwitter(t *testing.T) {
	data := []byte(`{"data": {"id": "999", "name": "Alice", "profile_image_url": "https://pbs.twimg.com/a.jpg"}}`)

	profile, err := parseTwitter(data)
	require.NoError(t, err)
	assert.Equal(t, "999", profile.ID)
	assert.Equal(t, "Alice", profile.Name)
}
