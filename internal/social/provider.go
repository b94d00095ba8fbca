// Package social exchanges OAuth authorization codes for normalized user
// profiles. Provider differences live in a table of endpoint configs and
// pure profile-parsing functions; adding a provider means adding a table
// entry, not another branch.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/openboard/openboard/config"
	"golang.org/x/oauth2"
)

var (
	// ErrUnsupportedProvider is returned for provider names outside the table
	// and for providers with no configured client credentials.
	ErrUnsupportedProvider = errors.New("unsupported social provider")

	// ErrExchangeFailed is returned when the provider rejects the code
	// exchange or the profile fetch.
	ErrExchangeFailed = errors.New("social login exchange failed")
)

// Profile is the normalized identity returned by every provider.
type Profile struct {
	ID       string
	Name     string
	Email    string
	ImageURL string
}

// provider binds a provider's OAuth endpoints to its profile parser.
type provider struct {
	conf        *oauth2.Config
	userInfoURL string
	parse       func(data []byte) (Profile, error)
}

// Exchanger resolves provider names to OAuth configs and performs the
// code-for-profile exchange.
type Exchanger struct {
	providers map[string]provider
	client    *http.Client
}

// NewExchanger builds the provider table from configured client credentials.
// frontendURL anchors the per-provider redirect URIs
// (<frontendURL>/auth/callback/<provider>).
func NewExchanger(cfg config.SocialConfig, frontendURL string) *Exchanger {
	e := &Exchanger{providers: make(map[string]provider), client: http.DefaultClient}

	e.register("naver", cfg.Naver, oauth2.Endpoint{
		AuthURL:  "https://nid.naver.com/oauth2.0/authorize",
		TokenURL: "https://nid.naver.com/oauth2.0/token",
	}, []string{"name", "email"}, "https://openapi.naver.com/v1/nid/me", parseNaver, frontendURL)

	e.register("google", cfg.Google, oauth2.Endpoint{
		AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL: "https://oauth2.googleapis.com/token",
	}, []string{"openid", "email", "profile"}, "https://www.googleapis.com/oauth2/v2/userinfo", parseGoogle, frontendURL)

	e.register("kakao", cfg.Kakao, oauth2.Endpoint{
		AuthURL:  "https://kauth.kakao.com/oauth/authorize",
		TokenURL: "https://kauth.kakao.com/oauth/token",
	}, []string{"profile_nickname", "account_email"}, "https://kapi.kakao.com/v2/user/me", parseKakao, frontendURL)

	e.register("discord", cfg.Discord, oauth2.Endpoint{
		AuthURL:  "https://discord.com/api/oauth2/authorize",
		TokenURL: "https://discord.com/api/oauth2/token",
	}, []string{"identify", "email"}, "https://discord.com/api/users/@me", parseDiscord, frontendURL)

	e.register("twitter", cfg.Twitter, oauth2.Endpoint{
		AuthURL:  "https://twitter.com/i/oauth2/authorize",
		TokenURL: "https://api.twitter.com/2/oauth2/token",
	}, []string{"tweet.read", "users.read"}, "https://api.twitter.com/2/users/me", parseTwitter, frontendURL)

	return e
}

func (e *Exchanger) register(name string, creds config.OAuthClient, endpoint oauth2.Endpoint, scopes []string, userInfoURL string, parse func([]byte) (Profile, error), frontendURL string) {
	if creds.ClientID == "" {
		return
	}
	e.providers[name] = provider{
		conf: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  fmt.Sprintf("%s/auth/callback/%s", frontendURL, name),
			Scopes:       scopes,
		},
		userInfoURL: userInfoURL,
		parse:       parse,
	}
}

// Supported reports whether the named provider is configured.
func (e *Exchanger) Supported(name string) bool {
	_, ok := e.providers[name]
	return ok
}

// AuthURL returns the provider's authorization URL carrying the given state.
func (e *Exchanger) AuthURL(name, state string) (string, error) {
	p, ok := e.providers[name]
	if !ok {
		return "", ErrUnsupportedProvider
	}
	return p.conf.AuthCodeURL(state), nil
}

// FetchProfile exchanges the authorization code and fetches the provider's
// user info, returning the normalized profile.
func (e *Exchanger) FetchProfile(ctx context.Context, name, code string) (Profile, error) {
	p, ok := e.providers[name]
	if !ok {
		return Profile{}, ErrUnsupportedProvider
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return Profile{}, err
	}
	resp, err := p.conf.Client(ctx, tok).Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("%w: userinfo status %d", ErrExchangeFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Profile{}, err
	}

	profile, err := p.parse(body)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if profile.ID == "" {
		return Profile{}, fmt.Errorf("%w: profile missing subject id", ErrExchangeFailed)
	}
	return profile, nil
}

func parseNaver(data []byte) (Profile, error) {
	var payload struct {
		Response struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			Email        string `json:"email"`
			ProfileImage string `json:"profile_image"`
		} `json:"response"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:       payload.Response.ID,
		Name:     payload.Response.Name,
		Email:    payload.Response.Email,
		ImageURL: payload.Response.ProfileImage,
	}, nil
}

func parseGoogle(data []byte) (Profile, error) {
	var payload struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Profile{}, err
	}
	return Profile{ID: payload.ID, Name: payload.Name, Email: payload.Email, ImageURL: payload.Picture}, nil
}

func parseKakao(data []byte) (Profile, error) {
	var payload struct {
		ID      int64 `json:"id"`
		Account struct {
			Email   string `json:"email"`
			Name    string `json:"name"`
			Profile struct {
				Nickname string `json:"nickname"`
				ImageURL string `json:"profile_image_url"`
			} `json:"profile"`
		} `json:"kakao_account"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Profile{}, err
	}
	name := payload.Account.Profile.Nickname
	if name == "" {
		name = payload.Account.Name
	}
	var id string
	if payload.ID != 0 {
		id = strconv.FormatInt(payload.ID, 10)
	}
	return Profile{
		ID:       id,
		Name:     name,
		Email:    payload.Account.Email,
		ImageURL: payload.Account.Profile.ImageURL,
	}, nil
}

func parseDiscord(data []byte) (Profile, error) {
	var payload struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Avatar   string `json:"avatar"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Profile{}, err
	}
	profile := Profile{ID: payload.ID, Name: payload.Username, Email: payload.Email}
	if payload.Avatar != "" {
		profile.ImageURL = fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", payload.ID, payload.Avatar)
	}
	return profile, nil
}

func parseTwitter(data []byte) (Profile, error) {
	var payload struct {
		Data struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			Email           string `json:"email"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:       payload.Data.ID,
		Name:     payload.Data.Name,
		Email:    payload.Data.Email,
		ImageURL: payload.Data.ProfileImageURL,
	}, nil
}
