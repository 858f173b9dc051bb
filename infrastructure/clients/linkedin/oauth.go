package linkedin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"linkedpost/domain/model"
	"linkedpost/domain/repository"

	"github.com/google/go-querystring/query"
	"golang.org/x/oauth2"
)

const DefaultAuthBaseURL = "https://www.linkedin.com/oauth/v2"

// Scopes requested when a member connects their account.
var Scopes = []string{"openid", "profile", "email", "w_member_social"}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthBaseURL  string
}

// OAuth runs the LinkedIn three-legged authorization-code flow.
type OAuth struct {
	authBaseURL string
	conf        *oauth2.Config
	httpClient  *http.Client
}

var _ repository.IOAuth = (*OAuth)(nil)

func NewOAuth(cfg OAuthConfig) *OAuth {
	base := strings.TrimRight(cfg.AuthBaseURL, "/")
	if base == "" {
		base = DefaultAuthBaseURL
	}
	return &OAuth{
		authBaseURL: base,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/authorization",
				TokenURL:  base + "/accessToken",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type authorizationParams struct {
	ResponseType string `url:"response_type"`
	ClientID     string `url:"client_id"`
	RedirectURI  string `url:"redirect_uri"`
	State        string `url:"state"`
	Scope        string `url:"scope"`
}

// AuthURL returns the consent page URL carrying state.
func (o *OAuth) AuthURL(state string) string {
	v, err := query.Values(authorizationParams{
		ResponseType: "code",
		ClientID:     o.conf.ClientID,
		RedirectURI:  o.conf.RedirectURL,
		State:        state,
		Scope:        strings.Join(o.conf.Scopes, " "),
	})
	if err != nil {
		return o.conf.AuthCodeURL(state)
	}
	return o.conf.Endpoint.AuthURL + "?" + v.Encode()
}

func (o *OAuth) ctx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

func (o *OAuth) Exchange(ctx context.Context, code string) (*model.TokenGrant, error) {
	if code == "" {
		return nil, errors.New("missing authorization code")
	}
	tok, err := o.conf.Exchange(o.ctx(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("Failed to get access token: %w", err)
	}
	return grantFrom(tok, ""), nil
}

// Refresh trades refreshToken for a new access token. LinkedIn may omit a new
// refresh token, in which case the old one is kept.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*model.TokenGrant, error) {
	if refreshToken == "" {
		return nil, errors.New("no refresh token")
	}
	src := o.conf.TokenSource(o.ctx(ctx), &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("Failed to refresh token: %w", err)
	}
	return grantFrom(tok, refreshToken), nil
}

func grantFrom(tok *oauth2.Token, previousRefresh string) *model.TokenGrant {
	g := &model.TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.UTC(),
	}
	if g.RefreshToken == "" {
		g.RefreshToken = previousRefresh
	}
	// LinkedIn always sends expires_in; fall back to its 60-day default if it did not.
	if tok.Expiry.IsZero() {
		g.ExpiresAt = time.Now().UTC().Add(60 * 24 * time.Hour)
	}
	return g
}
