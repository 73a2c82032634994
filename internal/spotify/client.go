// Package spotify is the catalog lookup client. Track resolution and search
// use the client-credentials flow; the host's own account is linked through
// the authorization-code flow handled by internal/auth.
package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/party-queue-system/pkg/models"
)

const (
	accountsURL = "https://accounts.spotify.com"
	apiURL      = "https://api.spotify.com/v1"
)

type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string
	httpClient   *http.Client

	mu          sync.Mutex
	appToken    string
	appTokenExp time.Time
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

type track struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Duration int    `json:"duration_ms"`
	Preview  string `json:"preview_url"`
	Artists  []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
}

func (t track) metadata() *models.TrackMetadata {
	meta := &models.TrackMetadata{
		SpotifyID:  t.ID,
		Title:      t.Name,
		Artist:     "Unknown Artist",
		DurationMS: t.Duration,
		PreviewURL: t.Preview,
	}
	if len(t.Artists) > 0 {
		meta.Artist = t.Artists[0].Name
	}
	if len(t.Album.Images) > 0 {
		meta.AlbumCoverURL = t.Album.Images[0].URL
	}
	return meta
}

func NewClient(clientID, clientSecret, redirectURI string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// GetTrack resolves a track ID to its metadata. Returns (nil, nil) when the
// catalog has no such track.
func (c *Client) GetTrack(ctx context.Context, spotifyID string) (*models.TrackMetadata, error) {
	token, err := c.appAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", apiURL+"/tracks/"+url.PathEscape(spotifyID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify: track request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest:
		// Spotify answers 400 for malformed track IDs.
		return nil, nil
	default:
		return nil, fmt.Errorf("spotify: track request failed with status %d", resp.StatusCode)
	}

	var t track
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, err
	}
	return t.metadata(), nil
}

// SearchTracks searches the catalog and returns up to limit matches.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]*models.TrackMetadata, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	token, err := c.appAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("q", query)
	params.Add("type", "track")
	params.Add("limit", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, "GET", apiURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify: search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spotify: search request failed with status %d", resp.StatusCode)
	}

	var searchResp struct {
		Tracks struct {
			Items []track `json:"items"`
		} `json:"tracks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, err
	}

	results := make([]*models.TrackMetadata, 0, len(searchResp.Tracks.Items))
	for _, t := range searchResp.Tracks.Items {
		results = append(results, t.metadata())
	}
	return results, nil
}

// appAccessToken returns a cached client-credentials token, refreshing it
// shortly before expiry.
func (c *Client) appAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.appToken != "" && time.Now().Before(c.appTokenExp.Add(-30*time.Second)) {
		return c.appToken, nil
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")

	token, err := c.doTokenRequest(ctx, data)
	if err != nil {
		return "", err
	}

	c.appToken = token.AccessToken
	c.appTokenExp = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return c.appToken, nil
}

// GetAuthURL builds the authorization-code URL for linking the host's
// Spotify account.
func (c *Client) GetAuthURL(state string) string {
	params := url.Values{}
	params.Add("client_id", c.clientID)
	params.Add("response_type", "code")
	params.Add("redirect_uri", c.redirectURI)
	params.Add("scope", "streaming user-read-playback-state user-modify-playback-state")
	params.Add("state", state)

	return accountsURL + "/authorize?" + params.Encode()
}

func (c *Client) ExchangeToken(ctx context.Context, code string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", c.redirectURI)

	return c.doTokenRequest(ctx, data)
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	return c.doTokenRequest(ctx, data)
}

func (c *Client) doTokenRequest(ctx context.Context, data url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", accountsURL+"/api/token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}

	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Add("Authorization", "Basic "+basic)
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify: token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spotify: token request failed with status %d", resp.StatusCode)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, err
	}
	return &token, nil
}
