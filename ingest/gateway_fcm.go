package ingest

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtwatch-ingest/config"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// serviceAccount is the subset of a Google service account JSON key the FCM
// gateway needs to mint its own OAuth2 bearer tokens.
type serviceAccount struct {
	ProjectID   string `json:"project_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
	TokenURI    string `json:"token_uri"`
}

// FCMGateway sends push notifications through Firebase Cloud Messaging's
// HTTP v1 API, authenticating with a self-signed JWT exchanged for a short
// lived OAuth2 access token - the same assertion flow FCM's own server SDKs
// use, done by hand here since the corpus carries golang-jwt directly.
type FCMGateway struct {
	account serviceAccount
	client  *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewFCMGateway loads a service account either from a file path or from the
// three discrete fields, matching PushCredentials.
func NewFCMGateway(creds config.PushCredentials) (*FCMGateway, error) {
	var account serviceAccount
	if creds.FCMServiceAccountFile != "" {
		raw, err := os.ReadFile(creds.FCMServiceAccountFile)
		if err != nil {
			return nil, errors.Wrap(err, "reading fcm service account file")
		}
		if err := json.Unmarshal(raw, &account); err != nil {
			return nil, errors.Wrap(err, "parsing fcm service account file")
		}
	} else {
		account = serviceAccount{
			ProjectID:   creds.FCMProjectID,
			PrivateKey:  creds.FCMPrivateKey,
			ClientEmail: creds.FCMClientEmail,
		}
	}
	if account.TokenURI == "" {
		account.TokenURI = "https://oauth2.googleapis.com/token"
	}
	if account.ProjectID == "" || account.PrivateKey == "" || account.ClientEmail == "" {
		return nil, errors.New("incomplete fcm service account credentials")
	}
	return &FCMGateway{account: account, client: &http.Client{Timeout: fetchTimeout}}, nil
}

// Send pushes a single message to an FCM registration token.
func (g *FCMGateway) Send(ctx context.Context, token, title, body string, data map[string]interface{}) error {
	accessToken, err := g.ensureAccessToken(ctx)
	if err != nil {
		return err
	}

	strData := make(map[string]string, len(data))
	for k, v := range data {
		strData[k] = fmt.Sprintf("%v", v)
	}

	payload := map[string]interface{}{
		"message": map[string]interface{}{
			"token": token,
			"notification": map[string]string{
				"title": title,
				"body":  body,
			},
			"data": strData,
		},
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshaling fcm payload")
	}

	url := fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", g.account.ProjectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return errors.Wrap(err, "creating fcm request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending fcm request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("fcm returned status %d", resp.StatusCode)
	}
	zap.S().Infow("sent push notification via fcm", "projectId", g.account.ProjectID)
	return nil
}

// ensureAccessToken mints a fresh OAuth2 token via the JWT bearer assertion
// flow once the cached one is within a minute of expiring.
func (g *FCMGateway) ensureAccessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Add(time.Minute).Before(g.expiresAt) {
		return g.accessToken, nil
	}

	key, err := parsePrivateKey(g.account.PrivateKey)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   g.account.ClientEmail,
		"scope": fcmScope,
		"aud":   g.account.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	assertion, err := tok.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, "signing fcm assertion")
	}

	form := fmt.Sprintf("grant_type=%s&assertion=%s",
		url.QueryEscape("urn:ietf:params:oauth:grant-type:jwt-bearer"), url.QueryEscape(assertion))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.account.TokenURI, bytes.NewBufferString(form))
	if err != nil {
		return "", errors.Wrap(err, "creating token exchange request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "exchanging fcm assertion")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("token exchange returned status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decoding token exchange response")
	}

	g.accessToken = out.AccessToken
	g.expiresAt = now.Add(time.Duration(out.ExpiresIn) * time.Second)
	return g.accessToken, nil
}

func parsePrivateKey(pemKey string) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, errors.Wrap(err, "parsing fcm private key")
	}
	return key, nil
}
