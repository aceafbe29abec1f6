package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	expoPushURL    = "https://exp.host/--/api/v2/push/send"
	expoBatchLimit = 100
)

// PushGateway is the ingest core's narrow view of a push notification
// provider: send one message to one device token.
type PushGateway interface {
	Send(ctx context.Context, token, title, body string, data map[string]interface{}) error
}

// alertCopy renders the four fixed message shapes the specification defines.
func alertCopy(a Alert) (title, body string) {
	switch a.Type {
	case AlertEarlyWarning:
		return fmt.Sprintf("⚠️ Case Approaching - %s", a.CaseNumber),
			fmt.Sprintf("Your case is %d cases away in Court %s", a.Position, a.CourtNumber)
	case AlertApproaching:
		return fmt.Sprintf("🔔 Case Next - %s", a.CaseNumber),
			fmt.Sprintf("Your case is next in line in Court %s", a.CourtNumber)
	case AlertInSession:
		body = fmt.Sprintf("Your case is now IN SESSION in Court %s", a.CourtNumber)
		if a.JudgeName != "" {
			body += " - " + a.JudgeName
		}
		return fmt.Sprintf("⚖️ Case Started - %s", a.CaseNumber), body
	case AlertCompleted:
		return fmt.Sprintf("✅ Case Completed - %s", a.CaseNumber),
			fmt.Sprintf("Your case hearing has ended in Court %s", a.CourtNumber)
	default:
		return "", ""
	}
}

func alertData(a Alert) map[string]interface{} {
	data := map[string]interface{}{
		"caseNumber": a.CaseNumber,
		"type":       string(a.Type),
	}
	if a.CourtNumber != "" {
		data["courtNumber"] = a.CourtNumber
	}
	if a.Position != 0 {
		data["position"] = a.Position
		data["velocity"] = a.Velocity
	}
	if a.StreamURL != "" {
		data["streamUrl"] = a.StreamURL
	}
	return data
}

// expoMessage is one entry of an Expo push batch.
type expoMessage struct {
	To        string                 `json:"to"`
	Title     string                 `json:"title,omitempty"`
	Body      string                 `json:"body,omitempty"`
	Sound     string                 `json:"sound,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Priority  string                 `json:"priority,omitempty"`
	ChannelID string                 `json:"channelId,omitempty"`
}

// ExpoGateway sends push notifications through Expo's push API. It has no
// per-device credentials of its own - the token in each Send call is the
// device's Expo push token.
type ExpoGateway struct {
	client *http.Client
}

// NewExpoGateway builds an ExpoGateway with the specification's fixed
// timeout.
func NewExpoGateway() *ExpoGateway {
	return &ExpoGateway{client: &http.Client{Timeout: fetchTimeout}}
}

// Send pushes a single message as a one-entry Expo batch. The Pipeline calls
// it once per alert; SendAlerts is the batched alternative.
func (g *ExpoGateway) Send(ctx context.Context, token, title, body string, data map[string]interface{}) error {
	return g.sendBatch(ctx, []expoMessage{{
		To: token, Title: title, Body: body, Sound: "default", Data: data,
		Priority: "high", ChannelID: "default",
	}})
}

// SendAlerts batches every alert generated this tick, at most
// expoBatchLimit per HTTP call, and returns per-alert send errors so the
// caller can log a NotificationLog entry for each.
func (g *ExpoGateway) SendAlerts(ctx context.Context, alerts []Alert, tokenOf func(deviceID string) (string, bool)) map[int]error {
	results := make(map[int]error, len(alerts))
	var batch []expoMessage
	var indices []int

	flush := func() {
		if len(batch) == 0 {
			return
		}
		err := g.sendBatch(ctx, batch)
		for _, idx := range indices {
			results[idx] = err
		}
		batch = batch[:0]
		indices = indices[:0]
	}

	for i, a := range alerts {
		token, ok := tokenOf(a.DeviceID)
		if !ok {
			results[i] = errors.Errorf("no active device token for %s", a.DeviceID)
			continue
		}
		title, body := alertCopy(a)
		batch = append(batch, expoMessage{
			To: token, Title: title, Body: body, Sound: "default",
			Data: alertData(a), Priority: "high", ChannelID: "default",
		})
		indices = append(indices, i)
		if len(batch) == expoBatchLimit {
			flush()
		}
	}
	flush()
	return results
}

func (g *ExpoGateway) sendBatch(ctx context.Context, messages []expoMessage) error {
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return errors.Wrap(err, "marshaling push messages")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, expoPushURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return errors.Wrap(err, "creating push request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	resp, err := g.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending push request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("expo push API returned status %d", resp.StatusCode)
	}

	zap.S().Infow("sent push notifications via expo", "count", len(messages))
	return nil
}
