package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertCopy_EveryType(t *testing.T) {
	tests := []struct {
		alertType AlertType
	}{
		{AlertEarlyWarning},
		{AlertApproaching},
		{AlertInSession},
		{AlertCompleted},
	}
	for _, tc := range tests {
		title, body := alertCopy(Alert{Type: tc.alertType, CaseNumber: "CR/1", CourtNumber: "3", Position: 2})
		assert.NotEmpty(t, title)
		assert.NotEmpty(t, body)
	}
}

func TestAlertCopy_UnknownTypeIsEmpty(t *testing.T) {
	title, body := alertCopy(Alert{Type: AlertType("bogus")})
	assert.Empty(t, title)
	assert.Empty(t, body)
}

func TestAlertCopy_InSessionIncludesJudgeName(t *testing.T) {
	_, body := alertCopy(Alert{Type: AlertInSession, CourtNumber: "3", JudgeName: "Hon. A. Sharma"})
	assert.Contains(t, body, "Hon. A. Sharma")
}

func TestAlertData_OmitsZeroFields(t *testing.T) {
	data := alertData(Alert{CaseNumber: "CR/1", Type: AlertEarlyWarning})
	assert.Equal(t, "CR/1", data["caseNumber"])
	_, hasPosition := data["position"]
	assert.False(t, hasPosition)
	_, hasStream := data["streamUrl"]
	assert.False(t, hasStream)
}

func TestAlertData_IncludesPositionAndVelocity(t *testing.T) {
	data := alertData(Alert{CaseNumber: "CR/1", Position: 2, Velocity: 1})
	assert.Equal(t, 2, data["position"])
	assert.Equal(t, 1, data["velocity"])
}

func TestExpoGateway_SendAlerts_MissingTokenReportsErrorWithoutSending(t *testing.T) {
	g := NewExpoGateway()
	alerts := []Alert{{DeviceID: "missing-device", Type: AlertApproaching, CaseNumber: "CR/1"}}

	results := g.SendAlerts(context.Background(), alerts, func(deviceID string) (string, bool) {
		return "", false
	})

	require.Len(t, results, 1)
	assert.Error(t, results[0])
}

func TestExpoGateway_SendAlerts_EmptyAlertSetNoOp(t *testing.T) {
	g := NewExpoGateway()
	results := g.SendAlerts(context.Background(), nil, func(string) (string, bool) { return "", false })
	assert.Empty(t, results)
}
