package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfalcao/phantasma/pkg/hub"
	"github.com/mfalcao/phantasma/pkg/skill"
)

type fakeCommander struct {
	prompts []string
	reply   string
}

func (f *fakeCommander) Command(_ context.Context, prompt string) string {
	f.prompts = append(f.prompts, prompt)
	return f.reply
}

// deviceSkill fakes a device-controlling skill for the API surface.
type deviceSkill struct{}

func (d *deviceSkill) Name() string              { return "tomadas" }
func (d *deviceSkill) Triggers() []string        { return []string{"liga", "desliga", "estado", "consumo"} }
func (d *deviceSkill) Mode() skill.Mode          { return skill.MatchSubstring }
func (d *deviceSkill) Handle(_, _ string) skill.Result { return skill.None() }

func (d *deviceSkill) Toggles() []string { return []string{"luz da sala"} }
func (d *deviceSkill) Sensors() []string { return []string{"sensor da cave"} }

func (d *deviceSkill) StatusFor(nickname string) (skill.DeviceStatus, bool) {
	if nickname != "luz da sala" {
		return skill.DeviceStatus{}, false
	}
	return skill.DeviceStatus{Device: nickname, State: "on", Reachable: true}, true
}

func testServer(t *testing.T, cmd Commander) *Server {
	t.Helper()
	events := hub.New()
	go events.Run()

	registry := skill.NewRegistry(&deviceSkill{})
	return NewServer(Config{ListenAddr: ":0"}, cmd, registry, events, func() Status {
		return Status{Speaking: false, CurrentSession: "abc", Listeners: 0}
	})
}

func postJSON(t *testing.T, s *Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, s *Server, path string, dst any) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	if dst != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
	}
	return resp
}

func TestCommand(t *testing.T) {
	cmd := &fakeCommander{reply: "luz ligada."}
	s := testServer(t, cmd)

	resp := postJSON(t, s, "/comando", map[string]string{"prompt": "liga a luz"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "luz ligada.", body["response"])
	assert.Equal(t, []string{"liga a luz"}, cmd.prompts)
}

func TestCommandEmptyPrompt(t *testing.T) {
	s := testServer(t, &fakeCommander{})

	resp := postJSON(t, s, "/comando", map[string]string{"prompt": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "error", body["status"])
}

func TestDevices(t *testing.T) {
	s := testServer(t, &fakeCommander{})

	var body struct {
		Status  string `json:"status"`
		Devices struct {
			Toggles []string `json:"toggles"`
			Status  []string `json:"status"`
		} `json:"devices"`
	}
	resp := getJSON(t, s, "/get_devices", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"luz da sala"}, body.Devices.Toggles)
	assert.Equal(t, []string{"sensor da cave"}, body.Devices.Status)
}

func TestDeviceStatus(t *testing.T) {
	s := testServer(t, &fakeCommander{})

	var body map[string]any
	getJSON(t, s, "/device_status?nickname=luz+da+sala", &body)
	assert.Equal(t, "on", body["state"])

	body = nil
	getJSON(t, s, "/device_status?nickname=inexistente", &body)
	assert.Equal(t, "unreachable", body["state"])
}

func TestDeviceAction(t *testing.T) {
	cmd := &fakeCommander{reply: "luz da sala ligado."}
	s := testServer(t, cmd)

	resp := postJSON(t, s, "/device_action", map[string]string{
		"action": "liga",
		"device": "luz da sala",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"liga o luz da sala"}, cmd.prompts)
}

func TestDeviceActionInvalid(t *testing.T) {
	s := testServer(t, &fakeCommander{})

	resp := postJSON(t, s, "/device_action", map[string]string{"action": "liga"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHelp(t *testing.T) {
	s := testServer(t, &fakeCommander{})

	var body struct {
		Status   string            `json:"status"`
		Commands map[string]string `json:"commands"`
	}
	getJSON(t, s, "/help", &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "TTS", body.Commands["diz"])
	assert.Equal(t, "liga, desliga, estado...", body.Commands["tomadas"])
}

func TestStatus(t *testing.T) {
	s := testServer(t, &fakeCommander{})

	var body Status
	getJSON(t, s, "/api/status", &body)
	assert.Equal(t, "abc", body.CurrentSession)
}
