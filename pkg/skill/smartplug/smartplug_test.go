package smartplug

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfalcao/phantasma/pkg/skill"
)

// fakeDevice is an HTTP smart plug for tests.
type fakeDevice struct {
	srv   *httptest.Server
	state atomic.Value
	ons   atomic.Int32
	offs  atomic.Int32
}

func newFakeDevice(t *testing.T, power float64) *fakeDevice {
	t.Helper()
	d := &fakeDevice{}
	d.state.Store("off")

	mux := http.NewServeMux()
	mux.HandleFunc("POST /on", func(w http.ResponseWriter, r *http.Request) {
		d.state.Store("on")
		d.ons.Add(1)
	})
	mux.HandleFunc("POST /off", func(w http.ResponseWriter, r *http.Request) {
		d.state.Store("off")
		d.offs.Add(1)
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"state":   d.state.Load(),
			"power_w": power,
		})
	})

	d.srv = httptest.NewServer(mux)
	t.Cleanup(d.srv.Close)
	return d
}

func testSkill(t *testing.T, devices map[string]string) *Skill {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Devices = devices
	cfg.SnapshotPath = filepath.Join(t.TempDir(), "plugs.json")
	return New(cfg)
}

func TestSwitchOnByNickname(t *testing.T) {
	dev := newFakeDevice(t, 0)
	s := testSkill(t, map[string]string{"luz da sala": dev.srv.URL})

	res := s.Handle("liga a luz da sala", "liga a luz da sala")
	assert.Equal(t, skill.Answer, res.Kind)
	assert.Equal(t, "luz da sala ligado.", res.Text)
	assert.Equal(t, int32(1), dev.ons.Load())
}

func TestSwitchOffGenericNounHitsAllMatches(t *testing.T) {
	sala := newFakeDevice(t, 0)
	quarto := newFakeDevice(t, 0)
	s := testSkill(t, map[string]string{
		"luz da sala":   sala.srv.URL,
		"luz do quarto": quarto.srv.URL,
	})

	res := s.Handle("desliga as luzes", "desliga as luzes")
	assert.Equal(t, "Feito. 2 dispositivos desligados.", res.Text)
	assert.Equal(t, int32(1), sala.offs.Load())
	assert.Equal(t, int32(1), quarto.offs.Load())
}

func TestSwitchFailure(t *testing.T) {
	s := testSkill(t, map[string]string{"exaustor": "http://127.0.0.1:1"})

	res := s.Handle("liga o exaustor", "liga o exaustor")
	assert.Equal(t, "Erro ao controlar exaustor.", res.Text)
}

func TestStatusFromSnapshot(t *testing.T) {
	dev := newFakeDevice(t, 123.4)
	s := testSkill(t, map[string]string{"desumidificador": dev.srv.URL})

	s.pollAll(context.Background())

	res := s.Handle("qual é o consumo do desumidificador", "qual é o consumo do desumidificador")
	assert.Equal(t, "O desumidificador está desligado a gastar 123.4 Watts.", res.Text)
}

func TestStatusUnreachableDevice(t *testing.T) {
	s := testSkill(t, map[string]string{"tomada do quarto": "http://127.0.0.1:1"})

	res := s.Handle("como está a tomada do quarto", "como está a tomada do quarto")
	assert.Equal(t, "Não consigo aceder ao tomada do quarto.", res.Text)
}

func TestNoActionFallsThrough(t *testing.T) {
	s := testSkill(t, map[string]string{"luz da sala": "http://127.0.0.1:1"})

	res := s.Handle("a luz da sala é bonita", "a luz da sala é bonita")
	assert.Equal(t, skill.NoMatch, res.Kind)
}

func TestNoTargetFallsThrough(t *testing.T) {
	s := testSkill(t, map[string]string{"luz da sala": "http://127.0.0.1:1"})

	res := s.Handle("liga o carro", "liga o carro")
	assert.Equal(t, skill.NoMatch, res.Kind)
}

func TestStatusForAndListings(t *testing.T) {
	dev := newFakeDevice(t, 5)
	cfg := DefaultConfig()
	cfg.Devices = map[string]string{"luz da sala": dev.srv.URL}
	cfg.Sensors = map[string]string{"sensor da cave": dev.srv.URL}
	cfg.SnapshotPath = filepath.Join(t.TempDir(), "plugs.json")
	s := New(cfg)

	assert.Equal(t, []string{"luz da sala"}, s.Toggles())
	assert.Equal(t, []string{"sensor da cave"}, s.Sensors())

	// Nothing polled yet: known device, unreachable state.
	st, ok := s.StatusFor("luz da sala")
	require.True(t, ok)
	assert.Equal(t, "unreachable", st.State)

	_, ok = s.StatusFor("frigorífico")
	assert.False(t, ok)

	s.pollAll(context.Background())
	st, ok = s.StatusFor("luz da sala")
	require.True(t, ok)
	assert.Equal(t, "off", st.State)
	assert.True(t, st.Reachable)
	assert.InDelta(t, 5.0, st.PowerW, 0.001)
}

func TestSwitchUpdatesSnapshotImmediately(t *testing.T) {
	dev := newFakeDevice(t, 0)
	s := testSkill(t, map[string]string{"luz da sala": dev.srv.URL})

	require.NoError(t, s.Switch("luz da sala", true))

	st, ok := s.StatusFor("luz da sala")
	require.True(t, ok)
	assert.Equal(t, "on", st.State)
}

func TestSnapshotSurvivesRestart(t *testing.T) {
	dev := newFakeDevice(t, 7)
	path := filepath.Join(t.TempDir(), "plugs.json")

	cfg := DefaultConfig()
	cfg.Devices = map[string]string{"luz da sala": dev.srv.URL}
	cfg.SnapshotPath = path

	s := New(cfg)
	s.pollAll(context.Background())

	// A fresh instance reads the previous readings back.
	reborn := New(cfg)
	st, ok := reborn.StatusFor("luz da sala")
	require.True(t, ok)
	assert.Equal(t, "off", st.State)
	assert.InDelta(t, 7.0, st.PowerW, 0.001)
}

func TestDaemonDisabledWithoutDevices(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SnapshotPath = filepath.Join(t.TempDir(), "plugs.json")
	s := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.StartDaemon(ctx)
	<-ctx.Done()
}
