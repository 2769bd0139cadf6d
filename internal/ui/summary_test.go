package ui

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/drockwell/flotilla/internal/fleet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransport plays back a canned exit code and output.
type scriptedTransport struct {
	exitCode int
	stderr   string
}

func (s *scriptedTransport) Exec(cmd string) ([]byte, []byte, int, error) {
	return nil, []byte(s.stderr), s.exitCode, nil
}

func (s *scriptedTransport) Close() error { return nil }
func (s *scriptedTransport) Addr() string { return "127.0.0.1:22" }

// scriptedDialer maps hosts to transports; unknown hosts fail to connect.
type scriptedDialer struct {
	transports map[string]*scriptedTransport
}

func (d *scriptedDialer) Dial(cfg *fleet.ConnectionConfig) (fleet.Transport, error) {
	if tr, ok := d.transports[cfg.Host]; ok {
		return tr, nil
	}
	return nil, fmt.Errorf("connection refused")
}

func executeHosts(t *testing.T, dialer fleet.Dialer, hosts string) *fleet.ResultSet {
	t.Helper()
	specs, err := fleet.ParseHostList(hosts)
	require.NoError(t, err)

	resolver := fleet.NewResolver()
	resolver.Defaults.User = "deploy"

	group, err := fleet.NewGroup(specs, resolver, nil, fleet.GroupOptions{Dialer: dialer})
	require.NoError(t, err)
	defer group.Close()

	task, err := fleet.Shell("uptime")
	require.NoError(t, err)

	rs, _ := group.Execute(context.Background(), task)
	require.NotNil(t, rs)
	return rs
}

func TestSummaryRender_AllPassed(t *testing.T) {
	dialer := &scriptedDialer{transports: map[string]*scriptedTransport{
		"web1": {},
		"web2": {},
	}}
	rs := executeHosts(t, dialer, "web1,web2")

	var buf bytes.Buffer
	NewSummary(&buf).Render(rs)
	out := buf.String()

	assert.Contains(t, out, SymbolSuccess+" web1")
	assert.Contains(t, out, SymbolSuccess+" web2")
	assert.Contains(t, out, "2 passed, 0 failed")
}

func TestSummaryRender_SuccessWithoutResult(t *testing.T) {
	specs, err := fleet.ParseHostList("web1")
	require.NoError(t, err)

	resolver := fleet.NewResolver()
	resolver.Defaults.User = "deploy"

	dialer := &scriptedDialer{transports: map[string]*scriptedTransport{"web1": {}}}
	group, err := fleet.NewGroup(specs, resolver, nil, fleet.GroupOptions{Dialer: dialer})
	require.NoError(t, err)
	defer group.Close()

	task := &fleet.FuncTask{TaskName: "noop", Fn: func(ctx context.Context, conn *fleet.Connection) (*fleet.Result, error) {
		return nil, nil
	}}
	rs, err := group.Execute(context.Background(), task)
	require.NoError(t, err)

	var buf bytes.Buffer
	NewSummary(&buf).Render(rs)
	assert.Contains(t, buf.String(), SymbolSuccess+" web1")
	assert.Contains(t, buf.String(), "1 passed, 0 failed")
}

func TestSummaryRender_MixedOutcomes(t *testing.T) {
	dialer := &scriptedDialer{transports: map[string]*scriptedTransport{
		"web1": {},
		"web3": {exitCode: 2, stderr: "disk full\nmore detail\n"},
	}}
	rs := executeHosts(t, dialer, "web1,web2,web3")

	var buf bytes.Buffer
	NewSummary(&buf).Render(rs)
	out := buf.String()

	assert.Contains(t, out, SymbolSuccess+" web1")
	assert.Contains(t, out, SymbolFail+" web2  connect failed")
	assert.Contains(t, out, SymbolFail+" web3  exit 2: disk full")
	assert.NotContains(t, out, "more detail")
	assert.Contains(t, out, "1 passed, 2 failed")
}

func TestSummaryRender_HostOrderMatchesList(t *testing.T) {
	dialer := &scriptedDialer{transports: map[string]*scriptedTransport{
		"web1": {}, "web2": {}, "web3": {},
	}}
	rs := executeHosts(t, dialer, "web3,web1,web2")

	var buf bytes.Buffer
	NewSummary(&buf).Render(rs)
	out := buf.String()

	first := bytes.Index(buf.Bytes(), []byte("web3"))
	second := bytes.Index(buf.Bytes(), []byte("web1"))
	third := bytes.Index(buf.Bytes(), []byte("web2"))
	require.NotEqual(t, -1, first, out)
	assert.Less(t, first, second)
	assert.Less(t, second, third)
}
