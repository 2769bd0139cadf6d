package fleet

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGroup(t *testing.T, dialer Dialer, opts GroupOptions, hosts ...string) *Group {
	t.Helper()
	specs, err := ParseHostList(strings.Join(hosts, ","))
	require.NoError(t, err)

	opts.Dialer = dialer
	r := testResolver()
	group, err := NewGroup(specs, r, nil, opts)
	require.NoError(t, err)
	return group
}

func TestGroup_ResolutionErrorIsFatal(t *testing.T) {
	r := testResolver()
	r.Defaults.User = ""

	specs, err := ParseHostList("web1,web2")
	require.NoError(t, err)

	_, err = NewGroup(specs, r, nil, GroupOptions{})
	require.Error(t, err)
}

func TestGroup_OneEntryPerHost(t *testing.T) {
	dialer := newFakeDialer()
	group := newTestGroup(t, dialer, GroupOptions{}, "web1", "web2", "web3")
	defer group.Close()

	task, err := Shell("uptime")
	require.NoError(t, err)

	rs, err := group.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 3, rs.Len())
	assert.Equal(t, []string{"web1", "web2", "web3"}, rs.Hosts())
	assert.True(t, rs.AllSucceeded())
}

func TestGroup_RejectsDuplicateHosts(t *testing.T) {
	specs, err := ParseHostList("web1,web2,web1")
	require.NoError(t, err)

	_, err = NewGroup(specs, testResolver(), nil, GroupOptions{Dialer: newFakeDialer()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "web1")

	// Same bare host with different shorthand is two distinct entries.
	specs, err = ParseHostList("web1,deploy@web1")
	require.NoError(t, err)
	group, err := NewGroup(specs, testResolver(), nil, GroupOptions{Dialer: newFakeDialer()})
	require.NoError(t, err)
	defer group.Close()
	assert.Len(t, group.Connections(), 2)
}

func TestGroup_FuncTaskWithoutResultSucceeds(t *testing.T) {
	task := &FuncTask{
		TaskName: "check",
		Fn: func(ctx context.Context, conn *Connection) (*Result, error) {
			return nil, nil
		},
	}

	group := newTestGroup(t, newFakeDialer(), GroupOptions{Mode: Parallel}, "web1", "web2")
	defer group.Close()

	rs, err := group.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, rs.AllSucceeded())
	assert.Empty(t, rs.Failed())

	succeeded := rs.Succeeded()
	require.Contains(t, succeeded, "web1")
	require.Contains(t, succeeded, "web2")
	assert.Nil(t, succeeded["web1"])
	assert.Nil(t, rs.Result("web1"))
}

func TestGroup_SerialRunsInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	task := &FuncTask{
		TaskName: "record",
		Fn: func(ctx context.Context, conn *Connection) (*Result, error) {
			mu.Lock()
			order = append(order, conn.Spec.Host)
			mu.Unlock()
			return &Result{Host: conn.Identity()}, nil
		},
	}

	group := newTestGroup(t, newFakeDialer(), GroupOptions{Mode: Serial}, "web3", "web1", "web2")
	defer group.Close()

	_, err := group.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, []string{"web3", "web1", "web2"}, order)
}

func TestGroup_OneHostFailureDoesNotBlockOthers(t *testing.T) {
	dialer := newFakeDialer()
	dialer.hostErrs["web2"] = fmt.Errorf("connection refused")
	group := newTestGroup(t, dialer, GroupOptions{}, "web1", "web2", "web3")
	defer group.Close()

	task, err := Shell("uptime")
	require.NoError(t, err)

	rs, err := group.Execute(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, 3, rs.Len())
	assert.NotNil(t, rs.Result("web1"))
	assert.NotNil(t, rs.Result("web3"))

	var cf *ConnectFailure
	require.ErrorAs(t, rs.Failure("web2"), &cf)
	assert.Len(t, rs.Succeeded(), 2)
	assert.Len(t, rs.Failed(), 1)
	assert.False(t, rs.AllSucceeded())
}

func TestGroup_AllFailedRaisesGroupFailure(t *testing.T) {
	dialer := newFakeDialer()
	dialer.dialErr = fmt.Errorf("network down")
	group := newTestGroup(t, dialer, GroupOptions{}, "web1", "web2")
	defer group.Close()

	task, err := Shell("uptime")
	require.NoError(t, err)

	rs, err := group.Execute(context.Background(), task)
	var gf *GroupFailure
	require.ErrorAs(t, err, &gf)
	assert.Equal(t, 2, rs.Len())
	assert.Same(t, rs, gf.Results)
}

func TestGroup_AbortOnFailureStillAttemptsEveryHost(t *testing.T) {
	dialer := newFakeDialer()
	dialer.hostErrs["web1"] = fmt.Errorf("connection refused")
	group := newTestGroup(t, dialer, GroupOptions{AbortOnFailure: true}, "web1", "web2", "web3")
	defer group.Close()

	task, err := Shell("uptime")
	require.NoError(t, err)

	rs, err := group.Execute(context.Background(), task)

	// The failure is raised late: web2 and web3 were still attempted.
	var gf *GroupFailure
	require.ErrorAs(t, err, &gf)
	assert.Equal(t, 3, rs.Len())
	assert.Len(t, rs.Succeeded(), 2)
}

func TestGroup_NonZeroExitKeepsResultInAggregate(t *testing.T) {
	dialer := newFakeDialer()
	dialer.perHost["web2"] = &fakeTransport{exitCode: 7, stderr: "fatal: not a git repository\n"}
	group := newTestGroup(t, dialer, GroupOptions{}, "web1", "web2")
	defer group.Close()

	task, err := Shell("git pull")
	require.NoError(t, err)

	rs, err := group.Execute(context.Background(), task)
	require.NoError(t, err)

	res := rs.Result("web2")
	require.NotNil(t, res)
	assert.Equal(t, 7, res.ExitStatus)

	var cf *CommandFailure
	require.ErrorAs(t, rs.Failure("web2"), &cf)
}

func TestGroup_ParallelBoundsConcurrency(t *testing.T) {
	var current, max atomic.Int64
	task := &FuncTask{
		TaskName: "count",
		Fn: func(ctx context.Context, conn *Connection) (*Result, error) {
			n := current.Add(1)
			for {
				m := max.Load()
				if n <= m || max.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
			return &Result{Host: conn.Identity()}, nil
		},
	}

	group := newTestGroup(t, newFakeDialer(),
		GroupOptions{Mode: Parallel, PoolSize: 2},
		"h1", "h2", "h3", "h4", "h5")
	defer group.Close()

	rs, err := group.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 5, rs.Len())
	assert.LessOrEqual(t, max.Load(), int64(2))
}

func TestGroup_ParallelResultsKeepListOrder(t *testing.T) {
	group := newTestGroup(t, newFakeDialer(),
		GroupOptions{Mode: Parallel},
		"web3", "web1", "web2")
	defer group.Close()

	task, err := Shell("uptime")
	require.NoError(t, err)

	rs, err := group.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, []string{"web3", "web1", "web2"}, rs.Hosts())
}

func TestGroup_CancelledHostsAreRecorded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var ran atomic.Int64
	task := &FuncTask{
		TaskName: "cancel-after-first",
		Fn: func(ctx context.Context, conn *Connection) (*Result, error) {
			ran.Add(1)
			cancel()
			return &Result{Host: conn.Identity()}, nil
		},
	}

	group := newTestGroup(t, newFakeDialer(), GroupOptions{Mode: Serial}, "web1", "web2", "web3")
	defer group.Close()

	rs, err := group.Execute(ctx, task)

	// One entry per host, attempted or not.
	assert.Equal(t, 3, rs.Len())
	assert.Equal(t, int64(1), ran.Load())

	var cancelled *CancelledFailure
	require.ErrorAs(t, rs.Failure("web2"), &cancelled)
	require.ErrorAs(t, rs.Failure("web3"), &cancelled)

	// web1 succeeded, everything else failed: not a total failure, and
	// AbortOnFailure is off, so no GroupFailure.
	assert.NoError(t, err)
}

func TestGroup_PoolExhaustedTimeoutIsFatal(t *testing.T) {
	release := make(chan struct{})
	task := &FuncTask{
		TaskName: "slow",
		Fn: func(ctx context.Context, conn *Connection) (*Result, error) {
			<-release
			return &Result{Host: conn.Identity()}, nil
		},
	}

	group := newTestGroup(t, newFakeDialer(),
		GroupOptions{Mode: Parallel, PoolSize: 1, SubmitWait: 15 * time.Millisecond},
		"web1", "web2", "web3")
	defer group.Close()

	done := make(chan struct{})
	go func() {
		// Unblock the in-flight worker once the submit wait has expired
		// for the queued hosts.
		time.Sleep(60 * time.Millisecond)
		close(release)
		close(done)
	}()

	rs, err := group.Execute(context.Background(), task)
	<-done

	var timeout *PoolExhaustedTimeout
	require.ErrorAs(t, err, &timeout)

	// The in-flight host finished; the undispatched ones were recorded
	// as cancelled, not dropped.
	assert.Equal(t, 3, rs.Len())
	assert.NotNil(t, rs.Result("web1"))
	var cancelled *CancelledFailure
	require.ErrorAs(t, rs.Failure("web2"), &cancelled)
	require.ErrorAs(t, rs.Failure("web3"), &cancelled)
}

func TestGroup_FromConnections(t *testing.T) {
	dialer := newFakeDialer()
	c1 := newTestConnection(t, "web1", dialer)
	c2 := newTestConnection(t, "web2", dialer)

	group := FromConnections(GroupOptions{}, c1, c2)
	defer group.Close()

	assert.Len(t, group.Connections(), 2)

	task, err := Shell("uptime")
	require.NoError(t, err)
	rs, err := group.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Len())
}

func TestGroup_CloseClosesEveryConnection(t *testing.T) {
	dialer := newFakeDialer()
	group := newTestGroup(t, dialer, GroupOptions{}, "web1", "web2")

	task, err := Shell("uptime")
	require.NoError(t, err)
	_, err = group.Execute(context.Background(), task)
	require.NoError(t, err)

	require.NoError(t, group.Close())
	for _, conn := range group.Connections() {
		assert.False(t, conn.IsOpen())
	}

	// Idempotent.
	require.NoError(t, group.Close())
}
