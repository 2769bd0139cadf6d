package fleet

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultSet_RecordBothResultAndFailure(t *testing.T) {
	rs := newResultSet()
	res := &Result{Host: "deploy@web1:22", ExitStatus: 1}
	rs.record("web1", res, &CommandFailure{Host: "web1", ExitStatus: 1})

	assert.Equal(t, res, rs.Result("web1"))
	assert.Error(t, rs.Failure("web1"))
	assert.Empty(t, rs.Succeeded())
	assert.Len(t, rs.Failed(), 1)
}

func TestResultSet_HostsInRecordOrder(t *testing.T) {
	rs := newResultSet()
	rs.record("web3", &Result{}, nil)
	rs.record("web1", nil, &ConnectFailure{Host: "web1", Cause: fmt.Errorf("refused")})
	rs.record("web2", &Result{}, nil)

	assert.Equal(t, []string{"web3", "web1", "web2"}, rs.Hosts())
	assert.Equal(t, 3, rs.Len())
}

func TestResultSet_AllSucceeded(t *testing.T) {
	rs := newResultSet()
	assert.False(t, rs.AllSucceeded(), "empty set is not a success")

	rs.record("web1", &Result{}, nil)
	assert.True(t, rs.AllSucceeded())

	rs.record("web2", nil, &CancelledFailure{Host: "web2"})
	assert.False(t, rs.AllSucceeded())
}

func TestResultSet_DistinctRunIDs(t *testing.T) {
	a, b := newResultSet(), newResultSet()
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestGroupFailure_Message(t *testing.T) {
	rs := newResultSet()
	rs.record("web1", &Result{}, nil)
	rs.record("web2", nil, &ConnectFailure{Host: "web2", Cause: fmt.Errorf("refused")})
	rs.record("web3", nil, &CommandFailure{Host: "web3", Command: "false", ExitStatus: 1})

	gf := &GroupFailure{Results: rs}
	msg := gf.Error()
	assert.Contains(t, msg, "web2")
	assert.Contains(t, msg, "web3")
	assert.NotContains(t, msg, "web1:")

	require.Len(t, gf.Unwrap(), 2)
}

func TestFailureMessages(t *testing.T) {
	cf := &ConnectFailure{Host: "web1", Cause: fmt.Errorf("refused")}
	assert.Contains(t, cf.Error(), "web1")
	assert.ErrorContains(t, cf.Unwrap(), "refused")

	cmd := &CommandFailure{Host: "web1", Command: "false", ExitStatus: 3}
	assert.Contains(t, cmd.Error(), "3")

	cancelled := &CancelledFailure{Host: "web1"}
	assert.Contains(t, cancelled.Error(), "web1")
}
