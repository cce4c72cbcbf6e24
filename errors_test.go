package kroute

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/IBM/kroute/protocol"
)

func TestSentinelWithSingleWrappedError(t *testing.T) {
	t.Parallel()
	myNetError := &net.OpError{Op: "mock", Err: errors.New("op error")}
	error := Wrap(ErrClusterUnavailable, myNetError)

	expected := fmt.Sprintf("%s: mock: op error", ErrClusterUnavailable)
	require.Equal(t, expected, error.Error())
	require.ErrorIs(t, error, ErrClusterUnavailable)
	require.ErrorIs(t, error, myNetError)

	var opError *net.OpError
	require.ErrorAs(t, error, &opError)
}

func TestSentinelWithMultipleWrappedErrors(t *testing.T) {
	t.Parallel()
	myNetError := &net.OpError{}
	myAddrError := &net.AddrError{}

	error := Wrap(ErrLeaderUnavailable, myNetError, myAddrError)

	require.ErrorIs(t, error, ErrLeaderUnavailable)
	require.ErrorIs(t, error, myNetError)
	require.ErrorIs(t, error, myAddrError)
	require.NotErrorIs(t, error, ErrClosedClient)
}

func TestSentinelWithoutWrappedErrors(t *testing.T) {
	t.Parallel()
	error := Wrap(ErrClusterUnavailable)

	require.Equal(t, ErrClusterUnavailable.Error(), error.Error())
	require.ErrorIs(t, error, ErrClusterUnavailable)
	require.Nil(t, errors.Unwrap(error))
}

func TestMultiErrorFormat(t *testing.T) {
	t.Parallel()
	err := multiError(errors.New("first"), errors.New("second"))
	require.Equal(t, "2 errors occurred:\n\t* first\n\t* second\n", err.Error())

	require.NoError(t, multiError())
	require.EqualError(t, multiError(errors.New("only")), "only")
}

func TestErrorTypes(t *testing.T) {
	t.Parallel()

	leaderErr := &LeaderUnavailableError{Topic: "foo", Partition: 3}
	require.ErrorIs(t, leaderErr, ErrLeaderUnavailable)
	require.EqualError(t, leaderErr, "kafka: leader not available for topic foo partition 3")

	respErr := &ResponseError{Topic: "foo", Partition: 1, Err: protocol.ErrNotLeaderForPartition}
	require.ErrorIs(t, respErr, protocol.ErrNotLeaderForPartition)

	cause := &ConnectionError{Addr: "localhost:9092", Err: ErrNotConnected}
	failed := &FailedPayloadsError{
		Payloads: []protocol.Block{&protocol.FetchPayload{Topic: "foo"}},
		Err:      multiError(cause),
	}
	require.ErrorIs(t, failed, ErrNotConnected)
	var connErr *ConnectionError
	require.ErrorAs(t, failed, &connErr)
	require.Equal(t, "localhost:9092", connErr.Addr)

	require.EqualError(t, ConfigurationError("bad"), "kafka: invalid configuration (bad)")
}
