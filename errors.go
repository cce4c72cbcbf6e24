package kroute

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/IBM/kroute/protocol"
)

// ErrClusterUnavailable is the error returned when every bootstrap host failed a broker-agnostic
// request such as a metadata reload. The per-host causes are wrapped along with it.
var ErrClusterUnavailable = errors.New("kafka: client has run out of available brokers to talk to")

// ErrLeaderUnavailable is matched (with errors.Is) by a LeaderUnavailableError.
var ErrLeaderUnavailable = errors.New("kafka: partition has no leader")

// ErrPartitionUnavailable is returned when a topic/partition is not part of the cluster metadata,
// even after reloading it.
var ErrPartitionUnavailable = errors.New("kafka: partition not present in cluster metadata")

// ErrClosedClient is the error returned when a method is called on a client that has been closed.
var ErrClosedClient = errors.New("kafka: tried to use a client that was closed")

// ErrIncompleteResponse is the error returned when a broker answers a request without a block
// for every topic/partition it was asked about.
var ErrIncompleteResponse = errors.New("kafka: response did not contain all the expected topic/partition blocks")

// ErrNotConnected is the error returned when trying to use a connection that was closed.
var ErrNotConnected = errors.New("kafka: broker not connected")

// ErrCorrelationMismatch is the error returned when a connection reads a response whose
// correlation id matches no request sent on it.
var ErrCorrelationMismatch = errors.New("kafka: correlation id does not match any request in flight")

// ConnectionError is a transport failure while connecting to, writing to or reading from one broker.
type ConnectionError struct {
	Addr string
	Err  error
}

func (err *ConnectionError) Error() string {
	return fmt.Sprintf("kafka: connection to %s failed: %v", err.Addr, err.Err)
}

func (err *ConnectionError) Unwrap() error {
	return err.Err
}

// LeaderUnavailableError is returned when a partition that is part of the cluster metadata has no
// elected leader, which fails the whole batch it was part of.
type LeaderUnavailableError struct {
	Topic     string
	Partition int32
}

func (err *LeaderUnavailableError) Error() string {
	return fmt.Sprintf("kafka: leader not available for topic %s partition %d", err.Topic, err.Partition)
}

func (err *LeaderUnavailableError) Is(target error) bool {
	return target == ErrLeaderUnavailable
}

// FailedPayloadsError is returned when one or more broker round trips of a dispatch failed. Payloads
// holds exactly the payloads routed to the failed brokers, in the order they were given, so they
// can be retried. All cached metadata has been dropped by the time it is returned.
type FailedPayloadsError struct {
	Payloads []protocol.Block
	Err      error
}

func (err *FailedPayloadsError) Error() string {
	return fmt.Sprintf("kafka: %d payloads failed: %v", len(err.Payloads), err.Err)
}

func (err *FailedPayloadsError) Unwrap() error {
	return err.Err
}

// ResponseError is a non-zero error code a broker returned for one topic/partition.
type ResponseError struct {
	Topic     string
	Partition int32
	Err       protocol.KError
}

func (err *ResponseError) Error() string {
	return fmt.Sprintf("kafka: error for topic %s partition %d: %v", err.Topic, err.Partition, err.Err)
}

func (err *ResponseError) Unwrap() error {
	return err.Err
}

// ConfigurationError is the type of error returned from a constructor (e.g. NewClient)
// when the specified configuration is invalid.
type ConfigurationError string

func (err ConfigurationError) Error() string {
	return "kafka: invalid configuration (" + string(err) + ")"
}

// MultiErrorFormat specifies the formatter applied to format multierrors. The
// default implementation is a condensed version of the hashicorp/go-multierror
// default one
var MultiErrorFormat multierror.ErrorFormatFunc = func(es []error) string {
	if len(es) == 1 {
		return es[0].Error()
	}

	points := make([]string, len(es))
	for i, err := range es {
		points[i] = fmt.Sprintf("* %s", err)
	}

	return fmt.Sprintf(
		"%d errors occurred:\n\t%s\n",
		len(es), strings.Join(points, "\n\t"))
}

type sentinelError struct {
	sentinel error
	wrapped  error
}

func (err sentinelError) Error() string {
	if err.wrapped != nil {
		return fmt.Sprintf("%s: %v", err.sentinel, err.wrapped)
	}
	return fmt.Sprintf("%s", err.sentinel)
}

func (err sentinelError) Is(target error) bool {
	return errors.Is(err.sentinel, target) || errors.Is(err.wrapped, target)
}

func (err sentinelError) Unwrap() error {
	return err.wrapped
}

// Wrap returns an error that matches sentinel with errors.Is and carries every non-nil wrapped error.
func Wrap(sentinel error, wrapped ...error) error {
	return sentinelError{sentinel: sentinel, wrapped: multiError(wrapped...)}
}

func multiError(wrapped ...error) error {
	merr := multierror.Append(nil, wrapped...)
	if MultiErrorFormat != nil {
		merr.ErrorFormat = MultiErrorFormat
	}
	return merr.ErrorOrNil()
}
