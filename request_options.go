package kroute

import (
	"time"

	"github.com/IBM/kroute/protocol"
)

type requestOptions struct {
	failOnError bool
	callback    Callback
	results     *[]interface{}

	requiredAcks   protocol.RequiredAcks
	produceTimeout time.Duration
	maxWaitTime    time.Duration
	minBytes       int32
}

// RequestOption customizes a single Send*Request call.
type RequestOption func(*requestOptions)

// FailOnError sets whether the first response carrying a non-zero error code fails the call
// with a ResponseError (the default), discarding every other response. When false, all
// responses are returned for the caller to inspect.
func FailOnError(fail bool) RequestOption {
	return func(o *requestOptions) {
		o.failOnError = fail
	}
}

// Callback transforms a single response. Returning an error fails the whole call.
type Callback func(protocol.Response) (interface{}, error)

// WithCallback calls fn with every response, in payload order, after its error code was
// checked. When the call succeeds and results is not nil, *results is set to the values fn
// returned, in payload order. On failure *results is left untouched.
func WithCallback(fn Callback, results *[]interface{}) RequestOption {
	return func(o *requestOptions) {
		o.callback = fn
		o.results = results
	}
}

// WithRequiredAcks overrides Config.Producer.RequiredAcks for one produce request.
func WithRequiredAcks(acks protocol.RequiredAcks) RequestOption {
	return func(o *requestOptions) {
		o.requiredAcks = acks
	}
}

// WithProduceTimeout overrides Config.Producer.Timeout for one produce request.
func WithProduceTimeout(timeout time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.produceTimeout = timeout
	}
}

// WithMaxWaitTime overrides Config.Consumer.MaxWaitTime for one fetch request.
func WithMaxWaitTime(wait time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.maxWaitTime = wait
	}
}

// WithMinBytes overrides Config.Consumer.Fetch.MinBytes for one fetch request.
func WithMinBytes(minBytes int32) RequestOption {
	return func(o *requestOptions) {
		o.minBytes = minBytes
	}
}

func newRequestOptions(conf *Config, opts []RequestOption) *requestOptions {
	options := &requestOptions{
		failOnError:    true,
		requiredAcks:   conf.Producer.RequiredAcks,
		produceTimeout: conf.Producer.Timeout,
		maxWaitTime:    conf.Consumer.MaxWaitTime,
		minBytes:       conf.Consumer.Fetch.MinBytes,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
