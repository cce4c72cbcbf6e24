package main

import (
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/IBM/kroute"
	"github.com/IBM/kroute/protocol"
	"github.com/IBM/kroute/tools/tls"
)

var (
	messageLoad = flag.Int(
		"message-load",
		0,
		"REQUIRED: The number of messages to produce to -topic.",
	)
	messageSize = flag.Int(
		"message-size",
		0,
		"REQUIRED: The approximate size (in bytes) of each message to produce to -topic.",
	)
	brokers = flag.String(
		"brokers",
		"",
		"REQUIRED: A comma separated list of broker addresses.",
	)
	topic = flag.String(
		"topic",
		"",
		"REQUIRED: The topic to run the performance test on.",
	)
	partition = flag.Int(
		"partition",
		-1,
		"The partition of -topic to run the performance test on (-1 for all partitions, round robin).",
	)
	batchSize = flag.Int(
		"batch-size",
		100,
		"The number of messages sent to every partition in a single produce request.",
	)
	requiredAcks = flag.Int(
		"required-acks",
		1,
		"The required number of acks needed from the broker (-1: all, 0: none, 1: local).",
	)
	timeout = flag.Duration(
		"timeout",
		10*time.Second,
		"The duration the broker will wait to receive -required-acks.",
	)
	compression = flag.String(
		"compression",
		"none",
		"The compression method to use (none, gzip, snappy, lz4, zstd).",
	)
	retryMax = flag.Int(
		"retry-max",
		3,
		"The total number of times to retry sending a batch.",
	)
	retryBackoff = flag.Duration(
		"retry-backoff",
		100*time.Millisecond,
		"The duration to wait for the cluster to settle between retries.",
	)
	clientID = flag.String(
		"client-id",
		"kroute",
		"The client ID sent with every request to the brokers.",
	)
	tlsEnabled = flag.Bool(
		"tls-enabled",
		false,
		"Whether to use TLS when connecting to the brokers.",
	)
	tlsClientCert = flag.String(
		"tls-client-cert",
		"",
		"Client certificate to present when -tls-enabled is set.",
	)
	tlsClientKey = flag.String(
		"tls-client-key",
		"",
		"Key of -tls-client-cert.",
	)
	verbose = flag.Bool(
		"verbose",
		false,
		"Turn on kroute logging to stderr.",
	)
)

func parseCompression(scheme string) protocol.CompressionCodec {
	var codec protocol.CompressionCodec
	if err := codec.UnmarshalText([]byte(scheme)); err != nil {
		printUsageErrorAndExit(fmt.Sprintf("Unknown -compression: %s", scheme))
	}
	return codec
}

func main() {
	flag.Parse()

	if *brokers == "" {
		printUsageErrorAndExit("-brokers is required")
	}
	if *topic == "" {
		printUsageErrorAndExit("-topic is required")
	}
	if *messageLoad <= 0 {
		printUsageErrorAndExit("-message-load must be greater than 0")
	}
	if *messageSize <= 0 {
		printUsageErrorAndExit("-message-size must be greater than 0")
	}
	if *batchSize <= 0 {
		printUsageErrorAndExit("-batch-size must be greater than 0")
	}
	if *verbose {
		kroute.Logger = log.New(os.Stderr, "[kroute] ", log.LstdFlags)
	}

	config := kroute.NewConfig()
	config.Producer.RequiredAcks = protocol.RequiredAcks(*requiredAcks)
	config.Producer.Timeout = *timeout
	config.ClientID = *clientID
	if *tlsEnabled {
		tlsConfig, err := tls.NewConfig(*tlsClientCert, *tlsClientKey, "")
		if err != nil {
			printErrorAndExit(69, "Failed to load client certificate: %s", err)
		}
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = tlsConfig
	}
	codec := parseCompression(*compression)

	if err := config.Validate(); err != nil {
		printErrorAndExit(69, "Invalid configuration: %s", err)
	}

	client, err := kroute.NewClient(strings.Split(*brokers, ","), config)
	if err != nil {
		printErrorAndExit(69, "Failed to create client: %s", err)
	}
	defer client.Close()

	partitions := []int32{int32(*partition)}
	if *partition < 0 {
		partitions, err = client.Partitions(*topic)
		if err != nil {
			printErrorAndExit(69, "Failed to get the partitions of %s: %s", *topic, err)
		}
	}

	// Spread -message-load messages of -message-size random bytes over the partitions.
	pending := make(map[int32][]*protocol.Message, len(partitions))
	for i := 0; i < *messageLoad; i++ {
		value := make([]byte, *messageSize)
		if _, err = rand.Read(value); err != nil {
			printErrorAndExit(69, "Failed to generate message payload: %s", err)
		}
		p := partitions[i%len(partitions)]
		pending[p] = append(pending[p], &protocol.Message{Value: value})
	}

	start := time.Now()
	sent := 0
	for sent < *messageLoad {
		var batch []*protocol.ProducePayload
		for _, p := range partitions {
			n := *batchSize
			if n > len(pending[p]) {
				n = len(pending[p])
			}
			if n == 0 {
				continue
			}
			batch = append(batch, &protocol.ProducePayload{
				Topic:     *topic,
				Partition: p,
				Messages:  pending[p][:n],
				Codec:     codec,
			})
			pending[p] = pending[p][n:]
			sent += n
		}

		if err := produceWithRetries(client, batch); err != nil {
			printErrorAndExit(69, "Failed to produce: %s", err)
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("%d messages in %s (%.1f msg/s)\n", *messageLoad, elapsed, float64(*messageLoad)/elapsed.Seconds())
	metrics.WriteOnce(config.MetricRegistry, os.Stdout)
}

// produceWithRetries sends batch, resending only the payloads that failed, at most -retry-max times.
func produceWithRetries(client *kroute.Client, batch []*protocol.ProducePayload) error {
	for attempt := 0; ; attempt++ {
		_, err := client.SendProduceRequest(batch)
		if err == nil {
			return nil
		}
		if attempt >= *retryMax {
			return err
		}

		var failed *kroute.FailedPayloadsError
		if errors.As(err, &failed) {
			batch = batch[:0]
			for _, payload := range failed.Payloads {
				batch = append(batch, payload.(*protocol.ProducePayload))
			}
		}
		log.Printf("Retrying %d payloads after: %s", len(batch), err)
		time.Sleep(*retryBackoff)
	}
}

func printUsageErrorAndExit(message string) {
	fmt.Fprintln(os.Stderr, "ERROR:", message)
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Available command line options:")
	flag.PrintDefaults()
	os.Exit(64)
}

func printErrorAndExit(code int, format string, values ...interface{}) {
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", fmt.Sprintf(format, values...))
	fmt.Fprintln(os.Stderr)
	os.Exit(code)
}
