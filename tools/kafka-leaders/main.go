package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rcrowley/go-metrics"

	"github.com/IBM/kroute"
	"github.com/IBM/kroute/protocol"
	"github.com/IBM/kroute/tools/tls"
)

var (
	brokerList = flag.String("brokers", os.Getenv("KAFKA_PEERS"), "The comma separated list of brokers in the Kafka cluster")
	topicList  = flag.String("topics", "", "The comma separated list of topics to describe (all topics if empty)")
	offsets    = flag.Bool("offsets", false, "Also fetch the newest offset of every partition from its leader")
	clientID   = flag.String("client-id", "kafka-leaders", "The client ID sent with every request to the brokers.")
	tlsEnabled = flag.Bool("tls-enabled", false, "Whether to use TLS when connecting to the brokers")
	tlsCert    = flag.String("tls-cert", "", "The client certificate to present, if any")
	tlsKey     = flag.String("tls-key", "", "The key of -tls-cert")
	tlsCA      = flag.String("tls-ca", "", "A PEM file of CAs to trust instead of the system roots")
	verbose    = flag.Bool("verbose", false, "Turn on kroute logging to stderr")
	showStats  = flag.Bool("metrics", false, "Dump the client metrics to stdout when done")
)

func main() {
	flag.Parse()

	if *brokerList == "" {
		printUsageErrorAndExit("You have to provide -brokers as a comma-separated list, or set the KAFKA_PEERS environment variable.")
	}
	if *verbose {
		kroute.Logger = log.New(os.Stderr, "[kroute] ", log.LstdFlags)
	}

	config := kroute.NewConfig()
	config.ClientID = *clientID
	if *tlsEnabled {
		tlsConfig, err := tls.NewConfig(*tlsCert, *tlsKey, *tlsCA)
		if err != nil {
			printErrorAndExit(69, "Failed to load TLS configuration: %s", err)
		}
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = tlsConfig
	}

	client, err := kroute.NewClient(strings.Split(*brokerList, ","), config)
	if err != nil {
		printErrorAndExit(69, "Failed to create client: %s", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Println("Failed to close client:", err)
		}
	}()

	topics, err := selectTopics(client)
	if err != nil {
		printErrorAndExit(69, "Failed to list topics: %s", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	header := "TOPIC\tPARTITION\tLEADER"
	if *offsets {
		header += "\tNEWEST OFFSET"
	}
	fmt.Fprintln(w, header)

	for _, topic := range topics {
		partitions, err := client.Partitions(topic)
		if err != nil {
			printErrorAndExit(69, "Failed to get the partitions of %s: %s", topic, err)
		}

		newest := map[int32]string{}
		if *offsets {
			newest = newestOffsets(client, topic, partitions)
		}

		for _, partition := range partitions {
			leader := "none"
			if broker, err := client.Leader(topic, partition); err == nil {
				leader = broker.String()
			}
			line := fmt.Sprintf("%s\t%d\t%s", topic, partition, leader)
			if *offsets {
				line += "\t" + newest[partition]
			}
			fmt.Fprintln(w, line)
		}
	}
	if err := w.Flush(); err != nil {
		printErrorAndExit(69, "Failed to write output: %s", err)
	}

	if *showStats {
		metrics.WriteOnce(config.MetricRegistry, os.Stdout)
	}
}

func selectTopics(client *kroute.Client) ([]string, error) {
	if *topicList == "" {
		return client.Topics()
	}

	topics := strings.Split(*topicList, ",")
	if err := client.LoadMetadataForTopics(topics...); err != nil {
		return nil, err
	}
	return topics, nil
}

// newestOffsets asks the leaders of every partition with a leader for its newest offset, in one
// batch. Partitions without a leader, or whose leader answered with an error, are reported as such.
func newestOffsets(client *kroute.Client, topic string, partitions []int32) map[int32]string {
	result := make(map[int32]string, len(partitions))

	var payloads []*protocol.OffsetPayload
	for _, partition := range partitions {
		if _, err := client.Leader(topic, partition); err != nil {
			result[partition] = "-"
			continue
		}
		payloads = append(payloads, &protocol.OffsetPayload{
			Topic:      topic,
			Partition:  partition,
			Time:       protocol.OffsetNewest,
			MaxOffsets: 1,
		})
	}

	blocks, err := client.SendOffsetRequest(payloads, kroute.FailOnError(false))
	if err != nil {
		log.Printf("Failed to fetch the offsets of %s: %s", topic, err)
		for _, payload := range payloads {
			result[payload.Partition] = "?"
		}
		return result
	}

	for _, block := range blocks {
		switch {
		case block.Err != protocol.ErrNoError:
			result[block.Partition] = block.Err.Error()
		case len(block.Offsets) == 0:
			result[block.Partition] = "-"
		default:
			result[block.Partition] = fmt.Sprint(block.Offsets[0])
		}
	}
	return result
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
