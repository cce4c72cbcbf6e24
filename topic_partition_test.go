package kroute

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHosts(t *testing.T) {
	hosts, err := parseHosts([]string{"localhost:9092", "[::1]:9093", "kafka-1.example.com:19092"})
	require.NoError(t, err)
	require.Equal(t, []hostPort{
		{host: "localhost", port: 9092},
		{host: "::1", port: 9093},
		{host: "kafka-1.example.com", port: 19092},
	}, hosts)
	require.Equal(t, "[::1]:9093", hosts[1].addr())

	for _, bad := range []string{"localhost", "localhost:", "localhost:http", "localhost:0", "localhost:99999999999"} {
		_, err := parseHosts([]string{bad})
		var confErr ConfigurationError
		require.ErrorAs(t, err, &confErr, bad)
	}
}

func TestTopicPartitionStrings(t *testing.T) {
	require.Equal(t, "foo/3", TopicPartition{Topic: "foo", Partition: 3}.String())

	broker := BrokerDescriptor{ID: 2, Host: "localhost", Port: 9092}
	require.Equal(t, "localhost:9092", broker.Addr())
	require.Equal(t, "#2 at localhost:9092", broker.String())
}
