package kroute

import (
	"fmt"
	"net"
	"strconv"
)

// TopicPartition identifies one partition of one topic.
type TopicPartition struct {
	Topic     string
	Partition int32
}

func (tp TopicPartition) String() string {
	return fmt.Sprintf("%s/%d", tp.Topic, tp.Partition)
}

// BrokerDescriptor identifies a broker of the cluster. Its identity is the ID: the host and
// port of a broker may change between two metadata reloads, so a descriptor should not be
// held on to beyond a single request.
type BrokerDescriptor struct {
	ID   int32
	Host string
	Port int32
}

// Addr returns the "host:port" address of the broker.
func (b BrokerDescriptor) Addr() string {
	return net.JoinHostPort(b.Host, strconv.Itoa(int(b.Port)))
}

func (b BrokerDescriptor) String() string {
	return fmt.Sprintf("#%d at %s", b.ID, b.Addr())
}

type hostPort struct {
	host string
	port int32
}

func (h hostPort) addr() string {
	return net.JoinHostPort(h.host, strconv.Itoa(int(h.port)))
}

func parseHosts(addrs []string) ([]hostPort, error) {
	hosts := make([]hostPort, 0, len(addrs))
	for _, addr := range addrs {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, ConfigurationError(fmt.Sprintf("invalid broker address %q: %v", addr, err))
		}
		port, err := strconv.ParseInt(portStr, 10, 32)
		if err != nil || port <= 0 {
			return nil, ConfigurationError(fmt.Sprintf("invalid broker port in %q", addr))
		}
		hosts = append(hosts, hostPort{host: host, port: int32(port)})
	}
	return hosts, nil
}
