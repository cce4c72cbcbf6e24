package protocol

// Block is anything routed to the leader of a single topic/partition.
type Block interface {
	TopicPartition() (topic string, partition int32)
}

// Response is a decoded per-partition response record.
type Response interface {
	Block
	ErrorCode() KError
}

// groupByTopic groups the indices 0..n-1 by topic, keeping topics in first-seen order
// and indices in input order. The wire format nests partitions under their topic.
func groupByTopic(n int, topicOf func(i int) string) (topics []string, members map[string][]int) {
	members = make(map[string][]int)
	for i := 0; i < n; i++ {
		topic := topicOf(i)
		if _, ok := members[topic]; !ok {
			topics = append(topics, topic)
		}
		members[topic] = append(members[topic], i)
	}
	return topics, members
}
