package kroute

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
	"golang.org/x/sync/singleflight"

	"github.com/IBM/kroute/protocol"
)

// metadataFetcher asks the cluster for the metadata of topics (all topics if none are given).
type metadataFetcher func(topics []string) (*protocol.MetadataResponse, error)

// metadataCache is the client's view of the cluster: the broker set and the leader of every
// partition of every topic loaded so far.
//
// A key of leaders mapped to nil means the partition exists but has no leader, while an absent
// key means the partition was never loaded (or was invalidated since). Every partition listed
// in partitions has an entry in leaders.
type metadataCache struct {
	conf  *Config
	fetch metadataFetcher
	group singleflight.Group

	lock       sync.RWMutex
	brokers    map[int32]BrokerDescriptor
	leaders    map[TopicPartition]*BrokerDescriptor
	partitions map[string][]int32
	reloadedAt map[string]time.Time

	reloadRate       metrics.Meter
	invalidationRate metrics.Meter
}

func newMetadataCache(conf *Config, fetch metadataFetcher) *metadataCache {
	return &metadataCache{
		conf:             conf,
		fetch:            fetch,
		brokers:          make(map[int32]BrokerDescriptor),
		leaders:          make(map[TopicPartition]*BrokerDescriptor),
		partitions:       make(map[string][]int32),
		reloadedAt:       make(map[string]time.Time),
		reloadRate:       metrics.GetOrRegisterMeter("metadata-reload-rate", conf.MetricRegistry),
		invalidationRate: metrics.GetOrRegisterMeter("metadata-invalidation-rate", conf.MetricRegistry),
	}
}

// leaderFor returns the broker leading topic/partition, reloading the topic once if the leader
// is unknown or unelected. It returns (nil, nil) if the partition still has no leader afterwards.
func (c *metadataCache) leaderFor(topic string, partition int32) (*BrokerDescriptor, error) {
	key := TopicPartition{Topic: topic, Partition: partition}

	leader, known := c.cachedLeader(key)
	if leader != nil {
		return leader, nil
	}
	if known && c.coolingDown(topic) {
		return nil, nil
	}

	if err := c.reload(topic); err != nil {
		return nil, err
	}

	leader, known = c.cachedLeader(key)
	if !known {
		return nil, fmt.Errorf("%w: topic %s partition %d", ErrPartitionUnavailable, topic, partition)
	}
	return leader, nil
}

func (c *metadataCache) cachedLeader(key TopicPartition) (*BrokerDescriptor, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	leader, ok := c.leaders[key]
	if leader == nil {
		return nil, ok
	}
	copied := *leader
	return &copied, true
}

func (c *metadataCache) coolingDown(topic string) bool {
	cooldown := c.conf.Metadata.ReloadCooldown
	if cooldown <= 0 {
		return false
	}

	c.lock.RLock()
	defer c.lock.RUnlock()

	reloadedAt, ok := c.reloadedAt[topic]
	return ok && time.Since(reloadedAt) < cooldown
}

// reload fetches and applies the metadata of topics (all topics if none are given).
// Concurrent reloads of the same topics share one round trip.
func (c *metadataCache) reload(topics ...string) error {
	sorted := append([]string(nil), topics...)
	sort.Strings(sorted)

	_, err, _ := c.group.Do(strings.Join(sorted, "\x00"), func() (interface{}, error) {
		c.reloadRate.Mark(1)
		if len(topics) == 0 {
			Logger.Println("client/metadata fetching metadata for all topics")
		} else {
			Logger.Printf("client/metadata fetching metadata for %v\n", topics)
		}

		response, err := c.fetch(topics)
		if err != nil {
			Logger.Printf("client/metadata failed to retrieve metadata: %v\n", err)
			return nil, err
		}
		c.applyRefresh(response)
		return nil, nil
	})
	return err
}

// applyRefresh installs a metadata response: the broker set is replaced wholesale, and every
// topic in the response is invalidated then rebuilt.
func (c *metadataCache) applyRefresh(response *protocol.MetadataResponse) {
	c.lock.Lock()
	defer c.lock.Unlock()

	brokers := make(map[int32]BrokerDescriptor, len(response.Brokers))
	for _, broker := range response.Brokers {
		brokers[broker.NodeID] = BrokerDescriptor{ID: broker.NodeID, Host: broker.Host, Port: broker.Port}
	}
	c.brokers = brokers

	now := time.Now()
	for _, topic := range response.Topics {
		c.invalidateTopicLocked(topic.Name)
		c.reloadedAt[topic.Name] = now

		if topic.Err != protocol.ErrNoError {
			Logger.Printf("client/metadata topic %s returned error: %v\n", topic.Name, topic.Err)
		}
		if len(topic.Partitions) == 0 {
			Logger.Printf("client/metadata no partitions for topic %s\n", topic.Name)
			continue
		}

		ids := make([]int32, 0, len(topic.Partitions))
		for _, partition := range topic.Partitions {
			ids = append(ids, partition.ID)
			key := TopicPartition{Topic: topic.Name, Partition: partition.ID}

			if partition.Leader == protocol.NoLeader {
				Logger.Printf("client/metadata no leader for topic %s partition %d\n", topic.Name, partition.ID)
				c.leaders[key] = nil
				continue
			}

			broker, ok := brokers[partition.Leader]
			if !ok {
				Logger.Printf("client/metadata leader %d of topic %s partition %d is not in the broker list\n",
					partition.Leader, topic.Name, partition.ID)
				c.leaders[key] = nil
				continue
			}
			c.leaders[key] = &broker
		}

		sort.Sort(int32Slice(ids))
		c.partitions[topic.Name] = ids
	}
}

// invalidateTopic drops everything known about topics. Unknown topics are ignored.
func (c *metadataCache) invalidateTopic(topics ...string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for _, topic := range topics {
		if c.invalidateTopicLocked(topic) {
			Logger.Printf("client/metadata invalidated metadata for topic %s\n", topic)
			c.invalidationRate.Mark(1)
		}
	}
}

func (c *metadataCache) invalidateTopicLocked(topic string) bool {
	ids, ok := c.partitions[topic]
	if !ok {
		return false
	}
	for _, id := range ids {
		delete(c.leaders, TopicPartition{Topic: topic, Partition: id})
	}
	delete(c.partitions, topic)
	return true
}

// invalidateAll drops every topic. The broker set is kept until the next reload replaces it.
func (c *metadataCache) invalidateAll() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.leaders = make(map[TopicPartition]*BrokerDescriptor)
	c.partitions = make(map[string][]int32)
	c.reloadedAt = make(map[string]time.Time)
	c.invalidationRate.Mark(1)
	Logger.Println("client/metadata invalidated all metadata")
}

func (c *metadataCache) hasMetadata(topic string) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()

	_, ok := c.partitions[topic]
	return ok
}

func (c *metadataCache) partitionsFor(topic string) ([]int32, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	ids, ok := c.partitions[topic]
	if !ok {
		return nil, false
	}
	return dupInt32Slice(ids), true
}

func (c *metadataCache) topics() []string {
	c.lock.RLock()
	defer c.lock.RUnlock()

	ret := make([]string, 0, len(c.partitions))
	for topic := range c.partitions {
		ret = append(ret, topic)
	}
	sort.Strings(ret)
	return ret
}

func (c *metadataCache) brokerList() []BrokerDescriptor {
	c.lock.RLock()
	defer c.lock.RUnlock()

	ret := make([]BrokerDescriptor, 0, len(c.brokers))
	for _, broker := range c.brokers {
		ret = append(ret, broker)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return ret
}

// clone returns an independent copy of the cache state that reloads through fetch.
func (c *metadataCache) clone(fetch metadataFetcher) *metadataCache {
	c.lock.RLock()
	defer c.lock.RUnlock()

	cloned := newMetadataCache(c.conf, fetch)
	for id, broker := range c.brokers {
		cloned.brokers[id] = broker
	}
	for key, leader := range c.leaders {
		if leader == nil {
			cloned.leaders[key] = nil
			continue
		}
		copied := *leader
		cloned.leaders[key] = &copied
	}
	for topic, ids := range c.partitions {
		cloned.partitions[topic] = dupInt32Slice(ids)
	}
	for topic, at := range c.reloadedAt {
		cloned.reloadedAt[topic] = at
	}
	return cloned
}
