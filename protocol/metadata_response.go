package protocol

import (
	"net"
	"strconv"

	"github.com/IBM/kroute/encoding"
)

// NoLeader is the leader id a broker reports for a partition that has no elected leader.
const NoLeader int32 = -1

type BrokerMetadata struct {
	NodeID int32
	Host   string
	Port   int32
}

func (b *BrokerMetadata) decode(pd encoding.PacketDecoder) (err error) {
	if b.NodeID, err = pd.GetInt32(); err != nil {
		return err
	}
	if b.Host, err = pd.GetString(); err != nil {
		return err
	}
	b.Port, err = pd.GetInt32()
	return err
}

func (b *BrokerMetadata) encode(pe encoding.PacketEncoder) error {
	pe.PutInt32(b.NodeID)
	if err := pe.PutString(b.Host); err != nil {
		return err
	}
	pe.PutInt32(b.Port)
	return nil
}

type PartitionMetadata struct {
	Err      KError
	ID       int32
	Leader   int32
	Replicas []int32
	Isr      []int32
}

func (p *PartitionMetadata) decode(pd encoding.PacketDecoder) (err error) {
	tmp, err := pd.GetInt16()
	if err != nil {
		return err
	}
	p.Err = KError(tmp)

	if p.ID, err = pd.GetInt32(); err != nil {
		return err
	}
	if p.Leader, err = pd.GetInt32(); err != nil {
		return err
	}
	if p.Replicas, err = pd.GetInt32Array(); err != nil {
		return err
	}
	p.Isr, err = pd.GetInt32Array()
	return err
}

func (p *PartitionMetadata) encode(pe encoding.PacketEncoder) error {
	pe.PutInt16(int16(p.Err))
	pe.PutInt32(p.ID)
	pe.PutInt32(p.Leader)
	if err := pe.PutInt32Array(p.Replicas); err != nil {
		return err
	}
	return pe.PutInt32Array(p.Isr)
}

type TopicMetadata struct {
	Err        KError
	Name       string
	Partitions []*PartitionMetadata
}

func (t *TopicMetadata) decode(pd encoding.PacketDecoder) (err error) {
	tmp, err := pd.GetInt16()
	if err != nil {
		return err
	}
	t.Err = KError(tmp)

	if t.Name, err = pd.GetString(); err != nil {
		return err
	}

	n, err := pd.GetArrayLength()
	if err != nil {
		return err
	}
	t.Partitions = make([]*PartitionMetadata, n)
	for i := range t.Partitions {
		t.Partitions[i] = new(PartitionMetadata)
		if err = t.Partitions[i].decode(pd); err != nil {
			return err
		}
	}

	return nil
}

func (t *TopicMetadata) encode(pe encoding.PacketEncoder) error {
	pe.PutInt16(int16(t.Err))
	err := pe.PutString(t.Name)
	if err != nil {
		return err
	}
	if err = pe.PutArrayLength(len(t.Partitions)); err != nil {
		return err
	}
	for _, partition := range t.Partitions {
		if err = partition.encode(pe); err != nil {
			return err
		}
	}
	return nil
}

type MetadataResponse struct {
	Brokers []*BrokerMetadata
	Topics  []*TopicMetadata
}

func (r *MetadataResponse) Decode(pd encoding.PacketDecoder) error {
	n, err := pd.GetArrayLength()
	if err != nil {
		return err
	}
	r.Brokers = make([]*BrokerMetadata, n)
	for i := range r.Brokers {
		r.Brokers[i] = new(BrokerMetadata)
		if err = r.Brokers[i].decode(pd); err != nil {
			return err
		}
	}

	n, err = pd.GetArrayLength()
	if err != nil {
		return err
	}
	r.Topics = make([]*TopicMetadata, n)
	for i := range r.Topics {
		r.Topics[i] = new(TopicMetadata)
		if err = r.Topics[i].decode(pd); err != nil {
			return err
		}
	}

	return nil
}

func (r *MetadataResponse) Encode(pe encoding.PacketEncoder) error {
	err := pe.PutArrayLength(len(r.Brokers))
	if err != nil {
		return err
	}
	for _, broker := range r.Brokers {
		if err = broker.encode(pe); err != nil {
			return err
		}
	}

	if err = pe.PutArrayLength(len(r.Topics)); err != nil {
		return err
	}
	for _, topic := range r.Topics {
		if err = topic.encode(pe); err != nil {
			return err
		}
	}

	return nil
}

// AddBroker adds a broker reachable at addr ("host:port") under id.
func (r *MetadataResponse) AddBroker(addr string, id int32) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	port, _ := strconv.ParseInt(portStr, 10, 32)
	r.Brokers = append(r.Brokers, &BrokerMetadata{NodeID: id, Host: host, Port: int32(port)})
}

// AddTopic returns the metadata of topic, adding it with err if it is not there yet.
func (r *MetadataResponse) AddTopic(topic string, err KError) *TopicMetadata {
	for _, tm := range r.Topics {
		if tm.Name == topic {
			tm.Err = err
			return tm
		}
	}

	tm := &TopicMetadata{Name: topic, Err: err}
	r.Topics = append(r.Topics, tm)
	return tm
}

// AddTopicPartition sets the metadata of one partition, adding the topic if needed.
func (r *MetadataResponse) AddTopicPartition(topic string, partition, leader int32, replicas, isr []int32, err KError) {
	tm := r.AddTopic(topic, ErrNoError)

	var pm *PartitionMetadata
	for _, p := range tm.Partitions {
		if p.ID == partition {
			pm = p
			break
		}
	}
	if pm == nil {
		pm = &PartitionMetadata{ID: partition}
		tm.Partitions = append(tm.Partitions, pm)
	}

	pm.Leader = leader
	pm.Replicas = replicas
	pm.Isr = isr
	pm.Err = err
}

// DecodeMetadataResponse decodes a metadata response body (everything after the correlation id).
func DecodeMetadataResponse(data []byte) (*MetadataResponse, error) {
	response := new(MetadataResponse)
	if err := encoding.Decode(data, response); err != nil {
		return nil, err
	}
	return response, nil
}
