package kroute

import "github.com/IBM/kroute/protocol"

// checkResponseError turns a non-zero error code of resp into a ResponseError. The codes that
// mean the client sent the request to the wrong broker also drop the cached metadata of the
// topic, so that its leaders are rediscovered on the next request.
func checkResponseError(cache *metadataCache, resp protocol.Response) error {
	kerr := resp.ErrorCode()
	if kerr == protocol.ErrNoError {
		return nil
	}

	topic, partition := resp.TopicPartition()
	switch kerr {
	case protocol.ErrUnknownTopicOrPartition, protocol.ErrNotLeaderForPartition:
		Logger.Printf("client/metadata topic %s partition %d is led elsewhere (%v), invalidating topic\n", topic, partition, kerr)
		cache.invalidateTopic(topic)
	}

	return &ResponseError{Topic: topic, Partition: partition, Err: kerr}
}
