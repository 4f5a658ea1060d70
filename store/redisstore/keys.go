package redisstore

import "github.com/getpup/pupsourcing-hostselect"

// DefaultKeyPrefix namespaces every key written by the store.
const DefaultKeyPrefix = "hostselect:"

// keys builds the Redis keys of one topic. The topic is wrapped in a hash tag so
// every key of a topic maps to the same cluster slot and scripts may touch several.
type keys struct {
	prefix string
}

// serviceKey returns the Hash holding one service record: hostselect:{topic}:service:{host}
func (k keys) serviceKey(topic hostselect.Topic, host string) string {
	return k.prefix + "{" + string(topic) + "}:service:" + host
}

// servicesKey returns the Set of hosts registered on a topic: hostselect:{topic}:services
func (k keys) servicesKey(topic hostselect.Topic) string {
	return k.prefix + "{" + string(topic) + "}:services"
}

// cursorKey returns the Hash holding the rotation cursor: hostselect:{topic}:cursor
func (k keys) cursorKey(topic hostselect.Topic) string {
	return k.prefix + "{" + string(topic) + "}:cursor"
}
