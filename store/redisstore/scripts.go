package redisstore

import goredis "github.com/redis/go-redis/v9"

// compareAndSwapScript sets last_index to ARGV[2] only while it still equals ARGV[1].
var compareAndSwapScript = goredis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'last_index')
if current == false or current ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'last_index', ARGV[2], 'updated_at', ARGV[3])
return 1
`)

// registerScript creates a service record or refreshes its heartbeat, keeping id and created_at.
var registerScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('HSET', KEYS[1], 'id', ARGV[1], 'topic', ARGV[2], 'host', ARGV[3], 'disabled', '0', 'created_at', ARGV[4])
end
redis.call('HSET', KEYS[1], 'updated_at', ARGV[4])
redis.call('SADD', KEYS[2], ARGV[3])
return 1
`)

// touchScript sets one field of an existing service record. Returns 0 if the record is missing.
var touchScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)
