package queue

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
)

func TestWorkerPoolRunsOnlyConfiguredQueues(t *testing.T) {
	pool := NewWorkerPool(asynq.RedisClientOpt{Addr: "localhost:6379"}, PoolConfig{
		Concurrency: map[QueueName]int{
			QueueVoice:   10,
			QueueDefault: 1,
			QueueImage:   0,
			QueueVideo:   -1,
		},
	}, nil)

	assert.Len(t, pool.servers, 2)
	assert.Contains(t, pool.servers, QueueVoice)
	assert.Contains(t, pool.servers, QueueDefault)
	assert.NotContains(t, pool.servers, QueueImage, "queues without workers get no server")
	assert.NotContains(t, pool.servers, QueueVideo)
}

func TestExponentialBackoffDoubles(t *testing.T) {
	delay := exponentialBackoff(2 * time.Second)

	assert.Equal(t, 2*time.Second, delay(0, nil, nil))
	assert.Equal(t, 4*time.Second, delay(1, nil, nil))
	assert.Equal(t, 8*time.Second, delay(2, nil, nil))
	assert.Equal(t, 32*time.Second, delay(4, nil, nil))
}

func TestExponentialBackoffBounds(t *testing.T) {
	delay := exponentialBackoff(time.Second)

	assert.Equal(t, time.Second, delay(-1, nil, nil), "negative attempt counts clamp to the base delay")
	assert.Equal(t, delay(16, nil, nil), delay(40, nil, nil), "delay growth is capped")
}
