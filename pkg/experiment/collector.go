package experiment

import (
	"sync"

	"github.com/boristopalov/gridworld/pkg/messaging"
	"github.com/google/uuid"
)

// Collector subscribes to a broker and keeps every episode summary and a
// count of step events it receives.
type Collector struct {
	id     string
	broker messaging.Broker
	ch     chan messaging.Message
	done   chan struct{}

	mu       sync.Mutex
	episodes []messaging.EpisodeEvent
	steps    int
}

// NewCollector subscribes a collector whose inbox holds buffer messages.
func NewCollector(b messaging.Broker, buffer int) (*Collector, error) {
	c := &Collector{
		id:     "collector-" + uuid.New().String(),
		broker: b,
		ch:     make(chan messaging.Message, buffer),
		done:   make(chan struct{}),
	}
	if err := b.Subscribe(c.id, c.ch); err != nil {
		return nil, err
	}
	go c.loop()
	return c, nil
}

func (c *Collector) loop() {
	defer close(c.done)
	for msg := range c.ch {
		c.mu.Lock()
		switch ev := msg.Content.(type) {
		case messaging.EpisodeEvent:
			c.episodes = append(c.episodes, ev)
		case messaging.StepEvent:
			c.steps++
		}
		c.mu.Unlock()
	}
}

// Close unsubscribes and waits until every buffered message is consumed.
func (c *Collector) Close() error {
	err := c.broker.Unsubscribe(c.id)
	close(c.ch)
	<-c.done
	return err
}

func (c *Collector) Episodes() []messaging.EpisodeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	episodes := make([]messaging.EpisodeEvent, len(c.episodes))
	copy(episodes, c.episodes)
	return episodes
}

func (c *Collector) Steps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.steps
}
