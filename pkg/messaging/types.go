package messaging

import (
	"time"

	"github.com/boristopalov/gridworld/pkg/core"
)

// Message is one broker delivery.
type Message struct {
	From      string    // run or session ID of the publisher
	To        []string  // subscriber IDs (empty means broadcast)
	Content   any       // StepEvent or EpisodeEvent
	Timestamp time.Time // when the message was published
}

// StepEvent describes a single actor step inside an episode.
type StepEvent struct {
	RunID      string          `json:"run_id"`
	Episode    int             `json:"episode"`
	Step       int             `json:"step"`
	Actor      int             `json:"actor"`
	Action     string          `json:"action"` // UP, DOWN, LEFT or RIGHT
	Transition core.Transition `json:"transition"`
}

// EpisodeEvent is published once an episode ends.
type EpisodeEvent struct {
	RunID   string  `json:"run_id"`
	Episode int     `json:"episode"`
	Return  float32 `json:"return"`
	Steps   int     `json:"steps"`
	Success bool    `json:"success"`
}

// Broker routes messages from experiments to observers.
type Broker interface {
	// Publish sends a message to the listed subscribers, or to all of them
	Publish(msg Message) error
	// Subscribe registers a channel under id
	Subscribe(id string, ch chan<- Message) error
	// Unsubscribe removes the subscription for id
	Unsubscribe(id string) error
}
