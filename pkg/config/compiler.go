package config

import (
	"errors"
	"fmt"

	"github.com/a-essam23/go-place/pkg/pipeline"
)

type HandlerProvider func(topic string) (pipeline.HandlerFunc, bool)

// Inbound returns the topics the engine subscribes to, in subscription order.
func (t TopicsConfig) Inbound() []string {
	return []string{t.Canvas, t.Chat, t.Presence, t.PresenceRemoval}
}

func (t TopicsConfig) validate() error {
	var errs []error
	seen := make(map[string]string)
	names := []string{"canvas", "chat", "presence", "presenceRemoval"}
	for i, topic := range t.Inbound() {
		if topic == "" {
			errs = append(errs, fmt.Errorf("topics.%s is empty", names[i]))
			continue
		}
		if other, dup := seen[topic]; dup {
			errs = append(errs, fmt.Errorf("topics.%s and topics.%s share destination '%s'", other, names[i], topic))
			continue
		}
		seen[topic] = names[i]
	}
	if t.ChatSend == "" {
		errs = append(errs, errors.New("topics.chatSend is empty"))
	}
	return errors.Join(errs...)
}

// CheckHandlers makes sure every inbound topic has a handler bound before
// the engine subscribes to it.
func CheckHandlers(cfg *Config, provider HandlerProvider) error {
	for _, topic := range cfg.Topics.Inbound() {
		// a topic without a handler would be subscribed and then discarded
		if _, ok := provider(topic); !ok {
			return fmt.Errorf("no handler for topic '%s'", topic)
		}
	}
	return nil
}
