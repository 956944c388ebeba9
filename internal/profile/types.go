package profile

import "github.com/kalambet/sakha/internal/extract"

// TopicCategory is the fact category under which session keywords persist.
const TopicCategory = "topic"

// Memory is what the agent remembers about one session.
type Memory struct {
	Entities extract.Entities
	// Topics are ordered by last mention, oldest first.
	Topics []string
}

// RecentTopics returns up to n topics, most recently mentioned first.
func (m Memory) RecentTopics(n int) []string {
	var out []string
	for i := len(m.Topics) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.Topics[i])
	}
	return out
}

func (m *Memory) clone() Memory {
	cp := Memory{Entities: make(extract.Entities, len(m.Entities))}
	for k, v := range m.Entities {
		cp.Entities[k] = append([]string(nil), v...)
	}
	cp.Topics = append([]string(nil), m.Topics...)
	return cp
}

func (m *Memory) hasEntity(category, value string) bool {
	for _, v := range m.Entities[category] {
		if v == value {
			return true
		}
	}
	return false
}

// touchTopic moves topic to the most recent position.
func (m *Memory) touchTopic(topic string) {
	for i, t := range m.Topics {
		if t == topic {
			m.Topics = append(m.Topics[:i], m.Topics[i+1:]...)
			break
		}
	}
	m.Topics = append(m.Topics, topic)
}
