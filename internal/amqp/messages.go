package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType doubles as the routing key on the topic exchange.
type EventType string

const (
	ItemCreated   EventType = "item.created"
	ItemUpdated   EventType = "item.updated"
	ItemDeleted   EventType = "item.deleted"
	ItemPurchased EventType = "item.purchased"
	ItemsCleared  EventType = "items.cleared"

	LabelCreated EventType = "label.created"
	LabelRenamed EventType = "label.renamed"
	LabelUpdated EventType = "label.updated"
	LabelDeleted EventType = "label.deleted"
)

// Event is a lightweight change notification. Consumers reload the entity
// from storage; only identifiers travel on the wire.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	ItemID    int64     `json:"item_id,omitempty"`
	LabelID   int64     `json:"label_id,omitempty"`
	LabelName string    `json:"label_name,omitempty"`
	// Count is the number of items touched by a cascade.
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewItemEvent(t EventType, itemID int64) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		ItemID:    itemID,
		Timestamp: time.Now(),
	}
}

func NewLabelEvent(t EventType, labelID int64, name string, count int) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		LabelID:   labelID,
		LabelName: name,
		Count:     count,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EventFromJSON(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
