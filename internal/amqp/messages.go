package amqp

import (
	"encoding/json"
	"time"

	"propledger/internal/core"
)

// InstanceGeneratedMessage announces a transaction generated from a recurring
// template. It carries only identifiers: consumers load the transaction from
// the database.
type InstanceGeneratedMessage struct {
	ID         int64     `json:"id"`
	TemplateID int64     `json:"template_id"`
	Year       int       `json:"year"`
	Month      int       `json:"month"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewInstanceGeneratedMessage builds the message for a stored instance.
func NewInstanceGeneratedMessage(inst core.TransactionInstance) *InstanceGeneratedMessage {
	return &InstanceGeneratedMessage{
		ID:         inst.ID,
		TemplateID: inst.TemplateID,
		Year:       inst.PeriodYear,
		Month:      inst.PeriodMonth,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InstanceGeneratedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InstanceGeneratedMessageFromJSON decodes a message body.
func InstanceGeneratedMessageFromJSON(data []byte) (*InstanceGeneratedMessage, error) {
	var msg InstanceGeneratedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
