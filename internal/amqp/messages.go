package amqp

import (
	"encoding/json"
	"time"
)

// TransactionsImportedMessage tells the classification worker that a
// batch of transactions landed for a user. It carries only IDs; the
// worker reads the rows itself so a stale message never overwrites
// newer data.
type TransactionsImportedMessage struct {
	UserID         int64     `json:"user_id"`
	TransactionIDs []int64   `json:"transaction_ids"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewTransactionsImportedMessage(userID int64, transactionIDs []int64) *TransactionsImportedMessage {
	return &TransactionsImportedMessage{
		UserID:         userID,
		TransactionIDs: transactionIDs,
		Timestamp:      time.Now(),
	}
}

func (m *TransactionsImportedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionsImportedMessageFromJSON(data []byte) (*TransactionsImportedMessage, error) {
	var msg TransactionsImportedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
