package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finey/internal/core"
)

// BankSyncMessage asks the sync worker to run one queued job. The job row in
// SQLite is authoritative; the message only carries enough to log and to
// let the worker pick the job up without polling.
type BankSyncMessage struct {
	JobID      string    `json:"jobId"`
	AccountID  string    `json:"accountId"`
	RangeStart string    `json:"rangeStart"`
	RangeEnd   string    `json:"rangeEnd"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewBankSyncMessage(jobID, accountID string, r core.DateRange) *BankSyncMessage {
	return &BankSyncMessage{
		JobID:      jobID,
		AccountID:  accountID,
		RangeStart: r.Start.String(),
		RangeEnd:   r.End.String(),
		Timestamp:  time.Now(),
	}
}

// Range parses the message bounds.
func (m *BankSyncMessage) Range() (core.DateRange, error) {
	start, err := core.ParseDate(m.RangeStart)
	if err != nil {
		return core.DateRange{}, fmt.Errorf("range start: %w", err)
	}
	end, err := core.ParseDate(m.RangeEnd)
	if err != nil {
		return core.DateRange{}, fmt.Errorf("range end: %w", err)
	}
	return core.DateRange{Start: start, End: end}, nil
}

func (m *BankSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BankSyncMessageFromJSON decodes a delivery body. A message without a job
// id is rejected so it is dead-lettered instead of requeued forever.
func BankSyncMessageFromJSON(data []byte) (*BankSyncMessage, error) {
	var msg BankSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.JobID == "" {
		return nil, fmt.Errorf("bank sync message without jobId")
	}
	return &msg, nil
}
