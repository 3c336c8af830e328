package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
)

// RawPOIBatchMessage is the ingestion payload published by the fetch
// clients: one batch of raw records from a single catalog for one run.
type RawPOIBatchMessage struct {
	RunID   string           `json:"run_id"`
	Source  models.Source    `json:"source"`
	Records []map[string]any `json:"records"`
}

// Validate checks the batch identifies a run and a known catalog.
func (m *RawPOIBatchMessage) Validate() error {
	if m.RunID == "" {
		return fmt.Errorf("batch message has no run_id")
	}
	if !m.Source.Valid() {
		return fmt.Errorf("batch message has unknown source %q", m.Source)
	}
	return nil
}

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Trace context (extracted from Kafka headers)
	TraceParent string
	TraceState  string

	// Parsed content
	Batch *RawPOIBatchMessage
}

// ParseBatch parses the message value as a raw POI batch
func (m *IncomingMessage) ParseBatch() error {
	var batch RawPOIBatchMessage
	if err := json.Unmarshal(m.Value, &batch); err != nil {
		return err
	}
	if err := batch.Validate(); err != nil {
		return err
	}
	m.Batch = &batch
	return nil
}

// GetRunID returns the run the message belongs to, falling back to the
// run_id header for messages without a parsed body.
func (m *IncomingMessage) GetRunID() string {
	if m.Batch != nil {
		return m.Batch.RunID
	}
	return m.Headers["run_id"]
}

// GetSource returns the catalog the batch came from.
func (m *IncomingMessage) GetSource() models.Source {
	if m.Batch != nil {
		return m.Batch.Source
	}
	return models.Source(m.Headers["source"])
}
