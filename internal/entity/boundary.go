package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

var scenarioTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	time.RFC3339Nano,
}

// RemoteFile is one entry of the acquisition directory listing.
type RemoteFile struct {
	Name    string // Base name, e.g. 20210101T0000Z__ENTSOE_BD_001.zip
	Locator string // Source specific location used to fetch the file
}

// BoundaryInfo is the registry view of an already imported boundary file.
// Identity is ID, Filename and ScenarioTime are descriptive only.
type BoundaryInfo struct {
	ID           string        `json:"id"`
	Filename     string        `json:"filename"`
	ScenarioTime *ScenarioTime `json:"scenarioTime,omitempty"`
}

// TransferableFile is a named byte payload in flight between stages.
// It is never mutated after creation.
type TransferableFile struct {
	name string
	data []byte
}

func NewTransferableFile(name string, data []byte) *TransferableFile {
	return &TransferableFile{name: name, data: data}
}

func (f *TransferableFile) Name() string {
	return f.name
}

func (f *TransferableFile) Data() []byte {
	return f.data
}

func (f *TransferableFile) Size() int {
	return len(f.data)
}

// ScenarioTime is a date-time as sent by the registry: ISO local date-time without zone,
// interpreted as UTC. RFC 3339 values are accepted too.
type ScenarioTime struct {
	time.Time
}

func (t *ScenarioTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("cannot unmarshal scenario time: %w", err)
	}

	for _, layout := range scenarioTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed

			return nil
		}
	}

	return fmt.Errorf("cannot parse scenario time %q", s)
}

func (t ScenarioTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format("2006-01-02T15:04:05"))
}
