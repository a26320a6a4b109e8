package policy

import (
	"encoding/json"
	"time"
)

// Durations cross the API and the event bus as whole milliseconds.

func millis(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

func fromMillis(ms *int64) *time.Duration {
	if ms == nil {
		return nil
	}
	d := time.Duration(*ms) * time.Millisecond
	return &d
}

// MarshalJSON encodes TimeThreshold in milliseconds.
func (c Config) MarshalJSON() ([]byte, error) {
	type plain Config
	return json.Marshal(struct {
		plain
		TimeThreshold int64 `json:"time_threshold"`
	}{plain(c), c.TimeThreshold.Milliseconds()})
}

// UnmarshalJSON decodes TimeThreshold from milliseconds.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	aux := struct {
		*plain
		TimeThreshold *int64 `json:"time_threshold"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if d := fromMillis(aux.TimeThreshold); d != nil {
		c.TimeThreshold = *d
	}
	return nil
}

// MarshalJSON encodes TimeThreshold in milliseconds.
func (o Override) MarshalJSON() ([]byte, error) {
	type plain Override
	return json.Marshal(struct {
		plain
		TimeThreshold *int64 `json:"time_threshold,omitempty"`
	}{plain(o), millis(o.TimeThreshold)})
}

// UnmarshalJSON decodes TimeThreshold from milliseconds.
func (o *Override) UnmarshalJSON(data []byte) error {
	type plain Override
	aux := struct {
		*plain
		TimeThreshold *int64 `json:"time_threshold"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.TimeThreshold = fromMillis(aux.TimeThreshold)
	return nil
}

// MarshalJSON encodes TimeThreshold in milliseconds.
func (p Patch) MarshalJSON() ([]byte, error) {
	type plain Patch
	return json.Marshal(struct {
		plain
		TimeThreshold *int64 `json:"time_threshold,omitempty"`
	}{plain(p), millis(p.TimeThreshold)})
}

// UnmarshalJSON decodes TimeThreshold from milliseconds.
func (p *Patch) UnmarshalJSON(data []byte) error {
	type plain Patch
	aux := struct {
		*plain
		TimeThreshold *int64 `json:"time_threshold"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.TimeThreshold = fromMillis(aux.TimeThreshold)
	return nil
}
