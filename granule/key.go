package granule

import (
	"fmt"
	"strings"
)

// Schema selects which fields make up a catalog key.
type Schema string

const (
	// SchemaChannel keys on campaign, instrument, date, level and channel.
	SchemaChannel Schema = "channel"
	// SchemaGranule keys on campaign, instrument, date and level.
	SchemaGranule Schema = "granule"
)

// ParseSchema validates a schema name. An empty name selects SchemaChannel.
func ParseSchema(s string) (Schema, error) {
	switch Schema(strings.ToLower(s)) {
	case "", SchemaChannel:
		return SchemaChannel, nil
	case SchemaGranule:
		return SchemaGranule, nil
	}
	return "", fmt.Errorf("unknown catalog key schema %q", s)
}

// Key identifies one catalogued raster.
type Key struct {
	Campaign   string `json:"campaign"`
	Instrument string `json:"instrument"`
	Date       string `json:"date"`
	Level      string `json:"level"`
	Channel    string `json:"channel,omitempty"`
}

// Key builds the catalog key for a channel of the granule. The channel is
// dropped under SchemaGranule.
func (m Metadata) Key(schema Schema, channel string) Key {
	k := Key{
		Campaign:   m.Campaign,
		Instrument: m.Instrument,
		Date:       m.Date(),
		Level:      m.Level,
	}
	if schema != SchemaGranule {
		k.Channel = channel
	}
	return k
}

// Fields returns the key values in column order.
func (k Key) Fields() []string {
	f := []string{k.Campaign, k.Instrument, k.Date, k.Level}
	if k.Channel != "" {
		f = append(f, k.Channel)
	}
	return f
}

func (k Key) String() string {
	return strings.Join(k.Fields(), "/")
}
