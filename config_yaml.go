package ws

import (
	"time"

	"gopkg.in/yaml.v3"
)

// optionsYAML mirrors Options' fields with yaml tags (CloseGraceTimeout
// has no YAML field and is left zero), for
// static config files where a tagged struct (unlike gjson's ad-hoc path
// extraction in LoadOptionsJSON) is the natural fit.
type optionsYAML struct {
	MaxFrameSize   uint64            `yaml:"max_frame_size"`
	MaxMessageSize uint64            `yaml:"max_message_size"`
	StreamMode     bool              `yaml:"stream_mode"`
	TLSMode        string            `yaml:"tls_mode"`
	Origin         string            `yaml:"origin"`
	Subprotocols   []string          `yaml:"subprotocols"`
	ExtraHeaders   map[string]string `yaml:"extra_headers"`

	Timeouts struct {
		ConnectSeconds float64 `yaml:"connect_seconds"`
		RecvSeconds    float64 `yaml:"recv_seconds"`
		SendSeconds    float64 `yaml:"send_seconds"`
		PongSeconds    float64 `yaml:"pong_seconds"`
	} `yaml:"timeouts"`

	RateLimits struct {
		ReadRate   float64 `yaml:"read_rate"`
		ReadBurst  float64 `yaml:"read_burst"`
		WriteRate  float64 `yaml:"write_rate"`
		WriteBurst float64 `yaml:"write_burst"`
	} `yaml:"rate_limits"`
}

// LoadOptionsYAML parses a static YAML config file into Options.
func LoadOptionsYAML(data []byte) (Options, error) {
	var y optionsYAML
	if err := yaml.Unmarshal(data, &y); err != nil {
		return Options{}, err
	}

	o := Options{
		MaxFrameSize:   y.MaxFrameSize,
		MaxMessageSize: y.MaxMessageSize,
		StreamMode:     y.StreamMode,
		Origin:         y.Origin,
		Subprotocols:   y.Subprotocols,
		ExtraHeaders:   y.ExtraHeaders,
		Timeouts: Timeouts{
			Connect: secondsToDuration(y.Timeouts.ConnectSeconds),
			Recv:    secondsToDuration(y.Timeouts.RecvSeconds),
			Send:    secondsToDuration(y.Timeouts.SendSeconds),
			Pong:    secondsToDuration(y.Timeouts.PongSeconds),
		},
		RateLimits: RateLimits{
			ReadRate:   y.RateLimits.ReadRate,
			ReadBurst:  y.RateLimits.ReadBurst,
			WriteRate:  y.RateLimits.WriteRate,
			WriteBurst: y.RateLimits.WriteBurst,
		},
	}

	switch y.TLSMode {
	case "on":
		o.TLSMode = TLSOn
	case "allow_self_signed":
		o.TLSMode = TLSAllowSelfSigned
	default:
		o.TLSMode = TLSOff
	}

	return o, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
