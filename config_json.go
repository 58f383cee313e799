package ws

import (
	"errors"
	"time"

	"github.com/tidwall/gjson"
)

// LoadOptionsJSON overlays an Options zero-value with the fields present
// in data, path-extracted with gjson rather than a decorated struct:
// the options surface is small and ad-hoc enough that reflection tags
// buy nothing.
func LoadOptionsJSON(data []byte) (Options, error) {
	if !gjson.ValidBytes(data) {
		return Options{}, errors.New("websocket: invalid options JSON")
	}
	root := gjson.ParseBytes(data)
	var o Options

	o.MaxFrameSize = root.Get("max_frame_size").Uint()
	o.MaxMessageSize = root.Get("max_message_size").Uint()
	o.StreamMode = root.Get("stream_mode").Bool()
	o.Origin = root.Get("origin").String()

	switch root.Get("tls_mode").String() {
	case "on":
		o.TLSMode = TLSOn
	case "allow_self_signed":
		o.TLSMode = TLSAllowSelfSigned
	default:
		o.TLSMode = TLSOff
	}

	if t := root.Get("timeouts"); t.Exists() {
		o.Timeouts = Timeouts{
			Connect: durationFromSeconds(t.Get("connect_seconds")),
			Recv:    durationFromSeconds(t.Get("recv_seconds")),
			Send:    durationFromSeconds(t.Get("send_seconds")),
			Pong:    durationFromSeconds(t.Get("pong_seconds")),
		}
	}
	if r := root.Get("rate_limits"); r.Exists() {
		o.RateLimits = RateLimits{
			ReadRate:   r.Get("read_rate").Float(),
			ReadBurst:  r.Get("read_burst").Float(),
			WriteRate:  r.Get("write_rate").Float(),
			WriteBurst: r.Get("write_burst").Float(),
		}
	}
	if subs := root.Get("subprotocols"); subs.IsArray() {
		for _, v := range subs.Array() {
			o.Subprotocols = append(o.Subprotocols, v.String())
		}
	}
	if headers := root.Get("extra_headers"); headers.IsObject() {
		o.ExtraHeaders = make(map[string]string)
		headers.ForEach(func(k, v gjson.Result) bool {
			o.ExtraHeaders[k.String()] = v.String()
			return true
		})
	}

	return o, nil
}

func durationFromSeconds(r gjson.Result) time.Duration {
	return time.Duration(r.Float() * float64(time.Second))
}
