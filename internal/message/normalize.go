package message

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Normalizer maps raw decoder JSON objects into Params records. The mapping
// is total: unrecognized keys are logged and dropped, never an error.
type Normalizer struct {
	log *zap.Logger
}

// NewNormalizer returns a Normalizer that reports unidentified keys to log.
func NewNormalizer(log *zap.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// payloadFields are the content-bearing keys; a message carrying none of
// them is tallied but (unless save-all is set) not stored as a full row.
var payloadFields = []string{
	"text", "libacars", "dsta", "depa", "eta",
	"gtout", "gtin", "wloff", "wlin",
	"lat", "lon", "alt",
}

// HasPayload reports whether the raw decoder object carries any
// content-bearing field.
func HasPayload(raw map[string]any) bool {
	for _, f := range payloadFields {
		if _, ok := raw[f]; ok {
			return true
		}
	}
	return false
}

// Normalize converts a raw decoder object into a Params record. Every target
// field has a defined default, so the result is always safe to persist.
func (n *Normalizer) Normalize(raw map[string]any) Params {
	var p Params

	for key, value := range raw {
		switch key {
		case "timestamp":
			p.Time = asFloat(value)
		case "station_id":
			p.StationID = asString(value)
		case "toaddr":
			p.ToAddr = asString(value)
		case "fromaddr":
			p.FromAddr = asString(value)
		case "depa":
			p.Depa = asString(value)
		case "dsta":
			p.Dsta = asString(value)
		case "eta":
			p.Eta = asString(value)
		case "gtout":
			p.GateOut = asString(value)
		case "gtin":
			p.GateIn = asString(value)
		case "wloff":
			p.WheelsOff = asString(value)
		case "wlin":
			p.WheelsIn = asString(value)
		case "lat":
			p.Lat = asString(value)
		case "lon":
			p.Lon = asString(value)
		case "alt":
			p.Alt = asString(value)
		case "text", "data":
			p.Text = asString(value)
		case "tail":
			p.Tail = asString(value)
		case "flight":
			p.Flight = asString(value)
		case "icao":
			p.ICAO = asICAOHex(value)
		case "freq":
			p.Freq = padFreq(asString(value))
		case "ack":
			p.Ack = asString(value)
		case "mode":
			p.Mode = asString(value)
		case "label":
			p.Label = asString(value)
		case "block_id":
			p.BlockID = asString(value)
		case "msgno":
			p.MsgNo = asString(value)
		case "is_response":
			p.IsResponse = asString(value)
		case "is_onground":
			p.IsOnGround = asString(value)
		case "error":
			p.Error = asInt(value)
		case "libacars":
			encoded, err := json.Marshal(value)
			if err != nil {
				n.log.Warn("libacars payload not serializable", zap.Error(err))
				continue
			}
			p.Libacars = string(encoded)
		case "level":
			p.Level = asString(value)
		case "channel", "end":
			// transport-level keys with no storage slot
		case "assstat":
			n.log.Debug("assstat key present", zap.Any("value", value), zap.Any("message", raw))
		default:
			n.log.Debug("unidentified key", zap.String("key", key), zap.Any("value", value), zap.Any("message", raw))
		}
	}

	return p
}

// padFreq right-pads the fractional part of a frequency with zeros to four
// digits, so "130.025" and "131.5" store as "130.0250" and "131.5000".
func padFreq(freq string) string {
	dot := strings.Index(freq, ".")
	if dot < 0 {
		return freq
	}
	for len(freq)-dot-1 < 4 {
		freq += "0"
	}
	return freq
}

// asICAOHex renders an aircraft address in its stored form: a fixed-width
// uppercase hex string. Decoders emit the address as a decimal number; hex
// strings pass through upper-cased.
func asICAOHex(v any) string {
	switch t := v.(type) {
	case float64:
		return fmt.Sprintf("%06X", int64(t))
	case string:
		return strings.ToUpper(t)
	default:
		return ""
	}
}

// asString renders a decoder JSON value as the stored string form. Integral
// floats drop the fractional part so numeric ids survive the trip through
// encoding/json's float64 decoding.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		i, err := strconv.Atoi(t)
		if err != nil {
			return 0
		}
		return i
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return 0
	}
}
