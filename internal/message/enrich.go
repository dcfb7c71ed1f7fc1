package message

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"acars_hub/internal/lookup"
)

// Enricher decorates messages with derived display fields before they reach
// live-view clients: hex address forms, ground-station names, label
// descriptions, resolved airline callsigns, and a tracking link.
type Enricher struct {
	tables      *lookup.Tables
	trackingURL string
	log         *zap.Logger
}

// NewEnricher builds an Enricher. trackingURL is the base link for aircraft
// tracking, with the hex address appended.
func NewEnricher(tables *lookup.Tables, trackingURL string, log *zap.Logger) *Enricher {
	if trackingURL != "" && !strings.HasSuffix(trackingURL, "=") {
		if !strings.HasSuffix(trackingURL, "/") {
			trackingURL += "/"
		}
		trackingURL += "?icao="
	}
	return &Enricher{tables: tables, trackingURL: trackingURL, log: log}
}

// AddressHex is the single conversion boundary from stored decimal address
// text to the display hex form. ICAO values already migrated to hex pass
// through upper-cased.
func AddressHex(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	if dec, err := strconv.ParseInt(value, 10, 64); err == nil {
		return fmt.Sprintf("%X", dec), true
	}
	if _, err := strconv.ParseInt(value, 16, 64); err == nil {
		return strings.ToUpper(value), true
	}
	return "", false
}

// Enrich rewrites a message map in place for delivery to clients. Rows read
// back from storage carry every column, so empty values are dropped first;
// the remaining keys gain their derived display forms.
func (e *Enricher) Enrich(msg map[string]any) map[string]any {
	for key, value := range msg {
		if value == nil || value == "" {
			delete(msg, key)
		}
	}

	// Storage column names differ from the wire names clients expect.
	if v, ok := msg["msg_text"]; ok {
		msg["text"] = v
		delete(msg, "msg_text")
	}
	if v, ok := msg["time"]; ok {
		msg["timestamp"] = v
		delete(msg, "time")
	}

	if icao, ok := stringValue(msg, "icao"); ok {
		if hex, ok := AddressHex(icao); ok {
			msg["icao_hex"] = hex
		} else {
			e.log.Warn("unable to convert icao to hex", zap.String("icao", icao))
		}
	}

	flight, hasFlight := stringValue(msg, "flight")
	icaoHex, hasHex := stringValue(msg, "icao_hex")
	switch {
	case hasFlight:
		resolved := e.resolveFlight(flight)
		msg["flight"] = resolved.ICAOFlight
		msg["iata_flight"] = resolved.IATAFlight
		msg["airline"] = resolved.Airline
		if hasHex && e.trackingURL != "" {
			msg["flight_url"] = e.trackingURL + icaoHex
		}
	case hasHex && e.trackingURL != "":
		msg["icao_url"] = e.trackingURL + icaoHex
	}

	e.enrichAddress(msg, "toaddr")
	e.enrichAddress(msg, "fromaddr")

	if label, ok := stringValue(msg, "label"); ok {
		if name, ok := e.tables.Label(label); ok {
			msg["label_type"] = name
		} else {
			msg["label_type"] = "Unknown Message Label"
		}
	}

	return msg
}

func (e *Enricher) enrichAddress(msg map[string]any, key string) {
	addr, ok := stringValue(msg, key)
	if !ok {
		return
	}
	hex, ok := AddressHex(addr)
	if !ok {
		return
	}
	msg[key+"_hex"] = hex
	if station, ok := e.tables.GroundStation(hex); ok {
		msg[key+"_decoded"] = fmt.Sprintf("%s (%s)", station.Name, station.ICAO)
	}
}

// ResolvedFlight carries both callsign forms of a flight identifier.
type ResolvedFlight struct {
	ICAOFlight string
	IATAFlight string
	Airline    string
}

// resolveFlight converts a callsign between IATA and ICAO airline prefixes.
// Three leading letters mean an ICAO-form callsign; anything else is IATA.
func (e *Enricher) resolveFlight(callsign string) ResolvedFlight {
	if len(callsign) >= 3 && isAlpha(callsign[:3]) {
		iata, airline := e.tables.AirlineByICAO(callsign[:3])
		return ResolvedFlight{
			ICAOFlight: callsign,
			IATAFlight: iata + callsign[3:],
			Airline:    airline,
		}
	}
	if len(callsign) >= 2 {
		icao, airline := e.tables.AirlineByIATA(callsign[:2])
		return ResolvedFlight{
			ICAOFlight: icao + callsign[2:],
			IATAFlight: callsign,
			Airline:    airline,
		}
	}
	return ResolvedFlight{ICAOFlight: callsign, IATAFlight: callsign, Airline: "Unknown Airline"}
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

func stringValue(msg map[string]any, key string) (string, bool) {
	v, ok := msg[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return asString(t), true
	default:
		return "", false
	}
}

// DeepCopy clones a decoded JSON object so enrichment of a broadcast copy
// never mutates the instance still queued for persistence.
func DeepCopy(msg map[string]any) map[string]any {
	out := make(map[string]any, len(msg))
	for k, v := range msg {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return DeepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return t
	}
}
