package message

import (
	"math"
	"strconv"
	"strings"
)

// Reformat flattens decoder-specific envelopes (dumpvdl2's "vdl2", dumphfdl's
// "hfdl") into the flat key shape the Normalizer understands. Objects already
// in the flat shape pass through untouched.
func Reformat(raw map[string]any) map[string]any {
	if _, ok := raw["vdl2"]; ok {
		return reformatVDLM2(raw)
	}
	if _, ok := raw["hfdl"]; ok {
		return reformatHFDL(raw)
	}
	return raw
}

func reformatVDLM2(raw map[string]any) map[string]any {
	out := make(map[string]any)

	if v, ok := deepGet(raw, "vdl2.t.sec"); ok {
		out["timestamp"] = v
	}
	if v, ok := deepGet(raw, "vdl2.station"); ok {
		out["station_id"] = v
	}
	if addr, ok := deepString(raw, "vdl2.avlc.dst.addr"); ok {
		if dec, err := strconv.ParseInt(addr, 16, 64); err == nil {
			out["toaddr"] = float64(dec)
		}
	}
	if addr, ok := deepString(raw, "vdl2.avlc.src.addr"); ok {
		if dec, err := strconv.ParseInt(addr, 16, 64); err == nil {
			out["fromaddr"] = float64(dec)
			if typ, _ := deepString(raw, "vdl2.avlc.src.type"); typ == "Aircraft" {
				out["icao"] = float64(dec)
				if status, _ := deepString(raw, "vdl2.avlc.src.status"); status == "Airborne" {
					out["is_onground"] = float64(0)
				} else {
					out["is_onground"] = float64(2)
				}
			}
		}
	}

	// XID link-establishment parameters may carry a destination airport and
	// an aircraft position.
	if params, ok := deepGet(raw, "vdl2.avlc.xid.vdl_params"); ok {
		if list, ok := params.([]any); ok {
			for _, item := range list {
				entry, ok := item.(map[string]any)
				if !ok {
					continue
				}
				switch entry["name"] {
				case "dst_airport":
					out["dsta"] = entry["value"]
				case "ac_location":
					value, _ := entry["value"].(map[string]any)
					if loc, ok := value["loc"].(map[string]any); ok {
						if lat, ok := loc["lat"]; ok {
							out["lat"] = lat
						}
						if lon, ok := loc["lon"]; ok {
							out["lon"] = lon
						}
					}
					if alt, ok := value["alt"]; ok {
						out["alt"] = alt
					}
				}
			}
		}
	}

	copyACARSFields(raw, "vdl2.avlc.acars", out)

	if cr, _ := deepString(raw, "vdl2.avlc.cr"); cr == "Response" {
		out["is_response"] = float64(1)
	}
	if v, ok := deepGet(raw, "vdl2.freq"); ok {
		if hz, ok := v.(float64); ok {
			out["freq"] = reformatVDLM2Freq(hz)
		}
	}
	if v, ok := deepGet(raw, "vdl2.hdr_bits_fixed"); ok {
		out["error"] = v
	}
	if v, ok := deepGet(raw, "vdl2.sig_level"); ok {
		if level, ok := v.(float64); ok {
			out["level"] = truncateLevel(level)
		}
	}

	return out
}

func reformatHFDL(raw map[string]any) map[string]any {
	out := make(map[string]any)

	if v, ok := deepGet(raw, "hfdl.t.sec"); ok {
		out["timestamp"] = v
	}
	if v, ok := deepGet(raw, "hfdl.station"); ok {
		out["station_id"] = v
	}

	// dumphfdl reports per-layer decode errors; the message error count is
	// the number of truthy err fields anywhere in the envelope.
	if envelope, ok := raw["hfdl"].(map[string]any); ok {
		out["error"] = float64(countErrFields(envelope))
	}

	if v, ok := deepGet(raw, "hfdl.freq"); ok {
		if hz, ok := v.(float64); ok {
			out["freq"] = formatHFDLFreq(hz)
		}
	}
	if v, ok := deepGet(raw, "hfdl.sig_level"); ok {
		if level, ok := v.(float64); ok {
			out["level"] = truncateLevel(level)
		}
	}

	copyACARSFields(raw, "hfdl.lpdu.hfnpdu.acars", out)

	return out
}

// copyACARSFields maps the nested ACARS block shared by dumpvdl2 and dumphfdl
// envelopes onto the flat decoder keys.
func copyACARSFields(raw map[string]any, base string, out map[string]any) {
	acars, ok := deepGet(raw, base)
	if !ok {
		return
	}
	block, ok := acars.(map[string]any)
	if !ok {
		return
	}

	if v, ok := block["ack"]; ok {
		out["ack"] = v
	}
	if reg, ok := block["reg"].(string); ok {
		out["tail"] = strings.ReplaceAll(reg, ".", "")
	}
	if v, ok := block["label"]; ok {
		out["label"] = asString(v)
	}
	if v, ok := block["blk_id"]; ok {
		out["block_id"] = v
	}
	if num, ok := block["msg_num"].(string); ok {
		if seq, ok := block["msg_num_seq"].(string); ok {
			num += seq
		}
		out["msgno"] = num
	}
	if v, ok := block["mode"]; ok {
		out["mode"] = v
	}
	if v, ok := block["flight"]; ok {
		out["flight"] = v
	}
	if v, ok := block["msg_text"]; ok {
		out["text"] = v
	}
	if v, ok := block["arinc622"]; ok {
		out["libacars"] = v
	}
}

// reformatVDLM2Freq converts a dumpvdl2 Hz integer like 136975000 to the
// decoder's MHz string form "136.975".
func reformatVDLM2Freq(hz float64) float64 {
	s := strconv.FormatFloat(hz, 'f', -1, 64)
	if len(s) <= 3 {
		return hz
	}
	mhz := s[:3] + "." + strings.TrimRight(s[3:], "0")
	if strings.HasSuffix(mhz, ".") {
		mhz += "0"
	}
	f, err := strconv.ParseFloat(mhz, 64)
	if err != nil {
		return hz
	}
	return f
}

// formatHFDLFreq converts Hz to MHz truncated to 3 decimal places.
func formatHFDLFreq(hz float64) string {
	mhz := math.Trunc(hz/1_000_000*1000) / 1000
	return strconv.FormatFloat(mhz, 'f', -1, 64)
}

// truncateLevel truncates a signal level to one decimal place.
func truncateLevel(level float64) float64 {
	return math.Trunc(level*10) / 10
}

// countErrFields walks a decoded envelope counting truthy "err" fields.
func countErrFields(node map[string]any) int {
	total := 0
	for key, value := range node {
		if nested, ok := value.(map[string]any); ok {
			total += countErrFields(nested)
			continue
		}
		if key == "err" {
			if b, ok := value.(bool); ok && b {
				total++
			}
		}
	}
	return total
}

// deepGet walks a map[string]any using a dotted path: "a.b.c".
func deepGet(root map[string]any, dotted string) (any, bool) {
	parts := strings.Split(dotted, ".")
	var cur any = root
	for _, part := range parts {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func deepString(root map[string]any, dotted string) (string, bool) {
	v, ok := deepGet(root, dotted)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
