// Package message provides the normalized datalink message record and the
// transforms from heterogeneous decoder JSON into it.
package message

// SourceType identifies the decoder a message arrived from.
type SourceType string

const (
	SourceACARS SourceType = "ACARS"
	SourceVDLM2 SourceType = "VDLM2"
	SourceHFDL  SourceType = "HFDL"
	SourceIMSL  SourceType = "IMSL"
	SourceIRDM  SourceType = "IRDM"
)

// SourceTypes lists every decoder source in a stable order.
var SourceTypes = []SourceType{SourceACARS, SourceVDLM2, SourceHFDL, SourceIMSL, SourceIRDM}

// ParseSourceType maps a config key or wire label to a SourceType.
func ParseSourceType(s string) (SourceType, bool) {
	switch s {
	case "acars", "ACARS":
		return SourceACARS, true
	case "vdlm2", "VDLM2", "VDL-M2":
		return SourceVDLM2, true
	case "hfdl", "HFDL":
		return SourceHFDL, true
	case "imsl", "IMSL":
		return SourceIMSL, true
	case "irdm", "IRDM":
		return SourceIRDM, true
	}
	return "", false
}

// Params is the fixed relational record a decoder message normalizes into.
// Every string field defaults to empty, never null; Error defaults to zero.
type Params struct {
	Time       float64 `json:"timestamp"`
	StationID  string  `json:"station_id,omitempty"`
	ToAddr     string  `json:"toaddr,omitempty"`
	FromAddr   string  `json:"fromaddr,omitempty"`
	Depa       string  `json:"depa,omitempty"`
	Dsta       string  `json:"dsta,omitempty"`
	Eta        string  `json:"eta,omitempty"`
	GateOut    string  `json:"gtout,omitempty"`
	GateIn     string  `json:"gtin,omitempty"`
	WheelsOff  string  `json:"wloff,omitempty"`
	WheelsIn   string  `json:"wlin,omitempty"`
	Lat        string  `json:"lat,omitempty"`
	Lon        string  `json:"lon,omitempty"`
	Alt        string  `json:"alt,omitempty"`
	Text       string  `json:"text,omitempty"`
	Tail       string  `json:"tail,omitempty"`
	Flight     string  `json:"flight,omitempty"`
	ICAO       string  `json:"icao,omitempty"`
	Freq       string  `json:"freq,omitempty"`
	Ack        string  `json:"ack,omitempty"`
	Mode       string  `json:"mode,omitempty"`
	Label      string  `json:"label,omitempty"`
	BlockID    string  `json:"block_id,omitempty"`
	MsgNo      string  `json:"msgno,omitempty"`
	IsResponse string  `json:"is_response,omitempty"`
	IsOnGround string  `json:"is_onground,omitempty"`
	Error      int     `json:"error"`
	Libacars   string  `json:"libacars,omitempty"`
	Level      string  `json:"level,omitempty"`
}

// Stored is a persisted message row: the normalized record plus the
// identifiers assigned at write time.
type Stored struct {
	ID          int64      `json:"id"`
	UID         string     `json:"uid"`
	MessageType SourceType `json:"message_type"`
	Params
}
