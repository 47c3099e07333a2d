package route

// Mode is the transport mode of one route segment.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeWalk
	ModeRoad
	ModeChaussee
	ModeFerry
	ModeShip
	ModeMetro
	ModeTram
	ModeHorseTram
	ModeRail
	ModeSuburbanRail
	ModeSwitch
	ModeTransfer
	ModeConnection
)

// modeCodes maps the integer codes on the wire to mode tags. The set
// is closed; codes outside the table map to ModeUnknown.
var modeCodes = map[int]Mode{
	0:  ModeWalk,
	1:  ModeRoad,
	2:  ModeChaussee,
	3:  ModeFerry,
	4:  ModeShip,
	5:  ModeMetro,
	6:  ModeTram,
	7:  ModeHorseTram,
	8:  ModeRail,
	9:  ModeSuburbanRail,
	10: ModeSwitch,
	11: ModeTransfer,
	12: ModeConnection,
}

// ModeFromCode resolves a wire mode code to its tag.
func ModeFromCode(code int) Mode {
	if m, ok := modeCodes[code]; ok {
		return m
	}
	return ModeUnknown
}

var modeNames = map[Mode]string{
	ModeUnknown:      "unknown",
	ModeWalk:         "walk",
	ModeRoad:         "road",
	ModeChaussee:     "chaussee",
	ModeFerry:        "ferry",
	ModeShip:         "ship",
	ModeMetro:        "metro",
	ModeTram:         "tram",
	ModeHorseTram:    "horse-tram",
	ModeRail:         "rail",
	ModeSuburbanRail: "suburban-rail",
	ModeSwitch:       "switch",
	ModeTransfer:     "transfer",
	ModeConnection:   "connection",
}

func (m Mode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}
	return "unknown"
}

// RailLike reports whether the mode draws from the shuffled line
// palette.
func (m Mode) RailLike() bool {
	switch m {
	case ModeMetro, ModeTram, ModeHorseTram, ModeRail, ModeSuburbanRail:
		return true
	}
	return false
}

// Waterborne reports whether the mode takes an endpoint-derived color.
func (m Mode) Waterborne() bool {
	return m == ModeFerry || m == ModeShip
}
