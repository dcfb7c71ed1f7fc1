// Package lookup holds the static reference tables used to enrich messages
// for display: ground stations, message label descriptions, and airline
// codes.
package lookup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// GroundStation is one known ground station endpoint.
type GroundStation struct {
	ICAO string
	Name string
}

// Airline is one airline keyed by its IATA code.
type Airline struct {
	ICAO string
	Name string
}

// Tables is the loaded reference data. Immutable after Load; safe for
// concurrent reads.
type Tables struct {
	stations map[string]GroundStation
	labels   map[string]string
	airlines map[string]Airline

	// operator-supplied IATA->ICAO overrides, checked before airlines
	overrides map[string]Airline
}

type groundStationsFile struct {
	GroundStations []struct {
		ID      string `json:"id"`
		Airport struct {
			ICAO string `json:"icao"`
			Name string `json:"name"`
		} `json:"airport"`
	} `json:"ground_stations"`
}

type labelsFile struct {
	Labels map[string]struct {
		Name string `json:"name"`
	} `json:"labels"`
}

type airlinesFile map[string]struct {
	ICAO string `json:"ICAO"`
	Name string `json:"NAME"`
}

// Load reads the reference files from dataDir. A missing or unreadable file
// degrades to an empty table with a warning; lookups then miss, which the
// enrichment layer already tolerates.
func Load(dataDir, iataOverride string, log *zap.Logger) *Tables {
	t := &Tables{
		stations:  make(map[string]GroundStation),
		labels:    make(map[string]string),
		airlines:  make(map[string]Airline),
		overrides: make(map[string]Airline),
	}

	var stations groundStationsFile
	if err := readJSON(filepath.Join(dataDir, "ground-stations.json"), &stations); err != nil {
		log.Warn("ground stations unavailable", zap.Error(err))
	}
	for _, s := range stations.GroundStations {
		if s.ID != "" {
			t.stations[s.ID] = GroundStation{ICAO: s.Airport.ICAO, Name: s.Airport.Name}
		}
	}

	var labels labelsFile
	if err := readJSON(filepath.Join(dataDir, "metadata.json"), &labels); err != nil {
		log.Warn("message labels unavailable", zap.Error(err))
	}
	for label, meta := range labels.Labels {
		t.labels[label] = meta.Name
	}

	var airlines airlinesFile
	if err := readJSON(filepath.Join(dataDir, "airlines.json"), &airlines); err != nil {
		log.Warn("airline codes unavailable", zap.Error(err))
	}
	for iata, a := range airlines {
		t.airlines[iata] = Airline{ICAO: a.ICAO, Name: a.Name}
	}

	// Override format: "IATA|ICAO|Airline Name", ';'-separated.
	for _, item := range strings.Split(iataOverride, ";") {
		if item == "" {
			continue
		}
		parts := strings.Split(item, "|")
		if len(parts) != 3 {
			log.Error("malformed IATA override entry", zap.String("entry", item))
			continue
		}
		t.overrides[parts[0]] = Airline{ICAO: parts[1], Name: parts[2]}
	}

	log.Info("reference data loaded",
		zap.Int("ground_stations", len(t.stations)),
		zap.Int("labels", len(t.labels)),
		zap.Int("airlines", len(t.airlines)),
		zap.Int("overrides", len(t.overrides)))

	return t
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// GroundStation resolves a ground-station id (hex address form).
func (t *Tables) GroundStation(id string) (GroundStation, bool) {
	s, ok := t.stations[id]
	return s, ok
}

// Label resolves a message label to its description.
func (t *Tables) Label(label string) (string, bool) {
	name, ok := t.labels[label]
	return name, ok
}

// Labels returns the whole label description table.
func (t *Tables) Labels() map[string]string {
	return t.labels
}

// AirlineByIATA resolves a 2-char IATA prefix to (ICAO code, airline name).
// Overrides win; unknown codes echo the input with an unknown-airline name.
func (t *Tables) AirlineByIATA(iata string) (string, string) {
	if a, ok := t.overrides[iata]; ok {
		return a.ICAO, a.Name
	}
	if a, ok := t.airlines[iata]; ok {
		return a.ICAO, a.Name
	}
	return iata, "Unknown Airline"
}

// AirlineByICAO resolves a 3-char ICAO prefix to (IATA code, airline name).
func (t *Tables) AirlineByICAO(icao string) (string, string) {
	for iata, a := range t.overrides {
		if a.ICAO == icao {
			return iata, a.Name
		}
	}
	for iata, a := range t.airlines {
		if a.ICAO == icao {
			return iata, a.Name
		}
	}
	return icao, "Unknown Airline"
}
