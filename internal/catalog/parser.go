package catalog

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/star/transitlight/internal/occlusion"
)

// DefaultEpoch is the phase-0 instant used when a catalog entry omits one.
var DefaultEpoch = time.Unix(0, 0).UTC()

// Parse reads the three-line catalog format from r:
//
//	<name>
//	S <centerX> <centerY> <diameter>
//	P <diameter> <orbitRadius> <periodSeconds> [<epoch RFC3339>]
//
// Blank lines and lines starting with '#' are ignored. Malformed entries and
// duplicate names are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]System, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading catalog data: %w", err)
	}

	var systems []System
	seen := make(map[string]bool)
	for i := 0; i+2 < len(lines); {
		name := lines[i]
		starLine := lines[i+1]
		planetLine := lines[i+2]

		if !strings.HasPrefix(starLine, "S ") || !strings.HasPrefix(planetLine, "P ") {
			logger.Warn("skipping malformed catalog entry", "line_index", i, "name", name)
			i++
			continue
		}
		i += 3

		sys, err := parseEntry(name, starLine, planetLine)
		if err != nil {
			logger.Warn("skipping invalid catalog entry", "name", name, "error", err)
			continue
		}
		if seen[sys.Name] {
			logger.Warn("skipping duplicate catalog entry", "name", sys.Name)
			continue
		}
		seen[sys.Name] = true
		systems = append(systems, sys)
	}

	return systems, nil
}

// NewDataset parses data into a Dataset. It fails when no valid system remains.
func NewDataset(data []byte, source string, fetchedAt time.Time, logger *slog.Logger) (*Dataset, error) {
	systems, err := Parse(strings.NewReader(string(data)), logger)
	if err != nil {
		return nil, err
	}
	if len(systems) == 0 {
		return nil, fmt.Errorf("catalog from %s: %w", source, ErrEmptyCatalog)
	}
	return &Dataset{Source: source, FetchedAt: fetchedAt, Systems: systems}, nil
}

func parseEntry(name, starLine, planetLine string) (System, error) {
	starFields := strings.Fields(starLine)[1:]
	if len(starFields) != 3 {
		return System{}, fmt.Errorf("star line has %d fields, expected 3", len(starFields))
	}
	star, err := parseFloats(starFields)
	if err != nil {
		return System{}, fmt.Errorf("star line: %w", err)
	}

	planetFields := strings.Fields(planetLine)[1:]
	if len(planetFields) != 3 && len(planetFields) != 4 {
		return System{}, fmt.Errorf("planet line has %d fields, expected 3 or 4", len(planetFields))
	}
	planet, err := parseFloats(planetFields[:3])
	if err != nil {
		return System{}, fmt.Errorf("planet line: %w", err)
	}

	epoch := DefaultEpoch
	if len(planetFields) == 4 {
		epoch, err = time.Parse(time.RFC3339, planetFields[3])
		if err != nil {
			return System{}, fmt.Errorf("invalid epoch %q: %w", planetFields[3], err)
		}
	}

	sys := System{
		Name:           strings.TrimSpace(name),
		Star:           occlusion.Disc{CenterX: star[0], CenterY: star[1], Diameter: star[2]},
		PlanetDiameter: planet[0],
		OrbitRadius:    planet[1],
		Period:         time.Duration(planet[2] * float64(time.Second)),
		Epoch:          epoch.UTC(),
	}
	if sys.OrbitRadius == 0 {
		sys.OrbitRadius = DeriveOrbitRadius(sys.Star, sys.PlanetDiameter)
	}

	if err := sys.Validate(); err != nil {
		return System{}, err
	}
	return sys, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", f, err)
		}
		out[i] = v
	}
	return out, nil
}

// Format renders systems in the format Parse reads.
func Format(systems []System) []byte {
	var b strings.Builder
	for _, s := range systems {
		fmt.Fprintf(&b, "%s\n", s.Name)
		fmt.Fprintf(&b, "S %s %s %s\n", formatFloat(s.Star.CenterX), formatFloat(s.Star.CenterY), formatFloat(s.Star.Diameter))
		fmt.Fprintf(&b, "P %s %s %s %s\n", formatFloat(s.PlanetDiameter), formatFloat(s.OrbitRadius),
			formatFloat(s.Period.Seconds()), s.Epoch.UTC().Format(time.RFC3339))
	}
	return []byte(b.String())
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
