// Command lightcurve prints the full-orbit light curve of every catalog
// system and the transits predicted over a time window.
//
//	lightcurve -catalog systems.txt -step 5 -horizon 1h
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/star/transitlight/internal/catalog"
	"github.com/star/transitlight/internal/orbit"
	"github.com/star/transitlight/internal/transits"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

type systemReport struct {
	Name     string           `json:"name"`
	Curve    []orbit.Sample   `json:"curve"`
	Transits []transits.Event `json:"transits"`
	Error    string           `json:"error,omitempty"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("lightcurve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	catalogFile := fs.String("catalog", "", "catalog file (default: built-in demo system)")
	step := fs.Float64("step", 1, "curve step in degrees of phase")
	horizon := fs.Duration("horizon", time.Hour, "transit prediction window")
	startStr := fs.String("start", "", "prediction start, RFC3339 (default: now)")
	asJSON := fs.Bool("json", false, "print JSON instead of text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *horizon <= 0 {
		return fmt.Errorf("horizon %v must be positive", *horizon)
	}

	start := time.Now().UTC()
	if *startStr != "" {
		t, err := time.Parse(time.RFC3339, *startStr)
		if err != nil {
			return fmt.Errorf("parsing -start: %w", err)
		}
		start = t.UTC()
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ds := catalog.Default()
	if *catalogFile != "" {
		data, err := os.ReadFile(*catalogFile)
		if err != nil {
			return fmt.Errorf("reading catalog: %w", err)
		}
		if ds, err = catalog.NewDataset(data, *catalogFile, time.Now().UTC(), logger); err != nil {
			return err
		}
	}

	predicted := transits.Predict(ctx, transits.Request{
		Systems:     ds.Systems,
		Start:       start,
		Horizon:     *horizon,
		MaxTransits: 100,
	})

	reports := make([]systemReport, len(ds.Systems))
	for i, sys := range ds.Systems {
		curve, err := orbit.Curve(sys, *step)
		if err != nil {
			return err
		}
		reports[i] = systemReport{
			Name:     sys.Name,
			Curve:    curve,
			Transits: predicted[i].Transits,
			Error:    predicted[i].Error,
		}
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	printText(stdout, ds, reports, start, *horizon)
	return nil
}

func printText(w io.Writer, ds *catalog.Dataset, reports []systemReport, start time.Time, horizon time.Duration) {
	fmt.Fprintf(w, "Loaded %d systems from %s\n", len(ds.Systems), ds.Source)
	fmt.Fprintf(w, "Prediction window: %s + %v\n", start.Format(time.RFC3339), horizon)

	total := 0
	for _, r := range reports {
		minLight := 1.0
		for _, s := range r.Curve {
			minLight = min(minLight, s.LightFraction)
		}
		fmt.Fprintf(w, "\n%s: %d curve points, min light %.6f (depth %.4f%%)\n",
			r.Name, len(r.Curve), minLight, (1-minLight)*100)
		for _, s := range r.Curve {
			fmt.Fprintf(w, "  %7.2f° x=%8.2f behind=%-5t light=%.6f\n",
				s.Phase, s.Planet.CenterX, s.Behind, s.LightFraction)
		}

		if r.Error != "" {
			fmt.Fprintf(w, "  transits: ERROR %s\n", r.Error)
			continue
		}
		fmt.Fprintf(w, "  transits: %d\n", len(r.Transits))
		total += len(r.Transits)
		for j, e := range r.Transits {
			fmt.Fprintf(w, "    transit %d: ingress=%s mid=%s (JD %.6f) egress=%s dur=%.1fs depth=%.6f\n",
				j, e.Ingress.Format(time.RFC3339Nano), e.Mid.Format(time.RFC3339Nano), e.MidJD,
				e.Egress.Format(time.RFC3339Nano), e.DurationSeconds, e.Depth)
		}
	}
	fmt.Fprintf(w, "\nTotal transits found: %d\n", total)
}
