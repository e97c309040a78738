// Command genfields writes synthetic forecast and reference field documents
// for exercising the verify command end to end. Each field is a Gaussian
// storm cell over a regular latitude/longitude grid; forecasts displace the
// cell in proportion to lead time and per member, and add noise.
//
// Usage:
//
//	go run ./cmd/genfields \
//	  -out data/fields \
//	  -start 2024-05-01_00:00:00 -end 2024-05-02_00:00:00 -interval 12 \
//	  -leads 0:24:6 -members mem01,mem02
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-verify/internal/adapter/fieldfile"
	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

const (
	defaultForecastTemplate  = "fcst/{init_year}{init_month}{init_day}{init_hour}/{members}/f{lead_time}.json"
	defaultReferenceTemplate = "ref/{year}{month}{day}{hour}.json"
	variable                 = "refc"
)

type options struct {
	out          string
	start, end   time.Time
	interval     int
	leads        []int
	members      []string
	rows, cols   int
	seed         uint64
	compress     bool
	fcstTemplate string
	refTemplate  string
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	opts, err := parseFlags()
	if err != nil {
		flag.Usage()
		return err
	}

	dates, err := domain.DateRange(opts.start, opts.end, opts.interval)
	if err != nil {
		return err
	}
	lats, lons := axes(opts.rows, opts.cols)
	g := newGenerator(opts.seed)

	suffix := ""
	if opts.compress {
		suffix = fieldfile.CompressedSuffix
	}

	refs, fcsts := 0, 0
	written := map[string]bool{}
	for _, date := range dates {
		for _, lead := range opts.leads {
			task := domain.Task{Date: date, Lead: lead}

			refID := domain.ExpandTemplate(opts.refTemplate, task, domain.NoMember) + suffix
			if !written[refID] {
				doc := g.document(g.truth(date), lats, lons)
				if err := fieldfile.WriteFile(filepath.Join(opts.out, refID), doc); err != nil {
					return fmt.Errorf("write reference: %w", err)
				}
				written[refID] = true
				refs++
			}

			for mi, member := range opts.members {
				id := domain.ExpandTemplate(opts.fcstTemplate, task, member) + suffix
				doc := g.document(g.forecast(date, lead, mi), lats, lons)
				if err := fieldfile.WriteFile(filepath.Join(opts.out, id), doc); err != nil {
					return fmt.Errorf("write forecast: %w", err)
				}
				fcsts++
			}
		}
	}

	grid := fieldfile.Document{Lat: fieldfile.Axis(lats), Lon: fieldfile.Axis(lons)}
	if err := fieldfile.WriteFile(filepath.Join(opts.out, "grid.json"), grid); err != nil {
		return fmt.Errorf("write grid: %w", err)
	}

	log.Printf("wrote %d reference and %d forecast documents to %s", refs, fcsts, opts.out)
	log.Printf("FCST_FILE_TEMPLATE=%s", filepath.Join(opts.out, opts.fcstTemplate+suffix))
	log.Printf("REF_FILE_TEMPLATE=%s", filepath.Join(opts.out, opts.refTemplate+suffix))
	log.Printf("FCST_VAR=%s", variable)
	return nil
}

func parseFlags() (options, error) {
	var (
		o                 options
		start, end, leads string
		members           string
	)
	flag.StringVar(&o.out, "out", "data/fields", "output directory")
	flag.StringVar(&start, "start", "2024-05-01_00:00:00", "first valid date ("+domain.DateLayout+")")
	flag.StringVar(&end, "end", "", "last valid date (defaults to -start)")
	flag.IntVar(&o.interval, "interval", 24, "hours between valid dates")
	flag.StringVar(&leads, "leads", "0:24:6", "lead times as start:end:interval")
	flag.StringVar(&members, "members", "", "comma-separated member names")
	flag.IntVar(&o.rows, "rows", 40, "grid rows (latitude)")
	flag.IntVar(&o.cols, "cols", 60, "grid columns (longitude)")
	flag.Uint64Var(&o.seed, "seed", 1, "random seed")
	flag.BoolVar(&o.compress, "zstd", false, "write zstd-compressed documents")
	flag.StringVar(&o.fcstTemplate, "fcst-template", defaultForecastTemplate, "forecast identifier template")
	flag.StringVar(&o.refTemplate, "ref-template", defaultReferenceTemplate, "reference identifier template")
	flag.Parse()

	var err error
	if o.start, err = time.Parse(domain.DateLayout, start); err != nil {
		return o, fmt.Errorf("invalid -start: %w", err)
	}
	o.end = o.start
	if end != "" {
		if o.end, err = time.Parse(domain.DateLayout, end); err != nil {
			return o, fmt.Errorf("invalid -end: %w", err)
		}
	}
	if o.leads, err = parseLeads(leads); err != nil {
		return o, err
	}
	o.members = []string{domain.NoMember}
	if members != "" {
		o.members = strings.Split(members, ",")
	}
	if o.rows < 2 || o.cols < 2 {
		return o, fmt.Errorf("grid must be at least 2x2, got %dx%d", o.rows, o.cols)
	}
	return o, nil
}

func parseLeads(s string) ([]int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid -leads %q: want start:end:interval", s)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid -leads %q: %w", s, err)
		}
		n[i] = v
	}
	return domain.LeadRange(n[0], n[1], n[2])
}

// axes spans a CONUS-like box.
func axes(rows, cols int) ([]float64, []float64) {
	lats := make([]float64, rows)
	lons := make([]float64, cols)
	for i := range lats {
		lats[i] = 25 + 25*float64(i)/float64(rows-1)
	}
	for j := range lons {
		lons[j] = -125 + 58*float64(j)/float64(cols-1)
	}
	return lats, lons
}

type cell struct {
	lat, lon, peak, radius float64
}

type generator struct {
	rng *rand.Rand
}

func newGenerator(seed uint64) *generator {
	return &generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// truth places the observed cell on a track that moves east with time.
func (g *generator) truth(valid time.Time) cell {
	h := float64(valid.Unix()/3600%240) / 240
	return cell{
		lat:    35 + 5*math.Sin(2*math.Pi*h),
		lon:    -110 + 30*h,
		peak:   55,
		radius: 3,
	}
}

// forecast displaces and rescales the truth cell by lead and member.
func (g *generator) forecast(valid time.Time, lead, member int) cell {
	c := g.truth(valid)
	spread := 0.05*float64(lead) + 0.5*float64(member)
	c.lat += spread * (g.rng.Float64()*2 - 1)
	c.lon += 2 * spread * (g.rng.Float64()*2 - 1)
	c.peak *= 0.85 + 0.3*g.rng.Float64()
	c.radius *= 0.8 + 0.4*g.rng.Float64()
	return c
}

func (g *generator) document(c cell, lats, lons []float64) fieldfile.Document {
	values := make([][]float64, len(lats))
	for i, la := range lats {
		values[i] = make([]float64, len(lons))
		for j, lo := range lons {
			d2 := (la-c.lat)*(la-c.lat) + (lo-c.lon)*(lo-c.lon)
			v := c.peak*math.Exp(-d2/(2*c.radius*c.radius)) + g.rng.NormFloat64()
			values[i][j] = math.Round(math.Max(v, 0)*100) / 100
		}
	}
	return fieldfile.Document{
		Variable: variable,
		Values:   values,
		Lat:      fieldfile.Axis(lats),
		Lon:      fieldfile.Axis(lons),
	}
}
