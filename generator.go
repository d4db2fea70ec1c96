// Package rfgen resolves the radio configuration of an RF design and renders it
// as C declarations.
package rfgen

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/akhenakh/rfgen/codegen"
	"github.com/akhenakh/rfgen/devinfo"
	"github.com/akhenakh/rfgen/metrics"
	"github.com/akhenakh/rfgen/override"
	"github.com/akhenakh/rfgen/patable"
	"github.com/akhenakh/rfgen/rfdesign"
)

var (
	ErrInvalidDesign  = errors.New("invalid RF design")
	ErrUnknownSetting = errors.New("unknown setting")
)

// Generator is the configuration context of one design, built once and read only
type Generator struct {
	appName  string
	logger   log.Logger
	db       *devinfo.Database
	cfg      *rfdesign.Config
	resolver *patable.Resolver
	renderer *codegen.Renderer
}

// New returns a Generator for cfg, the design defaults are applied to cfg
func New(appName string, logger log.Logger, db *devinfo.Database, cfg *rfdesign.Config) (*Generator, error) {
	return NewWithTemplates(appName, logger, db, cfg, codegen.DefaultTemplates())
}

func NewWithTemplates(appName string, logger log.Logger, db *devinfo.Database, cfg *rfdesign.Config, tpls codegen.Templates) (*Generator, error) {
	logger = log.With(logger, "component", "generator")

	if err := cfg.ApplyDefaults(db); err != nil {
		return nil, fmt.Errorf("can't apply design defaults: %w", err)
	}
	r, err := patable.NewResolver(db, cfg.RfDesign)
	if err != nil {
		return nil, err
	}
	renderer, err := codegen.NewRenderer(tpls)
	if err != nil {
		return nil, err
	}

	level.Info(logger).Log("msg", "generator ready",
		"device", db.Name,
		"design", cfg.RfDesign,
		"target", cfg.TargetName(),
		"settings", len(cfg.Settings),
	)

	return &Generator{
		appName:  appName,
		logger:   logger,
		db:       db,
		cfg:      cfg,
		resolver: r,
		renderer: renderer,
	}, nil
}

func (g *Generator) Database() *devinfo.Database {
	return g.db
}

func (g *Generator) Design() *rfdesign.Config {
	return g.cfg
}

// OverrideRequest selects the overrides of a PHY
type OverrideRequest struct {
	Key         devinfo.PhyKey
	HighPA      bool
	CoexEnabled bool

	// carrier frequency in MHz, the PHY frequency when zero
	Frequency float64

	// TX powers in dBm as written in the PA tables, the PHY defaults when empty
	TxPower   string
	TxPowerHi string

	Custom []override.Custom
}

// Overrides resolves the override table of a PHY
func (g *Generator) Overrides(req OverrideRequest) (*override.Table, error) {
	metrics.ResolveCounter.WithLabelValues(metrics.KindOverrides).Inc()

	p, err := g.db.Phy(req.Key)
	if err != nil {
		return nil, err
	}
	freq := req.Frequency
	if freq <= 0 {
		freq = p.Frequency
	}

	opts := override.Options{
		HighPA:      req.HighPA,
		CoexEnabled: req.CoexEnabled,
		Custom:      req.Custom,
		Data: override.Data{
			FrontEndMode: p.FrontEndMode,
			LoDivider:    p.LoDivider,
		},
	}
	if err := g.txPowerData(&opts, p, freq, req.TxPower, req.TxPowerHi); err != nil {
		metrics.ErrorCounter.Inc()
		return nil, err
	}

	t, err := override.Resolve(p, g.db.Fragments(req.Key.Group), opts)
	if err != nil {
		metrics.ErrorCounter.Inc()
		level.Error(g.logger).Log("msg", "can't resolve overrides", "phy", req.Key, "error", err)
		return nil, err
	}
	if t.Unknown > 0 {
		metrics.UnknownElementCounter.Add(float64(t.Unknown))
		level.Warn(g.logger).Log("msg", "override elements not implemented", "phy", req.Key, "count", t.Unknown)
	}
	level.Debug(g.logger).Log("msg", "resolved overrides", "phy", req.Key, "structs", len(t.Structs))
	return t, nil
}

// txPowerData fills the PA values of the computed elements and the TX power
// fragment of the selected entry. A PHY outside the design bands has no PA data.
func (g *Generator) txPowerData(opts *override.Options, p *devinfo.PhySetting, freq float64, txPower, txPowerHi string) error {
	if _, err := g.resolver.Band(freq); err != nil {
		level.Debug(g.logger).Log("msg", "no PA data for PHY", "phy", p.Key, "frequency", freq, "error", err)
		return nil
	}

	if txPower == "" {
		txPower = p.TxPower
	}
	std, err := g.entry(freq, false, txPower)
	if err != nil {
		return err
	}
	opts.Data.TxPower = std.Raw()
	opts.TxPowerFile = std.OverrideBlock

	if !opts.HighPA {
		return nil
	}
	if txPowerHi == "" {
		txPowerHi = p.TxPowerHi
	}
	hi, err := g.entry(freq, true, txPowerHi)
	if err != nil {
		return err
	}
	opts.Data.TxPowerHi = hi.Raw()
	opts.TxPowerFile = hi.OverrideBlock
	return nil
}

// entry returns the PA entry for dbm, the highest power entry when dbm is empty
func (g *Generator) entry(freq float64, highPA bool, dbm string) (devinfo.PaSetting, error) {
	if dbm != "" {
		return g.resolver.Entry(freq, highPA, dbm)
	}
	t, err := g.resolver.Table(freq, highPA)
	if err != nil {
		return devinfo.PaSetting{}, err
	}
	return t[0], nil
}

// PaTable is a resolved PA table with its generated rows
type PaTable struct {
	Band     *patable.Band
	Info     patable.Info
	Combined bool
	Entries  patable.Table
	Rows     []patable.Row
}

// PaTable resolves the PA table used at freq (MHz)
func (g *Generator) PaTable(freq float64, highPA, combined bool) (*PaTable, error) {
	metrics.ResolveCounter.WithLabelValues(metrics.KindPaTable).Inc()

	b, err := g.resolver.Band(freq)
	if err != nil {
		return nil, err
	}

	res := &PaTable{Band: b, Combined: combined}
	if combined {
		res.Info, res.Entries, err = patable.CombinedInfo(b)
	} else {
		res.Info, err = patable.NewInfo(b, highPA)
		if err == nil {
			res.Entries, err = b.PaTable(highPA)
		}
	}
	if err != nil {
		return nil, err
	}
	res.Rows = patable.Rows(res.Entries, combined)
	return res, nil
}

// Validate checks the design against the database
func (g *Generator) Validate() []rfdesign.Issue {
	issues := g.cfg.Validate(g.db)
	for _, i := range issues {
		level.Debug(g.logger).Log("msg", "design issue", "severity", i.Severity, "field", i.Field, "issue", i.Message)
	}
	return issues
}

// Result is a rendered design
type Result struct {
	*codegen.Output

	// hex SHA-256 of the source followed by the header
	Digest string
}

// Render renders every setting of the design
func (g *Generator) Render() (*Result, error) {
	return g.render(g.cfg.Settings)
}

// RenderSetting renders the design restricted to the setting name
func (g *Generator) RenderSetting(name string) (*Result, error) {
	s, ok := g.cfg.Setting(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownSetting)
	}
	return g.render([]rfdesign.Setting{*s})
}

func (g *Generator) render(settings []rfdesign.Setting) (*Result, error) {
	metrics.RenderCounter.Inc()

	for _, i := range g.Validate() {
		if i.Severity == rfdesign.SeverityError {
			metrics.ErrorCounter.Inc()
			return nil, fmt.Errorf("%s: %w", i, ErrInvalidDesign)
		}
	}

	in, err := g.input(settings)
	if err != nil {
		metrics.ErrorCounter.Inc()
		return nil, err
	}

	out, err := g.renderer.Render(in)
	if err != nil {
		metrics.ErrorCounter.Inc()
		level.Error(g.logger).Log("msg", "can't render design", "error", err)
		return nil, err
	}

	h := sha256.New()
	h.Write([]byte(out.Source))
	h.Write([]byte(out.Header))
	res := &Result{Output: out, Digest: hex.EncodeToString(h.Sum(nil))}

	level.Debug(g.logger).Log("msg", "rendered design", "settings", len(settings), "digest", res.Digest)
	return res, nil
}

func (g *Generator) input(settings []rfdesign.Setting) (*codegen.Input, error) {
	custom := make([]override.Custom, len(g.cfg.CustomOverrides))
	for i, c := range g.cfg.CustomOverrides {
		custom[i] = override.Custom{Path: c.Path, Macro: c.Macro}
	}

	device := g.cfg.Device
	if device == "" {
		device = g.db.Name
	}
	in := &codegen.Input{
		Device:    device,
		Version:   g.db.Version,
		Board:     g.cfg.RfDesign,
		Generator: g.appName,
		FrontEnd:  codegen.FrontEnd(g.cfg),
		Includes:  codegen.Includes(custom),
	}

	methods := exportMethods(settings)
	for _, b := range g.resolver.Bands() {
		if !g.cfg.IsFreqBandSelected(b.Min) {
			continue
		}
		cb, err := codegen.NewBand(b, g.cfg.IsHighPaSupported(float64(b.Min)), methods)
		if err != nil {
			return nil, err
		}
		in.Bands = append(in.Bands, cb)
	}

	for i := range settings {
		s := &settings[i]
		p, err := g.db.Phy(s.Key())
		if err != nil {
			return nil, err
		}
		freq := s.Freq(p)
		hiPa := s.HighPA && g.cfg.IsHighPaSupported(freq)

		t, err := g.Overrides(OverrideRequest{
			Key:         s.Key(),
			HighPA:      hiPa,
			CoexEnabled: g.cfg.CoexEnabled,
			Frequency:   freq,
			TxPower:     s.TxPower,
			TxPowerHi:   s.TxPowerHi,
			Custom:      custom,
		})
		if err != nil {
			return nil, err
		}

		usage := g.resolver.Usage(patable.UsageRequest{
			FreqBand:    devinfo.FreqBand(freq),
			HighPA:      s.HighPA,
			Export:      s.PaExport,
			TxPower:     s.Symbols.TxPower,
			TxPowerSize: s.Symbols.TxPowerSize,
		}, g.cfg.IsHighPaSupported(freq))

		in.Settings = append(in.Settings, codegen.NewSetting(s, p, t, usage))
	}
	return in, nil
}

func exportMethods(settings []rfdesign.Setting) rfdesign.ExportMethods {
	c := rfdesign.Config{Settings: settings}
	return c.ExportMethods()
}
