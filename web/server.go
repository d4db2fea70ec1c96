package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/akhenakh/rfgen"
	"github.com/akhenakh/rfgen/codegen"
	"github.com/akhenakh/rfgen/devinfo"
	"github.com/akhenakh/rfgen/metrics"
	"github.com/akhenakh/rfgen/patable"
	"github.com/akhenakh/rfgen/rfdesign"
	"github.com/akhenakh/rfgen/storage"
)

// ChangedHeader reports whether a render differs from the previous stored one
const ChangedHeader = "X-Rfgen-Changed"

const defaultHistoryCount = 20

type Server struct {
	appName string
	logger  log.Logger
	gen     *rfgen.Generator
	store   storage.Store
}

func NewServer(appName string, logger log.Logger, gen *rfgen.Generator, store storage.Store) *Server {
	logger = log.With(logger, "component", "web")
	return &Server{
		appName: appName,
		logger:  logger,
		gen:     gen,
		store:   store,
	}
}

// Handler returns the API routes with CORS and compression
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/phys/{group}", s.PhysQuery).Methods("GET")
	r.HandleFunc("/api/patable/{freq}", s.PaTableQuery).Methods("GET")
	r.HandleFunc("/api/overrides/{group}/{phy}", s.OverridesQuery).Methods("GET")
	r.HandleFunc("/api/render", s.RenderQuery).Methods("GET")
	r.HandleFunc("/api/render/{setting}", s.RenderSettingQuery).Methods("GET")
	r.HandleFunc("/api/history", s.HistoryKeysQuery).Methods("GET")
	r.HandleFunc("/api/history/{key:.+}", s.HistoryQuery).Methods("GET")
	r.HandleFunc("/api/validate", s.ValidateQuery).Methods("GET")

	return handlers.CompressHandler(
		handlers.CORS(handlers.AllowedOrigins([]string{"*"}))(r))
}

func (s *Server) startSpan(r *http.Request, operationName string) opentracing.Span {
	wireContext, err := opentracing.GlobalTracer().Extract(
		opentracing.HTTPHeaders,
		opentracing.HTTPHeadersCarrier(r.Header))
	if err != nil {
		level.Debug(s.logger).Log("msg", "can't find a span", "error", err)
	}

	return opentracing.StartSpan(
		operationName,
		ext.RPCServerOption(wireContext))
}

type phy struct {
	Key         string  `json:"key"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	File        string  `json:"file"`
	Frequency   float64 `json:"frequency"`
	TxPower     string  `json:"tx_power,omitempty"`
	TxPowerHi   string  `json:"tx_power_hi,omitempty"`
}

func (s *Server) PhysQuery(w http.ResponseWriter, r *http.Request) {
	span := s.startSpan(r, "/api/phys")
	defer span.Finish()

	vars := mux.Vars(r)
	group, err := devinfo.ParsePhyGroup(vars["group"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	phys := s.gen.Database().Phys(group)
	res := make([]phy, len(phys))
	for i, p := range phys {
		res[i] = phy{
			Key:         p.Key.String(),
			Type:        p.Key.Type,
			Description: p.Description,
			File:        p.File,
			Frequency:   p.Frequency,
			TxPower:     p.TxPower,
			TxPowerHi:   p.TxPowerHi,
		}
	}
	s.writeJSON(w, res)
}

type paRow struct {
	Dbm     int    `json:"dbm"`
	Entry   string `json:"entry"`
	Rounded string `json:"rounded,omitempty"`
	VddrHH  bool   `json:"vddr_hh,omitempty"`
}

type paTable struct {
	Min         int     `json:"min"`
	Max         int     `json:"max"`
	Symbol      string  `json:"symbol"`
	SizeSymbol  string  `json:"size_symbol"`
	Description string  `json:"description"`
	Size        int     `json:"size"`
	Combined    bool    `json:"combined"`
	Rows        []paRow `json:"rows"`
}

func (s *Server) PaTableQuery(w http.ResponseWriter, r *http.Request) {
	span := s.startSpan(r, "/api/patable")
	defer span.Finish()

	vars := mux.Vars(r)
	freq, err := strconv.ParseFloat(vars["freq"], 64)
	if err != nil {
		http.Error(w, "invalid frequency", http.StatusBadRequest)
		return
	}
	highPA := boolParam(r, "highPA")
	combined := boolParam(r, "combined")

	t, err := s.gen.PaTable(freq, highPA, combined)
	if err != nil {
		if errors.Is(err, patable.ErrNoBand) || errors.Is(err, patable.ErrNoEntry) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.internalError(w, "can't resolve PA table", err)
		return
	}

	res := paTable{
		Min:         t.Band.Min,
		Max:         t.Band.Max,
		Symbol:      t.Info.Symbol,
		SizeSymbol:  t.Info.SizeSymbol,
		Description: t.Info.Description,
		Size:        t.Info.Size,
		Combined:    combined,
		Rows:        make([]paRow, len(t.Rows)),
	}
	for i, row := range t.Rows {
		res.Rows[i] = paRow{
			Dbm:     row.Dbm,
			Entry:   row.Entry,
			Rounded: row.Rounded,
			VddrHH:  row.RequiresVddrHH,
		}
	}
	s.writeJSON(w, res)
}

func (s *Server) OverridesQuery(w http.ResponseWriter, r *http.Request) {
	span := s.startSpan(r, "/api/overrides")
	defer span.Finish()

	vars := mux.Vars(r)
	group, err := devinfo.ParsePhyGroup(vars["group"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	sym := r.URL.Query().Get("sym")
	if sym == "" {
		sym = "pRegOverride"
	}

	t, err := s.gen.Overrides(rfgen.OverrideRequest{
		Key:         devinfo.PhyKey{Group: group, Type: vars["phy"]},
		HighPA:      boolParam(r, "highPA"),
		CoexEnabled: boolParam(r, "coex"),
		TxPower:     r.URL.Query().Get("txPower"),
		TxPowerHi:   r.URL.Query().Get("txPowerHi"),
	})
	if err != nil {
		switch {
		case errors.Is(err, devinfo.ErrUnknownPhy):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, patable.ErrNoEntry):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			s.internalError(w, "can't resolve overrides", err)
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(codegen.Overrides(t, sym)))
}

type render struct {
	Source  string `json:"source"`
	Header  string `json:"header"`
	Digest  string `json:"digest"`
	Changed bool   `json:"changed"`
}

// RenderQuery renders the whole design and stores the files in the history
func (s *Server) RenderQuery(w http.ResponseWriter, r *http.Request) {
	span := s.startSpan(r, "/api/render")
	defer span.Finish()

	res, err := s.gen.Render()
	if err != nil {
		s.renderError(w, err)
		return
	}

	changed, err := s.storeRender(res.Output, time.Now())
	if err != nil {
		s.internalError(w, "can't store render", err)
		return
	}

	w.Header().Set(ChangedHeader, strconv.FormatBool(changed))
	s.writeJSON(w, render{
		Source:  res.Source,
		Header:  res.Header,
		Digest:  res.Digest,
		Changed: changed,
	})
}

// RenderSettingQuery renders one setting, it is not stored
func (s *Server) RenderSettingQuery(w http.ResponseWriter, r *http.Request) {
	span := s.startSpan(r, "/api/render/setting")
	defer span.Finish()

	vars := mux.Vars(r)
	res, err := s.gen.RenderSetting(vars["setting"])
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.writeJSON(w, render{
		Source: res.Source,
		Header: res.Header,
		Digest: res.Digest,
	})
}

func (s *Server) storeRender(out *codegen.Output, t time.Time) (bool, error) {
	cfg := s.gen.Design()
	device := s.gen.Database().Name

	tx := s.store.Begin()
	defer tx.Discard()

	changed := false
	for _, name := range []string{codegen.SourceName, codegen.HeaderName} {
		k := storage.ArtifactKey(device, cfg.RfDesign, name)
		c, err := s.store.PutTx(tx, k, []byte(out.Files()[name]), t)
		if err != nil {
			return false, err
		}
		changed = changed || c
	}
	if !changed {
		return false, nil
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	metrics.ChangedCounter.Inc()
	level.Info(s.logger).Log("msg", "stored changed render", "device", device, "design", cfg.RfDesign)
	return true, nil
}

type artifact struct {
	Key   string    `json:"key"`
	Time  time.Time `json:"time"`
	Value string    `json:"value"`
}

func (s *Server) HistoryQuery(w http.ResponseWriter, r *http.Request) {
	span := s.startSpan(r, "/api/history")
	defer span.Finish()

	vars := mux.Vars(r)

	count := defaultHistoryCount
	if c := r.URL.Query().Get("count"); c != "" {
		v, err := strconv.Atoi(c)
		if err != nil {
			http.Error(w, "invalid count", http.StatusBadRequest)
			return
		}
		count = v
	}

	arts, err := s.store.GetAll(vars["key"], count)
	if err != nil {
		s.internalError(w, "can't query history", err)
		return
	}
	if len(arts) == 0 {
		http.Error(w, "no history for "+vars["key"], http.StatusNotFound)
		return
	}

	res := make([]artifact, len(arts))
	for i, a := range arts {
		res[i] = artifact{Key: a.Key, Time: a.Time, Value: string(a.Value)}
	}
	s.writeJSON(w, res)
}

func (s *Server) HistoryKeysQuery(w http.ResponseWriter, r *http.Request) {
	span := s.startSpan(r, "/api/history")
	defer span.Finish()

	keys, err := s.store.Keys()
	if err != nil {
		s.internalError(w, "can't list history keys", err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	s.writeJSON(w, keys)
}

func (s *Server) ValidateQuery(w http.ResponseWriter, r *http.Request) {
	span := s.startSpan(r, "/api/validate")
	defer span.Finish()

	issues := s.gen.Validate()
	if issues == nil {
		issues = []rfdesign.Issue{}
	}
	s.writeJSON(w, issues)
}

func (s *Server) renderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rfgen.ErrUnknownSetting):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, rfgen.ErrInvalidDesign):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		s.internalError(w, "can't render design", err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	metrics.ErrorCounter.Inc()
	level.Error(s.logger).Log("msg", msg, "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		s.internalError(w, "can't marshal json", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}

func boolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}
