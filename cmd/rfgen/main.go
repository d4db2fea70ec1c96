package main

import (
	"io/ioutil"
	"os"
	"path/filepath"

	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gobuffalo/packr/v2"
	"github.com/namsral/flag"

	"github.com/akhenakh/rfgen"
	"github.com/akhenakh/rfgen/devinfo"
	"github.com/akhenakh/rfgen/rfdesign"
)

const appName = "rfgen"

var (
	version = "no version from LDFLAGS"

	designPath  = flag.String("designPath", "rfdesign.yml", "RF design file")
	devicesPath = flag.String("devicesPath", "", "device databases directory, the embedded databases if empty")
	device      = flag.String("device", "", "device database name, from the design device if empty")
	outDir      = flag.String("outDir", ".", "output directory")
	setting     = flag.String("setting", "", "render only this setting")
	validate    = flag.Bool("validate", false, "validate the design without rendering")
	debug       = flag.Bool("debug", false, "debug logs")
)

func main() {
	flag.Parse()

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if *debug {
		logger = level.NewFilter(logger, level.AllowAll())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	cfg, err := rfdesign.Load(*designPath)
	if err != nil {
		level.Error(logger).Log("msg", "failed to load RF design", "error", err, "path", *designPath)
		os.Exit(2)
	}

	devName := *device
	if devName == "" {
		devName, err = devinfo.DeviceName(cfg.Device)
		if err != nil {
			level.Error(logger).Log("msg", "can't find device database", "error", err)
			os.Exit(2)
		}
	}

	var src devinfo.Source = devinfo.DirSource(*devicesPath)
	if *devicesPath == "" {
		src = packr.New("rfgen device databases", "../../devices")
	}

	db, err := devinfo.Load(devinfo.SubSource{Source: src, Dir: devName})
	if err != nil {
		level.Error(logger).Log("msg", "failed to load device database", "error", err, "device", devName)
		os.Exit(2)
	}

	gen, err := rfgen.New(appName+" "+version, logger, db, cfg)
	if err != nil {
		level.Error(logger).Log("msg", "can't create generator", "error", err)
		os.Exit(2)
	}

	issues := gen.Validate()
	for _, i := range issues {
		l := level.Warn(logger)
		if i.Severity == rfdesign.SeverityError {
			l = level.Error(logger)
		}
		l.Log("msg", i.Message, "field", i.Field)
	}
	if rfdesign.HasErrors(issues) {
		os.Exit(1)
	}
	if *validate {
		return
	}

	var res *rfgen.Result
	if *setting != "" {
		res, err = gen.RenderSetting(*setting)
	} else {
		res, err = gen.Render()
	}
	if err != nil {
		level.Error(logger).Log("msg", "can't render design", "error", err)
		os.Exit(1)
	}

	for name, content := range res.Files() {
		path := filepath.Join(*outDir, name)
		if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
			level.Error(logger).Log("msg", "can't write file", "error", err, "path", path)
			os.Exit(2)
		}
		level.Info(logger).Log("msg", "generated file", "path", path)
	}
	level.Info(logger).Log("msg", "design rendered", "target", cfg.TargetName(), "digest", res.Digest)
}
