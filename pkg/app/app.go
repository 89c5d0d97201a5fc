package app

import (
	"encoding/json"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"

	"dcf77clock/pkg/app/config"
	"dcf77clock/pkg/blockexport"
	"dcf77clock/pkg/dcftime"
	"dcf77clock/pkg/decoder"
	"dcf77clock/pkg/mqtt"
	"dcf77clock/pkg/ntpshm"
	"dcf77clock/pkg/port"
	"dcf77clock/pkg/raspberry"
	"dcf77clock/pkg/voter"
	"dcf77clock/pkg/zonecheck"
)

// App is the main application struct and where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config contain the application configuration.
	config *config.Config

	// urlParsed contains the parsed Config.Url parameter
	// and makes it easier to get params out of e.g.
	//  url: https://0.0.0.0:7844/?minTls=1.2&bodyLimit=50MB
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker.
	mqtt *mqtt.Handler

	// gpio is the handler to the rpi gpio chip.
	gpio *raspberry.Chip
	// lines are the watched receiver lines, one or two per config.
	lines []*raspberry.Line
	// events fans in every line's edges for the decode loop.
	events chan port.Event

	// decoder drives classifier -> frame -> dcftime -> voter.
	decoder *decoder.Decoder
	// ntp publishes validated minutes to the NTP SHM refclock unit.
	ntp *ntpshm.Publisher
	// export writes the three-minute block to the export FIFO.
	export *blockexport.Exporter

	// status contains the last decoded minute, reported by /status.
	status struct {
		sync.Mutex
		data statusFrame
	}

	// restart signals application restart.
	restart chan struct{}
	// shutdown signals application shutdown.
	shutdown chan struct{}
}

// statusFrame is the JSON shape the /status web handler reports.
type statusFrame struct {
	Phase     string    `json:"phase"`
	Min       int       `json:"min"`
	Hour      int       `json:"hour"`
	Day       int       `json:"day"`
	Mon       int       `json:"mon"`
	Year      int       `json:"year"`
	WDay      int       `json:"wday"`
	TZ        int       `json:"tz"`
	Stamp     int64     `json:"stamp"`
	Precision int       `json:"precision_s"`
	Noise     int       `json:"noise"`
	Updated   time.Time `json:"updated"`
}

// New checks the web server URL, loads the zoneinfo cross-check data
// and initializes the main app structure.
func New(cfg *config.Config) (*App, error) {
	u, err := url.Parse(cfg.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", cfg.Webserver.URL, err.Error())
		return &App{}, err
	}

	var zr voter.ZoneResolver
	if r, zerr := zonecheck.Load(zonecheck.DefaultZoneFile); zerr != nil {
		debug.ErrorLog.Printf("can't load zoneinfo, zone cross-check disabled: %v", zerr)
	} else {
		zr = r
	}

	app := App{
		config:    cfg,
		urlParsed: u,
		web:       fiber.New(),
		mqtt:      mqtt.New(),
		decoder:   decoder.New(cfg.Receiver.Tolerance, zr),
		export:    blockexport.New(cfg.Export.Fifo),
		events:    make(chan port.Event, 16),
		restart:   make(chan struct{}),
		shutdown:  make(chan struct{}),
	}

	return &app, nil
}

// Run starts the application.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	go app.mqtt.Service()
	go app.runWebServer()
	go app.service()

	return nil
}

// init initializes the used modules of the application:
//   - gpio receiver line(s)
//   - ntp shared memory
//   - mqtt
func (app *App) init() (err error) {
	if app.gpio, err = raspberry.Open(); err != nil {
		debug.ErrorLog.Printf("can't open gpio: %v", err)
		return err
	}

	for _, gpio := range app.config.Receiver.Gpio {
		var line *raspberry.Line
		if line, err = app.gpio.NewLine(gpio, app.config.Receiver.Terminator, app.config.Receiver.Debounce); err != nil {
			debug.ErrorLog.Printf("can't watch gpio %v: %v", gpio, err)
			return err
		}
		app.lines = append(app.lines, line)
		go app.forward(line)
	}

	if app.ntp, err = ntpshm.Open(app.config.NTP.Unit); err != nil {
		debug.ErrorLog.Printf("can't open ntp shared memory: %v", err)
		return err
	}

	if err = app.mqtt.Connect(app.config.MQTT.Connection); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	// initDefaultRoutes is called last, once every handler it may serve is initialized.
	app.initDefaultRoutes()

	return nil
}

// forward copies one receiver line's edges onto the shared events
// channel driving the decode loop.
func (app *App) forward(line *raspberry.Line) {
	for ev := range line.C {
		app.events <- ev
	}
}

// service feeds every receiver edge into the decoder and reacts to
// each completed minute.
func (app *App) service() {
	for ev := range app.events {
		app.decoder.Feed(ev)

		m, err := app.decoder.Next()
		if err == io.EOF {
			continue
		}
		app.onMinute(m)
	}
}

// onMinute publishes one decoded, voted-on minute to every consumer:
// the status API, the NTP SHM refclock, the export FIFO and MQTT.
func (app *App) onMinute(m decoder.Minute) {
	app.status.Lock()
	app.status.data = statusFrame{
		Phase:     app.decoder.State().String(),
		Min:       m.Frame.Min,
		Hour:      m.Frame.Hour,
		Day:       m.Frame.Day,
		Mon:       m.Frame.Mon,
		Year:      m.Frame.Year,
		WDay:      m.Frame.WDay,
		TZ:        m.Frame.TZ,
		Stamp:     m.Frame.Stamp,
		Precision: m.PrecisionSeconds,
		Noise:     app.decoder.NoiseCount(),
		Updated:   time.Now(),
	}
	app.status.Unlock()

	app.ntp.Publish(m.Frame, m.Wall, m.PrecisionSeconds)
	app.export.Feed(m.BitVector, m.Frame)
	go app.sendMQTT(m.Frame)
}

// sendMQTT marshals the decoded minute and queues it for publishing,
// the same fire-and-forget shape as the teacher's sendMQTT.
func (app *App) sendMQTT(dt dcftime.DcfTime) {
	payload, err := json.Marshal(dt)
	if err != nil {
		debug.ErrorLog.Printf("can't marshal mqtt payload: %v", err)
		return
	}

	app.mqtt.C <- mqtt.Message{Topic: app.config.MQTT.Topic, Payload: payload, Retained: true}
}

// Restart returns the read only restart channel.
//  Nothing in this module sends on it; cmd/dcf77clock.go waits on OS signals only.
func (app *App) Restart() <-chan struct{} {
	return app.restart
}

// Shutdown returns the read only shutdown channel.
//  Nothing in this module sends on it; cmd/dcf77clock.go waits on OS signals only.
func (app *App) Shutdown() <-chan struct{} {
	return app.shutdown
}

// Close all handler used by app:
//  * mqtt
//  * ntp shared memory
//  * gpio
func (app *App) Close() error {
	if app.mqtt != nil {
		_ = app.mqtt.Disconnect()
	}

	for _, line := range app.lines {
		_ = line.Close()
	}

	if app.ntp != nil {
		_ = app.ntp.Close()
	}
	if app.gpio != nil {
		_ = app.gpio.Close()
	}
	return nil
}
