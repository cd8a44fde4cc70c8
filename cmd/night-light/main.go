// Command night-light drives an LED strip night lamp from touch buttons, a
// presence radar and an ambient light sensor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/silen72/night-light/internal/config"
	"github.com/silen72/night-light/internal/control"
	"github.com/silen72/night-light/internal/gpio"
	"github.com/silen72/night-light/internal/ldr"
	"github.com/silen72/night-light/internal/logic"
	"github.com/silen72/night-light/internal/mqtt"
	"github.com/silen72/night-light/internal/network"
	"github.com/silen72/night-light/internal/prefs"
	"github.com/silen72/night-light/internal/radar"
	"github.com/silen72/night-light/internal/status"
	"github.com/silen72/night-light/internal/touch"
	"github.com/silen72/night-light/internal/web"
)

// restartExitCode tells the supervisor to start the daemon again after a
// factory reset.
const restartExitCode = 3

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration (defaults apply when empty)")
	printState := flag.Bool("print-state", false, "Print the button and light sensor state and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)

	restart, err := run(cfg, *printState)
	if err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
	if restart {
		log.Warn().Int("code", restartExitCode).Msg("exiting for restart")
		os.Exit(restartExitCode)
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

func run(cfg *config.Config, printState bool) (bool, error) {
	buttons, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.Buttons.Lines())
	if err != nil {
		return false, fmt.Errorf("init gpio: %w", err)
	}
	defer buttons.Close()

	light, err := ldr.NewIIOSensor(cfg.LDR.Path, cfg.LDR.Invert, logic.MaxAmbient)
	if err != nil {
		return false, fmt.Errorf("init light sensor: %w", err)
	}

	if printState {
		levels, err := buttons.Read()
		if err != nil {
			return false, fmt.Errorf("read gpio: %w", err)
		}
		raw, err := light.Read()
		if err != nil {
			return false, fmt.Errorf("read light sensor: %w", err)
		}
		for b := logic.Button(0); b < logic.NumButtons; b++ {
			fmt.Printf("%s: %s, ", b, touchString(levels[b]))
		}
		fmt.Printf("LDR: %d\n", raw)
		return false, nil
	}

	store, err := prefs.OpenSQLite(cfg.Database.Path)
	if err != nil {
		return false, fmt.Errorf("open preferences: %w", err)
	}
	defer store.Close()
	preferences := prefs.New(store, component("prefs"))

	dimmer, err := gpio.NewSysfsDimmer(cfg.PWM.Chip, cfg.PWM.Channel, cfg.PWM.Period.Duration())
	if err != nil {
		return false, fmt.Errorf("init pwm: %w", err)
	}
	defer dimmer.Close()

	source, err := radar.OpenSerial(cfg.Radar.Device, cfg.Radar.Baud, cfg.Radar.StaleAfter.Duration(), component("radar"))
	if err != nil {
		return false, fmt.Errorf("init radar: %w", err)
	}
	defer source.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := source.Run(ctx); err != nil {
			log.Error().Err(err).Msg("radar stopped, presence is no longer detected")
		}
	}()

	netProvider := network.NewProvider(cfg.Network.StateFile, cfg.Network.AccessPointHook, cfg.Network.HookTimeout.Duration(), component("network"))

	startTime := time.Now()
	strip := logic.NewStrip(dimmer, 0, component("strip"))
	controller := logic.NewController(strip, preferences, netProvider, startTime, component("lamp"))
	queue := control.NewQueue(control.DefaultQueueSize, component("control"))
	defer queue.Close()

	topics := mqtt.NewTopics(cfg.MQTT.Topic)
	tracker := status.NewTracker(startTime, uuid.NewString(), status.Config{
		TickMs:      cfg.Loop.Tick.Duration().Milliseconds(),
		HeartbeatMs: cfg.Loop.Heartbeat.Duration().Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		WSBroker:    cfg.MQTT.WSBrokerURL(),
		EventsTopic: topics.Events,
		RadarDevice: cfg.Radar.Device,
		Hostname:    preferences.WifiHostname(),
	})
	tracker.SetNetwork(networkInfo(netProvider))
	tracker.Update(controller.Snapshot(startTime), false)

	var publisher mqtt.Publisher = noPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, mqtt.ClientID(), topics, component("mqtt"))
		if err != nil {
			return false, fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	snap := tracker.Snapshot()
	if err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}); err != nil {
		log.Warn().Err(err).Msg("failed to publish startup event")
	}

	var metrics *web.Metrics
	if cfg.HTTP.Addr != "" {
		metrics = web.NewMetrics(tracker)
		srv := web.New(web.Options{
			Addr:        cfg.HTTP.Addr,
			Tracker:     tracker,
			Lamp:        queue,
			AccessPoint: netProvider,
			Prefs:       preferences,
			Auth:        cfg.HTTP.Auth,
			Metrics:     metrics,
			Limiter:     rate.NewLimiter(rate.Limit(cfg.HTTP.RateLimitRPS), cfg.HTTP.RateBurst),
			Log:         component("http"),
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			srv.Shutdown(shutdownCtx)
		}()
		log.Info().Str("addr", cfg.HTTP.Addr).Bool("auth", cfg.HTTP.Auth).Msg("http server listening")
	}

	log.Info().
		Dur("tick", cfg.Loop.Tick.Duration()).
		Dur("heartbeat", cfg.Loop.Heartbeat.Duration()).
		Str("broker", cfg.MQTT.Broker).
		Str("radar", cfg.Radar.Device).
		Msg("started")

	ticker := time.NewTicker(cfg.Loop.Tick.Duration())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loopDeps{
		buttons:    buttons,
		classifier: touch.NewClassifier(cfg.Touch.Classifier()),
		queue:      queue,
		controller: controller,
		ambient:    logic.NewAmbientMonitor(cfg.LDR.Delay.Duration(), component("ambient")),
		light:      light,
		presence:   source,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		metrics:    metrics,
		network:    func() *status.NetworkInfo { return networkInfo(netProvider) },
		heartbeat:  cfg.Loop.Heartbeat.Duration(),
	}, time.Now, ticker.C, sigCh)
}

// loopDeps are the collaborators of the control loop. metrics, mqttStatus
// and network may be nil.
type loopDeps struct {
	buttons    gpio.Reader
	classifier *touch.Classifier
	queue      *control.Queue
	controller *logic.Controller
	ambient    *logic.AmbientMonitor
	light      logic.LightSensor
	presence   radar.Sensor
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *web.Metrics
	network    func() *status.NetworkInfo
	heartbeat  time.Duration
}

// runLoop owns the controller. It returns true when the daemon should exit
// for a restart.
func runLoop(d loopDeps, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) (bool, error) {
	buttonsFailing := false

	for {
		select {
		case s := <-sig:
			log.Info().Stringer("signal", s).Msg("shutting down")
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			d.publishSystem(now(), "SHUTDOWN", signalName)
			return false, nil

		case <-tick:
			t := now()

			var gestures []logic.GestureEvent
			levels, err := d.buttons.Read()
			if err != nil {
				if !buttonsFailing {
					log.Error().Err(err).Msg("gpio read error")
				}
				buttonsFailing = true
			} else {
				if buttonsFailing {
					log.Info().Msg("gpio read recovered")
				}
				buttonsFailing = false
				gestures = d.classifier.Process(t, levels)
			}
			gestures = append(gestures, d.queue.Drain(d.controller, t)...)
			for _, g := range gestures {
				if g.Gesture != logic.GestureReleased {
					log.Debug().Stringer("button", g.Button).Stringer("gesture", g.Gesture).Msg("gesture")
				}
			}

			d.ambient.Tick(t, d.light)
			events := d.controller.Tick(t, gestures, d.presence.Reading(), d.ambient.Brightness())

			for _, event := range events {
				log.Info().
					Str("from", string(event.From)).
					Str("to", string(event.To)).
					Uint8("target", event.TargetBrightness).
					Msg("mode change")
				if err := d.publisher.Publish(event); err != nil {
					log.Warn().Err(err).Msg("publish error")
				}
			}
			if d.metrics != nil {
				d.metrics.ObserveEvents(events)
			}

			d.tracker.Update(d.controller.Snapshot(t), d.ambient.Initialized())
			if d.mqttStatus != nil {
				d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
			}

			if d.controller.RestartRequested() {
				log.Warn().Msg("factory reset done, restarting")
				d.publishSystem(t, "FACTORY_RESET", "")
				return true, nil
			}

			if hb := d.controller.CheckHeartbeat(t, d.heartbeat); hb != nil {
				log.Info().
					Dur("uptime", hb.Uptime).
					Str("mode", string(hb.Mode)).
					Int("mode_changes", hb.Counts.ModeChanges).
					Int("ignored", hb.Counts.IgnoredGestures).
					Msg("heartbeat")
				if d.network != nil {
					d.tracker.SetNetwork(d.network())
				}
				d.publishSystem(hb.Timestamp, "HEARTBEAT", "")
			}
		}
	}
}

func (d loopDeps) publishSystem(t time.Time, event, reason string) {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	snap := d.tracker.Snapshot()
	err := d.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  t,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		log.Warn().Err(err).Str("event", event).Msg("failed to publish system event")
	}
}

func networkInfo(p *network.Provider) *status.NetworkInfo {
	info := p.Current()
	if info.Status == "" && info.Type == "" {
		return nil
	}
	return &status.NetworkInfo{
		Mode:       string(info.Mode),
		SubState:   info.SubState,
		Type:       info.Type,
		IP:         info.IP,
		Status:     info.Status,
		Gateway:    info.Gateway,
		WifiStatus: info.WifiStatus,
		SSID:       info.SSID,
	}
}

func touchString(touched bool) string {
	if touched {
		return "TOUCHED"
	}
	return "RELEASED"
}

// noPublisher is used when no broker is configured.
type noPublisher struct{}

func (noPublisher) Publish(logic.Event) error            { return nil }
func (noPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (noPublisher) Close() error                         { return nil }
