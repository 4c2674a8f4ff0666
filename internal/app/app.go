package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"chime/internal/config"
	"chime/internal/eventbus"
	"chime/internal/notify"
	"chime/internal/schedule"
	"chime/internal/store"
	"chime/internal/web"
	logx "chime/pkg/logx"
)

// App owns the full wiring: config, logging, store, bus, hub, side channels,
// the scheduling service and the HTTP server.
type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	bus   eventbus.Bus
	store store.Store
	hub   *notify.Hub
	sched *schedule.Service
	srv   *http.Server

	cancelBg context.CancelFunc
	bgDone   chan struct{}
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logCfg(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	st, err := store.Open(store.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: cfg.Database.BusyTimeout.Std(),
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	bus := eventbus.New()
	hub := notify.NewHub(notify.HubConfig{RatePerSec: cfg.Notify.RatePerSec},
		bus, log.With(logx.String("comp", "hub")))

	var sides []notify.SideChannel
	if cfg.Notify.Voice.Enabled {
		sides = append(sides, notify.NewVoice(notify.VoiceConfig{
			Enabled: true,
			Command: cfg.Notify.Voice.Command,
			Timeout: cfg.Notify.Voice.Timeout.Std(),
		}, log.With(logx.String("comp", "voice"))))
	}
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(notify.TelegramConfig{
			Enabled: true,
			Token:   cfg.Notify.Telegram.Token,
			ChatID:  cfg.Notify.Telegram.ChatID,
		}, log.With(logx.String("comp", "telegram")))
		if err != nil {
			// Degraded but running: the bot token may be rotated later.
			log.Warn("telegram side channel unavailable", logx.Err(err))
		} else {
			sides = append(sides, tg)
		}
	}

	sched := schedule.New(schedule.Config{Timezone: cfg.Timezone}, st,
		notify.NewBusSink(bus), sides, nil, log.With(logx.String("comp", "schedule")))

	webSrv := web.NewServer(st, st, sched, hub, web.AuthConfig{
		Secret:   cfg.Auth.JWTSecret,
		TokenTTL: cfg.Auth.TokenTTL.Std(),
	}, schedLocation(cfg.Timezone), log.With(logx.String("comp", "web")))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           webSrv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfgm:  cfgm,
		logs:  logs,
		log:   log,
		bus:   bus,
		store: st,
		hub:   hub,
		sched: sched,
		srv:   srv,
	}, nil
}

// Start brings the scheduler, hub, HTTP listener and config watcher up, then
// signals readiness to systemd.
func (a *App) Start(ctx context.Context) error {
	a.sched.Start(ctx)

	bg, cancel := context.WithCancel(context.Background())
	a.cancelBg = cancel
	a.bgDone = make(chan struct{})

	go func() {
		defer close(a.bgDone)
		a.hub.Run(bg)
	}()

	a.cfgm.OnChange(func(cfg *config.Config) {
		a.logs.Apply(logCfg(cfg))
		a.log.Info("logging config applied")
	})
	go func() {
		if err := a.cfgm.Watch(bg); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	go func() {
		a.log.Info("http listening", logx.String("addr", a.srv.Addr))
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server", logx.Err(err))
		}
	}()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify", logx.Err(err))
	}
	return nil
}

// Stop shuts everything down in reverse order of Start.
func (a *App) Stop(ctx context.Context) error {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		a.log.Debug("sd_notify", logx.Err(err))
	}

	if err := a.srv.Shutdown(ctx); err != nil {
		a.log.Warn("http shutdown", logx.Err(err))
	}

	a.sched.Stop(ctx)

	if a.cancelBg != nil {
		a.cancelBg()
		select {
		case <-a.bgDone:
		case <-ctx.Done():
		}
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("store close", logx.Err(err))
	}

	a.log.Info("stopped")
	return a.logs.Close()
}

func logCfg(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func schedLocation(tz string) *time.Location {
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}
