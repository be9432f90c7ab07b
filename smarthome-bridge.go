package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zabeloliver/smarthome-bridge/bridge"
	"github.com/zabeloliver/smarthome-bridge/history"
	"github.com/zabeloliver/smarthome-bridge/httpapi"
	"github.com/zabeloliver/smarthome-bridge/platform"
	"github.com/zabeloliver/smarthome-bridge/shc-api/shcClient"
)

var (
	sugar      *zap.SugaredLogger
	configPath string
)

func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{
		"stdout", "smarthome_bridge.log",
	}
	return cfg.Build()
}

func initLogger() {
	logger, err := NewLogger()
	if err != nil {
		logger = zap.NewExample()
	}
	sugar = logger.Sugar()
}

func initCliFlags() {
	flag.StringVar(&configPath, "configFile", "config.yaml", "Path to the config.yaml File.")
	flag.Parse()
}

func main() {
	initLogger()
	initCliFlags()
	defer sugar.Sync() // flushes buffer, if any

	v := viper.New()
	if err := readConfig(v, configPath); err != nil {
		sugar.Info(err, ". Using Default config")
	}
	cfg, err := loadConfig(v)
	if err != nil {
		// nothing else is started without login data
		sugar.Error(err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Info("Starting Smarthome-Bridge")

	sugar.Info("Creating Metrics-Registry")
	// Create a non-global registry.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewBuildInfoCollector())
	reg.MustRegister(collectors.NewGoCollector())
	metrics := bridge.NewMetrics(reg)

	clientId := cfg.Mqtt.ClientId
	if clientId == "" {
		clientId = "smarthome-bridge-" + uuid.NewString()
	}
	tree := platform.NewMqttRuntime(cfg.Mqtt.Broker, clientId, cfg.Mqtt.Prefix, sugar)
	if err := tree.Connect(); err != nil {
		sugar.Fatalf("cant connect to mqtt broker: %s", err)
	}
	defer tree.Disconnect()

	opts := []bridge.Option{
		bridge.WithMetrics(metrics),
		bridge.WithPathScheme(bridge.ParsePathScheme(cfg.Bridge.PathScheme)),
	}
	if cfg.Influxdb.Host != "" {
		writer := history.NewInfluxWriter(cfg.Influxdb.Host, cfg.Influxdb.Token, cfg.Influxdb.Org, cfg.Influxdb.Bucket)
		defer writer.Close()
		opts = append(opts, bridge.WithHistory(writer))
	}

	session := shcClient.NewShcApiClient(cfg.Shc.Host, sugar)
	session.SetPollingTimeout(cfg.Shc.PollTimeout)
	forwarder := bridge.NewForwarder(session, tree, sugar, opts...)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		forwarder.Shutdown(shutdownCtx)
	}()

	srv := &http.Server{Addr: ":" + cfg.Metrics.Port, Handler: httpapi.NewRouter(reg, tree, sugar)}
	go func() {
		sugar.Infof("Metrics served at: %v", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Error(err)
		}
	}()
	defer srv.Close()

	if err := start(ctx, cfg, session, forwarder); err != nil {
		sugar.Error(err)
		// nothing drains the queue, so commands are dropped from here on
		forwarder.Stop()
		<-ctx.Done()
		return
	}
	if err := forwarder.Run(ctx); err != nil {
		sugar.Error(err)
	}
	sugar.Info("Catch Keyboard interrupt")
}

// start logs in, registers all devices and starts the change stream. A failed
// login is not retried.
func start(ctx context.Context, cfg config, session *shcClient.ShcApiClient, forwarder *bridge.Forwarder) error {
	if err := session.Login(ctx, cfg.Shc.User, cfg.Shc.Password); err != nil {
		return err
	}
	if err := session.Init(ctx); err != nil {
		return err
	}
	if err := forwarder.Init(ctx); err != nil {
		return err
	}
	if err := session.Subscribe(ctx); err != nil {
		return err
	}
	session.Poll(ctx, forwarder.EnqueueHubChange, func(v any) {
		sugar.Infow("DEBUG INFO", "event", v)
	})
	return nil
}
