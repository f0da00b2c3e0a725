package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"fleetwatch/internal/config"
	"fleetwatch/internal/metrics"
	"fleetwatch/internal/model"
)

// StartMQTT connects to the broker and subscribes the vessel, weather,
// alerts and operations topic trees. Connection loss is handled by
// paho's auto-reconnect with a capped interval; a failed initial
// connect is retried on the same schedule. The adapter never gives up.
func StartMQTT(ctx context.Context, cfg *config.Manager, out chan<- model.TelemetryFragment, ops OpsSink, logger *slog.Logger) mqtt.Client {
	current := cfg.Get().Ingest.MQTT
	if !current.Enabled {
		if logger != nil {
			logger.Info("mqtt ingest disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("mqtt ingest enabled", "broker", current.BrokerURL, "prefix", current.TopicPrefix)
	}

	a := &mqttAdapter{ctx: ctx, cfg: cfg, out: out, ops: ops, logger: logger}

	opts := mqtt.NewClientOptions().
		AddBroker(current.BrokerURL).
		SetClientID(current.ClientID).
		SetUsername(current.Username).
		SetPassword(current.Password).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(current.MaxBackoff).
		SetConnectRetry(true).
		SetConnectRetryInterval(current.MaxBackoff).
		SetConnectTimeout(current.ConnectWait).
		SetOrderMatters(false)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		a.subscribe(client)
		if ops != nil {
			ops.MQTTStatus(true)
		}
		if logger != nil {
			logger.Info("mqtt connected", "broker", current.BrokerURL)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if ops != nil {
			ops.MQTTStatus(false)
		}
		if logger != nil {
			logger.Warn("mqtt connection lost", "err", err)
		}
	})

	client := mqtt.NewClient(opts)
	client.Connect()

	go func() {
		<-ctx.Done()
		client.Disconnect(250)
	}()
	return client
}

type mqttAdapter struct {
	ctx    context.Context
	cfg    *config.Manager
	out    chan<- model.TelemetryFragment
	ops    OpsSink
	logger *slog.Logger
}

func (a *mqttAdapter) subscribe(client mqtt.Client) {
	prefix := a.cfg.Get().Ingest.MQTT.TopicPrefix
	filters := map[string]byte{
		prefix + "/vessel/+/telemetry":   0,
		prefix + "/vessel/+/status/#":    0,
		prefix + "/vessel/+/emergency/#": 0,
		"weather/#":                      0,
		"alerts/#":                       0,
		"operations/#":                   0,
	}
	token := client.SubscribeMultiple(filters, a.onMessage)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil && a.logger != nil {
			a.logger.Error("mqtt subscribe failed", "err", err)
		}
	}()
}

func (a *mqttAdapter) onMessage(_ mqtt.Client, msg mqtt.Message) {
	topic := msg.Topic()
	payload := msg.Payload()
	arrival := time.Now().UTC()
	prefix := a.cfg.Get().Ingest.MQTT.TopicPrefix

	switch {
	case strings.HasPrefix(topic, prefix+"/vessel/"):
		a.onVessel(prefix, topic, payload, arrival)
	case strings.HasPrefix(topic, "weather/"):
		a.onWeather(topic, payload, arrival)
	case strings.HasPrefix(topic, "operations/"):
		a.onOperations(topic, payload)
	case strings.HasPrefix(topic, "alerts/"):
		if a.ops != nil {
			a.ops.Advisory(payload)
		}
	}
}

func (a *mqttAdapter) onVessel(prefix, topic string, payload []byte, arrival time.Time) {
	vesselID, kind, detail, ok := SplitVesselTopic(prefix, topic)
	if !ok {
		a.dropped(topic, &ParseError{Source: "mqtt", Topic: topic, Err: errBadTopic})
		return
	}

	var frag model.TelemetryFragment
	var err error
	emit := true
	switch kind {
	case "telemetry":
		frag, err = DecodeFragment("mqtt", vesselID, payload, arrival)
	case "status":
		frag, err = DecodeComponent("mqtt", vesselID, detail, payload, arrival)
	case "emergency":
		frag, emit, err = DecodeEmergency("mqtt", vesselID, detail, payload, arrival)
	default:
		err = &ParseError{Source: "mqtt", Topic: topic, Err: errBadTopic}
	}
	if err != nil {
		a.dropped(topic, err)
		return
	}
	if emit {
		SendNonBlocking(a.ctx, a.out, frag, a.logger)
	}
}

func (a *mqttAdapter) onWeather(topic string, payload []byte, arrival time.Time) {
	if a.ops == nil {
		return
	}
	var w model.WeatherReport
	if err := json.Unmarshal(payload, &w); err != nil {
		a.dropped(topic, &ParseError{Source: "mqtt", Topic: topic, Err: err})
		return
	}
	if w.Zone == "" {
		w.Zone = strings.TrimPrefix(topic, "weather/")
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = arrival
	}
	a.ops.Weather(w)
}

func (a *mqttAdapter) onOperations(topic string, payload []byte) {
	if a.ops == nil {
		return
	}
	var routes []model.RouteStatus
	if err := json.Unmarshal(payload, &routes); err != nil {
		a.dropped(topic, &ParseError{Source: "mqtt", Topic: topic, Err: err})
		return
	}
	a.ops.Operations(routes)
}

func (a *mqttAdapter) dropped(topic string, err error) {
	metrics.ParseErrors.WithLabelValues("mqtt").Inc()
	if a.logger != nil {
		a.logger.Warn("mqtt message dropped", "topic", topic, "err", err)
	}
}
