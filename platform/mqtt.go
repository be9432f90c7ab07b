package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MqttRuntime mirrors a MemoryStore onto an MQTT broker.
//
//	<prefix>/objects/<id>   retained object descriptions
//	<prefix>/states/<id>    retained states {"val":..,"ack":..,"ts":..}
//	<prefix>/set/<id>       inbound user commands (ack=false)
//	<prefix>/message        inbound messages, replies on <prefix>/message/<from>
type MqttRuntime struct {
	*MemoryStore
	prefix  string
	opts    *paho.ClientOptions
	client  paho.Client
	logger  *zap.SugaredLogger
	publish func(topic string, payload []byte) error
}

// Message is an inbound request on the message topic.
type Message struct {
	Command  string `json:"command"`
	From     string `json:"from"`
	Message  any    `json:"message"`
	Callback string `json:"callback,omitempty"`
}

type messageReply struct {
	Command  string `json:"command"`
	Message  string `json:"message"`
	Callback string `json:"callback"`
}

func NewMqttRuntime(brokerURL, clientID, prefix string, logger *zap.SugaredLogger) *MqttRuntime {
	opts := paho.NewClientOptions().AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.OnConnectionLost = func(c paho.Client, err error) { logger.Errorw("mqtt connection lost", "error", err) }

	r := &MqttRuntime{
		MemoryStore: NewMemoryStore(),
		prefix:      strings.TrimSuffix(prefix, "/"),
		opts:        opts,
		logger:      logger,
	}
	r.publish = func(string, []byte) error { return fmt.Errorf("client not connected") }
	return r
}

func (r *MqttRuntime) topic(parts ...string) string {
	return r.prefix + "/" + strings.Join(parts, "/")
}

func (r *MqttRuntime) Connect() error {
	r.client = paho.NewClient(r.opts)
	token := r.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect error: %w", err)
	}
	r.publish = func(topic string, payload []byte) error {
		t := r.client.Publish(topic, 0, true, payload)
		if t.Wait() && t.Error() != nil {
			return t.Error()
		}
		return nil
	}

	subs := map[string]func(topic string, payload []byte){
		r.topic("set", "#"): r.handleSet,
		r.topic("message"):  r.handleMessage,
	}
	for topic, h := range subs {
		h := h
		t := r.client.Subscribe(topic, 0, func(_ paho.Client, m paho.Message) { h(m.Topic(), m.Payload()) })
		if t.Wait() && t.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, t.Error())
		}
		r.logger.Infow("mqtt subscribed", "topic", topic)
	}
	return nil
}

func (r *MqttRuntime) Disconnect() {
	if r.client == nil {
		return
	}
	r.client.Disconnect(250)
}

func (r *MqttRuntime) SetObjectNotExists(ctx context.Context, obj Object) (bool, error) {
	created, err := r.MemoryStore.SetObjectNotExists(ctx, obj)
	if err != nil || !created {
		return created, err
	}
	obj, _ = r.MemoryStore.GetObject(ctx, obj.Id)
	payload, err := json.Marshal(obj)
	if err != nil {
		return true, err
	}
	return true, r.publish(r.topic("objects", obj.Id), payload)
}

func (r *MqttRuntime) SetState(ctx context.Context, id string, state State) error {
	if state.Ts.IsZero() {
		state.Ts = time.Now()
	}
	if err := r.MemoryStore.SetState(ctx, id, state); err != nil {
		return err
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.publish(r.topic("states", id), payload)
}

// handleSet turns an inbound command into a non-acknowledged state write.
// Payloads are JSON values; anything else is taken as a plain string.
func (r *MqttRuntime) handleSet(topic string, payload []byte) {
	id := strings.TrimPrefix(topic, r.topic("set")+"/")
	if _, err := r.GetObject(context.Background(), id); err != nil {
		r.logger.Debugw("command for unknown object", "id", id)
		return
	}
	var val any
	if err := json.Unmarshal(payload, &val); err != nil {
		val = string(payload)
	}
	if err := r.SetState(context.Background(), id, State{Val: val, Ack: false}); err != nil {
		r.logger.Errorw("publishing command state failed", "id", id, "error", err)
	}
}

func (r *MqttRuntime) handleMessage(_ string, payload []byte) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		r.logger.Warnw("invalid message", "error", err)
		return
	}
	if msg.Command != "send" || msg.Message == nil {
		return
	}
	r.logger.Infow("message received", "from", msg.From)
	if msg.Callback == "" || msg.From == "" {
		return
	}
	reply, _ := json.Marshal(messageReply{Command: msg.Command, Message: "Message received", Callback: msg.Callback})
	if err := r.publish(r.topic("message", msg.From), reply); err != nil {
		r.logger.Errorw("message reply failed", "to", msg.From, "error", err)
	}
}
