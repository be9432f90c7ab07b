package bridge

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zabeloliver/smarthome-bridge/shc-api/shcStructs"
)

type Metrics struct {
	deviceValue *prometheus.GaugeVec
	devices     *prometheus.GaugeVec
	hubEvents   prometheus.Counter
	commands    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deviceValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "device_value",
				Help: "Current numeric value of a device, booleans as 0 and 1.",
			},
			[]string{"id", "room", "type"}),
		devices: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "devices",
				Help: "Devices seen during enumeration by classification outcome.",
			},
			[]string{"outcome"},
		),
		hubEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hub_events_forwarded_total",
				Help: "Device changes written to the platform.",
			},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_commands_total",
				Help: "User commands forwarded to the controller.",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.deviceValue)
	reg.MustRegister(m.devices)
	reg.MustRegister(m.hubEvents)
	reg.MustRegister(m.commands)
	return m
}

func (m *Metrics) classified(o Outcome) {
	if m == nil {
		return
	}
	m.devices.WithLabelValues(o.String()).Inc()
}

func (m *Metrics) hubEvent(d shcStructs.Device, room string) {
	if m == nil {
		return
	}
	m.hubEvents.Inc()
	m.observe(d, room)
}

func (m *Metrics) observe(d shcStructs.Device, room string) {
	if m == nil {
		return
	}
	switch v := d.GetState().(type) {
	case float64:
		m.deviceValue.WithLabelValues(d.Id, room, d.Type).Set(v)
	case bool:
		if v {
			m.deviceValue.WithLabelValues(d.Id, room, d.Type).Set(1)
		} else {
			m.deviceValue.WithLabelValues(d.Id, room, d.Type).Set(0)
		}
	}
}

func (m *Metrics) command(result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(result).Inc()
}
