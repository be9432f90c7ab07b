package bridge

import (
	"go.uber.org/zap"

	"github.com/zabeloliver/smarthome-bridge/platform"
	"github.com/zabeloliver/smarthome-bridge/shc-api/shcStructs"
)

type Outcome int

const (
	Accepted Outcome = iota
	Ignored
	Unknown
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}

const (
	unitPercent = "%"
	unitCelsius = "°C"
)

// Descriptor is what a device turns into on the platform side.
type Descriptor struct {
	Common   platform.Common
	Friendly bool
}

type Classifier struct {
	logger *zap.SugaredLogger
}

func NewClassifier(logger *zap.SugaredLogger) *Classifier {
	return &Classifier{logger: logger}
}

var ignoredTypes = map[string]bool{
	shcStructs.GenericSensor:         true,
	shcStructs.HumiditySensor:        true,
	shcStructs.TemperatureSensor:     true,
	shcStructs.PushButtonSensor:      true,
	shcStructs.SmokeDetectorSensor:   true,
	shcStructs.ValveActuator:         true,
	shcStructs.ThermostatActuator:    true,
	shcStructs.MotionDetectionSensor: true,
}

var (
	switchLabels = map[string]string{"true": "ON", "false": "OFF"}
	alarmLabels  = map[string]string{"true": "ALARM", "false": "NO ALARM"}
)

func bound(v float64) *float64 {
	return &v
}

func percent(common platform.Common) platform.Common {
	common.Unit = unitPercent
	common.Min = bound(0)
	common.Max = bound(100)
	return common
}

// Classify decides how a device is represented on the platform. Devices of an
// ignorable type are skipped silently, unrecognised ones are logged once.
func (c *Classifier) Classify(d shcStructs.Device) (Descriptor, Outcome) {
	common := platform.Common{Name: d.Name, Read: true}

	switch d.Type {
	case shcStructs.SwitchActuator:
		common.Type, common.Role, common.Write = "boolean", "switch", true
		common.States = switchLabels
	case shcStructs.GenericActuator:
		return c.classifyGeneric(d, common)
	case shcStructs.AlarmActuator:
		common.Type, common.Role = "boolean", "sensor.fire"
		common.States = alarmLabels
	case shcStructs.RollerShutterActuator:
		common = percent(common)
		common.Type, common.Role, common.Write = "number", "level.blind", true
	case shcStructs.RoomTemperatureActuator:
		common.Type, common.Role, common.Write, common.Unit = "number", "level.temperature", true, unitCelsius
	case shcStructs.RoomTemperatureSensor:
		common.Type, common.Role, common.Unit = "number", "value.temperature", unitCelsius
	case shcStructs.RoomHumiditySensor:
		common = percent(common)
		common.Type, common.Role = "number", "value.humidity"
	case shcStructs.WindowDoorSensor:
		common.Type, common.Role = "string", c.windowDoorRole(d)
		return Descriptor{Common: common, Friendly: true}, Accepted
	case shcStructs.LuminanceSensor:
		common = percent(common)
		common.Type, common.Role = "number", "sensor.luminance"
	default:
		if ignoredTypes[d.Type] {
			return Descriptor{}, Ignored
		}
		c.logger.Infof("UNKNOWN DEVICE TYPE %s WITH NAME %s", d.Type, d.Name)
		return Descriptor{}, Unknown
	}
	return Descriptor{Common: common}, Accepted
}

// classifyGeneric maps the nested property type of a generic actuator. Only
// boolean properties are writable.
func (c *Classifier) classifyGeneric(d shcStructs.Device, common platform.Common) (Descriptor, Outcome) {
	switch d.State.PropertyType {
	case shcStructs.BooleanProperty:
		common.Type, common.Role, common.Write = "boolean", "switch", true
	case shcStructs.StringProperty:
		common.Type, common.Role = "string", "indicator"
	case shcStructs.NumericProperty:
		common.Type, common.Role = "number", "indicator"
	case shcStructs.DateTimeProperty:
		common.Type, common.Role = "object", "indicator"
	default:
		c.logger.Infof("UNKNOWN PROPERTY %s FOR GENERIC ACTUATOR %s", d.State.PropertyType, d.Name)
		return Descriptor{}, Unknown
	}
	return Descriptor{Common: common}, Accepted
}

func (c *Classifier) windowDoorRole(d shcStructs.Device) string {
	switch d.Installation {
	case "Window":
		return "sensor.window"
	case "Door":
		return "sensor.door"
	default:
		c.logger.Infof("unknown installation %q of %s, falling back to switch", d.Installation, d.Name)
		return "switch"
	}
}
