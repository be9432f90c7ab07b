package shcStructs

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Device type tags as reported by the controller.
const (
	SwitchActuator          = "SwitchActuator"
	GenericActuator         = "GenericActuator"
	AlarmActuator           = "AlarmActuator"
	RoomTemperatureActuator = "RoomTemperatureActuator"
	RoomTemperatureSensor   = "RoomTemperatureSensor"
	RoomHumiditySensor      = "RoomHumiditySensor"
	RollerShutterActuator   = "RollerShutterActuator"
	WindowDoorSensor        = "WindowDoorSensor"
	LuminanceSensor         = "LuminanceSensor"

	GenericSensor         = "GenericSensor"
	HumiditySensor        = "HumiditySensor"
	TemperatureSensor     = "TemperatureSensor"
	PushButtonSensor      = "PushButtonSensor"
	SmokeDetectorSensor   = "SmokeDetectorSensor"
	ValveActuator         = "ValveActuator"
	ThermostatActuator    = "ThermostatActuator"
	MotionDetectionSensor = "MotionDetectionSensor"
)

// Property type tags of a generic actuator.
const (
	BooleanProperty  = "BooleanProperty"
	StringProperty   = "StringProperty"
	NumericProperty  = "NumericProperty"
	DateTimeProperty = "DateTimeProperty"
)

type Room struct {
	//Type string `json:"@type"`
	Id   string `json:"id"`
	Name string `json:"name"`
}

type DeviceState struct {
	PropertyType  string `json:"propertyType" mapstructure:"propertyType"`
	Value         any    `json:"value" mapstructure:"value"`
	FriendlyValue string `json:"friendlyValue,omitempty" mapstructure:"friendlyValue"`
}

type Device struct {
	Id           string      `json:"id"`
	Name         string      `json:"name"`
	Type         string      `json:"type"`
	LCID         string      `json:"lcid"`
	Installation string      `json:"installation,omitempty"`
	ActCls       string      `json:"actCls,omitempty"`
	State        DeviceState `json:"state"`
}

type DeviceEvent struct {
	Type     string         `json:"@type"`
	Id       string         `json:"id"`
	State    map[string]any `json:"state"`
	DeviceId string         `json:"deviceId"`
}

// GetState returns the raw value last reported for the device.
func (d *Device) GetState() any {
	return d.State.Value
}

// GetFriendlyState returns the human readable rendering of the current value.
// The controller's own rendering wins; otherwise it is derived from the type.
func (d *Device) GetFriendlyState() string {
	if d.State.FriendlyValue != "" {
		return d.State.FriendlyValue
	}
	if b, ok := d.State.Value.(bool); ok {
		switch d.Type {
		case WindowDoorSensor:
			return labelFor(b, "OPEN", "CLOSED")
		case AlarmActuator:
			return labelFor(b, "ALARM", "NO ALARM")
		default:
			return labelFor(b, "ON", "OFF")
		}
	}
	return FormatValue(d.State.Value)
}

// ApplyEvent merges a change event into the cached device state.
func (d *Device) ApplyEvent(event DeviceEvent) error {
	_, hasValue := event.State["value"]
	_, hasFriendly := event.State["friendlyValue"]
	if hasValue {
		d.State.Value = nil
		if !hasFriendly {
			d.State.FriendlyValue = ""
		}
	}
	err := mapstructure.Decode(event.State, &d.State)
	if err != nil {
		return fmt.Errorf("decoding state of %s: %w", event.DeviceId, err)
	}
	return nil
}

func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

func labelFor(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}
