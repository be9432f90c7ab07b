package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"

	"github.com/zabeloliver/smarthome-bridge/shc-api/shcStructs"
)

var (
	tagEscaper    = strings.NewReplacer(",", `\,`, "=", `\=`, " ", `\ `)
	stringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

// InfluxWriter writes every device change as one line-protocol record.
type InfluxWriter struct {
	client   influxdb2.Client
	writeApi api.WriteAPIBlocking
	now      func() time.Time
}

func NewInfluxWriter(host, token, org, bucket string) *InfluxWriter {
	// Create a new client using an InfluxDB server base URL and an authentication token
	client := influxdb2.NewClient(host, token)
	return &InfluxWriter{
		client: client,
		// Use blocking write client for writes to desired bucket
		writeApi: client.WriteAPIBlocking(org, bucket),
		now:      time.Now,
	}
}

func (w *InfluxWriter) Write(ctx context.Context, d shcStructs.Device, room string) error {
	line, ok := Line(d, room, w.now())
	if !ok {
		return nil
	}
	if err := w.writeApi.WriteRecord(ctx, line); err != nil {
		return fmt.Errorf("influx write of %s: %w", d.Id, err)
	}
	return nil
}

func (w *InfluxWriter) Close() {
	w.client.Close()
}

// Line renders a device value as line protocol. Values that are neither
// numbers, booleans nor strings are skipped.
func Line(d shcStructs.Device, room string, ts time.Time) (string, bool) {
	var field string
	switch v := d.GetState().(type) {
	case float64:
		field = fmt.Sprintf("level=%f", v)
	case bool:
		if v {
			field = "state=1u"
		} else {
			field = "state=0u"
		}
	case string:
		field = `text="` + stringEscaper.Replace(v) + `"`
	default:
		return "", false
	}
	if room == "" {
		room = "none"
	}
	return fmt.Sprintf("shc_%s,deviceId=%s,room=%s %s %d",
		d.Type, tagEscaper.Replace(d.Id), tagEscaper.Replace(room), field, ts.UTC().UnixNano()), true
}
