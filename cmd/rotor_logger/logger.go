package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/w1xm/smc_interface/smc"
)

func main() {
	server := os.Getenv("INFLUX_SERVER")
	if server == "" {
		server = "http://localhost:9999"
	}
	client := influxdb2.NewClient(server, os.Getenv("INFLUX_TOKEN"))
	defer client.Close()
	writeApi := client.WriteApi("w1xm", "rotor.raw")
	defer writeApi.Close()
	go func() {
		for err := range writeApi.Errors() {
			log.Printf("write error: %v", err)
		}
	}()
	for {
		if err := logData(writeApi); err != nil {
			log.Print(err)
		}
		time.Sleep(1 * time.Second)
	}
}

// statusTags identify the series: which unit on the bus, and which way
// it was commanded to turn.
func statusTags(status smc.Status) map[string]string {
	return map[string]string{
		"address":   strconv.Itoa(status.Address),
		"direction": status.Direction.String(),
	}
}

func statusFields(status smc.Status) map[string]interface{} {
	return map[string]interface{}{
		"angle":            status.Angle,
		"raw_position":     status.RawPosition,
		"degrees_per_step": status.DegreesPerStep,
		"velocity":         status.Velocity,
		"acceleration":     status.Acceleration,
		"gearbox_ratio":    status.GearboxRatio,
		"safety_limits":    status.SafetyLimits,
		"connected":        status.Connected,
		"moving":           status.Moving,
	}
}

func logData(writeApi api.WriteApi) error {
	url := os.Getenv("ROTOR_ADDRESS")
	if url == "" {
		url = "ws://localhost:8502/api/ws"
	}
	defer writeApi.Flush()
	var dialer websocket.Dialer
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		// The server pushes a full driver snapshot on every state
		// change.
		var status smc.Status
		if err := conn.ReadJSON(&status); err != nil {
			return err
		}
		p := influxdb2.NewPoint("rotor.status", statusTags(status), statusFields(status), time.Now())
		writeApi.WritePoint(p)
	}
}
