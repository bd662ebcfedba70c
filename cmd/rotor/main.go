package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/w1xm/smc_interface/internal/transport"
	"github.com/w1xm/smc_interface/smc"
)

var (
	serialPort = flag.String("serial", "/dev/ttyUSB0", "serial port name")
	baud       = flag.Int("baud", 9600, "serial baud rate")
	listen     = flag.String("listen", "127.0.0.1:8502", "http listen address")
	cmdListen  = flag.String("cmd_listen", "", "if set, plain-text command listen address")
	busAddress = flag.Int("address", 0, "controller bus address")
	sim        = flag.Bool("sim", false, "use a simulated controller")
)

func main() {
	flag.Parse()
	ctx := context.Background()
	s := NewServer()
	cfg := smc.Config{Address: *busAddress}
	var r *smc.Rotor
	if *sim {
		simulator, conn := smc.NewSimulator()
		go func() {
			if err := simulator.Run(ctx); err != nil {
				log.Printf("simulator: %v", err)
			}
		}()
		r = smc.New(transport.NewIOConn(conn), cfg, s.statusCallback)
	} else {
		var err error
		r, err = smc.Connect(ctx, *serialPort, *baud, cfg, s.statusCallback)
		if err != nil {
			log.Fatal(err)
		}
	}
	s.r = r
	if *cmdListen != "" {
		if err := s.ListenCommands(ctx, *cmdListen); err != nil {
			log.Fatal(err)
		}
	}
	m := mux.NewRouter()
	m.HandleFunc("/api/status", s.StatusHandler)
	m.Handle("/api/ws", http.HandlerFunc(s.StatusSocketHandler))
	srv := &http.Server{
		Handler:      m,
		Addr:         *listen,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}
