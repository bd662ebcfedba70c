package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/w1xm/smc_interface/rotator"
	"github.com/w1xm/smc_interface/smc"
)

type Server struct {
	mu sync.Mutex
	r  *smc.Rotor

	statusMu   sync.RWMutex
	statusCond *sync.Cond
	status     smc.Status
}

func NewServer() *Server {
	s := &Server{}
	s.statusCond = sync.NewCond(s.statusMu.RLocker())
	return s
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	s.statusMu.RLock()
	status := s.status
	s.statusMu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(status)
	if err != nil {
		log.Print(err)
		return
	}
	w.Write(data)
}

type Command struct {
	Command   string  `json:"command"`
	Direction string  `json:"direction"`
	Degrees   float64 `json:"degrees"`
	Value     float64 `json:"value"`
}

func (s *Server) StatusSocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, cancel := context.WithCancel(ctx)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		log.Println(err)
		return
	}

	// Read and process incoming messages
	go func() {
		for {
			var msg Command
			if err := conn.ReadJSON(&msg); err != nil {
				cancel()
				conn.Close()
				break
			}
			if err := s.dispatch(ctx, msg); err != nil {
				log.Printf("command %q: %v", msg.Command, err)
			}
		}
	}()
	go func() {
		<-ctx.Done()
		s.statusCond.Broadcast()
	}()

	send := func(status smc.Status) {
		data, err := json.Marshal(status)
		if err != nil {
			log.Print(err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Print(err)
			return
		}
	}

	s.statusMu.RLock()
	status := s.status
	s.statusMu.RUnlock()
	send(status)

	for {
		s.statusMu.RLock()
		s.statusCond.Wait()
		status := s.status
		s.statusMu.RUnlock()
		if ctx.Err() != nil {
			return
		}
		send(status)
	}
}

func (s *Server) dispatch(ctx context.Context, msg Command) error {
	// Stops bypass the driver's busy guard; don't let a blocked
	// command hold them up either.
	switch msg.Command {
	case "stop":
		return s.r.Stop()
	case "estop":
		return s.r.EmergencyStop()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := smc.CW
	if msg.Direction == "ccw" {
		dir = smc.CCW
	}
	switch msg.Command {
	case "rotate":
		return s.r.Rotate(dir, msg.Degrees)
	case "step":
		return s.r.Step()
	case "step_wait":
		// Tie the poll to the connection so a dropped client
		// cancels the wait.
		return s.r.StepWaitUntilReached(ctx)
	case "set_direction":
		return s.r.SetDirection(dir)
	case "set_velocity":
		return s.r.SetVelocity(msg.Value)
	case "set_acceleration":
		return s.r.SetAcceleration(msg.Value)
	case "set_degrees_per_step":
		return s.r.SetDegreesPerStep(msg.Value)
	case "set_gearbox_ratio":
		return s.r.SetGearboxRatio(msg.Value)
	case "enable_limits":
		return s.r.EnableSafetyLimits()
	case "disable_limits":
		return s.r.DisableSafetyLimits()
	case "home":
		return s.r.Home()
	case "reset":
		return s.r.ResetSystem()
	case "zero":
		return s.r.ResetPositionRegister()
	}
	return fmt.Errorf("unknown command %q", msg.Command)
}

func (s *Server) statusCallback(status rotator.Status) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status = status.(smc.Status)
	s.statusCond.Broadcast()
}
