package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/w1xm/smc_interface/smc"
)

// ListenCommands accepts plain-text control connections, one command
// per line.
func (s *Server) ListenCommands(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		log.Print("shutdown; closing command socket")
		ln.Close()
	}()
	go func() {
		for ctx.Err() == nil {
			conn, err := ln.Accept()
			if err != nil {
				log.Printf("failed to accept: %v", err)
				continue
			}
			go s.handleCommands(conn)
		}
	}()
	return nil
}

func (s *Server) handleCommands(conn net.Conn) {
	defer conn.Close()
	log.Printf("accepted connection from %v", conn.RemoteAddr())
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		log.Printf("%v command: %q args: %#v", conn.RemoteAddr(), cmd, args)
		if cmd == "get_pos" {
			s.statusMu.RLock()
			status := s.status
			s.statusMu.RUnlock()
			fmt.Fprintf(conn, "Angle: %.6f\nRaw: %d\n", status.Angle, status.RawPosition)
			continue
		}
		var err error
		switch cmd {
		case "rotate":
			if len(args) != 2 {
				err = fmt.Errorf("usage: rotate cw|ccw DEGREES")
				break
			}
			dir := smc.CW
			if args[0] == "ccw" {
				dir = smc.CCW
			}
			var degrees float64
			degrees, err = strconv.ParseFloat(args[1], 64)
			if err != nil {
				break
			}
			s.mu.Lock()
			err = s.r.Rotate(dir, degrees)
			s.mu.Unlock()
		case "step":
			s.mu.Lock()
			err = s.r.Step()
			s.mu.Unlock()
		case "home":
			s.mu.Lock()
			err = s.r.Home()
			s.mu.Unlock()
		case "stop":
			// Not serialized on s.mu: a stop must go through even
			// while another connection's command is blocking.
			err = s.r.Stop()
		case "estop":
			err = s.r.EmergencyStop()
		case "reset":
			s.mu.Lock()
			err = s.r.ResetSystem()
			s.mu.Unlock()
		default:
			err = fmt.Errorf("unknown command %q", cmd)
		}
		if err != nil {
			fmt.Fprintf(conn, "ERR %v\n", err)
		} else {
			fmt.Fprintf(conn, "OK\n")
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("reading from %v: %v", conn.RemoteAddr(), err)
	}
}
