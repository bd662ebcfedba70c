package smc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Simulator speaks the controller side of the wire protocol over an
// in-memory pipe, integrating commanded motion in discrete time so
// position polls converge the way real hardware does.
type Simulator struct {
	conn io.ReadWriteCloser

	mu             sync.Mutex
	dir            float64
	stepCounts     int
	velocity       int
	accel          int
	limitsDisabled bool
	pos            float64
	target         float64
	// reply is latched by PR and emitted by LF.
	reply string
}

const (
	// Encoder counts traveled per simulated second.
	simCountsPerSecond = 20000
	// Discrete simulation step size.
	simStepSize = 5 * time.Millisecond
)

// NewSimulator returns a simulator and the connection a driver should
// use to talk to it.
func NewSimulator() (*Simulator, net.Conn) {
	a, b := net.Pipe()
	return &Simulator{conn: a, dir: 1}, b
}

func (s *Simulator) Run(ctx context.Context) error {
	t := time.NewTicker(simStepSize)
	defer t.Stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Wait for context to be canceled, then close the pipe.
		<-ctx.Done()
		return s.conn.Close()
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
			s.step()
		}
	})
	g.Go(s.reader)
	return g.Wait()
}

func (s *Simulator) reader() error {
	scanner := bufio.NewScanner(s.conn)
	for scanner.Scan() {
		input := scanner.Text()
		if input == "" {
			continue
		}
		if err := s.parseInput(input); err != nil {
			log.Printf("sim: parsing %q: %v", input, err)
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading pipe: %w", err)
	}
	return nil
}

func (s *Simulator) parseInput(input string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Addressed commands carry a numeric bus-address prefix.
	cmd := strings.TrimLeft(input, "0123456789")
	switch cmd {
	case "H+":
		s.dir = 1
	case "H-":
		s.dir = -1
	case "G":
		s.target = s.pos + s.dir*float64(s.stepCounts)
	case "GH-2":
		s.target = 0
	case "MN":
		// Mode select preceding a stop command.
	case "K", "S":
		s.target = s.pos
	case "LD3":
		s.limitsDisabled = true
	case "LD0":
		s.limitsDisabled = false
	case "Z":
		s.dir = 1
		s.stepCounts = 0
		s.velocity = 0
		s.accel = 0
		s.limitsDisabled = false
		s.pos = 0
		s.target = 0
		s.reply = ""
	case "PZ":
		s.pos = 0
		s.target = 0
	case "PR":
		s.reply = fmt.Sprintf("#%d", int(math.Round(s.pos)))
	case "LF":
		return s.send(s.reply)
	default:
		return s.parseSetup(cmd)
	}
	return nil
}

func (s *Simulator) parseSetup(cmd string) error {
	if len(cmd) < 2 {
		return fmt.Errorf("unrecognized command %q", cmd)
	}
	v, err := strconv.Atoi(cmd[1:])
	if err != nil {
		return fmt.Errorf("unrecognized command %q", cmd)
	}
	switch cmd[0] {
	case 'D':
		s.stepCounts = v
	case 'V':
		s.velocity = v
	case 'A':
		s.accel = v
	default:
		return fmt.Errorf("unrecognized command %q", cmd)
	}
	return nil
}

func (s *Simulator) send(line string) error {
	_, err := fmt.Fprintf(s.conn, "%s%s", line, terminator)
	return err
}

func (s *Simulator) step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	delta := s.target - s.pos
	max := simCountsPerSecond * simStepSize.Seconds()
	if math.Abs(delta) <= max {
		s.pos = s.target
		return
	}
	if delta < 0 {
		max = -max
	}
	s.pos += max
}

// Position returns the simulated encoder count.
func (s *Simulator) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// LimitsDisabled reports whether the last limit command disabled the
// safety limits.
func (s *Simulator) LimitsDisabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limitsDisabled
}
