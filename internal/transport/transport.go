package transport

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tarm/serial"
)

// Conn is a line-oriented connection to a motor controller.
type Conn interface {
	io.Writer
	// ReadLine blocks until a full line arrives and returns it without
	// its terminator.
	ReadLine() (string, error)
	// Flush discards any input received but not yet read.
	Flush() error
	Close() error
}

// Serial connects to a controller on a local serial port.
type Serial struct {
	// Port is the serial port name.
	Port string
	// Baud defaults to 9600.
	Baud int
	// ReadTimeout bounds each read; defaults to 1 second.
	ReadTimeout time.Duration

	s *serial.Port
	r *bufio.Reader
}

func (c *Serial) Connect() error {
	if c.Baud == 0 {
		c.Baud = 9600
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 1 * time.Second
	}
	s, err := serial.OpenPort(&serial.Config{Name: c.Port, Baud: c.Baud, ReadTimeout: c.ReadTimeout})
	if err != nil {
		return fmt.Errorf("opening %q: %w", c.Port, err)
	}
	c.s = s
	c.r = bufio.NewReader(s)
	return nil
}

func (c *Serial) Write(p []byte) (int, error) {
	return c.s.Write(p)
}

func (c *Serial) ReadLine() (string, error) {
	return readLine(c.r)
}

func (c *Serial) Flush() error {
	if n := c.r.Buffered(); n > 0 {
		if _, err := c.r.Discard(n); err != nil {
			return err
		}
	}
	return c.s.Flush()
}

func (c *Serial) Close() error {
	return c.s.Close()
}

// IOConn adapts a byte stream (e.g. one end of a net.Pipe) to Conn.
type IOConn struct {
	rwc io.ReadWriteCloser
	r   *bufio.Reader
}

func NewIOConn(rwc io.ReadWriteCloser) *IOConn {
	return &IOConn{rwc: rwc, r: bufio.NewReader(rwc)}
}

func (c *IOConn) Write(p []byte) (int, error) {
	return c.rwc.Write(p)
}

func (c *IOConn) ReadLine() (string, error) {
	return readLine(c.r)
}

func (c *IOConn) Flush() error {
	// A pipe has no device buffer; dropping what bufio holds is enough.
	if n := c.r.Buffered(); n > 0 {
		if _, err := c.r.Discard(n); err != nil {
			return err
		}
	}
	return nil
}

func (c *IOConn) Close() error {
	return c.rwc.Close()
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
