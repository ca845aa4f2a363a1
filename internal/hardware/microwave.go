package hardware

import (
	"context"
	"fmt"
	"strings"
)

// commandPort is the slice of the serial multiplexer the microwave driver
// needs. *serialmux.SerialMux satisfies it.
type commandPort interface {
	Request(ctx context.Context, command string) (string, error)
}

// SerialMicrowaveSource drives a SCPI-style microwave generator over a
// shared serial line. Every command is acknowledged by the instrument
// with a single response line; anything but "OK" is treated as a device
// error.
type SerialMicrowaveSource struct {
	mux commandPort
}

func NewSerialMicrowaveSource(mux commandPort) *SerialMicrowaveSource {
	return &SerialMicrowaveSource{mux: mux}
}

func (s *SerialMicrowaveSource) exec(ctx context.Context, command string) error {
	reply, err := s.mux.Request(ctx, command)
	if err != nil {
		return fmt.Errorf("microwave command %q: %w", command, err)
	}
	if strings.TrimSpace(reply) != "OK" {
		return fmt.Errorf("microwave command %q rejected: %s", command, reply)
	}
	return nil
}

func (s *SerialMicrowaveSource) SetFrequency(ctx context.Context, hz float64) error {
	if hz <= 0 {
		return fmt.Errorf("frequency must be positive, got %g", hz)
	}
	return s.exec(ctx, fmt.Sprintf("FREQ %.9e", hz))
}

func (s *SerialMicrowaveSource) SetPower(ctx context.Context, dbm float64) error {
	return s.exec(ctx, fmt.Sprintf("POW %.3f", dbm))
}

func (s *SerialMicrowaveSource) On(ctx context.Context) error {
	return s.exec(ctx, "OUTP ON")
}

func (s *SerialMicrowaveSource) Off(ctx context.Context) error {
	return s.exec(ctx, "OUTP OFF")
}
