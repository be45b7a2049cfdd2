package simulator

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Spool persists readings that could not be published as JSON lines so no
// sample is lost while the broker is unreachable.
type Spool struct {
	mu   sync.Mutex
	path string
}

// NewSpool returns a spool backed by the given file path.
func NewSpool(path string) (*Spool, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("spool path is required")
	}
	return &Spool{path: path}, nil
}

// Append writes one reading to the end of the spool file, creating it when
// missing.
func (s *Spool) Append(reading Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("encoding spooled reading: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening spool file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing spool file: %w", err)
	}
	return nil
}

// Len reports how many readings are currently spooled.
func (s *Spool) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	readings, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(readings), nil
}

// Drain replays spooled readings oldest first through flush. Readings flushed
// successfully are removed; the first flush failure stops the drain and the
// remainder stays spooled for the next attempt. Returns how many readings
// were flushed.
func (s *Spool) Drain(flush func(Reading) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	readings, err := s.load()
	if err != nil {
		return 0, err
	}
	if len(readings) == 0 {
		return 0, nil
	}

	flushed := 0
	for _, reading := range readings {
		if err := flush(reading); err != nil {
			if rewriteErr := s.rewrite(readings[flushed:]); rewriteErr != nil {
				return flushed, fmt.Errorf("rewriting spool after flush failure: %w", rewriteErr)
			}
			return flushed, err
		}
		flushed++
	}

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return flushed, fmt.Errorf("removing drained spool: %w", err)
	}
	return flushed, nil
}

func (s *Spool) load() ([]Reading, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening spool file: %w", err)
	}
	defer file.Close()

	var readings []Reading
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var reading Reading
		if err := json.Unmarshal([]byte(line), &reading); err != nil {
			return nil, fmt.Errorf("decoding spooled reading: %w", err)
		}
		readings = append(readings, reading)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading spool file: %w", err)
	}
	return readings, nil
}

func (s *Spool) rewrite(readings []Reading) error {
	if len(readings) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}

	var buf strings.Builder
	for _, reading := range readings {
		line, err := json.Marshal(reading)
		if err != nil {
			return fmt.Errorf("encoding spooled reading: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return os.WriteFile(s.path, []byte(buf.String()), 0o644)
}
