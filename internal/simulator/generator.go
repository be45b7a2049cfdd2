package simulator

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// EventTypeTempReading is the event type emitted for every simulated sample.
const EventTypeTempReading = "TEMP_READING"

const (
	baseTempC     = 22.0
	maxVariationC = 5.0
	minTempC      = 10.0
	maxTempC      = 40.0

	minCycleInterval = 800 * time.Millisecond
	maxCycleInterval = 2500 * time.Millisecond
)

// Reading is the telemetry payload published for one simulated sample.
type Reading struct {
	MessageID    string  `json:"message_id"`
	DeviceID     string  `json:"device_id"`
	Mode         string  `json:"mode"`
	TempC        float64 `json:"temp_c"`
	TempF        float64 `json:"temp_f"`
	TimestampUTC string  `json:"timestamp_utc"`
	Sequence     int64   `json:"sequence"`
	EventType    string  `json:"event_type"`
}

// Generator produces a random-walk temperature stream without any hardware
// attached. Each step moves up to ±5 °C from the previous sample and the walk
// is clamped to [10 °C, 40 °C]. Not safe for concurrent use.
type Generator struct {
	rng      *rand.Rand
	deviceID string
	current  float64
	sequence int64
	now      func() time.Time
}

// NewGenerator returns a generator for the given device. A zero seed picks a
// time-based one.
func NewGenerator(deviceID string, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		rng:      rand.New(rand.NewSource(seed)),
		deviceID: deviceID,
		current:  baseTempC,
		now:      time.Now,
	}
}

// Next advances the walk one step and returns the reading describing it.
func (g *Generator) Next() Reading {
	delta := (g.rng.Float64()*2 - 1) * maxVariationC
	g.current += delta
	if g.current < minTempC {
		g.current = minTempC
	}
	if g.current > maxTempC {
		g.current = maxTempC
	}
	g.sequence++

	tempC := roundTo(g.current, 3)
	return Reading{
		MessageID:    uuid.NewString(),
		DeviceID:     g.deviceID,
		Mode:         "sim",
		TempC:        tempC,
		TempF:        roundTo(tempC*9/5+32, 3),
		TimestampUTC: g.now().UTC().Format(time.RFC3339Nano),
		Sequence:     g.sequence,
		EventType:    EventTypeTempReading,
	}
}

// Interval returns a random pause before the next sample, between 0.8 s and
// 2.5 s.
func (g *Generator) Interval() time.Duration {
	span := int64(maxCycleInterval - minCycleInterval)
	return minCycleInterval + time.Duration(g.rng.Int63n(span))
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow10(places)
	return math.Round(v*factor) / factor
}
