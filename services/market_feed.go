package services

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"optionchain-board/interfaces"

	"github.com/sirupsen/logrus"
)

// strikeQuote is one hardcoded strike of the sample chain
type strikeQuote struct {
	Strike float64
	Open   float64
	LTP    float64
	OI     int64
}

// sampleLadder is ordered from the highest strike down, matching the put listing
var sampleLadder = interfaces.StrikeLadder{22400, 22300, 22200, 22100, 22000, 21900, 21800}

var samplePuts = []strikeQuote{
	{Strike: 22400, Open: 42, LTP: 55, OI: 62000},
	{Strike: 22300, Open: 58, LTP: 71, OI: 81000},
	{Strike: 22200, Open: 76, LTP: 68, OI: 102000},
	{Strike: 22100, Open: 98, LTP: 112, OI: 135000},
	{Strike: 22000, Open: 120, LTP: 98, OI: 155000},
	{Strike: 21900, Open: 145, LTP: 162, OI: 140000},
	{Strike: 21800, Open: 175, LTP: 192, OI: 110000},
}

var sampleCalls = []strikeQuote{
	{Strike: 21800, Open: 185, LTP: 210, OI: 82000},
	{Strike: 21900, Open: 150, LTP: 165, OI: 95000},
	{Strike: 22000, Open: 120, LTP: 145, OI: 120000},
	{Strike: 22100, Open: 95, LTP: 88, OI: 98000},
	{Strike: 22200, Open: 70, LTP: 92, OI: 150000},
	{Strike: 22300, Open: 52, LTP: 46, OI: 76000},
	{Strike: 22400, Open: 38, LTP: 31, OI: 54000},
}

func toSideMap(quotes []strikeQuote) interfaces.SideMap {
	side := make(interfaces.SideMap, len(quotes))
	for _, q := range quotes {
		side[q.Strike] = interfaces.OptionSample{
			OpenPrice:       q.Open,
			LastTradedPrice: q.LTP,
			OpenInterest:    q.OI,
		}
	}
	return side
}

func staticSnapshot(underlying string) *interfaces.ChainSnapshot {
	ladder := make(interfaces.StrikeLadder, len(sampleLadder))
	copy(ladder, sampleLadder)

	return &interfaces.ChainSnapshot{
		Underlying: underlying,
		Ladder:     ladder,
		Puts:       toSideMap(samplePuts),
		Calls:      toSideMap(sampleCalls),
		Timestamp:  time.Now(),
	}
}

// StaticFeed always returns the same seven-strike sample chain
type StaticFeed struct {
	underlying string
}

// NewStaticFeed creates a feed serving the fixed sample chain
func NewStaticFeed(underlying string) *StaticFeed {
	return &StaticFeed{underlying: underlying}
}

// Sample returns a fresh copy of the sample chain
func (f *StaticFeed) Sample(ctx context.Context) (*interfaces.ChainSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return staticSnapshot(f.underlying), nil
}

// SimulatedFeed perturbs the sample chain on every call to stand in for live data
type SimulatedFeed struct {
	underlying string
	volatility float64
	logger     *logrus.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedFeed creates a seeded simulated feed. volatility is the maximum
// relative move applied to LTP and open interest on each sample.
func NewSimulatedFeed(underlying string, seed int64, volatility float64, logger *logrus.Logger) *SimulatedFeed {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	if volatility < 0 {
		volatility = -volatility
	}

	return &SimulatedFeed{
		underlying: underlying,
		volatility: volatility,
		logger:     logger,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Sample returns the sample chain with randomized LTP and open interest
func (f *SimulatedFeed) Sample(ctx context.Context) (*interfaces.ChainSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := staticSnapshot(f.underlying)

	f.mu.Lock()
	defer f.mu.Unlock()

	// iterate the ladder, not the maps, so a given seed always yields the same chain
	for _, strike := range snap.Ladder {
		snap.Puts[strike] = f.jitter(snap.Puts[strike])
		snap.Calls[strike] = f.jitter(snap.Calls[strike])
	}

	f.logger.WithFields(logrus.Fields{
		"underlying": f.underlying,
		"strikes":    len(snap.Ladder),
	}).Debug("Generated simulated chain sample")

	return snap, nil
}

func (f *SimulatedFeed) jitter(s interfaces.OptionSample) interfaces.OptionSample {
	ltp := s.OpenPrice * (1 + f.move())
	s.LastTradedPrice = math.Max(0, math.Round(ltp*100)/100)

	oi := float64(s.OpenInterest) * (1 + f.move())
	s.OpenInterest = int64(math.Max(0, math.Round(oi)))

	return s
}

// move returns a uniform value in [-volatility, volatility)
func (f *SimulatedFeed) move() float64 {
	return (f.rng.Float64()*2 - 1) * f.volatility
}
