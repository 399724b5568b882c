package strategy

import (
	"fmt"

	"ta-engine/internal/indicator"
	"ta-engine/internal/model"
	"ta-engine/internal/series"
)

// MACrossSignal goes long when the short MA crosses above the long MA and
// short on the opposite cross.
type MACrossSignal struct {
	Smoothing indicator.MAType
	Short     int
	Long      int
}

// NewMACrossSignal validates the periods and family.
func NewMACrossSignal(smoothing indicator.MAType, short, long int) (*MACrossSignal, error) {
	if short <= 0 || long <= 0 {
		return nil, fmt.Errorf("ma cross periods %d/%d: %w", short, long, series.ErrInvalidPeriod)
	}
	if short >= long {
		return nil, fmt.Errorf("ma cross short period %d must be below long period %d", short, long)
	}
	if !indicator.KnownType(smoothing.String()) {
		return nil, fmt.Errorf("ma cross: %s: %w", smoothing, indicator.ErrUnsupportedMA)
	}
	return &MACrossSignal{Smoothing: smoothing, Short: short, Long: long}, nil
}

func (s *MACrossSignal) ID() string {
	return fmt.Sprintf("MACROSS:%s:%d:%d", s.Smoothing, s.Short, s.Long)
}

func (s *MACrossSignal) Lookback() int { return s.Long }

func (s *MACrossSignal) Entry(o model.OHLCV) (long, short series.Bools) {
	fast, err := indicator.MovingAverage(s.Smoothing, o, s.Short)
	if err != nil {
		return noEntries(o)
	}
	slow, err := indicator.MovingAverage(s.Smoothing, o, s.Long)
	if err != nil {
		return noEntries(o)
	}
	return series.CrossOver(fast, slow), series.CrossUnder(fast, slow)
}

// GroundSignal goes long when the close crosses above its MA and short on
// the opposite cross. It is the baseline every other signal is compared to.
type GroundSignal struct {
	Smoothing indicator.MAType
	Period    int
}

func (s *GroundSignal) ID() string {
	return fmt.Sprintf("GROUND:%s:%d", s.Smoothing, s.Period)
}

func (s *GroundSignal) Lookback() int { return s.Period }

func (s *GroundSignal) Entry(o model.OHLCV) (long, short series.Bools) {
	ma, err := indicator.MovingAverage(s.Smoothing, o, s.Period)
	if err != nil {
		return noEntries(o)
	}
	return series.CrossOver(o.Close, ma), series.CrossUnder(o.Close, ma)
}

// SNATRSignal fades volatility extremes: long when normalized ATR drops
// back under the upper barrier, short when it rises over the lower one.
type SNATRSignal struct {
	AtrPeriod    int
	Smoothing    int
	LowerBarrier float64
	UpperBarrier float64
}

// NewSNATRSignal validates the periods and the barriers, which must satisfy
// 0 <= lower < upper <= 1.
func NewSNATRSignal(atrPeriod, smoothing int, lower, upper float64) (*SNATRSignal, error) {
	if atrPeriod <= 0 || smoothing <= 0 {
		return nil, fmt.Errorf("snatr periods %d/%d: %w", atrPeriod, smoothing, series.ErrInvalidPeriod)
	}
	if lower < 0 || upper > 1 || lower >= upper {
		return nil, fmt.Errorf("snatr barriers %g/%g outside 0 <= lower < upper <= 1", lower, upper)
	}
	return &SNATRSignal{AtrPeriod: atrPeriod, Smoothing: smoothing, LowerBarrier: lower, UpperBarrier: upper}, nil
}

func (s *SNATRSignal) ID() string {
	return fmt.Sprintf("SNATR:%d:%d:%g:%g", s.AtrPeriod, s.Smoothing, s.LowerBarrier, s.UpperBarrier)
}

func (s *SNATRSignal) Lookback() int { return max(s.AtrPeriod, s.Smoothing) }

func (s *SNATRSignal) Entry(o model.OHLCV) (long, short series.Bools) {
	snatr, err := indicator.Snatr(o.High, o.Low, o.Close, s.AtrPeriod, s.Smoothing)
	if err != nil {
		return noEntries(o)
	}
	return series.CrossUnderLine(snatr, s.UpperBarrier), series.CrossOverLine(snatr, s.LowerBarrier)
}

func noEntries(o model.OHLCV) (series.Bools, series.Bools) {
	return series.NewBools(o.Len()), series.NewBools(o.Len())
}
