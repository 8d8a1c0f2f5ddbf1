package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/ansh-info/StockPulse/internal/domain/models"
	"github.com/ansh-info/StockPulse/internal/domain/repository"
	applogger "github.com/ansh-info/StockPulse/pkg/logger"
	"github.com/ansh-info/StockPulse/pkg/util"
)

// tickMessage is the queue wire format. Producers are sloppy about numeric
// types, so OHLCV fields accept both JSON numbers and quoted numbers.
type tickMessage struct {
	Symbol    string    `json:"symbol"`
	Timestamp string    `json:"timestamp"`
	Open      flexFloat `json:"open"`
	High      flexFloat `json:"high"`
	Low       flexFloat `json:"low"`
	Close     flexFloat `json:"close"`
	Volume    flexInt   `json:"volume"`
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return errors.New("empty numeric field")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return errors.New("empty numeric field")
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt(v)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexInt(int64(v))
	return nil
}

// TicksHandler consumes tick messages from the queue and feeds the batching
// coordinator. Its return value is the ack contract: nil commits the offset,
// including for malformed or rejected messages that will never succeed; a
// non-nil error leaves the offset uncommitted so the message is redelivered.
type TicksHandler struct {
	topic   string
	coord   *Coordinator
	metrics repository.Metrics
	log     *applogger.Logger
}

func NewTicksHandler(topic string, coord *Coordinator, metrics repository.Metrics, log *applogger.Logger) *TicksHandler {
	return &TicksHandler{
		topic:   topic,
		coord:   coord,
		metrics: metrics,
		log:     log.With(applogger.String("component", "ticks_handler")),
	}
}

func (h *TicksHandler) Topic() string { return h.topic }

func (h *TicksHandler) Handle(ctx context.Context, data []byte) error {
	var msg tickMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.log.Warn("dropping malformed message", applogger.Error(err))
		h.metrics.RecordError("decode")
		return nil
	}

	ts, ok := util.ParseTime(msg.Timestamp)
	if !ok {
		h.log.Warn("dropping message with bad timestamp",
			applogger.String("symbol", msg.Symbol),
			applogger.String("timestamp", msg.Timestamp))
		h.metrics.RecordError("decode")
		return nil
	}

	tick := models.Tick{
		Symbol:    msg.Symbol,
		Timestamp: ts,
		Open:      float64(msg.Open),
		High:      float64(msg.High),
		Low:       float64(msg.Low),
		Close:     float64(msg.Close),
		Volume:    int64(msg.Volume),
	}

	if err := h.coord.Accept(msg.Symbol, tick); err != nil {
		switch {
		case errors.Is(err, models.ErrUnknownSymbol):
			h.log.Warn("dropping tick for unconfigured symbol",
				applogger.String("symbol", msg.Symbol))
			h.metrics.RecordError("unknown_symbol")
		case models.IsValidation(err):
			h.log.Warn("dropping invalid tick",
				applogger.String("symbol", msg.Symbol),
				applogger.Error(err))
			h.metrics.RecordError("validation")
		default:
			return err
		}
		return nil
	}

	if h.coord.ShouldFlush(msg.Symbol) {
		if err := h.coord.Flush(ctx, msg.Symbol); err != nil {
			h.log.Error("flush failed, leaving offsets uncommitted",
				applogger.String("symbol", msg.Symbol),
				applogger.Error(err))
			return err
		}
	}
	return nil
}
