package broker

import (
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"go.uber.org/zap"
)

// BinanceWsKline is the kline payload of a websocket event.
type BinanceWsKline struct {
	StartTime int64
	Open      string
	High      string
	Low       string
	Close     string
	Volume    string
	IsFinal   bool
}

// BinanceWsKlineEvent is a kline websocket event.
type BinanceWsKlineEvent struct {
	Symbol string
	Kline  BinanceWsKline
}

// WsKlineHandler handles kline events.
type WsKlineHandler func(event *BinanceWsKlineEvent)

// WsErrorHandler handles websocket errors.
type WsErrorHandler func(err error)

// BinanceWebSocketService abstracts the kline websocket for testing.
type BinanceWebSocketService interface {
	WsKlineServe(symbol, interval string, handler WsKlineHandler, errHandler WsErrorHandler) (doneC, stopC chan struct{}, err error)
}

type realBinanceWebSocketService struct{}

func (r *realBinanceWebSocketService) WsKlineServe(
	symbol, interval string,
	handler WsKlineHandler,
	errHandler WsErrorHandler,
) (chan struct{}, chan struct{}, error) {
	return binance.WsKlineServe(symbol, interval, func(event *binance.WsKlineEvent) {
		handler(&BinanceWsKlineEvent{
			Symbol: event.Symbol,
			Kline: BinanceWsKline{
				StartTime: event.Kline.StartTime,
				Open:      event.Kline.Open,
				High:      event.Kline.High,
				Low:       event.Kline.Low,
				Close:     event.Kline.Close,
				Volume:    event.Kline.Volume,
				IsFinal:   event.Kline.IsFinal,
			},
		})
	}, binance.ErrHandler(errHandler))
}

var validBinanceIntervals = []string{
	"1s", "1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "8h", "12h", "1d", "3d", "1w", "1M",
}

func isValidBinanceInterval(interval string) bool {
	return slices.Contains(validBinanceIntervals, interval)
}

// streamKlines merges one kline websocket per symbol into a tick stream. Every
// kline update is a tick; only the final update carries the volume so that
// resampling does not double count it.
func (b *Binance) streamKlines(ctx context.Context, symbols []string, interval string) iter.Seq2[types.Tick, error] {
	return func(yield func(types.Tick, error) bool) {
		if !isValidBinanceInterval(interval) {
			yield(types.Tick{}, errors.Newf(errors.ErrCodeInvalidParameter, "invalid interval: %s", interval))

			return
		}

		if len(symbols) == 0 {
			yield(types.Tick{}, errors.New(errors.ErrCodeMissingParameter, "no symbols provided"))

			return
		}

		events := make(chan *BinanceWsKlineEvent, 256)
		failures := make(chan error, len(symbols))
		stops := make([]chan struct{}, 0, len(symbols))

		var stopOnce sync.Once

		stopAll := func() {
			stopOnce.Do(func() {
				for _, stopC := range stops {
					close(stopC)
				}
			})
		}
		defer stopAll()

		for _, symbol := range symbols {
			_, stopC, err := b.ws.WsKlineServe(symbol, interval,
				func(event *BinanceWsKlineEvent) {
					select {
					case events <- event:
					case <-ctx.Done():
					}
				},
				func(err error) {
					select {
					case failures <- err:
					default:
					}
				},
			)
			if err != nil {
				yield(types.Tick{}, errors.Wrapf(errors.ErrCodeStreamFailed, err, "failed to start websocket for %s", symbol))

				return
			}

			stops = append(stops, stopC)
		}

		b.logger.Info("Kline stream started", zap.Strings("symbols", symbols), zap.String("interval", interval))

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-failures:
				yield(types.Tick{}, errors.Wrap(errors.ErrCodeStreamFailed, "websocket error", err))

				return
			case event := <-events:
				if !yield(klineTick(event), nil) {
					return
				}
			}
		}
	}
}

func klineTick(event *BinanceWsKlineEvent) types.Tick {
	volume := 0.0
	if event.Kline.IsFinal {
		volume = parseFloat(event.Kline.Volume)
	}

	return types.Tick{
		Symbol:    event.Symbol,
		Timestamp: time.UnixMilli(event.Kline.StartTime).UTC(),
		Open:      parseFloat(event.Kline.Open),
		High:      parseFloat(event.Kline.High),
		Low:       parseFloat(event.Kline.Low),
		Close:     parseFloat(event.Kline.Close),
		Volume:    volume,
	}
}
