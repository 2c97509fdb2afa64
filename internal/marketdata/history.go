package marketdata

import (
	"context"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
)

// HistoryProvider downloads historical bars used to warm up strategy buffers.
type HistoryProvider interface {
	Bars(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) ([]types.Bar, error)
}

// ProviderType names a history provider.
type ProviderType string

const (
	ProviderBinance ProviderType = "binance"
	ProviderPolygon ProviderType = "polygon"
)

// NewHistoryProvider builds the named provider. apiKey is only used by polygon.
func NewHistoryProvider(providerType ProviderType, apiKey string) (HistoryProvider, error) {
	switch providerType {
	case ProviderBinance:
		return NewBinanceHistory(binance.NewClient("", "")), nil
	case ProviderPolygon:
		if apiKey == "" {
			return nil, errors.New(errors.ErrCodeMissingParameter, "polygon api key is required")
		}

		return NewPolygonHistory(polygon.New(apiKey)), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported history provider: %s", providerType)
	}
}

// binanceKlinesPageSize is the number of klines requested per page.
const binanceKlinesPageSize = 500

// KlinesService abstracts the go-binance klines service for testing.
type KlinesService interface {
	Symbol(symbol string) KlinesService
	Interval(interval string) KlinesService
	StartTime(startTime int64) KlinesService
	EndTime(endTime int64) KlinesService
	Limit(limit int) KlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// KlinesClient creates klines services.
type KlinesClient interface {
	NewKlinesService() KlinesService
}

type realKlinesClient struct {
	client *binance.Client
}

func (r *realKlinesClient) NewKlinesService() KlinesService {
	return &realKlinesService{service: r.client.NewKlinesService()}
}

type realKlinesService struct {
	service *binance.KlinesService
}

func (s *realKlinesService) Symbol(symbol string) KlinesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realKlinesService) Interval(interval string) KlinesService {
	s.service = s.service.Interval(interval)

	return s
}

func (s *realKlinesService) StartTime(startTime int64) KlinesService {
	s.service = s.service.StartTime(startTime)

	return s
}

func (s *realKlinesService) EndTime(endTime int64) KlinesService {
	s.service = s.service.EndTime(endTime)

	return s
}

func (s *realKlinesService) Limit(limit int) KlinesService {
	s.service = s.service.Limit(limit)

	return s
}

func (s *realKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.service.Do(ctx)
}

// BinanceHistory pages through Binance klines.
type BinanceHistory struct {
	client KlinesClient
}

// NewBinanceHistory wraps a go-binance client.
func NewBinanceHistory(client *binance.Client) *BinanceHistory {
	return &BinanceHistory{client: &realKlinesClient{client: client}}
}

// NewBinanceHistoryWithClient uses a custom klines client.
func NewBinanceHistoryWithClient(client KlinesClient) *BinanceHistory {
	return &BinanceHistory{client: client}
}

// Bars downloads [start, end] klines for symbol.
func (h *BinanceHistory) Bars(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) ([]types.Bar, error) {
	binanceInterval, err := BinanceInterval(interval)
	if err != nil {
		return nil, err
	}

	var bars []types.Bar

	cursor := start.UnixMilli()
	endMillis := end.UnixMilli()

	for cursor < endMillis {
		klines, err := h.client.NewKlinesService().
			Symbol(symbol).
			Interval(binanceInterval).
			StartTime(cursor).
			EndTime(endMillis).
			Limit(binanceKlinesPageSize).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to fetch klines for %s", symbol)
		}

		for _, k := range klines {
			bar, err := klineToBar(symbol, k)
			if err != nil {
				return nil, err
			}

			bars = append(bars, bar)
		}

		if len(klines) < binanceKlinesPageSize {
			break
		}

		cursor = klines[len(klines)-1].CloseTime + 1
	}

	return bars, nil
}

func klineToBar(symbol string, k *binance.Kline) (types.Bar, error) {
	values := make([]float64, 5)

	for i, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.Bar{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "bad kline value %q", raw)
		}

		values[i] = v
	}

	return types.Bar{
		Symbol:    symbol,
		Timestamp: time.UnixMilli(k.OpenTime),
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}

// BinanceInterval maps a bar width onto a Binance kline interval.
func BinanceInterval(interval time.Duration) (string, error) {
	switch interval {
	case time.Minute:
		return "1m", nil
	case 3 * time.Minute:
		return "3m", nil
	case 5 * time.Minute:
		return "5m", nil
	case 15 * time.Minute:
		return "15m", nil
	case 30 * time.Minute:
		return "30m", nil
	case time.Hour:
		return "1h", nil
	case 4 * time.Hour:
		return "4h", nil
	case 24 * time.Hour:
		return "1d", nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidPeriod, "unsupported binance interval: %s", interval)
	}
}

// PolygonHistory downloads aggregates from Polygon.
type PolygonHistory struct {
	client *polygon.Client
}

// NewPolygonHistory wraps a polygon rest client.
func NewPolygonHistory(client *polygon.Client) *PolygonHistory {
	return &PolygonHistory{client: client}
}

// Bars downloads [start, end] aggregates for symbol.
func (h *PolygonHistory) Bars(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) ([]types.Bar, error) {
	multiplier, timespan, err := PolygonTimespan(interval)
	if err != nil {
		return nil, err
	}

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithLimit(50000)

	iter := h.client.ListAggs(ctx, params)

	var bars []types.Bar

	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, types.Bar{
			Symbol:    symbol,
			Timestamp: time.Time(agg.Timestamp),
			Open:      agg.Open,
			High:      agg.High,
			Low:       agg.Low,
			Close:     agg.Close,
			Volume:    agg.Volume,
		})
	}

	if iter.Err() != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, iter.Err(), "failed to list aggregates for %s", symbol)
	}

	return bars, nil
}

// PolygonTimespan maps a bar width onto a polygon multiplier and timespan.
func PolygonTimespan(interval time.Duration) (int, models.Timespan, error) {
	switch {
	case interval <= 0:
		return 0, "", errors.Newf(errors.ErrCodeInvalidPeriod, "invalid interval: %s", interval)
	case interval%(24*time.Hour) == 0:
		return int(interval / (24 * time.Hour)), models.Day, nil
	case interval%time.Hour == 0:
		return int(interval / time.Hour), models.Hour, nil
	case interval%time.Minute == 0:
		return int(interval / time.Minute), models.Minute, nil
	default:
		return 0, "", errors.Newf(errors.ErrCodeInvalidPeriod, "unsupported polygon interval: %s", interval)
	}
}
