package indicator

// SMA returns the simple moving average of values over period.
func SMA(values []float64, period int) ([]float64, error) {
	if err := checkPeriod(period); err != nil {
		return nil, err
	}

	out := nanSeries(len(values))
	sum := 0.0

	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}

		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}

	return out, nil
}

// EMA returns the exponential moving average of values over period, seeded
// with the SMA of the first period values.
func EMA(values []float64, period int) ([]float64, error) {
	if err := checkPeriod(period); err != nil {
		return nil, err
	}

	out := nanSeries(len(values))
	if len(values) < period {
		return out, nil
	}

	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}

	multiplier := 2.0 / float64(period+1)
	out[period-1] = seed / float64(period)

	for i := period; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*multiplier + out[i-1]
	}

	return out, nil
}
