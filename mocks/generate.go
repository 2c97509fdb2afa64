package mocks

//go:generate mockgen -destination=./mock_broker.go -package=mocks github.com/rxtech-lab/argo-algo/internal/broker Broker
//go:generate mockgen -destination=./mock_strategy.go -package=mocks github.com/rxtech-lab/argo-algo/internal/strategy Strategy
//go:generate mockgen -destination=./mock_history.go -package=mocks github.com/rxtech-lab/argo-algo/internal/marketdata HistoryProvider
