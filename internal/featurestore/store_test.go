package featurestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type FeatureStoreTestSuite struct {
	suite.Suite
	dir string
}

func TestFeatureStoreSuite(t *testing.T) {
	suite.Run(t, new(FeatureStoreTestSuite))
}

func (suite *FeatureStoreTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
}

func (suite *FeatureStoreTestSuite) record(id string, symbol string, offset time.Duration) Record {
	return Record{
		ID:          id,
		Strategy:    "cpr",
		Symbol:      symbol,
		Underlying:  "NIFTY 50",
		BarTime:     time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC).Add(offset),
		Bullish:     true,
		Level:       "tc",
		EntryPrice:  24810,
		Target:      24900,
		StopLoss:    24790,
		Probability: 0.7,
		Accepted:    true,
		Features:    []float64{24810, 24800.5, 9.5, -1},
		Label:       optional.None[int](),
	}
}

func (suite *FeatureStoreTestSuite) TestAppendExportsParquet() {
	path := filepath.Join(suite.dir, "features", "cpr.parquet")
	store := NewStore(path, nil)
	suite.Require().NoError(store.Initialize())
	defer store.Close()

	suite.Require().NoError(store.Append(context.Background(), suite.record("a", "NIFTY25AUG24800CE", 0)))

	_, err := os.Stat(path)
	suite.Require().NoError(err)

	count, err := store.Count()
	suite.Require().NoError(err)
	suite.Equal(1, count)
}

func (suite *FeatureStoreTestSuite) TestReloadFromExport() {
	path := filepath.Join(suite.dir, "cpr.parquet")
	first := NewStore(path, nil)
	suite.Require().NoError(first.Initialize())
	suite.Require().NoError(first.Append(context.Background(), suite.record("a", "NIFTY25AUG24800CE", 0)))
	suite.Require().NoError(first.Close())

	second := NewStore(path, nil)
	suite.Require().NoError(second.Initialize())
	defer second.Close()

	records, err := second.All(context.Background())
	suite.Require().NoError(err)
	suite.Require().Len(records, 1)
	suite.Equal([]float64{24810, 24800.5, 9.5, -1}, records[0].Features)
	suite.True(records[0].Label.IsNone())
}

func (suite *FeatureStoreTestSuite) TestLabelMostRecentUnlabeled() {
	store := NewStore("", nil)
	suite.Require().NoError(store.Initialize())
	defer store.Close()

	ctx := context.Background()
	suite.Require().NoError(store.Append(ctx, suite.record("old", "NIFTY25AUG24800CE", 0)))
	suite.Require().NoError(store.Append(ctx, suite.record("new", "NIFTY25AUG24800CE", 5*time.Minute)))

	labeled, err := store.Label(ctx, "NIFTY25AUG24800CE", 1)
	suite.Require().NoError(err)
	suite.True(labeled)

	records, err := store.All(ctx)
	suite.Require().NoError(err)
	suite.Require().Len(records, 2)
	suite.True(records[0].Label.IsNone())
	suite.Equal(1, records[1].Label.Unwrap())

	labeled, err = store.Label(ctx, "BANKNIFTY25AUG50000PE", 0)
	suite.Require().NoError(err)
	suite.False(labeled)
}

func (suite *FeatureStoreTestSuite) TestNotInitialized() {
	store := NewStore("", nil)
	suite.Error(store.Append(context.Background(), suite.record("a", "X", 0)))
}
