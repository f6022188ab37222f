package store

import (
	"testing"
	"time"

	"github.com/roach88/rankwatch/internal/testutil"
)

// createTestStore opens a store over a fresh fixture campaign.
func createTestStore(t *testing.T) (*Store, *testutil.Campaign) {
	t.Helper()
	c := testutil.NewCampaign(t)
	s, err := Open(c.Path())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, c
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
