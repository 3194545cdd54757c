package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRunReport(t *testing.T) {
	r := NewRunReport("check", "in.shp")
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "check", r.Command)
	assert.False(t, r.Timestamp.IsZero())
	assert.NotEqual(t, r.ID, NewRunReport("check", "in.shp").ID)

	var l Ledger = NopLedger{}
	assert.NoError(t, l.Record(context.Background(), r))
}
