package rpc

import (
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
)

type ResultMetrics struct {
	Metrics map[string]string `json:"metrics"`
}

// JSONMetrics returns every registered metric, or the one of label.
func JSONMetrics(ctx *rpctypes.Context, label string) (*ResultMetrics, error) {
	return &ResultMetrics{Metrics: env.MetricSet.JSONStrings(label)}, nil
}
