package main

import (
	"os"
	"testing"

	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}
