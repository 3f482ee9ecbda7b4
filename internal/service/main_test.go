package service

import (
	"os"
	"testing"

	"ragpro-go/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init("error", "json", "")
	os.Exit(m.Run())
}
