// Package utils
package utils

import (
	"log"
	"os"
	"sync"
)

var (
	logger *log.Logger
	once   sync.Once
)

// GetLogger returns the process-wide file logger.
func GetLogger() *log.Logger {
	once.Do(func() {
		file, err := os.OpenFile("spot-trend-trader.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatal(err)
		}
		logger = log.New(file, "Spot Trend Trader: ", log.LstdFlags)
	})
	return logger
}
