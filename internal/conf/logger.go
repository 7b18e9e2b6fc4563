package conf

import "github.com/adamidy7424/GeneNFT-Z/internal/logger"

// GetLogger returns the config package logger. It is fetched from the
// global logger each time since the central logger is set up after Load.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
