package core

import "github.com/sirupsen/logrus"

const (
	// DefaultSampleRate is the codec rate the engines' tuning tables are built for.
	DefaultSampleRate = 44100.0
	// DefaultBlockSize is the number of samples per real-time callback.
	DefaultBlockSize = 128
)

// ProcessorConfig defines common DSP processing settings.
type ProcessorConfig struct {
	SampleRate float64
	BlockSize  int
	Logger     *logrus.Entry
}

// ProcessorOption mutates a ProcessorConfig.
type ProcessorOption func(*ProcessorConfig)

// DefaultProcessorConfig returns the embedded-style defaults: 44.1 kHz, 128-sample blocks.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		SampleRate: DefaultSampleRate,
		BlockSize:  DefaultBlockSize,
	}
}

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the processing block size.
func WithBlockSize(blockSize int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if blockSize > 0 {
			cfg.BlockSize = blockSize
		}
	}
}

// WithLogger routes control-plane log output through entry.
func WithLogger(entry *logrus.Entry) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if entry != nil {
			cfg.Logger = entry
		}
	}
}

// ApplyProcessorOptions applies zero or more options to the default config.
func ApplyProcessorOptions(opts ...ProcessorOption) ProcessorConfig {
	cfg := DefaultProcessorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Log returns the configured logger, tagged with the component name.
// Without an explicit logger the logrus standard logger is used.
func (c ProcessorConfig) Log(component string) *logrus.Entry {
	if c.Logger != nil {
		return c.Logger.WithField("component", component)
	}
	return logrus.WithField("component", component)
}
